package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer("short-passphrase")
	require.NoError(t, err)

	sealed, err := s.Seal("s3cret;pass")
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.NotContains(t, sealed, "s3cret")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "s3cret;pass", plain)
}

func TestSealer_SealIsIdempotent(t *testing.T) {
	s, err := NewSealer("k")
	require.NoError(t, err)

	once, err := s.Seal("x")
	require.NoError(t, err)
	twice, err := s.Seal(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestSealer_OpenPlainValue(t *testing.T) {
	s, err := NewSealer("k")
	require.NoError(t, err)

	plain, err := s.Open("not-sealed")
	require.NoError(t, err)
	assert.Equal(t, "not-sealed", plain)
}

func TestSealer_WrongKey(t *testing.T) {
	a, err := NewSealer("key-a")
	require.NoError(t, err)
	b, err := NewSealer("key-b")
	require.NoError(t, err)

	sealed, err := a.Seal("value")
	require.NoError(t, err)

	_, err = b.Open(sealed)
	assert.Error(t, err)
}

func TestSealer_Keys(t *testing.T) {
	s, err := NewSealer("k")
	require.NoError(t, err)

	in := map[string]string{"DB_ROOT_PASS": "root", "APP_USER": "app"}
	sealed, err := s.SealKeys(in, "DB_ROOT_PASS", "APP_PASS")
	require.NoError(t, err)
	assert.Equal(t, "root", in["DB_ROOT_PASS"])
	assert.True(t, IsSealed(sealed["DB_ROOT_PASS"]))
	assert.Equal(t, "app", sealed["APP_USER"])
	_, ok := sealed["APP_PASS"]
	assert.False(t, ok)

	opened, err := s.OpenKeys(sealed, "DB_ROOT_PASS")
	require.NoError(t, err)
	assert.Equal(t, in, opened)
}

func TestNewSealer_EmptySecret(t *testing.T) {
	_, err := NewSealer("")
	assert.Error(t, err)
}
