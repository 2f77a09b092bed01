package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// sealedPrefix 标记已加密的值, 避免重复加密
const sealedPrefix = "enc:v1:"

const hkdfInfo = "galera-cd snapshot secrets"

// Sealer 使用 AES-GCM 加解密快照中的敏感参数
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer 由任意长度的口令经 HKDF-SHA256 派生 32 字节密钥
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, fmt.Errorf("crypto.aes_key 未配置")
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("派生密钥失败: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// IsSealed 判断值是否已加密
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}

// Seal 加密, 结果为 enc:v1:<base64(nonce|ciphertext)>
func (s *Sealer) Seal(plaintext string) (string, error) {
	if IsSealed(plaintext) {
		return plaintext, nil
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open 解密, 未加密的值原样返回
func (s *Sealer) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("密文格式错误: %w", err)
	}

	nonceSize := s.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("密文太短")
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("解密失败: %w", err)
	}
	return string(plaintext), nil
}

// SealKeys 对 map 中指定的键加密, 返回新 map
func (s *Sealer) SealKeys(in map[string]string, keys ...string) (map[string]string, error) {
	return s.apply(in, keys, s.Seal)
}

// OpenKeys 对 map 中指定的键解密, 返回新 map
func (s *Sealer) OpenKeys(in map[string]string, keys ...string) (map[string]string, error) {
	return s.apply(in, keys, s.Open)
}

func (s *Sealer) apply(in map[string]string, keys []string, fn func(string) (string, error)) (map[string]string, error) {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	for _, k := range keys {
		v, ok := out[k]
		if !ok {
			continue
		}
		converted, err := fn(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = converted
	}
	return out, nil
}
