package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"galera-cd/internal/adapter/executor"
	"galera-cd/internal/core"
	"galera-cd/internal/pkg/auth"
	"galera-cd/internal/pkg/config"
	"galera-cd/internal/pkg/crypto"
	"galera-cd/internal/pkg/database/dbtest"
	"galera-cd/internal/pkg/jwt"
	"galera-cd/internal/repository"
	"galera-cd/pkg/constants"
	pkgErrors "galera-cd/pkg/errors"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Detail  string          `json:"detail"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	engine *gin.Engine
	cfg    *config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server:   config.ServerConfig{Mode: "debug"},
		Auth:     config.AuthConfig{JWT: config.JWTConfig{Secret: "router-secret", AccessTokenExpire: 600, RefreshTokenExpire: 3600}},
		Core:     config.CoreConfig{PollInterval: "1h", MaxMonitors: 4, CapacityFloorGB: 7, ReconcileConcurrency: 2},
		Executor: config.ExecutorConfig{DeployJob: "galera-deploy", PreflightJob: "galera-preflight"},
		Callback: config.CallbackConfig{Token: "cb-secret"},
		CORS:     config.CORSConfig{AllowOrigins: []string{"*"}},
	}
	prev := config.GlobalConfig
	config.GlobalConfig = cfg
	t.Cleanup(func() { config.GlobalConfig = prev })

	db := dbtest.Open(t)
	sim := executor.NewSimulator()
	sealer, err := crypto.NewSealer("router-test-key")
	require.NoError(t, err)

	engine := core.NewCoreEngine(repository.NewDeploymentRepository(db), sim, nil, &cfg.Core, zap.NewNop())
	t.Cleanup(engine.Stop)

	svc := NewServices(cfg, db, engine, sim, nil, sealer, zap.NewNop())
	return &testServer{engine: Setup(cfg, svc), cfg: cfg}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(constants.HeaderAuthorization, constants.HeaderBearerPrefix+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if w.Code == http.StatusOK && w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func token(t *testing.T, email string, role auth.Role) string {
	t.Helper()
	tok, err := jwt.GenerateAccessToken(email, "", string(role))
	require.NoError(t, err)
	return tok
}

func TestHealthAndRequestID(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(constants.HeaderRequestID))

	w, _ = s.do(t, http.MethodGet, "/health", "", nil, constants.HeaderRequestID, "req-42")
	assert.Equal(t, "req-42", w.Header().Get(constants.HeaderRequestID))
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	_, env := s.do(t, http.MethodGet, "/api/v1/deployments", "", nil)
	assert.Equal(t, pkgErrors.CodeUnauthorized, env.Code)

	refresh, err := jwt.GenerateRefreshToken("alice@example.com", "", string(auth.RoleUser))
	require.NoError(t, err)
	_, env = s.do(t, http.MethodGet, "/api/v1/deployments", refresh, nil)
	assert.Equal(t, pkgErrors.CodeUnauthorized, env.Code)

	_, env = s.do(t, http.MethodGet, "/api/v1/auth/me", token(t, "Alice@Example.com", auth.RoleUser), nil)
	require.Equal(t, pkgErrors.CodeSuccess, env.Code)
	var me struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "alice@example.com", me.Email)
	assert.Equal(t, string(auth.RoleUser), me.Role)
}

func TestPreflightRoundTrip(t *testing.T) {
	s := newTestServer(t)
	alice := token(t, "alice@example.com", auth.RoleUser)

	_, env := s.do(t, http.MethodPost, "/api/v1/preflight", alice, map[string]interface{}{
		"hosts":         []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"},
		"async_node_ip": "10.0.0.4",
	})
	require.Equal(t, pkgErrors.CodeSuccess, env.Code, env.Message)
	var started struct {
		PreflightID int64  `json:"preflight_id"`
		Status      string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &started))
	assert.Equal(t, constants.PreflightStatusRunning, started.Status)

	result := map[string]interface{}{
		"status": constants.PreflightStatusSuccess,
		"results": []map[string]interface{}{
			{"ip": "10.0.0.1", "status": "OK", "expected_vg_gb": 80},
			{"ip": "10.0.0.2", "status": "OK", "expected_vg_gb": "90.5"},
			{"ip": "10.0.0.3", "status": "OK", "expected_vg_gb": 70},
		},
	}
	path := "/api/v1/preflight/1/complete"

	_, env = s.do(t, http.MethodPost, path, "", result)
	assert.Equal(t, pkgErrors.CodeUnauthorized, env.Code, "callback token required")

	_, env = s.do(t, http.MethodPost, path, "", result, constants.HeaderCallbackToken, "cb-secret")
	require.Equal(t, pkgErrors.CodeSuccess, env.Code, env.Message)

	_, env = s.do(t, http.MethodGet, "/api/v1/preflight/1", alice, nil)
	require.Equal(t, pkgErrors.CodeSuccess, env.Code)
	var got struct {
		Status  string        `json:"status"`
		Results []interface{} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, constants.PreflightStatusSuccess, got.Status)
	assert.Len(t, got.Results, 3)
}

func TestBadRequests(t *testing.T) {
	s := newTestServer(t)
	alice := token(t, "alice@example.com", auth.RoleUser)

	_, env := s.do(t, http.MethodGet, "/api/v1/deployments/abc", alice, nil)
	assert.Equal(t, pkgErrors.CodeBadRequest, env.Code)

	_, env = s.do(t, http.MethodPost, "/api/v1/preflight", alice, map[string]interface{}{"hosts": "not-a-list"})
	assert.Equal(t, pkgErrors.CodeBadRequest, env.Code)

	_, env = s.do(t, http.MethodPost, "/api/v1/preflight", alice, map[string]interface{}{
		"hosts":         []string{"10.0.0.1", "10.0.0.2"},
		"async_node_ip": "10.0.0.4",
	})
	assert.Equal(t, pkgErrors.CodeValidationError, env.Code)

	_, env = s.do(t, http.MethodGet, "/api/v1/deployments/9", alice, nil)
	assert.Equal(t, pkgErrors.CodeNotFound, env.Code)
}

func TestPrivilegedRoutes(t *testing.T) {
	s := newTestServer(t)
	alice := token(t, "alice@example.com", auth.RoleUser)
	root := token(t, "root@example.com", auth.RoleSuperUser)

	_, env := s.do(t, http.MethodPost, "/api/v1/admin/reconcile", alice, nil)
	assert.Equal(t, pkgErrors.CodeForbidden, env.Code)

	_, env = s.do(t, http.MethodPost, "/api/v1/admin/reconcile", root, nil)
	require.Equal(t, pkgErrors.CodeSuccess, env.Code, env.Message)
	var report struct {
		Scanned int `json:"scanned"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, 0, report.Scanned)

	_, env = s.do(t, http.MethodPost, "/api/v1/templates", alice, map[string]interface{}{"name": "oltp", "buffer_pool": "4G"})
	require.Equal(t, pkgErrors.CodeSuccess, env.Code, env.Message)

	_, env = s.do(t, http.MethodDelete, "/api/v1/templates/1", alice, nil)
	assert.Equal(t, pkgErrors.CodeForbidden, env.Code)

	_, env = s.do(t, http.MethodPost, "/api/v1/templates/1/approve", alice, nil)
	assert.Equal(t, pkgErrors.CodeForbidden, env.Code, "self review")

	_, env = s.do(t, http.MethodDelete, "/api/v1/templates/1", root, nil)
	assert.Equal(t, pkgErrors.CodeSuccess, env.Code)
}
