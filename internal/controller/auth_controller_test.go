package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sage_edu_backend/internal/config"
	"sage_edu_backend/internal/middleware"
	"sage_edu_backend/internal/repository"
	"sage_edu_backend/internal/service"
	"sage_edu_backend/internal/testutil"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.DB(t)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "controller-test-secret-0123456789", ExpireTime: time.Hour}}
	userRepo := repository.NewUserRepository(db)
	users := service.NewUserService(userRepo)
	auth := NewAuthController(service.NewAuthService(userRepo, cfg), users)
	uc := NewUserController(users)

	r := gin.New()
	r.POST("/api/register", auth.Register)
	r.POST("/api/login", auth.Login)
	authed := r.Group("/api", middleware.AuthMiddleware(cfg))
	authed.GET("/profile", auth.GetProfile)
	authed.PUT("/user/profile", uc.UpdateProfile)
	return r
}

func postJSON(r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(body)
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterLoginProfile(t *testing.T) {
	r := newAuthRouter(t)

	w := postJSON(r, http.MethodPost, "/api/register", "", gin.H{
		"name": "Ada", "email": "Ada@Example.com", "password": "secret123", "role": "teacher",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = postJSON(r, http.MethodPost, "/api/register", "", gin.H{
		"name": "Ada", "email": "ada@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = postJSON(r, http.MethodPost, "/api/login", "", gin.H{"email": "ada@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postJSON(r, http.MethodPost, "/api/login", "", gin.H{"email": "ada@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code)
	var login service.LoginResponse
	decodeData(t, w, &login)
	require.NotEmpty(t, login.Token)
	assert.Equal(t, "teacher", string(login.User.Role))

	w = postJSON(r, http.MethodPut, "/api/user/profile", login.Token, gin.H{"name": "Ada L."})
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Ada L."`)
	assert.NotContains(t, w.Body.String(), "secret123")
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	r := newAuthRouter(t)
	w := postJSON(r, http.MethodPost, "/api/register", "", gin.H{
		"name": "Eve", "email": "eve@example.com", "password": "secret123", "role": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
