package middleware

import (
	"net/http"
	"net/http/httptest"
	"sage_edu_backend/internal/config"
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/util"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-test-secret-0123456789"

func testRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())

	r.GET("/me", AuthMiddleware(cfg), func(c *gin.Context) {
		util.Success(c, util.GetUserFromContext(c).UserID)
	})
	r.GET("/teacher", AuthMiddleware(cfg), RoleMiddleware(model.Teacher), func(c *gin.Context) {
		util.Success(c, "ok")
	})
	r.GET("/maybe", TryAuthMiddleware(cfg), func(c *gin.Context) {
		util.Success(c, util.GetUserFromContext(c) != nil)
	})
	return r
}

func token(t *testing.T, id uint, role model.UserRole) string {
	t.Helper()
	user := &model.User{Role: role, Email: "u@example.com"}
	user.ID = id
	tok, err := util.GenerateJWT(user, testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func do(r http.Handler, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := testRouter(&config.Config{JWT: config.JWTConfig{Secret: testSecret}})

	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "garbage").Code)

	w := do(r, "/me", token(t, 7, model.Student))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":7`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	// websocket 握手通过 query 携带 token
	w = do(r, "/me?token="+token(t, 8, model.Student), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoleMiddleware(t *testing.T) {
	r := testRouter(&config.Config{JWT: config.JWTConfig{Secret: testSecret}})

	assert.Equal(t, http.StatusForbidden, do(r, "/teacher", token(t, 1, model.Student)).Code)
	assert.Equal(t, http.StatusOK, do(r, "/teacher", token(t, 2, model.Teacher)).Code)
	assert.Equal(t, http.StatusOK, do(r, "/teacher", token(t, 3, model.Admin)).Code)
}

func TestTryAuthMiddleware(t *testing.T) {
	r := testRouter(&config.Config{JWT: config.JWTConfig{Secret: testSecret}})

	assert.Contains(t, do(r, "/maybe", "").Body.String(), `"data":false`)
	assert.Contains(t, do(r, "/maybe", "bad").Body.String(), `"data":false`)
	assert.Contains(t, do(r, "/maybe", token(t, 4, model.Student)).Body.String(), `"data":true`)
}
