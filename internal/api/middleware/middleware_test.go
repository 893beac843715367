package middleware

import (
	"Concierge/internal/api/dto"
	"Concierge/internal/pkg/logger"
	"Concierge/internal/pkg/security"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.Response{Code: 200, Data: gin.H{
			"user":  c.GetString(UserIDKey),
			"name":  c.GetString(NameKey),
			"trace": logger.TraceID(c.Request.Context()),
		}})
	})
	return r
}

func call(t *testing.T, r http.Handler, req *http.Request) (dto.Response, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var res dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res, w
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(AuthMiddleware(secret))

	res, _ := call(t, r, httptest.NewRequest(http.MethodGet, "/me", nil))
	require.Equal(t, 401, res.Code)

	bad := httptest.NewRequest(http.MethodGet, "/me", nil)
	bad.Header.Set("Authorization", "Bearer nope")
	res, _ = call(t, r, bad)
	require.Equal(t, 401, res.Code)

	token, err := security.GenerateToken(secret, "u1", "Bob", "", []string{"USER"})
	require.NoError(t, err)

	ok := httptest.NewRequest(http.MethodGet, "/me", nil)
	ok.Header.Set("Authorization", "Bearer "+token)
	res, _ = call(t, r, ok)
	require.Equal(t, 200, res.Code)
	require.Equal(t, "u1", res.Data.(map[string]any)["user"])

	viaQuery := httptest.NewRequest(http.MethodGet, "/me?token="+url.QueryEscape(token), nil)
	res, _ = call(t, r, viaQuery)
	require.Equal(t, 200, res.Code)
	require.Equal(t, "Bob", res.Data.(map[string]any)["name"])
}

func TestAuthOptionalMiddleware_Anonymous(t *testing.T) {
	r := newRouter(AuthOptionalMiddleware(secret))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	res, _ := call(t, r, req)
	require.Equal(t, 200, res.Code)
	require.Equal(t, "", res.Data.(map[string]any)["user"])
}

func TestCheckRoles(t *testing.T) {
	r := newRouter(AuthMiddleware(secret), CheckRoles("ADMIN"))

	user, err := security.GenerateToken(secret, "u1", "Bob", "", []string{"USER"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+user)
	res, _ := call(t, r, req)
	require.Equal(t, 403, res.Code)

	admin, err := security.GenerateToken(secret, "a1", "Desk", "", []string{"ADMIN"})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	res, _ = call(t, r, req)
	require.Equal(t, 200, res.Code)
}

func TestTraceMiddleware(t *testing.T) {
	r := newRouter(TraceMiddleware(), AuditMiddleware())

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(TraceHeader, "trace-1")
	res, w := call(t, r, req)
	require.Equal(t, "trace-1", w.Header().Get(TraceHeader))
	require.Equal(t, "trace-1", res.Data.(map[string]any)["trace"])

	_, w = call(t, r, httptest.NewRequest(http.MethodGet, "/me", nil))
	require.NotEmpty(t, w.Header().Get(TraceHeader))
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	r := newRouter(CORSMiddleware())
	r.OPTIONS("/me", func(c *gin.Context) {})

	req := httptest.NewRequest(http.MethodOptions, "/me", nil)
	req.Header.Set("Origin", "http://hotel.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "http://hotel.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRedactQuery(t *testing.T) {
	require.Equal(t, "a=1&token=***", redactQuery(url.Values{"a": {"1"}, "token": {"secret"}}))
}
