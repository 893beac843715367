package response

import (
	"Concierge/internal/api/dto"
	"Concierge/internal/service"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, fn gin.HandlerFunc) dto.Response {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", fn)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var res dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func TestError_MapsWrappedServiceErrors(t *testing.T) {
	res := serve(t, func(c *gin.Context) {
		Error(c, fmt.Errorf("lookup: %w", service.ErrConversationNotFound))
	})
	require.Equal(t, NotFound, res.Code)

	res = serve(t, func(c *gin.Context) { Error(c, errors.New("boom")) })
	require.Equal(t, InternalServerError, res.Code)
	require.Equal(t, service.UnExpectedError.Error(), res.Message)
}

func TestSuccess(t *testing.T) {
	res := serve(t, func(c *gin.Context) { Success(c, gin.H{"ok": true}) })
	require.Equal(t, Ok, res.Code)
	require.Equal(t, map[string]any{"ok": true}, res.Data)
}
