package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/students", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestAllowedOrigin(t *testing.T) {
	r := newRouter([]string{"http://dashboard.test/"})

	req := httptest.NewRequest(http.MethodGet, "/students", nil)
	req.Header.Set("Origin", "http://dashboard.test")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://dashboard.test", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRejectedOrigin(t *testing.T) {
	r := newRouter([]string{"http://dashboard.test"})

	req := httptest.NewRequest(http.MethodGet, "/students", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPreflightAnyOrigin(t *testing.T) {
	r := newRouter(nil)

	req := httptest.NewRequest(http.MethodOptions, "/students", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
