package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebhrenchir/granted.gg-sub001/internal/middleware"
)

func rateLimitedRouter(maxRequests int, window time.Duration, done <-chan struct{}) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/click", middleware.RateLimiter(maxRequests, window, done), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func doClick(t *testing.T, router *gin.Engine, remoteAddr string) int {
	t.Helper()

	w := httptest.NewRecorder()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, "/click", nil)
	require.NoError(t, err)
	req.RemoteAddr = remoteAddr

	router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiter(t *testing.T) {
	done := make(chan struct{})
	defer close(done)

	t.Run("requests over the limit are rejected", func(t *testing.T) {
		router := rateLimitedRouter(3, time.Minute, done)

		for i := 0; i < 3; i++ {
			assert.Equal(t, http.StatusNoContent, doClick(t, router, "10.0.0.1:1234"))
		}
		assert.Equal(t, http.StatusTooManyRequests, doClick(t, router, "10.0.0.1:1234"))
	})

	t.Run("limits are tracked per IP", func(t *testing.T) {
		router := rateLimitedRouter(1, time.Minute, done)

		assert.Equal(t, http.StatusNoContent, doClick(t, router, "10.0.0.1:1234"))
		assert.Equal(t, http.StatusTooManyRequests, doClick(t, router, "10.0.0.1:5678"))
		assert.Equal(t, http.StatusNoContent, doClick(t, router, "10.0.0.2:1234"))
	})

	t.Run("an expired window resets the count", func(t *testing.T) {
		router := rateLimitedRouter(1, 20*time.Millisecond, done)

		assert.Equal(t, http.StatusNoContent, doClick(t, router, "10.0.0.3:1234"))
		assert.Equal(t, http.StatusTooManyRequests, doClick(t, router, "10.0.0.3:1234"))

		time.Sleep(30 * time.Millisecond)
		assert.Equal(t, http.StatusNoContent, doClick(t, router, "10.0.0.3:1234"))
	})
}
