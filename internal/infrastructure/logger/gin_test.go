package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestRouter(l *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), "req-42"))
		c.Next()
	})
	r.Use(RequestLogger(l, "/health"), Recovery(l))
	r.GET("/health/live", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/v1/sequences/allocate", func(c *gin.Context) {
		FromContext(c.Request.Context()).Info("inside handler")
		c.JSON(http.StatusConflict, gin.H{"success": false})
	})
	r.GET("/boom", func(c *gin.Context) { panic("sequence row vanished") })
	return r
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := newTestRouter(zap.New(core))

	t.Run("client errors are warnings", func(t *testing.T) {
		w := serve(r, http.MethodPost, "/api/v1/sequences/allocate?dry=1")
		assert.Equal(t, http.StatusConflict, w.Code)

		handler := logs.FilterMessage("inside handler").All()
		require.Len(t, handler, 1)
		assert.Equal(t, "/api/v1/sequences/allocate", handler[0].ContextMap()["path"])

		entries := logs.FilterMessage("HTTP request").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
		assert.Equal(t, int64(http.StatusConflict), entries[0].ContextMap()["status"])
		assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"])
		assert.Equal(t, "dry=1", entries[0].ContextMap()["query"])
	})

	t.Run("health probes stay quiet", func(t *testing.T) {
		before := logs.Len()
		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health/live").Code)
		assert.Equal(t, before, logs.Len())
	})
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	r := newTestRouter(zap.New(core))

	w := serve(r, http.MethodGet, "/boom")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_INTERNAL")
	panics := logs.FilterMessage("Panic recovered").All()
	require.Len(t, panics, 1)
	assert.Equal(t, "sequence row vanished", panics[0].ContextMap()["panic"])
}
