package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/docnumber/internal/infrastructure/auth"
	"github.com/erp/docnumber/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequirePermission(t *testing.T) {
	svc := newTestJWTService(time.Minute)
	core, logs := observer.New(zapcore.WarnLevel)

	router := gin.New()
	router.Use(JWTAuth(JWTConfig{Service: svc}))
	router.POST("/reset", RequirePermission(auth.PermissionSequenceAdmin, zap.New(core)), okHandler)

	call := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/reset", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := call(newToken(t, svc, uuid.New(), auth.PermissionSequenceAdmin))
	assert.Equal(t, http.StatusOK, w.Code)

	w = call(newToken(t, svc, uuid.New(), auth.PermissionSequenceAllocate))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, dto.ErrCodeForbidden, errorCode(t, w))
	assert.Equal(t, 1, logs.FilterMessage("Permission denied").Len())
}

func TestRequirePermission_WithoutIdentity(t *testing.T) {
	router := gin.New()
	router.GET("/x", RequirePermission(auth.PermissionSequenceAllocate, nil), okHandler)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
