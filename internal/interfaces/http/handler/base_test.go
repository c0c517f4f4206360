package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appseq "github.com/erp/docnumber/internal/application/sequence"
	"github.com/erp/docnumber/internal/domain/sequence"
	"github.com/erp/docnumber/internal/domain/tenant"
	"github.com/erp/docnumber/internal/infrastructure/persistence"
	"github.com/erp/docnumber/internal/infrastructure/persistence/models"
	"github.com/erp/docnumber/internal/interfaces/http/dto"
	"github.com/erp/docnumber/internal/interfaces/http/middleware"
	"github.com/erp/docnumber/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

var fixedNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

type apiFixture struct {
	engine    *gin.Engine
	db        *gorm.DB
	companies *persistence.GormCompanyRepository
	allocator *appseq.Allocator
	tenantID  uuid.UUID
}

// newAPIFixture serves the sequence, company and system routes over an
// in-memory database with one registered company. Callers authenticate
// with the development headers.
func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))
	t.Cleanup(func() { _ = sqlDB.Close() })

	f := &apiFixture{
		db:        db,
		companies: persistence.NewGormCompanyRepository(db),
		tenantID:  uuid.New(),
	}
	company, err := tenant.NewCompany(f.tenantID, "acme", "Acme SARL")
	require.NoError(t, err)
	require.NoError(t, f.companies.Save(context.Background(), company))

	f.allocator, err = appseq.NewAllocator(appseq.AllocatorConfig{
		Sequences: persistence.NewGormSequenceRepository(db),
		Companies: f.companies,
		Now:       func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	f.engine = gin.New()
	r := router.NewRouter(f.engine)
	r.Use(middleware.RequestID(), middleware.JWTAuth(middleware.JWTConfig{AllowDevHeaders: true}))
	r.Register(SequenceRoutes(NewSequenceHandler(f.allocator, appseq.NewRetryingAllocator(f.allocator, appseq.DefaultRetryConfig(), nil)), nil)).
		Register(CompanyRoutes(NewCompanyHandler(f.companies), nil))
	r.Setup()
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	return f.doAs(t, f.tenantID, method, path, body)
}

func (f *apiFixture) doAs(t *testing.T, tenantID uuid.UUID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set(middleware.HeaderTenantID, tenantID.String())
	req.Header.Set(middleware.HeaderUserID, "alice")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) APIResponse[T] {
	t.Helper()
	var resp APIResponse[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func errorCodeOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decode[json.RawMessage](t, w)
	require.NotNil(t, resp.Error, w.Body.String())
	return resp.Error.Code
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", sequence.NewValidationError("actor is required"), http.StatusBadRequest, dto.ErrCodeValidation},
		{"state", sequence.NewStateError("sequence is inactive"), http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"not found", sequence.ErrSequenceNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{"conflict", sequence.NewConcurrencyError(errors.New("lock timeout")), http.StatusConflict, dto.ErrCodeConcurrencyConflict},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	h := &BaseHandler{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Set(middleware.RequestIDKey, "req-1")

			h.HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decode[json.RawMessage](t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, "req-1", resp.Error.RequestID)
			assert.NotContains(t, resp.Error.Message, "lock timeout")
			assert.NotContains(t, resp.Error.Message, "connection reset")
		})
	}
}

func TestBaseHandler_BindError(t *testing.T) {
	h := &BaseHandler{}

	t.Run("field errors carry details", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{}`)))
		c.Request.Header.Set("Content-Type", "application/json")

		var req dto.AllocateRequest
		h.BindError(c, c.ShouldBindJSON(&req))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode[json.RawMessage](t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "document_type", resp.Error.Details[0].Field)
	})

	t.Run("malformed json", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"document_type":`)))
		c.Request.Header.Set("Content-Type", "application/json")

		var req dto.AllocateRequest
		h.BindError(c, c.ShouldBindJSON(&req))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, errorCodeOf(t, w))
	})
}

func newJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serveRequest(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func jsonUnmarshal(w *httptest.ResponseRecorder, v any) error {
	return json.Unmarshal(w.Body.Bytes(), v)
}
