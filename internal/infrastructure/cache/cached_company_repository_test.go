package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/docnumber/internal/domain/tenant"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type mockCompanyRepository struct {
	mock.Mock
}

func (m *mockCompanyRepository) FindByID(ctx context.Context, id uuid.UUID) (*tenant.Company, error) {
	args := m.Called(ctx, id)
	if c := args.Get(0); c != nil {
		return c.(*tenant.Company), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCompanyRepository) Save(ctx context.Context, company *tenant.Company) error {
	return m.Called(ctx, company).Error(0)
}

// brokenCache fails every operation
type brokenCache struct{}

func (brokenCache) Get(context.Context, uuid.UUID) (*tenant.Company, error) {
	return nil, errors.New("connection refused")
}
func (brokenCache) Set(context.Context, *tenant.Company, time.Duration) error {
	return errors.New("connection refused")
}
func (brokenCache) Invalidate(context.Context, uuid.UUID) error { return errors.New("connection refused") }
func (brokenCache) Close() error                                { return nil }

func TestCachedCompanyRepository_FindByID(t *testing.T) {
	ctx := context.Background()

	t.Run("reads through once", func(t *testing.T) {
		company := newTestCompany(t)
		next := new(mockCompanyRepository)
		next.On("FindByID", mock.Anything, company.ID).Return(company, nil).Once()

		mem := NewInMemoryCompanyCache()
		defer mem.Close()
		repo := NewCachedCompanyRepository(next, mem, time.Minute, nil)

		for i := 0; i < 3; i++ {
			got, err := repo.FindByID(ctx, company.ID)
			require.NoError(t, err)
			assert.Equal(t, company.ID, got.ID)
		}
		next.AssertExpectations(t)
		assert.Equal(t, int64(2), mem.Stats().Hits)
	})

	t.Run("not found is not cached", func(t *testing.T) {
		id := uuid.New()
		next := new(mockCompanyRepository)
		next.On("FindByID", mock.Anything, id).Return(nil, tenant.ErrCompanyNotFound).Twice()

		mem := NewInMemoryCompanyCache()
		defer mem.Close()
		repo := NewCachedCompanyRepository(next, mem, time.Minute, nil)

		for i := 0; i < 2; i++ {
			_, err := repo.FindByID(ctx, id)
			assert.ErrorIs(t, err, tenant.ErrCompanyNotFound)
		}
		next.AssertExpectations(t)
	})

	t.Run("cache failures fall back to the repository", func(t *testing.T) {
		company := newTestCompany(t)
		next := new(mockCompanyRepository)
		next.On("FindByID", mock.Anything, company.ID).Return(company, nil)

		core, logs := observer.New(zapcore.WarnLevel)
		repo := NewCachedCompanyRepository(next, brokenCache{}, time.Minute, zap.New(core))

		got, err := repo.FindByID(ctx, company.ID)
		require.NoError(t, err)
		assert.Same(t, company, got)
		assert.Equal(t, 2, logs.Len())
	})
}

func TestCachedCompanyRepository_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("invalidates after a successful save", func(t *testing.T) {
		company := newTestCompany(t)
		next := new(mockCompanyRepository)
		next.On("Save", mock.Anything, company).Return(nil)

		mem := NewInMemoryCompanyCache()
		defer mem.Close()
		require.NoError(t, mem.Set(ctx, company, 0))

		repo := NewCachedCompanyRepository(next, mem, time.Minute, nil)
		require.NoError(t, repo.Save(ctx, company))

		cached, _ := mem.Get(ctx, company.ID)
		assert.Nil(t, cached)
	})

	t.Run("keeps the cache when the save fails", func(t *testing.T) {
		company := newTestCompany(t)
		next := new(mockCompanyRepository)
		next.On("Save", mock.Anything, company).Return(errors.New("disk full"))

		mem := NewInMemoryCompanyCache()
		defer mem.Close()
		require.NoError(t, mem.Set(ctx, company, 0))

		repo := NewCachedCompanyRepository(next, mem, time.Minute, nil)
		assert.Error(t, repo.Save(ctx, company))

		cached, _ := mem.Get(ctx, company.ID)
		assert.NotNil(t, cached)
	})

	t.Run("invalidation failure does not fail the save", func(t *testing.T) {
		company := newTestCompany(t)
		next := new(mockCompanyRepository)
		next.On("Save", mock.Anything, company).Return(nil)

		repo := NewCachedCompanyRepository(next, brokenCache{}, time.Minute, nil)
		assert.NoError(t, repo.Save(ctx, company))
	})
}
