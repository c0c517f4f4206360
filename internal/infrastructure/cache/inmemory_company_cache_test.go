package cache

import (
	"context"
	"testing"
	"time"

	"github.com/erp/docnumber/internal/domain/sequence"
	"github.com/erp/docnumber/internal/domain/tenant"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCompany(t *testing.T) *tenant.Company {
	t.Helper()
	c, err := tenant.NewCompany(uuid.New(), "acme", "Acme SARL")
	require.NoError(t, err)
	april := 4
	pattern := "{PREFIX}/{YY}/{NNN}"
	require.NoError(t, c.UpdateNumbering(tenant.NumberingUpdate{
		FiscalYearStartMonth: &april,
		DocumentPrefixes:     map[sequence.DocumentType]string{sequence.DocumentTypeInvoice: "INV"},
		NumberPattern:        &pattern,
	}))
	return c
}

func TestInMemoryCompanyCache(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCompanyCache(WithInMemoryTTL(time.Minute))
	defer c.Close()

	company := newTestCompany(t)

	got, err := c.Get(ctx, company.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, company, 0))
	got, err = c.Get(ctx, company.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ACME", got.Code)
	assert.Equal(t, 4, got.FiscalYearStartMonth)
	assert.Equal(t, "{PREFIX}/{YY}/{NNN}", got.NumberPattern)
	prefix, err := got.PrefixFor(sequence.DocumentTypeInvoice)
	require.NoError(t, err)
	assert.Equal(t, "INV", prefix)

	// callers get their own copy
	got.DocumentPrefixes[sequence.DocumentTypeInvoice] = "XXX"
	again, _ := c.Get(ctx, company.ID)
	assert.Equal(t, "INV", again.DocumentPrefixes[sequence.DocumentTypeInvoice])

	require.NoError(t, c.Invalidate(ctx, company.ID))
	got, _ = c.Get(ctx, company.ID)
	assert.Nil(t, got)

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Zero(t, stats.Entries)
}

func TestInMemoryCompanyCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCompanyCache(WithInMemoryTTL(20*time.Millisecond), WithCleanupInterval(time.Hour))
	defer c.Close()

	first, second := newTestCompany(t), newTestCompany(t)
	require.NoError(t, c.Set(ctx, first, 0))
	require.NoError(t, c.Set(ctx, second, time.Hour))

	time.Sleep(50 * time.Millisecond)

	got, err := c.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = c.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)

	c.removeExpired()
	assert.Equal(t, 1, c.Stats().Entries)

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.Zero(t, c.Stats().Entries)
}

func TestCompanyEntry_RoundTrip(t *testing.T) {
	company := newTestCompany(t)

	data, err := encodeCompany(company)
	require.NoError(t, err)
	decoded, err := decodeCompany(data)
	require.NoError(t, err)

	assert.Equal(t, company.ID, decoded.ID)
	assert.Equal(t, company.Version, decoded.Version)
	assert.Equal(t, company.DocumentPrefixes, decoded.DocumentPrefixes)
	assert.True(t, company.UpdatedAt.Equal(decoded.UpdatedAt))

	_, err = decodeCompany([]byte("{not json"))
	assert.Error(t, err)
}
