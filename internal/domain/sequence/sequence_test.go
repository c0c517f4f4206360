package sequence

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/docnumber/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSequence(t *testing.T) *Sequence {
	t.Helper()
	s, err := NewSequence(uuid.New(), DocumentTypeInvoice, 2024, "INV", "")
	require.NoError(t, err)
	return s
}

func TestNewSequence(t *testing.T) {
	t.Run("applies default pattern", func(t *testing.T) {
		s := newTestSequence(t)
		assert.Equal(t, DefaultPattern, s.Pattern)
		assert.Equal(t, int64(0), s.LastNumber)
		assert.True(t, s.Active)
		assert.Equal(t, 1, s.Version)
	})

	t.Run("rejects nil tenant", func(t *testing.T) {
		_, err := NewSequence(uuid.Nil, DocumentTypeInvoice, 2024, "INV", "")
		assert.True(t, IsValidation(err))
	})

	t.Run("rejects unknown document type", func(t *testing.T) {
		_, err := NewSequence(uuid.New(), DocumentType("MEMO"), 2024, "M", "")
		assert.True(t, IsValidation(err))
	})

	t.Run("rejects fiscal year out of range", func(t *testing.T) {
		_, err := NewSequence(uuid.New(), DocumentTypeInvoice, 1999, "INV", "")
		assert.True(t, IsValidation(err))
	})

	t.Run("rejects pattern without number", func(t *testing.T) {
		_, err := NewSequence(uuid.New(), DocumentTypeInvoice, 2024, "INV", "{PREFIX}-{YYYY}")
		assert.True(t, IsValidation(err))
	})
}

func TestSequence_Issue(t *testing.T) {
	t.Run("numbers are consecutive and rendered", func(t *testing.T) {
		s := newTestSequence(t)
		date := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

		for want := int64(1); want <= 7; want++ {
			res, err := s.Issue(IssueParams{IssueDate: date, FiscalStartMonth: 1, Actor: "alice"})
			require.NoError(t, err)
			assert.Equal(t, want, res.Number)
			assert.Nil(t, res.Record)
		}
		assert.Equal(t, int64(7), s.LastNumber)
		assert.Equal(t, "INV-2024-0008", s.PeekNext(date, 1))
		assert.Len(t, s.GetDomainEvents(), 7)
	})

	t.Run("creates audit record when document id given", func(t *testing.T) {
		s := newTestSequence(t)
		res, err := s.Issue(IssueParams{FiscalStartMonth: 1, DocumentID: "doc-1", Actor: "alice"})
		require.NoError(t, err)
		require.NotNil(t, res.Record)
		assert.Equal(t, "INV-2024-0001", res.Formatted)
		assert.Equal(t, s.ID, res.Record.SequenceID())
		assert.Equal(t, s.TenantID, res.Record.TenantID())
		assert.Equal(t, int64(1), res.Record.Number())
		assert.Equal(t, "doc-1", res.Record.DocumentID())
		assert.Equal(t, "alice", res.Record.IssuedBy())
		assert.False(t, res.Record.IsPersisted())

		events := s.GetDomainEvents()
		require.Len(t, events, 1)
		ev, ok := events[0].(*NumberIssuedEvent)
		require.True(t, ok)
		assert.Equal(t, EventTypeNumberIssued, ev.EventType())
		assert.Equal(t, "doc-1", ev.DocumentID)
	})

	t.Run("inactive sequence refuses", func(t *testing.T) {
		s := newTestSequence(t)
		require.NoError(t, s.Deactivate())

		_, err := s.Issue(IssueParams{Actor: "alice"})
		assert.True(t, IsState(err))
		assert.Equal(t, int64(0), s.LastNumber)
	})

	t.Run("issue date from another fiscal year refuses", func(t *testing.T) {
		s := newTestSequence(t)
		_, err := s.Issue(IssueParams{
			IssueDate:        time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC),
			FiscalStartMonth: 4,
			Actor:            "alice",
		})
		assert.True(t, IsValidation(err))
		assert.Equal(t, int64(0), s.LastNumber)
	})

	t.Run("actor is required", func(t *testing.T) {
		s := newTestSequence(t)
		_, err := s.Issue(IssueParams{})
		assert.True(t, IsValidation(err))
	})
}

func TestSequence_Reset(t *testing.T) {
	t.Run("resets when nothing was bound", func(t *testing.T) {
		s := newTestSequence(t)
		s.LastNumber = 12

		require.NoError(t, s.Reset(0, "admin"))
		assert.Equal(t, int64(0), s.LastNumber)

		events := s.GetDomainEvents()
		require.Len(t, events, 1)
		ev := events[0].(*SequenceResetEvent)
		assert.Equal(t, int64(12), ev.PreviousNumber)
	})

	t.Run("refuses with issued numbers", func(t *testing.T) {
		s := newTestSequence(t)
		s.LastNumber = 3

		err := s.Reset(1, "admin")
		assert.True(t, IsState(err))
		assert.True(t, errors.Is(err, shared.ErrInvalidState))
		assert.Equal(t, int64(3), s.LastNumber)
	})
}

func TestSequence_ActivateDeactivate(t *testing.T) {
	s := newTestSequence(t)

	assert.True(t, IsState(s.Activate()))
	require.NoError(t, s.Deactivate())
	assert.False(t, s.Active)
	assert.True(t, IsState(s.Deactivate()))
	require.NoError(t, s.Activate())
	assert.True(t, s.Active)
}

func TestIssuedNumber_Immutability(t *testing.T) {
	s := newTestSequence(t)
	res, err := s.Issue(IssueParams{DocumentID: "doc-1", Actor: "alice"})
	require.NoError(t, err)
	rec := res.Record

	require.NoError(t, rec.SetDocumentID("doc-2"))
	assert.Equal(t, "doc-2", rec.DocumentID())

	rec.MarkPersisted()

	err = rec.SetDocumentID("doc-3")
	assert.True(t, IsState(err))
	assert.Equal(t, "doc-2", rec.DocumentID())

	err = rec.SetFormattedNumber("X")
	assert.True(t, IsState(err))
	assert.Equal(t, "INV-2024-0001", rec.FormattedNumber())

	loaded := RehydrateIssuedNumber(rec.Snapshot())
	assert.True(t, loaded.IsPersisted())
	assert.True(t, IsState(loaded.SetDocumentID("doc-4")))
}

func TestErrors(t *testing.T) {
	cause := errors.New("lock timeout")
	err := NewConcurrencyError(cause)

	assert.True(t, err.Retryable())
	assert.True(t, IsConcurrency(err))
	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict))
	assert.Contains(t, err.Error(), "lock timeout")

	assert.True(t, errors.Is(ErrSequenceNotFound, shared.ErrNotFound))
	assert.True(t, IsTenantConfig(NewTenantConfigError("no prefix")))
	assert.False(t, IsTenantConfig(NewStateError("x")))
}
