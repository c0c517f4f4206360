package persistence

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/docnumber/internal/domain/sequence"
	"github.com/erp/docnumber/internal/infrastructure/persistence/models"
	"github.com/erp/docnumber/tests/testutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupSequenceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// every connection to :memory: is a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.All()...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newSequenceFactory(key sequence.Key, prefix string) func() (*sequence.Sequence, error) {
	return func() (*sequence.Sequence, error) {
		return sequence.NewSequence(key.TenantID, key.DocumentType, key.FiscalYear, prefix, "")
	}
}

func issueNext(t *testing.T, repo *GormSequenceRepository, key sequence.Key, documentID string) sequence.IssueResult {
	t.Helper()
	var result sequence.IssueResult
	err := repo.WithLock(context.Background(), key, newSequenceFactory(key, "FAC"), func(tx sequence.LockedTx, s *sequence.Sequence) error {
		res, err := s.Issue(sequence.IssueParams{DocumentID: documentID, Actor: "tester"})
		if err != nil {
			return err
		}
		if err := tx.Save(context.Background(), s); err != nil {
			return err
		}
		if res.Record != nil {
			if err := tx.RecordIssued(context.Background(), res.Record); err != nil {
				return err
			}
		}
		result = res
		return nil
	})
	require.NoError(t, err)
	return result
}

func TestGormSequenceRepository_WithLock(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the sequence lazily and increments", func(t *testing.T) {
		repo := NewGormSequenceRepository(setupSequenceTestDB(t))
		key := sequence.Key{TenantID: uuid.New(), DocumentType: sequence.DocumentTypeInvoice, FiscalYear: 2024}

		for want := int64(1); want <= 3; want++ {
			res := issueNext(t, repo, key, "")
			assert.Equal(t, want, res.Number)
		}

		seq, err := repo.FindByKey(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(3), seq.LastNumber)
		assert.Equal(t, "FAC", seq.Prefix)
		assert.Equal(t, sequence.DefaultPattern, seq.Pattern)
		assert.True(t, seq.Active)
	})

	t.Run("missing sequence without factory is not found", func(t *testing.T) {
		repo := NewGormSequenceRepository(setupSequenceTestDB(t))
		key := sequence.Key{TenantID: uuid.New(), DocumentType: sequence.DocumentTypeQuote, FiscalYear: 2024}

		called := false
		err := repo.WithLock(ctx, key, nil, func(sequence.LockedTx, *sequence.Sequence) error {
			called = true
			return nil
		})
		assert.True(t, errors.Is(err, sequence.ErrSequenceNotFound))
		assert.False(t, called)
	})

	t.Run("error in callback rolls everything back", func(t *testing.T) {
		repo := NewGormSequenceRepository(setupSequenceTestDB(t))
		key := sequence.Key{TenantID: uuid.New(), DocumentType: sequence.DocumentTypeInvoice, FiscalYear: 2024}
		issueNext(t, repo, key, "doc-1")

		boom := errors.New("boom")
		err := repo.WithLock(ctx, key, nil, func(tx sequence.LockedTx, s *sequence.Sequence) error {
			res, err := s.Issue(sequence.IssueParams{DocumentID: "doc-2", Actor: "tester"})
			require.NoError(t, err)
			require.NoError(t, tx.Save(ctx, s))
			require.NoError(t, tx.RecordIssued(ctx, res.Record))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		seq, err := repo.FindByKey(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(1), seq.LastNumber)

		records, total, err := repo.FindIssued(ctx, sequence.IssuedFilter{TenantID: key.TenantID, SequenceID: seq.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, records, 1)
		assert.Equal(t, "doc-1", records[0].DocumentID())
	})

	t.Run("domain errors pass through unchanged", func(t *testing.T) {
		repo := NewGormSequenceRepository(setupSequenceTestDB(t))
		key := sequence.Key{TenantID: uuid.New(), DocumentType: sequence.DocumentTypeInvoice, FiscalYear: 2024}

		err := repo.WithLock(ctx, key, newSequenceFactory(key, "FAC"), func(tx sequence.LockedTx, s *sequence.Sequence) error {
			return sequence.NewStateError("nope")
		})
		assert.True(t, sequence.IsState(err))
		assert.Equal(t, "nope", err.Error())
	})

	t.Run("factory failure surfaces", func(t *testing.T) {
		repo := NewGormSequenceRepository(setupSequenceTestDB(t))
		key := sequence.Key{TenantID: uuid.New(), DocumentType: sequence.DocumentTypeInvoice, FiscalYear: 2024}

		err := repo.WithLock(ctx, key, func() (*sequence.Sequence, error) {
			return nil, sequence.NewTenantConfigError("no prefix")
		}, func(sequence.LockedTx, *sequence.Sequence) error { return nil })
		assert.True(t, sequence.IsTenantConfig(err))
	})

	t.Run("sequences of different triples are independent", func(t *testing.T) {
		repo := NewGormSequenceRepository(setupSequenceTestDB(t))
		tenantID := uuid.New()
		inv2024 := sequence.Key{TenantID: tenantID, DocumentType: sequence.DocumentTypeInvoice, FiscalYear: 2024}
		inv2025 := sequence.Key{TenantID: tenantID, DocumentType: sequence.DocumentTypeInvoice, FiscalYear: 2025}
		otherTenant := sequence.Key{TenantID: uuid.New(), DocumentType: sequence.DocumentTypeInvoice, FiscalYear: 2024}

		issueNext(t, repo, inv2024, "")
		issueNext(t, repo, inv2024, "")
		assert.Equal(t, int64(1), issueNext(t, repo, inv2025, "").Number)
		assert.Equal(t, int64(1), issueNext(t, repo, otherTenant, "").Number)
	})
}

func TestGormSequenceRepository_WithLockByID(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSequenceRepository(setupSequenceTestDB(t))
	key := sequence.Key{TenantID: uuid.New(), DocumentType: sequence.DocumentTypeTransfer, FiscalYear: 2024}
	issueNext(t, repo, key, "")

	seq, err := repo.FindByKey(ctx, key)
	require.NoError(t, err)

	t.Run("locks and saves by id", func(t *testing.T) {
		err := repo.WithLockByID(ctx, key.TenantID, seq.ID, func(tx sequence.LockedTx, s *sequence.Sequence) error {
			require.NoError(t, s.Deactivate())
			return tx.Save(ctx, s)
		})
		require.NoError(t, err)

		got, err := repo.FindByID(ctx, key.TenantID, seq.ID)
		require.NoError(t, err)
		assert.False(t, got.Active)
	})

	t.Run("other tenant cannot reach the sequence", func(t *testing.T) {
		err := repo.WithLockByID(ctx, uuid.New(), seq.ID, func(sequence.LockedTx, *sequence.Sequence) error {
			return nil
		})
		assert.True(t, errors.Is(err, sequence.ErrSequenceNotFound))

		_, err = repo.FindByID(ctx, uuid.New(), seq.ID)
		assert.True(t, errors.Is(err, sequence.ErrSequenceNotFound))
	})
}

func TestGormSequenceRepository_FindAll(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSequenceRepository(setupSequenceTestDB(t))
	tenantID := uuid.New()

	issueNext(t, repo, sequence.Key{TenantID: tenantID, DocumentType: sequence.DocumentTypeInvoice, FiscalYear: 2024}, "")
	issueNext(t, repo, sequence.Key{TenantID: tenantID, DocumentType: sequence.DocumentTypeQuote, FiscalYear: 2024}, "")
	issueNext(t, repo, sequence.Key{TenantID: tenantID, DocumentType: sequence.DocumentTypeInvoice, FiscalYear: 2025}, "")
	issueNext(t, repo, sequence.Key{TenantID: uuid.New(), DocumentType: sequence.DocumentTypeInvoice, FiscalYear: 2024}, "")

	all, err := repo.FindAll(ctx, sequence.Filter{TenantID: tenantID})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 2025, all[0].FiscalYear)

	invoices, err := repo.FindAll(ctx, sequence.Filter{TenantID: tenantID, DocumentType: sequence.DocumentTypeInvoice})
	require.NoError(t, err)
	assert.Len(t, invoices, 2)

	fy2024, err := repo.FindAll(ctx, sequence.Filter{TenantID: tenantID, FiscalYear: 2024})
	require.NoError(t, err)
	assert.Len(t, fy2024, 2)
}

func TestGormSequenceRepository_IssuedNumbers(t *testing.T) {
	ctx := context.Background()
	db := setupSequenceTestDB(t)
	repo := NewGormSequenceRepository(db)
	key := sequence.Key{TenantID: uuid.New(), DocumentType: sequence.DocumentTypeInvoice, FiscalYear: 2024}

	for i := 0; i < 5; i++ {
		issueNext(t, repo, key, uuid.NewString())
	}
	seq, err := repo.FindByKey(ctx, key)
	require.NoError(t, err)

	t.Run("paginates newest first", func(t *testing.T) {
		records, total, err := repo.FindIssued(ctx, sequence.IssuedFilter{TenantID: key.TenantID, SequenceID: seq.ID, Page: 1, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		require.Len(t, records, 2)
		assert.Equal(t, int64(5), records[0].Number())
		assert.Equal(t, int64(4), records[1].Number())
		assert.True(t, records[0].IsPersisted())
		assert.Equal(t, "FAC-2024-0005", records[0].FormattedNumber())

		records, _, err = repo.FindIssued(ctx, sequence.IssuedFilter{TenantID: key.TenantID, SequenceID: seq.ID, Page: 3, PageSize: 2})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, int64(1), records[0].Number())
	})

	t.Run("updates are refused", func(t *testing.T) {
		err := db.Model(&models.IssuedNumberModel{}).
			Where("sequence_id = ? AND number = ?", seq.ID, 1).
			Update("document_id", "tampered").Error
		assert.True(t, sequence.IsState(err))

		var row models.IssuedNumberModel
		require.NoError(t, db.Where("sequence_id = ? AND number = ?", seq.ID, 1).Take(&row).Error)
		assert.NotEqual(t, "tampered", row.DocumentID)
	})

	t.Run("deletes are refused", func(t *testing.T) {
		var row models.IssuedNumberModel
		require.NoError(t, db.Where("sequence_id = ? AND number = ?", seq.ID, 2).Take(&row).Error)

		err := db.Delete(&row).Error
		assert.True(t, sequence.IsState(err))

		var count int64
		require.NoError(t, db.Model(&models.IssuedNumberModel{}).Where("sequence_id = ?", seq.ID).Count(&count).Error)
		assert.Equal(t, int64(5), count)
	})

	t.Run("duplicate number for a sequence is rejected", func(t *testing.T) {
		dup := &models.IssuedNumberModel{
			ID:              uuid.New(),
			SequenceID:      seq.ID,
			Number:          3,
			TenantID:        key.TenantID,
			FormattedNumber: "FAC-2024-0003",
			DocumentType:    key.DocumentType.String(),
			DocumentID:      "dup",
			IssuedAt:        time.Now(),
			IssuedBy:        "tester",
		}
		assert.Error(t, db.Create(dup).Error)
	})

	t.Run("recording a persisted record twice fails", func(t *testing.T) {
		records, _, err := repo.FindIssued(ctx, sequence.IssuedFilter{TenantID: key.TenantID, SequenceID: seq.ID, PageSize: 1})
		require.NoError(t, err)
		require.Len(t, records, 1)

		err = repo.WithLock(ctx, key, nil, func(tx sequence.LockedTx, s *sequence.Sequence) error {
			count, err := tx.CountIssued(ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(5), count)
			return tx.RecordIssued(ctx, records[0])
		})
		assert.True(t, sequence.IsState(err))
	})
}

func newMockSequenceRepo(t *testing.T, opts ...SequenceRepositoryOption) (*GormSequenceRepository, *testutil.MockDB) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	return NewGormSequenceRepository(mockDB.DB, opts...), mockDB
}

var sequenceColumns = []string{
	"id", "created_at", "updated_at", "version", "tenant_id", "document_type",
	"fiscal_year", "last_number", "prefix", "pattern", "active",
}

func TestGormSequenceRepository_PostgresLocking(t *testing.T) {
	key := sequence.Key{TenantID: uuid.New(), DocumentType: sequence.DocumentTypeInvoice, FiscalYear: 2024}

	t.Run("sets lock timeout and selects for update", func(t *testing.T) {
		repo, mockDB := newMockSequenceRepo(t, WithLockTimeout(250*time.Millisecond))
		mock := mockDB.Mock

		seqID := uuid.New()
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("SET LOCAL lock_timeout = '250ms'")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT \* FROM "document_sequences" WHERE .* FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows(sequenceColumns).
				AddRow(seqID, now, now, 3, key.TenantID, "INVOICE", 2024, 41, "FAC", sequence.DefaultPattern, true))
		mock.ExpectExec(`UPDATE "document_sequences" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.WithLock(context.Background(), key, nil, func(tx sequence.LockedTx, s *sequence.Sequence) error {
			assert.Equal(t, seqID, s.ID)
			assert.Equal(t, int64(41), s.LastNumber)
			res, err := s.Issue(sequence.IssueParams{Actor: "tester"})
			require.NoError(t, err)
			assert.Equal(t, "FAC-2024-0042", res.Formatted)
			return tx.Save(context.Background(), s)
		})

		require.NoError(t, err)
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("lock timeout becomes a concurrency error", func(t *testing.T) {
		repo, mockDB := newMockSequenceRepo(t, WithLockTimeout(time.Second))
		mock := mockDB.Mock

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("SET LOCAL lock_timeout = '1000ms'")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT \* FROM "document_sequences" WHERE .* FOR UPDATE`).
			WillReturnError(&pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"})
		mock.ExpectRollback()

		called := false
		err := repo.WithLock(context.Background(), key, nil, func(sequence.LockedTx, *sequence.Sequence) error {
			called = true
			return nil
		})

		require.Error(t, err)
		assert.False(t, called)
		assert.True(t, sequence.IsConcurrency(err))
		var ce *sequence.ConcurrencyError
		require.ErrorAs(t, err, &ce)
		assert.True(t, ce.Retryable())
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("deadlock becomes a concurrency error", func(t *testing.T) {
		repo, mockDB := newMockSequenceRepo(t)
		mock := mockDB.Mock

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "document_sequences" WHERE .* FOR UPDATE`).
			WillReturnError(&pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
		mock.ExpectRollback()

		err := repo.WithLock(context.Background(), key, nil, func(sequence.LockedTx, *sequence.Sequence) error {
			return nil
		})
		assert.True(t, sequence.IsConcurrency(err))
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("other database errors are wrapped", func(t *testing.T) {
		repo, mockDB := newMockSequenceRepo(t)
		mock := mockDB.Mock

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "document_sequences" WHERE .* FOR UPDATE`).
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		err := repo.WithLock(context.Background(), key, nil, func(sequence.LockedTx, *sequence.Sequence) error {
			return nil
		})
		require.Error(t, err)
		assert.False(t, sequence.IsConcurrency(err))
		assert.Contains(t, err.Error(), "connection reset")
	})

	t.Run("missing row is inserted with on conflict do nothing", func(t *testing.T) {
		repo, mockDB := newMockSequenceRepo(t)
		mock := mockDB.Mock

		now := time.Now()
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "document_sequences" WHERE .* FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows(sequenceColumns))
		mock.ExpectExec(`INSERT INTO "document_sequences" .* ON CONFLICT \("tenant_id","document_type","fiscal_year"\) DO NOTHING`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT \* FROM "document_sequences" WHERE .* FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows(sequenceColumns).
				AddRow(uuid.New(), now, now, 1, key.TenantID, "INVOICE", 2024, 0, "FAC", sequence.DefaultPattern, true))
		mock.ExpectCommit()

		err := repo.WithLock(context.Background(), key, newSequenceFactory(key, "FAC"), func(tx sequence.LockedTx, s *sequence.Sequence) error {
			assert.Equal(t, int64(0), s.LastNumber)
			return nil
		})
		require.NoError(t, err)
		mockDB.ExpectationsWereMet(t)
	})
}

func TestMapLockError(t *testing.T) {
	t.Run("deadline exceeded is a concurrency error", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		<-ctx.Done()

		err := mapLockError(ctx, context.DeadlineExceeded)
		assert.True(t, sequence.IsConcurrency(err))
	})

	t.Run("canceled stays a cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := mapLockError(ctx, context.Canceled)
		assert.False(t, sequence.IsConcurrency(err))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("serialization failure is a concurrency error", func(t *testing.T) {
		err := mapLockError(context.Background(), &pgconn.PgError{Code: "40001"})
		assert.True(t, sequence.IsConcurrency(err))
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, mapLockError(context.Background(), nil))
	})
}
