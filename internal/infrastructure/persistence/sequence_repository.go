package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/docnumber/internal/domain/sequence"
	"github.com/erp/docnumber/internal/domain/shared"
	"github.com/erp/docnumber/internal/infrastructure/persistence/models"
	tenantscope "github.com/erp/docnumber/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Postgres error codes that mean the row lock could not be taken
const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgQueryCanceled        = "57014"
)

// GormSequenceRepository implements sequence.Repository using GORM. On
// postgres every lock is a SELECT ... FOR UPDATE bounded by lock_timeout;
// on sqlite the single connection serialises transactions instead.
type GormSequenceRepository struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// SequenceRepositoryOption configures a GormSequenceRepository
type SequenceRepositoryOption func(*GormSequenceRepository)

// WithLockTimeout bounds the wait for a sequence row lock. Zero waits until
// the context is done.
func WithLockTimeout(d time.Duration) SequenceRepositoryOption {
	return func(r *GormSequenceRepository) {
		r.lockTimeout = d
	}
}

// NewGormSequenceRepository creates a new GormSequenceRepository
func NewGormSequenceRepository(db *gorm.DB, opts ...SequenceRepositoryOption) *GormSequenceRepository {
	r := &GormSequenceRepository{db: db}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithLock implements sequence.Repository
func (r *GormSequenceRepository) WithLock(
	ctx context.Context,
	key sequence.Key,
	create func() (*sequence.Sequence, error),
	fn func(tx sequence.LockedTx, s *sequence.Sequence) error,
) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.setLockTimeout(tx); err != nil {
			return err
		}

		model, err := lockByKey(tx, key)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if create == nil {
				return sequence.ErrSequenceNotFound
			}
			model, err = insertAndLock(tx, key, create)
		}
		if err != nil {
			return err
		}

		return fn(&gormLockedTx{tx: tx}, model.ToDomain())
	})
	return mapLockError(ctx, err)
}

// WithLockByID implements sequence.Repository
func (r *GormSequenceRepository) WithLockByID(
	ctx context.Context,
	tenantID, id uuid.UUID,
	fn func(tx sequence.LockedTx, s *sequence.Sequence) error,
) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.setLockTimeout(tx); err != nil {
			return err
		}

		var model models.SequenceModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Scopes(tenantscope.Scope(tenantID)).
			Where("id = ?", id).
			Take(&model).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return sequence.ErrSequenceNotFound
		}
		if err != nil {
			return err
		}

		return fn(&gormLockedTx{tx: tx}, model.ToDomain())
	})
	return mapLockError(ctx, err)
}

// FindByKey implements sequence.Repository
func (r *GormSequenceRepository) FindByKey(ctx context.Context, key sequence.Key) (*sequence.Sequence, error) {
	var model models.SequenceModel
	err := r.db.WithContext(ctx).
		Scopes(tenantscope.Scope(key.TenantID)).
		Where("document_type = ? AND fiscal_year = ?", key.DocumentType.String(), key.FiscalYear).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, sequence.ErrSequenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find sequence: %w", err)
	}
	return model.ToDomain(), nil
}

// FindByID implements sequence.Repository
func (r *GormSequenceRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*sequence.Sequence, error) {
	var model models.SequenceModel
	err := r.db.WithContext(ctx).
		Scopes(tenantscope.Scope(tenantID)).
		Where("id = ?", id).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, sequence.ErrSequenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find sequence: %w", err)
	}
	return model.ToDomain(), nil
}

// FindAll implements sequence.Repository
func (r *GormSequenceRepository) FindAll(ctx context.Context, filter sequence.Filter) ([]*sequence.Sequence, error) {
	query := r.db.WithContext(ctx).Model(&models.SequenceModel{}).Scopes(tenantscope.Scope(filter.TenantID))
	if filter.DocumentType != "" {
		query = query.Where("document_type = ?", filter.DocumentType.String())
	}
	if filter.FiscalYear != 0 {
		query = query.Where("fiscal_year = ?", filter.FiscalYear)
	}
	if filter.ActiveOnly {
		query = query.Where("active = ?", true)
	}

	var rows []models.SequenceModel
	if err := query.Order("fiscal_year DESC").Order("document_type ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sequences: %w", err)
	}

	result := make([]*sequence.Sequence, len(rows))
	for i := range rows {
		result[i] = rows[i].ToDomain()
	}
	return result, nil
}

// FindIssued implements sequence.Repository
func (r *GormSequenceRepository) FindIssued(ctx context.Context, filter sequence.IssuedFilter) ([]*sequence.IssuedNumber, int64, error) {
	page, pageSize := shared.NormalizePage(filter.Page, filter.PageSize)
	scoped := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.IssuedNumberModel{}).
			Scopes(tenantscope.Scope(filter.TenantID)).
			Where("sequence_id = ?", filter.SequenceID)
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count issued numbers: %w", err)
	}

	var rows []models.IssuedNumberModel
	err := scoped().Order("number DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list issued numbers: %w", err)
	}

	result := make([]*sequence.IssuedNumber, len(rows))
	for i := range rows {
		result[i] = rows[i].ToDomain()
	}
	return result, total, nil
}

// setLockTimeout applies the lock wait bound to the current transaction.
// SET LOCAL does not accept bind parameters.
func (r *GormSequenceRepository) setLockTimeout(tx *gorm.DB) error {
	if r.lockTimeout <= 0 || tx.Dialector.Name() != "postgres" {
		return nil
	}
	stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
	if err := tx.Exec(stmt).Error; err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}
	return nil
}

func lockByKey(tx *gorm.DB, key sequence.Key) (*models.SequenceModel, error) {
	var model models.SequenceModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(tenantscope.Scope(key.TenantID)).
		Where("document_type = ? AND fiscal_year = ?", key.DocumentType.String(), key.FiscalYear).
		Take(&model).Error
	if err != nil {
		return nil, err
	}
	return &model, nil
}

// insertAndLock creates the sequence row if no concurrent transaction did so
// first, then locks whichever row won.
func insertAndLock(tx *gorm.DB, key sequence.Key, create func() (*sequence.Sequence, error)) (*models.SequenceModel, error) {
	seq, err := create()
	if err != nil {
		return nil, err
	}
	if seq.Key() != key {
		return nil, fmt.Errorf("sequence factory returned key %+v, want %+v", seq.Key(), key)
	}

	err = tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "tenant_id"},
			{Name: "document_type"},
			{Name: "fiscal_year"},
		},
		DoNothing: true,
	}).Create(models.SequenceModelFromDomain(seq)).Error
	if err != nil {
		return nil, fmt.Errorf("create sequence: %w", err)
	}

	return lockByKey(tx, key)
}

// mapLockError turns lock acquisition failures into ConcurrencyError and
// leaves domain errors untouched.
func mapLockError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) && !errors.Is(err, shared.ErrConcurrencyConflict) {
		return err
	}
	if sequence.IsConcurrency(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected:
			return sequence.NewConcurrencyError(err)
		case pgQueryCanceled:
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return sequence.NewConcurrencyError(err)
			}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return sequence.NewConcurrencyError(err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("sequence transaction canceled: %w", err)
	}
	return fmt.Errorf("sequence transaction: %w", err)
}

// gormLockedTx implements sequence.LockedTx on an open transaction
type gormLockedTx struct {
	tx *gorm.DB
}

func (l *gormLockedTx) Save(ctx context.Context, s *sequence.Sequence) error {
	result := l.tx.WithContext(ctx).Model(&models.SequenceModel{}).
		Where("id = ?", s.ID).
		Updates(map[string]any{
			"last_number": s.LastNumber,
			"active":      s.Active,
			"version":     s.Version,
			"updated_at":  s.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("save sequence: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return sequence.ErrSequenceNotFound
	}
	return nil
}

func (l *gormLockedTx) RecordIssued(ctx context.Context, n *sequence.IssuedNumber) error {
	if n.IsPersisted() {
		return sequence.NewStateError("issued number %s is already recorded", n.FormattedNumber())
	}
	if err := l.tx.WithContext(ctx).Create(models.IssuedNumberModelFromDomain(n)).Error; err != nil {
		return fmt.Errorf("record issued number: %w", err)
	}
	n.MarkPersisted()
	return nil
}

func (l *gormLockedTx) CountIssued(ctx context.Context, sequenceID uuid.UUID) (int64, error) {
	var count int64
	err := l.tx.WithContext(ctx).Model(&models.IssuedNumberModel{}).
		Where("sequence_id = ?", sequenceID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count issued numbers: %w", err)
	}
	return count, nil
}

// Ensure GormSequenceRepository implements sequence.Repository
var _ sequence.Repository = (*GormSequenceRepository)(nil)
