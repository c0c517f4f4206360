package sequence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/erp/docnumber/internal/domain/sequence"
	"github.com/erp/docnumber/internal/domain/shared"
	"github.com/erp/docnumber/internal/domain/tenant"
	"github.com/erp/docnumber/internal/infrastructure/logger"
	"github.com/erp/docnumber/internal/infrastructure/telemetry"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// AllocatorConfig holds the collaborators of the Allocator
type AllocatorConfig struct {
	Sequences sequence.Repository
	Companies tenant.CompanyRegistry
	// Events receives domain events after commit. Optional.
	Events shared.EventPublisher
	// Metrics is optional
	Metrics Metrics
	Logger  *zap.Logger
	// Now supplies the default issue date. Defaults to time.Now.
	Now func() time.Time
	// DefaultPattern applies to new sequences of companies without a pattern
	DefaultPattern string
}

// Allocator hands out gap-free document numbers. Per-sequence serialisation
// comes from the store's row lock; the allocator holds no lock of its own and
// never retries.
type Allocator struct {
	sequences      sequence.Repository
	companies      tenant.CompanyRegistry
	events         shared.EventPublisher
	metrics        Metrics
	logger         *zap.Logger
	now            func() time.Time
	defaultPattern string
	validate       *validator.Validate
	listeners      atomic.Pointer[[]Listener]
}

// NewAllocator creates a new Allocator
func NewAllocator(cfg AllocatorConfig) (*Allocator, error) {
	if cfg.Sequences == nil {
		return nil, errors.New("sequence repository is required")
	}
	if cfg.Companies == nil {
		return nil, errors.New("company registry is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if strings.TrimSpace(cfg.DefaultPattern) == "" {
		cfg.DefaultPattern = sequence.DefaultPattern
	}
	if err := sequence.ValidatePattern(cfg.DefaultPattern); err != nil {
		return nil, fmt.Errorf("default pattern: %w", err)
	}

	a := &Allocator{
		sequences:      cfg.Sequences,
		companies:      cfg.Companies,
		events:         cfg.Events,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		now:            cfg.Now,
		defaultPattern: cfg.DefaultPattern,
		validate:       newValidator(),
	}
	a.listeners.Store(&[]Listener{})
	return a, nil
}

// RegisterListener adds a listener to every subsequent allocation
func (a *Allocator) RegisterListener(l Listener) {
	for {
		current := a.listeners.Load()
		next := make([]Listener, 0, len(*current)+1)
		next = append(next, *current...)
		next = append(next, l)
		if a.listeners.CompareAndSwap(current, &next) {
			return
		}
	}
}

// Allocate issues the next number of the (tenant, document type, fiscal year)
// sequence, creating the sequence on first use. The increment, the counter
// write and the audit record commit together or not at all.
func (a *Allocator) Allocate(ctx context.Context, input AllocateInput) (*Allocation, error) {
	start := time.Now()
	ctx, span := telemetry.StartServiceSpan(ctx, "sequence", "allocate",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, input.TenantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrDocumentType, input.DocumentType),
	)
	defer span.End()

	var (
		alloc *Allocation
		err   error
	)
	telemetry.WithProfileLabels(ctx, input.TenantID.String(), strings.ToUpper(input.DocumentType), func(ctx context.Context) {
		alloc, err = a.allocate(ctx, input)
	})
	a.metrics.RecordAllocation(ctx, strings.ToUpper(input.DocumentType), outcomeOf(err), time.Since(start))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSequenceID, alloc.SequenceID.String(),
		telemetry.SpanAttrNumber, alloc.Number,
	)
	return alloc, nil
}

func (a *Allocator) allocate(ctx context.Context, input AllocateInput) (*Allocation, error) {
	if err := a.validateInput(input.TenantID, input); err != nil {
		return nil, err
	}
	docType := sequence.DocumentType(strings.ToUpper(input.DocumentType))

	company, err := a.loadCompany(ctx, input.TenantID)
	if err != nil {
		return nil, err
	}

	issueDate := a.issueDate(input.IssueDate)
	fiscalYear := sequence.FiscalYearOf(issueDate, company.FiscalYearStartMonth)
	if err := sequence.ValidateFiscalYear(fiscalYear); err != nil {
		return nil, err
	}

	req := AllocationRequest{
		TenantID:     input.TenantID,
		DocumentType: docType,
		FiscalYear:   fiscalYear,
		IssueDate:    issueDate,
		DocumentID:   input.DocumentID,
		Actor:        input.Actor,
	}
	listeners := *a.listeners.Load()
	for _, l := range listeners {
		if err := l.BeforeAllocate(ctx, req); err != nil {
			return nil, err
		}
	}

	key := sequence.Key{TenantID: input.TenantID, DocumentType: docType, FiscalYear: fiscalYear}
	var (
		alloc  Allocation
		events []shared.DomainEvent
	)
	err = a.sequences.WithLock(ctx, key, a.sequenceFactory(company, key), func(tx sequence.LockedTx, seq *sequence.Sequence) error {
		res, err := seq.Issue(sequence.IssueParams{
			IssueDate:        issueDate,
			FiscalStartMonth: company.FiscalYearStartMonth,
			IssuedAt:         a.now(),
			DocumentID:       input.DocumentID,
			Actor:            input.Actor,
		})
		if err != nil {
			return err
		}
		if err := tx.Save(ctx, seq); err != nil {
			return err
		}
		if res.Record != nil {
			if err := tx.RecordIssued(ctx, res.Record); err != nil {
				return err
			}
		}

		alloc = Allocation{
			Number:       res.Number,
			Formatted:    res.Formatted,
			FiscalYear:   seq.FiscalYear,
			SequenceID:   seq.ID,
			TenantID:     seq.TenantID,
			DocumentType: seq.DocumentType,
			DocumentID:   input.DocumentID,
			IssuedBy:     input.Actor,
		}
		events = seq.GetDomainEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithLogger(ctx, a.logger).Info("Document number allocated",
		zap.String("tenant_id", alloc.TenantID.String()),
		zap.String("document_type", alloc.DocumentType.String()),
		zap.Int("fiscal_year", alloc.FiscalYear),
		zap.Int64("number", alloc.Number),
		zap.String("formatted", alloc.Formatted),
		zap.String("actor", input.Actor),
	)

	for _, l := range listeners {
		l.AfterAllocate(ctx, alloc)
	}
	a.publish(ctx, events)

	return &alloc, nil
}

// PreviewNext renders the number the next allocation would receive without
// reserving it. Concurrent allocations may take it first.
func (a *Allocator) PreviewNext(ctx context.Context, input PreviewInput) (string, error) {
	if err := a.validateInput(input.TenantID, input); err != nil {
		return "", err
	}
	docType := sequence.DocumentType(strings.ToUpper(input.DocumentType))

	company, err := a.loadCompany(ctx, input.TenantID)
	if err != nil {
		return "", err
	}

	issueDate := a.issueDate(input.IssueDate)
	fiscalYear := sequence.FiscalYearOf(issueDate, company.FiscalYearStartMonth)
	if err := sequence.ValidateFiscalYear(fiscalYear); err != nil {
		return "", err
	}

	key := sequence.Key{TenantID: input.TenantID, DocumentType: docType, FiscalYear: fiscalYear}
	seq, err := a.sequences.FindByKey(ctx, key)
	if errors.Is(err, shared.ErrNotFound) {
		seq, err = a.sequenceFactory(company, key)()
	}
	if err != nil {
		return "", err
	}
	return seq.PeekNext(issueDate, company.FiscalYearStartMonth), nil
}

// ResetSequence sets a counter back to zero. The sequence lock is taken
// before checking for issued numbers so no allocation can slip in between.
func (a *Allocator) ResetSequence(ctx context.Context, input ResetInput) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "sequence", "reset",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, input.TenantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrDocumentType, input.DocumentType),
	)
	defer span.End()

	if err := a.validateInput(input.TenantID, input); err != nil {
		return err
	}
	if err := sequence.ValidateFiscalYear(input.FiscalYear); err != nil {
		return err
	}
	docType := sequence.DocumentType(strings.ToUpper(input.DocumentType))

	key := sequence.Key{TenantID: input.TenantID, DocumentType: docType, FiscalYear: input.FiscalYear}
	var events []shared.DomainEvent
	err := a.sequences.WithLock(ctx, key, nil, func(tx sequence.LockedTx, seq *sequence.Sequence) error {
		count, err := tx.CountIssued(ctx, seq.ID)
		if err != nil {
			return err
		}
		if err := seq.Reset(count, input.Actor); err != nil {
			return err
		}
		if err := tx.Save(ctx, seq); err != nil {
			return err
		}
		events = seq.GetDomainEvents()
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	a.metrics.RecordReset(ctx, docType.String())
	logger.WithLogger(ctx, a.logger).Warn("Document sequence reset",
		zap.String("tenant_id", input.TenantID.String()),
		zap.String("document_type", docType.String()),
		zap.Int("fiscal_year", input.FiscalYear),
		zap.String("actor", input.Actor),
	)
	a.publish(ctx, events)
	return nil
}

// GetSequence returns a sequence of the tenant
func (a *Allocator) GetSequence(ctx context.Context, tenantID, id uuid.UUID) (*SequenceDTO, error) {
	seq, err := a.sequences.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	dto := ToSequenceDTO(seq)
	return &dto, nil
}

// ListSequences lists the sequences of a tenant
func (a *Allocator) ListSequences(ctx context.Context, input ListSequencesInput) ([]SequenceDTO, error) {
	if err := a.validateInput(input.TenantID, input); err != nil {
		return nil, err
	}
	seqs, err := a.sequences.FindAll(ctx, sequence.Filter{
		TenantID:     input.TenantID,
		DocumentType: sequence.DocumentType(strings.ToUpper(input.DocumentType)),
		FiscalYear:   input.FiscalYear,
		ActiveOnly:   input.ActiveOnly,
	})
	if err != nil {
		return nil, err
	}

	return lo.Map(seqs, func(s *sequence.Sequence, _ int) SequenceDTO {
		return ToSequenceDTO(s)
	}), nil
}

// ListIssuedNumbers returns the audit trail of a sequence, newest first
func (a *Allocator) ListIssuedNumbers(ctx context.Context, tenantID, sequenceID uuid.UUID, page, pageSize int) (shared.Paginated[IssuedNumberDTO], error) {
	if _, err := a.sequences.FindByID(ctx, tenantID, sequenceID); err != nil {
		return shared.Paginated[IssuedNumberDTO]{}, err
	}

	page, pageSize = shared.NormalizePage(page, pageSize)
	records, total, err := a.sequences.FindIssued(ctx, sequence.IssuedFilter{
		TenantID:   tenantID,
		SequenceID: sequenceID,
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		return shared.Paginated[IssuedNumberDTO]{}, err
	}

	items := lo.Map(records, func(r *sequence.IssuedNumber, _ int) IssuedNumberDTO {
		return ToIssuedNumberDTO(r)
	})
	return shared.NewPaginated(items, total, page, pageSize), nil
}

// Deactivate stops allocation on a sequence
func (a *Allocator) Deactivate(ctx context.Context, tenantID, id uuid.UUID, actor string) (*SequenceDTO, error) {
	return a.changeStatus(ctx, tenantID, id, actor, (*sequence.Sequence).Deactivate)
}

// Activate re-enables allocation on a sequence
func (a *Allocator) Activate(ctx context.Context, tenantID, id uuid.UUID, actor string) (*SequenceDTO, error) {
	return a.changeStatus(ctx, tenantID, id, actor, (*sequence.Sequence).Activate)
}

func (a *Allocator) changeStatus(ctx context.Context, tenantID, id uuid.UUID, actor string, apply func(*sequence.Sequence) error) (*SequenceDTO, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, sequence.NewValidationError("actor is required")
	}

	var (
		dto    SequenceDTO
		events []shared.DomainEvent
	)
	err := a.sequences.WithLockByID(ctx, tenantID, id, func(tx sequence.LockedTx, seq *sequence.Sequence) error {
		if err := apply(seq); err != nil {
			return err
		}
		if err := tx.Save(ctx, seq); err != nil {
			return err
		}
		dto = ToSequenceDTO(seq)
		events = seq.GetDomainEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithLogger(ctx, a.logger).Info("Document sequence status changed",
		zap.String("sequence_id", id.String()),
		zap.Bool("active", dto.Active),
		zap.String("actor", actor),
	)
	a.publish(ctx, events)
	return &dto, nil
}

// sequenceFactory builds the sequence inserted on first allocation, using
// the company prefix and pattern with the built-in defaults as fallback.
func (a *Allocator) sequenceFactory(company *tenant.Company, key sequence.Key) func() (*sequence.Sequence, error) {
	return func() (*sequence.Sequence, error) {
		prefix, err := company.PrefixFor(key.DocumentType)
		if err != nil {
			return nil, err
		}
		return sequence.NewSequence(key.TenantID, key.DocumentType, key.FiscalYear, prefix, company.PatternOr(a.defaultPattern))
	}
}

func (a *Allocator) loadCompany(ctx context.Context, tenantID uuid.UUID) (*tenant.Company, error) {
	company, err := a.companies.FindByID(ctx, tenantID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, sequence.NewTenantConfigError("tenant %s has no company configuration", tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("load company: %w", err)
	}
	return company, nil
}

func (a *Allocator) issueDate(d *time.Time) time.Time {
	if d != nil && !d.IsZero() {
		return *d
	}
	return a.now()
}

func (a *Allocator) validateInput(tenantID uuid.UUID, input any) error {
	if tenantID == uuid.Nil {
		return sequence.NewValidationError("tenant id is required")
	}
	if err := a.validate.Struct(input); err != nil {
		return toValidationError(err)
	}
	return nil
}

func (a *Allocator) publish(ctx context.Context, events []shared.DomainEvent) {
	if a.events == nil || len(events) == 0 {
		return
	}
	if err := a.events.Publish(ctx, events...); err != nil {
		logger.WithLogger(ctx, a.logger).Error("Failed to publish sequence events", zap.Error(err))
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case sequence.IsConcurrency(err):
		return OutcomeConflict
	case sequence.IsValidation(err), sequence.IsState(err), sequence.IsTenantConfig(err):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}
