// Package core implements the cell multiplication and readiness workflow on
// top of a transactional domain.PersistentStore.
package core

import (
	"context"
	"fmt"
	"time"

	blobcore "liderforte/internal/blob/core"
	"liderforte/internal/infra/persistence/memory"
	"liderforte/pkg/domain"
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
	RulesEngine     = domain.RulesEngine
)

// Logger is the structured logging surface used by the service.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// Outcome labels an operation result: "success" or the failing error kind.
type Outcome string

// OutcomeSuccess marks a successful operation.
const OutcomeSuccess Outcome = "success"

// OutcomeOf derives the outcome label of err.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	if kind := domain.KindOf(err); kind != "" {
		return Outcome(kind)
	}
	return "error"
}

// MetricsRecorder observes operation outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, outcome Outcome, duration time.Duration)
}

// TraceSpan is closed once per traced operation.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// AuditStatus records whether an audited operation succeeded.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one mutating operation.
type AuditEntry struct {
	Operation string
	Entity    domain.EntityType
	Action    domain.Action
	EntityID  string
	ActorID   string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, Outcome, time.Duration) {}

type noopSpan struct{}

func (noopSpan) End(error) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type operationMeta struct {
	entity domain.EntityType
	action domain.Action
}

// auditedOperations lists operations that produce audit entries.
var auditedOperations = map[string]operationMeta{
	"create_cell":            {domain.EntityCell, domain.ActionCreate},
	"update_cell_stats":      {domain.EntityCell, domain.ActionUpdate},
	"deactivate_cell":        {domain.EntityCell, domain.ActionUpdate},
	"add_member":             {domain.EntityMember, domain.ActionCreate},
	"update_member":          {domain.EntityMember, domain.ActionUpdate},
	"remove_member":          {domain.EntityMember, domain.ActionUpdate},
	"grant_org_role":         {domain.EntityOrgMembership, domain.ActionUpdate},
	"upsert_template":        {domain.EntityTemplate, domain.ActionUpdate},
	"upsert_criterion":       {domain.EntityCriterion, domain.ActionUpdate},
	"deactivate_criterion":   {domain.EntityCriterion, domain.ActionUpdate},
	"evaluate_readiness":     {domain.EntityReadiness, domain.ActionUpdate},
	"start_multiplication":   {domain.EntityProcess, domain.ActionCreate},
	"suggest_distribution":   {domain.EntityProcess, domain.ActionUpdate},
	"update_assignments":     {domain.EntityAssignment, domain.ActionUpdate},
	"update_process_fields":  {domain.EntityProcess, domain.ActionUpdate},
	"advance_process":        {domain.EntityProcess, domain.ActionUpdate},
	"reject_multiplication":  {domain.EntityProcess, domain.ActionUpdate},
	"cancel_multiplication":  {domain.EntityProcess, domain.ActionUpdate},
	"execute_multiplication": {domain.EntityProcess, domain.ActionUpdate},
	"archive_multiplication": {domain.EntityProcess, domain.ActionCreate},
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithAuditRecorder enables audit entries for mutating operations.
func WithAuditRecorder(r AuditRecorder) Option {
	return func(s *Service) { s.audit = r }
}

// WithMetricsRecorder sets the operation metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the span tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithIdentity replaces the store-backed identity lookup.
func WithIdentity(p IdentityProvider) Option {
	return func(s *Service) {
		if p != nil {
			s.identity = p
		}
	}
}

// WithSettings replaces the scoring settings.
func WithSettings(settings Settings) Option {
	return func(s *Service) { s.settings = settings }
}

// WithCriteriaSource replaces the store-backed criteria loader.
func WithCriteriaSource(src CriteriaSource) Option {
	return func(s *Service) {
		if src != nil {
			s.criteria = src
		}
	}
}

// WithArchive enables completion archives in the given blob store.
func WithArchive(store blobcore.Store) Option {
	return func(s *Service) { s.archive = store }
}

// Service exposes the multiplication workflow over a persistent store.
type Service struct {
	store    PersistentStore
	identity IdentityProvider
	criteria CriteriaSource
	archive  blobcore.Store
	settings Settings
	logger   Logger
	clock    Clock
	audit    AuditRecorder
	metrics  MetricsRecorder
	tracer   Tracer
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:    store,
		settings: DefaultSettings(),
		logger:   noopLogger{},
		clock:    ClockFunc(func() time.Time { return time.Now().UTC() }),
		metrics:  noopMetrics{},
		tracer:   noopTracer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.identity == nil {
		s.identity = NewStoreIdentity(store)
	}
	if s.criteria == nil {
		s.criteria = storeCriteria{store: store}
	}
	return s
}

// NewInMemoryService creates a service over an in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	var svc *Service
	store := memory.NewStore(engine, memory.WithClock(func() time.Time { return svc.now() }))
	svc = NewService(store, opts...)
	return svc
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

// Settings returns the active scoring settings.
func (s *Service) Settings() Settings { return s.settings }

func (s *Service) now() time.Time { return s.clock.Now().UTC() }

// operation tracks one service call across tracing, metrics, audit and logs.
type operation struct {
	svc      *Service
	name     string
	actorID  string
	started  time.Time
	span     TraceSpan
	entityID string
}

func (s *Service) begin(ctx context.Context, name, actorID string) (context.Context, *operation) {
	ctx, span := s.tracer.Start(ctx, name)
	s.logger.Debug("operation started", "operation", name, "actor", actorID)
	return ctx, &operation{svc: s, name: name, actorID: actorID, started: time.Now(), span: span}
}

// end finalises the operation and returns err unchanged.
func (op *operation) end(ctx context.Context, err error) error {
	duration := time.Since(op.started)
	op.span.End(err)
	op.svc.metrics.Observe(ctx, op.name, OutcomeOf(err), duration)
	if err != nil {
		level := op.svc.logger.Warn
		if domain.KindOf(err) == "" || domain.IsRetryable(err) {
			level = op.svc.logger.Error
		}
		level("operation failed", "operation", op.name, "actor", op.actorID, "entity", op.entityID,
			"kind", string(domain.KindOf(err)), "error", err)
	}
	op.svc.recordAudit(ctx, op, err, duration)
	return err
}

func (s *Service) recordAudit(ctx context.Context, op *operation, err error, duration time.Duration) {
	if s.audit == nil {
		return
	}
	meta, ok := auditedOperations[op.name]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op.name,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  op.entityID,
		ActorID:   op.actorID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

// storeErr classifies untyped store failures as retryable dependency errors.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if domain.KindOf(err) != "" {
		return err
	}
	return domain.Unavailable(op, err)
}

func (s *Service) view(ctx context.Context, op string, fn func(TransactionView) error) error {
	var inner error
	err := s.store.View(ctx, func(v TransactionView) error {
		inner = fn(v)
		return inner
	})
	if inner != nil {
		return inner
	}
	return storeErr(op, err)
}

func (s *Service) run(ctx context.Context, op string, fn func(Transaction) error) error {
	var inner error
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		inner = fn(tx)
		return inner
	})
	if inner != nil {
		return inner
	}
	if err != nil {
		return storeErr(op, fmt.Errorf("%s: %w", op, err))
	}
	return nil
}
