// Package core hosts the landledger service: validated, rule-checked and
// instrumented operations over a domain.PersistentStore.
package core

import (
	"context"
	"errors"
	"time"

	"landledger/internal/blob"
	"landledger/internal/infra/persistence/memory"
	"landledger/pkg/domain"
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
	Result          = domain.Result
	// ErrNotFound is returned by lookups and mutations of missing records.
	ErrNotFound = domain.NotFoundError
)

// ErrNoBlobStore is returned by document operations on a service built
// without WithBlobStore.
var ErrNoBlobStore = errors.New("document storage is not configured")

// Service exposes the record-keeping operations over a persistent store.
type Service struct {
	store   domain.PersistentStore
	engine  *domain.RulesEngine
	blobs   blob.Store
	logger  Logger
	clock   Clock
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer

	clockSet bool
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source for audit timestamps and, when the
// store supports it, record timestamps.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
			s.clockSet = true
		}
	}
}

// WithAuditRecorder sets the audit sink for mutating operations.
func WithAuditRecorder(r AuditRecorder) Option {
	return func(s *Service) {
		if r != nil {
			s.audit = r
		}
	}
}

// WithMetricsRecorder sets the operation metrics sink.
func WithMetricsRecorder(r MetricsRecorder) Option {
	return func(s *Service) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithTracer sets the span factory.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithBlobStore enables document uploads.
func WithBlobStore(b blob.Store) Option {
	return func(s *Service) { s.blobs = b }
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		engine:  store.RulesEngine(),
		logger:  noopLogger{},
		clock:   systemClock{},
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clockSet {
		if setter, ok := store.(interface{ SetNowFunc(func() time.Time) }); ok {
			setter.SetNowFunc(s.clock.Now)
		}
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(engine *domain.RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// RulesEngine returns the engine evaluated on every transaction.
func (s *Service) RulesEngine() *domain.RulesEngine {
	return s.engine
}

// run executes fn in a store transaction wrapped with tracing, metrics,
// logging and auditing. fn returns the id of the record it touched.
func (s *Service) run(ctx context.Context, op string, fn func(tx domain.Transaction) (string, error)) (domain.Result, error) {
	ctx, span := s.tracer.Start(ctx, op)
	started := time.Now()
	var entityID string
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		id, err := fn(tx)
		entityID = id
		return err
	})
	elapsed := time.Since(started)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, elapsed)
	for _, v := range res.Violations {
		if v.Severity == domain.SeverityWarn {
			s.logger.Warn("rule warning", "operation", op, "rule", v.Rule, "entity", string(v.Entity), "entity_id", v.EntityID, "message", v.Message)
		}
	}
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "entity_id", entityID, "error", err)
		s.recordAuditError(ctx, op, entityID, elapsed, err)
		return res, err
	}
	s.logger.Debug("operation committed", "operation", op, "entity_id", entityID, "duration", elapsed)
	s.recordAuditSuccess(ctx, op, entityID, elapsed)
	return res, nil
}

// read runs fn against a committed snapshot with tracing and metrics.
func (s *Service) read(ctx context.Context, op string, fn func(v domain.TransactionView) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	started := time.Now()
	err := s.store.View(ctx, fn)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, time.Since(started))
	if err != nil {
		s.logger.Debug("read failed", "operation", op, "error", err)
	}
	return err
}

func (s *Service) recordAuditSuccess(ctx context.Context, op, entityID string, d time.Duration) {
	s.recordAudit(ctx, op, entityID, d, nil)
}

func (s *Service) recordAuditError(ctx context.Context, op, entityID string, d time.Duration, err error) {
	s.recordAudit(ctx, op, entityID, d, err)
}

func (s *Service) recordAudit(ctx context.Context, op, entityID string, d time.Duration, err error) {
	meta, ok := auditedOperations[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  d,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

func notFound(entity domain.EntityType, id string) error {
	return ErrNotFound{Entity: entity, ID: id}
}
