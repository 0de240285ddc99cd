package core

import (
	"context"
	"time"

	"landledger/pkg/domain"
)

// Logger is the structured logging seam used by the service. Arguments are
// alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// AuditStatus records the outcome of an audited operation.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one service operation for the audit trail.
type AuditEntry struct {
	Operation string
	Entity    domain.EntityType
	Action    domain.Action
	EntityID  string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// MetricsRecorder observes operation latency and outcome.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation error, if any.
type TraceSpan interface {
	End(err error)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

type operationMeta struct {
	entity domain.EntityType
	action domain.Action
}

// auditedOperations maps mutating operation names to the record they touch.
// Reads are traced and measured but not audited.
var auditedOperations = map[string]operationMeta{
	"create_project":               {domain.EntityProject, domain.ActionCreate},
	"update_project":               {domain.EntityProject, domain.ActionUpdate},
	"delete_project":               {domain.EntityProject, domain.ActionDelete},
	"add_family_head":              {domain.EntityPerson, domain.ActionCreate},
	"add_heir":                     {domain.EntityPerson, domain.ActionCreate},
	"update_person":                {domain.EntityPerson, domain.ActionUpdate},
	"remove_person":                {domain.EntityPerson, domain.ActionDelete},
	"add_land_record":              {domain.EntityPerson, domain.ActionUpdate},
	"update_land_record":           {domain.EntityPerson, domain.ActionUpdate},
	"remove_land_record":           {domain.EntityPerson, domain.ActionUpdate},
	"set_acquisition_status":       {domain.EntityAcquisitionStatus, domain.ActionUpdate},
	"record_transaction":           {domain.EntityTransactionRecord, domain.ActionCreate},
	"record_financial_transaction": {domain.EntityFinancialTransaction, domain.ActionCreate},
	"add_note":                     {domain.EntityNote, domain.ActionCreate},
	"update_note":                  {domain.EntityNote, domain.ActionUpdate},
	"delete_note":                  {domain.EntityNote, domain.ActionDelete},
	"add_task":                     {domain.EntityTask, domain.ActionCreate},
	"update_task":                  {domain.EntityTask, domain.ActionUpdate},
	"complete_task":                {domain.EntityTask, domain.ActionUpdate},
	"delete_task":                  {domain.EntityTask, domain.ActionDelete},
	"add_legal_note":               {domain.EntityLegalNote, domain.ActionCreate},
	"update_legal_note":            {domain.EntityLegalNote, domain.ActionUpdate},
	"delete_legal_note":            {domain.EntityLegalNote, domain.ActionDelete},
	"create_user":                  {domain.EntityUser, domain.ActionCreate},
	"update_user":                  {domain.EntityUser, domain.ActionUpdate},
	"assign_user_project":          {domain.EntityUser, domain.ActionUpdate},
	"unassign_user_project":        {domain.EntityUser, domain.ActionUpdate},
	"delete_user":                  {domain.EntityUser, domain.ActionDelete},
	"upload_document":              {domain.EntityDocument, domain.ActionCreate},
	"delete_document":              {domain.EntityDocument, domain.ActionDelete},
}
