package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"landledger/pkg/domain"
)

type stubClock struct{ t time.Time }

func (s stubClock) Now() time.Time { return s.t }

type captureLogger struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureLogger) add(entry string) {
	c.mu.Lock()
	c.calls = append(c.calls, entry)
	c.mu.Unlock()
}

func (c *captureLogger) Debug(msg string, _ ...any) { c.add("d:" + msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.add("i:" + msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.add("w:" + msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.add("e:" + msg) }

func (c *captureLogger) has(entry string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call == entry {
			return true
		}
	}
	return false
}

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			if predicate == nil || predicate(entry) {
				return true
			}
		}
	}
	return false
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type spanRecord struct {
	op  string
	err error
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	for _, record := range c.ended {
		if record.op == op && (record.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	return NewInMemoryService(NewDefaultRulesEngine(), opts...)
}

func mustProject(t *testing.T, svc *Service, name string) domain.Project {
	t.Helper()
	project, _, err := svc.CreateProject(context.Background(), domain.Project{Name: name})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return project
}

func mustHead(t *testing.T, svc *Service, projectID, name string) domain.Person {
	t.Helper()
	head, _, err := svc.AddFamilyHead(context.Background(), projectID, domain.Person{Name: name})
	if err != nil {
		t.Fatalf("add family head %s: %v", name, err)
	}
	return head
}

func mustHeir(t *testing.T, svc *Service, parentID, name string) domain.Person {
	t.Helper()
	heir, _, err := svc.AddHeir(context.Background(), parentID, domain.Person{Name: name})
	if err != nil {
		t.Fatalf("add heir %s: %v", name, err)
	}
	return heir
}

func strPtr(s string) *string { return &s }
