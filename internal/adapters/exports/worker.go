// Package exports renders project reports into CSV and JSON artifacts on a
// background worker and stores them in a blob store.
package exports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"landledger/internal/blob"
	"landledger/internal/core"
	"landledger/pkg/domain"
)

// Status describes the lifecycle stage of an export request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Report names a project report.
type Report string

const (
	ReportLineage               Report = "lineage"
	ReportAcquisition           Report = "acquisition"
	ReportTransactions          Report = "transactions"
	ReportFinancialTransactions Report = "financial_transactions"
)

// Reports lists every report kind.
func Reports() []Report {
	return []Report{ReportLineage, ReportAcquisition, ReportTransactions, ReportFinancialTransactions}
}

// ParseReport accepts a report name, with '-' allowed for '_'.
func ParseReport(raw string) (Report, bool) {
	r := Report(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_"))
	for _, known := range Reports() {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// Format is an artifact encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts csv or json in any case.
func ParseFormat(raw string) (Format, bool) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatCSV, FormatJSON:
		return f, true
	}
	return "", false
}

// Artifact is one stored rendering of a report.
type Artifact struct {
	Format      Format    `json:"format"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	ETag        string    `json:"etag,omitempty"`
	Rows        int       `json:"rows"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks an export request and its artifacts.
type Record struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Report      Report     `json:"report"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	RequestedBy string     `json:"requested_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (r Record) copy() Record {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	return dup
}

// Artifact returns the record's artifact in the given format.
func (r Record) Artifact(f Format) (Artifact, bool) {
	for _, a := range r.Artifacts {
		if a.Format == f {
			return a, true
		}
	}
	return Artifact{}, false
}

// Input is an enqueue request.
type Input struct {
	ProjectID   string
	Report      Report
	Formats     []Format
	RequestedBy string
}

// Scheduler queues exports and exposes their status.
type Scheduler interface {
	EnqueueExport(ctx context.Context, input Input) (Record, error)
	GetExport(id string) (Record, bool)
}

// Source is the read side of the service the reports are built from.
type Source interface {
	GetProject(ctx context.Context, id string) (domain.Project, error)
	Lineage(ctx context.Context, projectID string) ([]core.LineageNode, error)
	ListAcquisitionStatuses(ctx context.Context, projectID string) ([]domain.AcquisitionStatus, error)
	ListTransactions(ctx context.Context, projectID string) ([]domain.TransactionRecord, error)
	ListFinancialTransactions(ctx context.Context, projectID string) ([]domain.FinancialTransaction, error)
}

// ErrQueueFull is returned when no more exports can be queued.
var ErrQueueFull = errors.New("export queue full")

// EntityExport is the audit entity of export operations.
const EntityExport domain.EntityType = "export"

// Worker executes exports asynchronously, one at a time.
type Worker struct {
	src    Source
	store  blob.Store
	logger core.Logger
	audit  core.AuditRecorder
	now    func() time.Time

	queue    chan task
	mu       sync.RWMutex
	jobs     map[string]*Record
	done     map[string]chan struct{}
	finished []string
	retain   int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id    string
	input Input
}

// Option customises a Worker.
type Option func(*Worker)

// WithLogger sets the worker's logger.
func WithLogger(l core.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// WithAuditRecorder records one audit entry per finished export.
func WithAuditRecorder(a core.AuditRecorder) Option {
	return func(w *Worker) { w.audit = a }
}

// WithQueueSize bounds the number of pending exports.
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan task, n)
		}
	}
}

// WithRetention bounds how many finished exports are kept. The oldest are
// evicted together with their artifacts.
func WithRetention(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.retain = n
		}
	}
}

// DefaultRetention is the number of finished exports kept when no
// retention is configured.
const DefaultRetention = 256

// NewWorker constructs a worker reading from src and writing to store.
func NewWorker(src Source, store blob.Store, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		src:    src,
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		queue:  make(chan task, 16),
		jobs:   make(map[string]*Record),
		done:   make(map[string]chan struct{}),
		retain: DefaultRetention,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// EnqueueExport validates the request and queues it.
func (w *Worker) EnqueueExport(ctx context.Context, input Input) (Record, error) {
	report, ok := ParseReport(string(input.Report))
	if !ok {
		return Record{}, fmt.Errorf("unknown report %q", input.Report)
	}
	input.Report = report
	if _, err := w.src.GetProject(ctx, input.ProjectID); err != nil {
		return Record{}, err
	}
	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatCSV, FormatJSON}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{}, len(formats))
	for _, raw := range formats {
		f, ok := ParseFormat(string(raw))
		if !ok {
			return Record{}, fmt.Errorf("unsupported export format %q", raw)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		uniq = append(uniq, f)
	}

	now := w.now()
	record := Record{
		ID:          newID(),
		ProjectID:   input.ProjectID,
		Report:      input.Report,
		Formats:     uniq,
		Status:      StatusQueued,
		RequestedBy: input.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[record.ID] = &record
	w.done[record.ID] = make(chan struct{})
	snapshot := record.copy()
	w.mu.Unlock()

	select {
	case w.queue <- task{id: record.ID, input: input}:
	default:
		w.mu.Lock()
		delete(w.jobs, record.ID)
		delete(w.done, record.ID)
		w.mu.Unlock()
		return Record{}, ErrQueueFull
	}
	return snapshot, nil
}

// GetExport returns a snapshot of the export record.
func (w *Worker) GetExport(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

// Wait blocks until the export finishes or ctx ends.
func (w *Worker) Wait(ctx context.Context, id string) (Record, error) {
	w.mu.RLock()
	ch, ok := w.done[id]
	w.mu.RUnlock()
	if !ok {
		return Record{}, fmt.Errorf("unknown export %q", id)
	}
	select {
	case <-ch:
	case <-ctx.Done():
		return Record{}, ctx.Err()
	}
	rec, ok := w.GetExport(id)
	if !ok {
		return Record{}, fmt.Errorf("export %q was evicted", id)
	}
	return rec, nil
}

// retire marks id finished and evicts the oldest finished records beyond
// the retention limit. Callers hold w.mu.
func (w *Worker) retire(id string) []Record {
	w.finished = append(w.finished, id)
	var evicted []Record
	for len(w.finished) > w.retain {
		old := w.finished[0]
		w.finished = w.finished[1:]
		if rec, ok := w.jobs[old]; ok {
			evicted = append(evicted, rec.copy())
		}
		delete(w.jobs, old)
		delete(w.done, old)
	}
	return evicted
}

// release removes the artifacts of evicted records, then wakes waiters on
// id.
func (w *Worker) release(id string, evicted []Record) {
	for _, rec := range evicted {
		for _, a := range rec.Artifacts {
			if _, err := w.store.Delete(context.Background(), a.Key); err != nil && w.logger != nil {
				w.logger.Warn("export artifact not removed", "export_id", rec.ID, "key", a.Key, "error", err)
			}
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if ch, ok := w.done[id]; ok {
		select {
		case <-ch:
		default:
			close(ch)
		}
	}
}

func (w *Worker) process(t task) {
	record, ok := w.GetExport(t.id)
	if !ok {
		return
	}
	start := w.now()
	w.setStatus(t.id, StatusRunning, "")
	tbl, err := w.build(w.ctx, record.ProjectID, record.Report)
	if err != nil {
		w.fail(t.id, start, fmt.Sprintf("build %s report: %v", record.Report, err))
		return
	}
	artifacts := make([]Artifact, 0, len(record.Formats))
	for _, f := range record.Formats {
		payload, contentType, err := tbl.render(f)
		if err != nil {
			w.fail(t.id, start, fmt.Sprintf("render %s: %v", f, err))
			return
		}
		key := ArtifactKey(record.ProjectID, record.ID, record.Report, f)
		info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: contentType,
			Metadata:    map[string]string{"project_id": record.ProjectID, "report": string(record.Report)},
		})
		if err != nil {
			w.fail(t.id, start, fmt.Sprintf("store artifact failed: %v", err))
			return
		}
		artifacts = append(artifacts, Artifact{
			Format:      f,
			Key:         key,
			ContentType: contentType,
			SizeBytes:   info.Size,
			ETag:        info.ETag,
			Rows:        tbl.rows,
			CreatedAt:   w.now(),
		})
	}
	w.complete(t.id, start, artifacts)
}

// ArtifactKey is the blob key of one rendered artifact.
func ArtifactKey(projectID, exportID string, report Report, f Format) string {
	return core.ExportKeyPrefix(projectID) + path.Join(exportID, string(report)+"."+string(f))
}

func (w *Worker) setStatus(id string, status Status, message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.Error = message
		record.UpdatedAt = w.now()
	}
}

// complete and fail audit and log before publishing the final status, so
// observers of a finished record also see its audit entry.
func (w *Worker) complete(id string, start time.Time, artifacts []Artifact) {
	now := w.now()
	w.recordAudit(id, start, now, "")
	if w.logger != nil {
		w.logger.Info("export succeeded", "export_id", id, "artifacts", len(artifacts))
	}
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	evicted := w.retire(id)
	w.mu.Unlock()
	w.release(id, evicted)
}

func (w *Worker) fail(id string, start time.Time, reason string) {
	now := w.now()
	w.recordAudit(id, start, now, reason)
	if w.logger != nil {
		w.logger.Warn("export failed", "export_id", id, "error", reason)
	}
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	evicted := w.retire(id)
	w.mu.Unlock()
	w.release(id, evicted)
}

func (w *Worker) recordAudit(id string, start, end time.Time, reason string) {
	if w.audit == nil {
		return
	}
	w.mu.RLock()
	var report Report
	if record, ok := w.jobs[id]; ok {
		report = record.Report
	}
	w.mu.RUnlock()
	entry := core.AuditEntry{
		Operation: "export_" + string(report),
		Entity:    EntityExport,
		Action:    domain.ActionCreate,
		EntityID:  id,
		Status:    core.AuditStatusSuccess,
		Duration:  end.Sub(start),
		Timestamp: end,
	}
	if reason != "" {
		entry.Status = core.AuditStatusError
		entry.Error = reason
	}
	w.audit.Record(w.ctx, entry)
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
