package core

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"landledger/internal/blob"
	"landledger/pkg/domain"
)

func TestDocumentKey(t *testing.T) {
	cases := map[string]string{
		"deed.pdf":           "projects/p1/documents/d1/deed.pdf",
		"  scans\\map.png ": "projects/p1/documents/d1/map.png",
		"../../etc/passwd":   "projects/p1/documents/d1/passwd",
		"..":                 "projects/p1/documents/d1/file",
		"":                   "projects/p1/documents/d1/file",
	}
	for name, want := range cases {
		if got := DocumentKey("p1", "d1", name); got != want {
			t.Fatalf("DocumentKey(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestDocumentLifecycle(t *testing.T) {
	store := blob.NewMemory()
	audit := &captureAuditRecorder{}
	svc := newTestService(t, WithBlobStore(store), WithAuditRecorder(audit))
	ctx := context.Background()
	project := mustProject(t, svc, "North Block")

	doc, _, err := svc.UploadDocument(ctx, domain.Document{
		ProjectID:    project.ID,
		SurveyNumber: "112/3",
		FileName:     "sale-deed.pdf",
		ContentType:  "application/pdf",
	}, strings.NewReader("%PDF-1.7"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if doc.ID == "" || doc.Size != 8 || doc.ETag == "" {
		t.Fatalf("unexpected document %+v", doc)
	}
	if doc.BlobKey != DocumentKey(project.ID, doc.ID, "sale-deed.pdf") {
		t.Fatalf("unexpected blob key %q", doc.BlobKey)
	}
	if !audit.has("upload_document", AuditStatusSuccess, func(e AuditEntry) bool { return e.EntityID == doc.ID }) {
		t.Fatalf("expected upload audit entry, got %+v", audit.entries)
	}

	got, rc, err := svc.OpenDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "%PDF-1.7" || got.FileName != "sale-deed.pdf" {
		t.Fatalf("unexpected open %q %+v", body, got)
	}

	docs, err := svc.ListDocuments(ctx, project.ID)
	if err != nil || len(docs) != 1 {
		t.Fatalf("list: %v %+v", err, docs)
	}

	if _, err := svc.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Head(ctx, doc.BlobKey); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("blob should be purged, got %v", err)
	}
	var nf ErrNotFound
	if _, _, err := svc.OpenDocument(ctx, doc.ID); !errors.As(err, &nf) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if _, err := svc.DeleteDocument(ctx, doc.ID); !errors.As(err, &nf) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestUploadDocumentRemovesBlobWhenRecordRejected(t *testing.T) {
	store := blob.NewMemory()
	logger := &captureLogger{}
	svc := newTestService(t, WithBlobStore(store), WithLogger(logger))
	ctx := context.Background()

	_, _, err := svc.UploadDocument(ctx, domain.Document{ProjectID: "missing", FileName: "deed.pdf"}, strings.NewReader("x"))
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation for unknown project, got %v", err)
	}
	list, _ := store.List(ctx, "")
	if len(list) != 0 {
		t.Fatalf("blob should be removed after rejected upload, found %+v", list)
	}
	if !logger.has("e:operation failed") {
		t.Fatalf("expected failure to be logged, got %v", logger.calls)
	}
}

func TestUploadDocumentValidation(t *testing.T) {
	store := blob.NewMemory()
	svc := newTestService(t, WithBlobStore(store))
	ctx := context.Background()
	project := mustProject(t, svc, "p")
	if _, _, err := svc.UploadDocument(ctx, domain.Document{ProjectID: project.ID}, strings.NewReader("x")); err == nil {
		t.Fatalf("expected validation error for missing file name")
	}
	if list, _ := store.List(ctx, ""); len(list) != 0 {
		t.Fatalf("nothing should be stored for invalid documents")
	}
}

func TestDocumentsWithoutBlobStore(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, _, err := svc.UploadDocument(ctx, domain.Document{ProjectID: "p", FileName: "a"}, strings.NewReader("x")); !errors.Is(err, ErrNoBlobStore) {
		t.Fatalf("expected ErrNoBlobStore, got %v", err)
	}
	if _, _, err := svc.OpenDocument(ctx, "d"); !errors.Is(err, ErrNoBlobStore) {
		t.Fatalf("expected ErrNoBlobStore, got %v", err)
	}
}

func TestDeleteProjectPurgesDocumentBlobs(t *testing.T) {
	store := blob.NewMemory()
	svc := newTestService(t, WithBlobStore(store))
	ctx := context.Background()
	project := mustProject(t, svc, "p")
	other := mustProject(t, svc, "q")
	for _, pid := range []string{project.ID, other.ID} {
		if _, _, err := svc.UploadDocument(ctx, domain.Document{ProjectID: pid, FileName: "a.txt"}, strings.NewReader("a")); err != nil {
			t.Fatalf("upload: %v", err)
		}
	}
	if _, err := svc.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	if left, _ := store.List(ctx, "projects/"+project.ID+"/"); len(left) != 0 {
		t.Fatalf("project blobs should be purged, found %+v", left)
	}
	if kept, _ := store.List(ctx, "projects/"+other.ID+"/"); len(kept) != 1 {
		t.Fatalf("other project blobs should remain, found %+v", kept)
	}
}

func TestDeleteProjectPurgesOrphanedBlobs(t *testing.T) {
	store := blob.NewMemory()
	svc := newTestService(t, WithBlobStore(store))
	ctx := context.Background()
	project := mustProject(t, svc, "p")
	orphans := []string{
		DocumentKey(project.ID, "never-recorded", "scan.png"),
		ExportKeyPrefix(project.ID) + "e1/lineage.csv",
	}
	for _, key := range orphans {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), blob.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	if _, err := store.Put(ctx, "exports/other/e2/lineage.csv", strings.NewReader("x"), blob.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := svc.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	for _, key := range orphans {
		if _, err := store.Head(ctx, key); !errors.Is(err, blob.ErrNotFound) {
			t.Fatalf("%s should be purged, got %v", key, err)
		}
	}
	if _, err := store.Head(ctx, "exports/other/e2/lineage.csv"); err != nil {
		t.Fatalf("unrelated export should remain: %v", err)
	}
}

func TestDocumentURL(t *testing.T) {
	ctx := context.Background()
	fsStore, err := blob.NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs store: %v", err)
	}
	svc := newTestService(t, WithBlobStore(fsStore))
	project := mustProject(t, svc, "p")
	doc, _, err := svc.UploadDocument(ctx, domain.Document{ProjectID: project.ID, FileName: "deed.pdf"}, strings.NewReader("deed"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	got, url, err := svc.DocumentURL(ctx, doc.ID, 0)
	if err != nil {
		t.Fatalf("url: %v", err)
	}
	if got.ID != doc.ID || !strings.HasPrefix(url, "file://") || !strings.HasSuffix(url, "deed.pdf") {
		t.Fatalf("unexpected url %q for %+v", url, got)
	}

	if _, err := fsStore.Delete(ctx, doc.BlobKey); err != nil {
		t.Fatalf("delete blob: %v", err)
	}
	if _, _, err := svc.DocumentURL(ctx, doc.ID, time.Minute); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected blob not found, got %v", err)
	}
	var nf ErrNotFound
	if _, _, err := svc.DocumentURL(ctx, "missing", time.Minute); !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}

	mem := newTestService(t, WithBlobStore(blob.NewMemory()))
	p2 := mustProject(t, mem, "q")
	d2, _, err := mem.UploadDocument(ctx, domain.Document{ProjectID: p2.ID, FileName: "a.txt"}, strings.NewReader("a"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, _, err := mem.DocumentURL(ctx, d2.ID, time.Minute); !errors.Is(err, blob.ErrUnsupported) {
		t.Fatalf("memory store cannot sign, got %v", err)
	}
}
