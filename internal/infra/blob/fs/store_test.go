package fs

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"landledger/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStorePutGetHeadListDelete(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	fixed := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	info, err := store.Put(ctx, "projects/p1/documents/d1/deed.pdf", bytes.NewReader([]byte("hello")), core.PutOptions{
		ContentType: "application/pdf",
		Metadata:    map[string]string{"project_id": "p1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	sum := sha256.Sum256([]byte("hello"))
	if info.Size != 5 || info.ETag != hex.EncodeToString(sum[:]) || !info.LastModified.Equal(fixed) {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "projects/p1/documents/d1/deed.pdf", bytes.NewReader([]byte("x")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	head, err := store.Head(ctx, "projects/p1/documents/d1/deed.pdf")
	if err != nil || head.Metadata["project_id"] != "p1" || head.ContentType != "application/pdf" {
		t.Fatalf("head: %v %+v", err, head)
	}
	got, rc, err := store.Get(ctx, "projects/p1/documents/d1/deed.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if string(body) != "hello" || got.ETag != head.ETag {
		t.Fatalf("unexpected get %q %+v", body, got)
	}

	if _, err := store.Put(ctx, "projects/p2/documents/d2/map.png", bytes.NewReader([]byte("png")), core.PutOptions{}); err != nil {
		t.Fatalf("put second: %v", err)
	}
	list, err := store.List(ctx, "projects/p1/")
	if err != nil || len(list) != 1 || list[0].Key != "projects/p1/documents/d1/deed.pdf" {
		t.Fatalf("unexpected list %v %+v", err, list)
	}
	all, err := store.List(ctx, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("expected two blobs, got %v %+v", err, all)
	}

	ok, err := store.Delete(ctx, "projects/p1/documents/d1/deed.pdf")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), "projects/p1/documents/d1/deed.pdf.meta")); !os.IsNotExist(err) {
		t.Fatalf("sidecar should be removed, stat err %v", err)
	}
	if ok, err := store.Delete(ctx, "projects/p1/documents/d1/deed.pdf"); err != nil || ok {
		t.Fatalf("second delete: %v %v", ok, err)
	}
	if _, err := store.Head(ctx, "projects/p1/documents/d1/deed.pdf"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := store.Get(ctx, "projects/p1/documents/d1/deed.pdf"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from get, got %v", err)
	}
}

func TestCleanKeyRejectsEscapes(t *testing.T) {
	for _, key := range []string{"", "  ", "/etc/passwd", "../up", "a/../../b", "a/b.meta"} {
		if _, err := cleanKey(key); err == nil {
			t.Fatalf("expected %q to be rejected", key)
		}
	}
	clean, err := cleanKey("a//b/./c.txt")
	if err != nil || clean != "a/b/c.txt" {
		t.Fatalf("unexpected clean %q %v", clean, err)
	}
	store := newTempStore(t)
	if _, err := store.Put(context.Background(), "../escape", strings.NewReader("x"), core.PutOptions{}); err == nil {
		t.Fatalf("expected put to reject traversal")
	}
}

func TestPresignURL(t *testing.T) {
	store := newTempStore(t)
	ctx := context.Background()
	url, err := store.PresignURL(ctx, "exports/e1.csv", core.SignedURLOptions{})
	if err != nil || !strings.HasPrefix(url, "file://") || !strings.HasSuffix(url, "/exports/e1.csv") {
		t.Fatalf("unexpected url %q %v", url, err)
	}
	if _, err := store.PresignURL(ctx, "exports/e1.csv", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if store.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
}

func TestCorruptSidecar(t *testing.T) {
	store := newTempStore(t)
	ctx := context.Background()
	if _, err := store.Put(ctx, "k.txt", strings.NewReader("data"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := os.WriteFile(filepath.Join(store.Root(), "k.txt.meta"), []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Head(ctx, "k.txt"); err == nil || errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if _, err := store.List(ctx, ""); err == nil {
		t.Fatalf("expected list to surface corrupt sidecar")
	}
}

func TestPutHonoursCancelledContext(t *testing.T) {
	store := newTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Put(ctx, "k.txt", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewDefaultsRoot(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer func() { _ = os.Chdir(wd) }()
	store, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if store.Root() != "./blobdata" {
		t.Fatalf("unexpected root %q", store.Root())
	}
	if _, err := os.Stat(filepath.Join(dir, "blobdata")); err != nil {
		t.Fatalf("expected root directory: %v", err)
	}
}
