package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	fsStore, err := Open(ctx, Config{FSRoot: t.TempDir()})
	if err != nil || fsStore.Driver() != DriverFilesystem {
		t.Fatalf("default driver: %v %v", err, fsStore)
	}
	mem, err := Open(ctx, Config{Driver: DriverMemory})
	if err != nil || mem.Driver() != DriverMemory {
		t.Fatalf("memory driver: %v", err)
	}
	s3Store, err := Open(ctx, Config{Driver: DriverS3, S3: S3Config{Bucket: "docs", AccessKeyID: "AKIA", SecretAccessKey: "SECRET"}})
	if err != nil || s3Store.Driver() != DriverS3 {
		t.Fatalf("s3 driver: %v", err)
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	if _, err := Open(ctx, Config{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestBackendsShareContract(t *testing.T) {
	ctx := context.Background()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	stores := map[string]Store{
		"memory": NewMemory(),
		"fs":     fsStore,
		"s3":     NewMockS3ForTests("landledger"),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Put(ctx, "exports/x.csv", bytes.NewReader([]byte("a,b\n")), PutOptions{ContentType: "text/csv"}); err != nil {
				t.Fatalf("put: %v", err)
			}
			if _, err := store.Put(ctx, "exports/x.csv", bytes.NewReader([]byte("again")), PutOptions{}); !errors.Is(err, ErrExists) {
				t.Fatalf("expected ErrExists, got %v", err)
			}
			_, rc, err := store.Get(ctx, "exports/x.csv")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			body, _ := io.ReadAll(rc)
			_ = rc.Close()
			if string(body) != "a,b\n" {
				t.Fatalf("unexpected body %q", body)
			}
			if _, err := store.Head(ctx, "exports/missing.csv"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			list, err := store.List(ctx, "exports/")
			if err != nil || len(list) != 1 || list[0].Key != "exports/x.csv" {
				t.Fatalf("list: %v %+v", err, list)
			}
			if ok, err := store.Delete(ctx, "exports/x.csv"); err != nil || !ok {
				t.Fatalf("delete: %v %v", ok, err)
			}
		})
	}
}
