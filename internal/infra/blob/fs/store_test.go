package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"liderforte/internal/blob/core"
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
	info, err := store.Put(ctx, "multiplications/org-1/p-1.json", bytes.NewReader([]byte(`{"id":"p-1"}`)),
		core.PutOptions{ContentType: "application/json", Metadata: map[string]string{"process": "p-1"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 12 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "multiplications/org-1/p-1.json", bytes.NewReader([]byte("x")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	head, err := store.Head(ctx, "multiplications/org-1/p-1.json")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	got, rc, err := store.Get(ctx, "multiplications/org-1/p-1.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if string(body) != `{"id":"p-1"}` || got.ETag != head.ETag || got.Metadata["process"] != "p-1" {
		t.Fatalf("unexpected blob %q %+v", body, got)
	}

	list, err := store.List(ctx, "multiplications/org-1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Key != "multiplications/org-1/p-1.json" {
		t.Fatalf("unexpected list %+v", list)
	}

	if ok, err := store.Delete(ctx, "multiplications/org-1/p-1.json"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "multiplications/org-1/p-1.json"); err != nil || ok {
		t.Fatalf("second delete should report false, got %v %v", ok, err)
	}
	if _, err := store.Head(ctx, "multiplications/org-1/p-1.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStoreRejectsEscapingKeys(t *testing.T) {
	store := newTempStore(t)
	for _, key := range []string{"", "../escape.json", "/abs.json", "a/../../b"} {
		if _, err := store.Put(context.Background(), key, bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
			t.Fatalf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestStoreCorruptSidecar(t *testing.T) {
	store := newTempStore(t)
	ctx := context.Background()
	if _, err := store.Put(ctx, "a.json", bytes.NewReader([]byte("{}")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := os.WriteFile(filepath.Join(store.Root(), "a.json.meta"), []byte("not json"), 0o644); err != nil {
		t.Fatalf("corrupt sidecar: %v", err)
	}
	if _, err := store.Head(ctx, "a.json"); err == nil || errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if _, err := store.List(ctx, ""); err == nil {
		t.Fatal("expected list to surface decode error")
	}
}

func TestStoreCancelledContext(t *testing.T) {
	store := newTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Put(ctx, "a.json", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if store.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
}
