package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestFSPutOpenDelete(t *testing.T) {
	store, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	ctx := context.Background()

	n, err := store.Put(ctx, "models/abc.json", strings.NewReader("weights"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != int64(len("weights")) {
		t.Fatalf("unexpected size: %d", n)
	}

	rc, err := store.Open(ctx, "models/abc.json")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "weights" {
		t.Fatalf("unexpected content: %q", data)
	}

	if err := store.Delete(ctx, "models/abc.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Open(ctx, "models/abc.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestFSDeleteIsIdempotent(t *testing.T) {
	store, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if err := store.Delete(context.Background(), "models/never-existed"); err != nil {
		t.Fatalf("Delete of absent blob must succeed: %v", err)
	}
}

func TestFSRejectsEscapingRefs(t *testing.T) {
	store, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	ctx := context.Background()
	for _, ref := range []string{"", "../outside", "/etc/passwd", "a/../../b"} {
		if _, err := store.Put(ctx, ref, strings.NewReader("x")); err == nil {
			t.Fatalf("Put(%q): expected error", ref)
		}
	}
}

func TestFSOverwriteReplacesContent(t *testing.T) {
	store, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	ctx := context.Background()

	if _, err := store.Put(ctx, "m", strings.NewReader("one")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := store.Put(ctx, "m", strings.NewReader("two")); err != nil {
		t.Fatalf("Put (overwrite): %v", err)
	}
	rc, err := store.Open(ctx, "m")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "two" {
		t.Fatalf("expected overwritten content, got %q", data)
	}
}
