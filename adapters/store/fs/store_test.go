package storefs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/peter-gy/marimo/export"
)

func TestPutOpenRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	store.Now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	ref, err := store.Put(context.Background(), "exp-1/slides.pdf", strings.NewReader("%PDF-1.7 content"), export.ArtifactMeta{})
	if err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if ref.Key != "exp-1/slides.pdf" {
		t.Fatalf("unexpected key %q", ref.Key)
	}
	if ref.Meta.ContentType != "application/pdf" {
		t.Fatalf("expected pdf content type, got %q", ref.Meta.ContentType)
	}
	if ref.Meta.Size != int64(len("%PDF-1.7 content")) {
		t.Fatalf("unexpected size %d", ref.Meta.Size)
	}
	if ref.Meta.Filename != "slides.pdf" {
		t.Fatalf("unexpected filename %q", ref.Meta.Filename)
	}

	rc, meta, err := store.Open(context.Background(), "exp-1/slides.pdf")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "%PDF-1.7 content" {
		t.Fatalf("unexpected content %q", data)
	}
	if meta.ContentType != "application/pdf" {
		t.Fatalf("unexpected content type %q", meta.ContentType)
	}
	if !meta.CreatedAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected created at %v", meta.CreatedAt)
	}
}

func TestOpenMissingArtifact(t *testing.T) {
	store := New(t.TempDir())

	_, _, err := store.Open(context.Background(), "nope.pdf")
	if export.KindFromError(err) != export.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteRemovesArtifactAndSidecar(t *testing.T) {
	root := t.TempDir()
	store := New(root)

	if _, err := store.Put(context.Background(), "a/b.pdf", strings.NewReader("x"), export.ArtifactMeta{}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := store.Delete(context.Background(), "a/b.pdf"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "a", "b.pdf")); !os.IsNotExist(err) {
		t.Fatalf("artifact still present: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "a", "b.pdf"+metaSuffix)); !os.IsNotExist(err) {
		t.Fatalf("sidecar still present: %v", err)
	}

	// deleting again is a no-op
	if err := store.Delete(context.Background(), "a/b.pdf"); err != nil {
		t.Fatalf("repeat delete failed: %v", err)
	}
}

func TestKeyTraversalRejected(t *testing.T) {
	store := New(t.TempDir())

	for _, key := range []string{"", ".", "../outside.pdf", "a/../../outside.pdf"} {
		_, err := store.Put(context.Background(), key, strings.NewReader("x"), export.ArtifactMeta{})
		if export.KindFromError(err) != export.KindValidation {
			t.Fatalf("key %q: expected validation error, got %v", key, err)
		}
	}
}

func TestOpenWithoutSidecarFillsMeta(t *testing.T) {
	root := t.TempDir()
	store := New(root)

	if _, err := store.Put(context.Background(), "doc.pdf", strings.NewReader("abc"), export.ArtifactMeta{}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := os.Remove(filepath.Join(root, "doc.pdf"+metaSuffix)); err != nil {
		t.Fatalf("remove sidecar: %v", err)
	}

	rc, meta, err := store.Open(context.Background(), "doc.pdf")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer rc.Close()

	if meta.Size != 3 {
		t.Fatalf("expected size from stat, got %d", meta.Size)
	}
	if meta.ContentType != "application/pdf" {
		t.Fatalf("expected content type from extension, got %q", meta.ContentType)
	}
}

func TestPutRequiresRootAndReader(t *testing.T) {
	store := &Store{}
	_, err := store.Put(context.Background(), "k.pdf", strings.NewReader("x"), export.ArtifactMeta{})
	if export.KindFromError(err) != export.KindValidation {
		t.Fatalf("expected validation error for empty root, got %v", err)
	}

	store = New(t.TempDir())
	_, err = store.Put(context.Background(), "k.pdf", nil, export.ArtifactMeta{})
	if export.KindFromError(err) != export.KindValidation {
		t.Fatalf("expected validation error for nil reader, got %v", err)
	}
}
