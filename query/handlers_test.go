package query

import (
	"context"
	"testing"

	"github.com/peter-gy/marimo/export"
)

func seedTracker(t *testing.T) (*export.MemoryTracker, string) {
	t.Helper()
	tracker := export.NewMemoryTracker()
	id, err := tracker.Start(context.Background(), export.ExportRecord{
		Filename: "notebooks/slides.py",
		Preset:   export.PresetSlides,
	})
	if err != nil {
		t.Fatalf("tracker start: %v", err)
	}
	return tracker, id
}

func TestExportStatusHandler(t *testing.T) {
	tracker, id := seedTracker(t)
	handler := NewExportStatusHandler(tracker)

	record, err := handler.Query(context.Background(), ExportStatus{ExportID: id})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if record.Filename != "notebooks/slides.py" {
		t.Fatalf("unexpected record: %+v", record)
	}

	if _, err := handler.Query(context.Background(), ExportStatus{ExportID: "nope"}); export.KindFromError(err) != export.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExportStatus_Validate(t *testing.T) {
	if err := (ExportStatus{}).Validate(); err == nil {
		t.Fatal("expected error for missing export id")
	}
	if err := (ExportStatus{ExportID: "exp-1"}).Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestExportHistoryHandler(t *testing.T) {
	tracker, _ := seedTracker(t)
	handler := NewExportHistoryHandler(tracker)

	records, err := handler.Query(context.Background(), ExportHistory{
		Filter: export.ExportFilter{Filename: "notebooks/slides.py"},
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	records, err = handler.Query(context.Background(), ExportHistory{
		Filter: export.ExportFilter{Filename: "other.py"},
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestArtifactMetadataHandler(t *testing.T) {
	tracker, id := seedTracker(t)
	handler := NewArtifactMetadataHandler(tracker)

	// pending export has no artifact yet
	if _, err := handler.Query(context.Background(), ArtifactMetadata{ExportID: id}); export.KindFromError(err) != export.KindNotFound {
		t.Fatalf("expected not found for running export, got %v", err)
	}

	ref := export.ArtifactRef{Key: id + "/slides.pdf", Meta: export.ArtifactMeta{ContentType: "application/pdf"}}
	if err := tracker.Complete(context.Background(), id, ref); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, err := handler.Query(context.Background(), ArtifactMetadata{ExportID: id})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got.Key != ref.Key {
		t.Fatalf("expected artifact key %q, got %q", ref.Key, got.Key)
	}
}

func TestHandlers_RequireTracker(t *testing.T) {
	if _, err := (&ExportStatusHandler{}).Query(context.Background(), ExportStatus{ExportID: "x"}); err == nil {
		t.Fatal("expected error for missing tracker")
	}
	if _, err := (&ExportHistoryHandler{}).Query(context.Background(), ExportHistory{}); err == nil {
		t.Fatal("expected error for missing tracker")
	}
	if _, err := (&ArtifactMetadataHandler{}).Query(context.Background(), ArtifactMetadata{ExportID: "x"}); err == nil {
		t.Fatal("expected error for missing tracker")
	}
}
