package export

import (
	"testing"
	"time"
)

func TestRenderDownloadFilename_Defaults(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	name, err := RenderDownloadFilename("slides.py", PresetDocument, DownloadPDF, "", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "slides.pdf" {
		t.Fatalf("expected slides.pdf, got %s", name)
	}

	name, err = RenderDownloadFilename("notebooks/demo.py", PresetSlides, DownloadHTML, "", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "demo.html" {
		t.Fatalf("expected demo.html, got %s", name)
	}
}

func TestRenderDownloadFilename_Template(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	name, err := RenderDownloadFilename("slides.py", PresetSlides, DownloadPDF, "{{.Notebook}}_{{.Preset}}_{{.Date}}", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "slides_slides_20260314.pdf" {
		t.Fatalf("unexpected name: %s", name)
	}
}

func TestRenderDownloadFilename_EmptyInputs(t *testing.T) {
	now := time.Now()

	name, err := RenderDownloadFilename("", PresetDocument, DownloadPDF, "", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "notebook.pdf" {
		t.Fatalf("expected notebook.pdf, got %s", name)
	}

	if _, err := RenderDownloadFilename("demo.py", PresetDocument, "", "", now); err == nil {
		t.Fatalf("expected error for missing format")
	}
	if _, err := RenderDownloadFilename("demo.py", PresetDocument, DownloadPDF, "{{.Broken", now); err == nil {
		t.Fatalf("expected error for bad template")
	}
}

func TestRenderDownloadFilename_KeepsExistingExtension(t *testing.T) {
	name, err := RenderDownloadFilename("report.PDF", PresetDocument, DownloadPDF, "{{.Notebook}}.pdf", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "report.pdf" {
		t.Fatalf("expected report.pdf, got %s", name)
	}
}
