package pdfchrome

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/peter-gy/marimo/export"
)

type stubPrinter struct {
	html string
	opts PrintOptions
	pdf  []byte
	err  error
}

func (p *stubPrinter) PrintHTML(_ context.Context, html string, opts PrintOptions) ([]byte, error) {
	p.html = html
	p.opts = opts
	if p.err != nil {
		return nil, p.err
	}
	return p.pdf, nil
}

type stubExporter struct {
	page string
	err  error
}

func (s *stubExporter) ExportAsHTML(*export.SessionView, string, export.ExportAsHTMLRequest) (string, string, error) {
	return s.page, "notebook.html", s.err
}

func testRenderer(printer *stubPrinter, store export.ArtifactStore) *Renderer {
	return &Renderer{
		Printer:  printer,
		Exporter: &stubExporter{page: "<html><body>notebook</body></html>"},
		Views: func(context.Context, string) (*export.SessionView, error) {
			return export.NewSessionView(), nil
		},
		Store: store,
	}
}

func TestDownloadPDF_PrintsAndStores(t *testing.T) {
	printer := &stubPrinter{pdf: []byte("%PDF-1.7")}
	store := export.NewMemoryStore()
	renderer := testRenderer(printer, store)

	req := export.ExportAsPDFRequest{
		Filename: "notebooks/slides.py",
		WebPDF:   true,
		Preset:   export.PresetSlides,
	}
	if err := renderer.DownloadPDF(context.Background(), req); err != nil {
		t.Fatalf("download failed: %v", err)
	}

	if printer.html == "" {
		t.Fatal("expected printer to receive html")
	}
	if !printer.opts.Landscape {
		t.Fatal("expected landscape print for slides preset")
	}

	rc, meta, err := store.Open(context.Background(), "slides.pdf")
	if err != nil {
		t.Fatalf("expected stored artifact: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "%PDF-1.7" {
		t.Fatalf("unexpected artifact content %q", data)
	}
	if meta.ContentType != "application/pdf" {
		t.Fatalf("unexpected content type %q", meta.ContentType)
	}
}

func TestDownloadPDF_DocumentPreset(t *testing.T) {
	printer := &stubPrinter{pdf: []byte("pdf")}
	renderer := testRenderer(printer, export.NewMemoryStore())

	req := export.ExportAsPDFRequest{Filename: "app.py", Preset: export.PresetDocument}
	if err := renderer.DownloadPDF(context.Background(), req); err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if printer.opts.Landscape {
		t.Fatal("expected portrait print for document preset")
	}
	if printer.opts.PageSize != "A4" {
		t.Fatalf("expected A4 page size, got %q", printer.opts.PageSize)
	}
}

func TestDownloadPDF_PropagatesPrintError(t *testing.T) {
	wantErr := errors.New("print failed")
	renderer := testRenderer(&stubPrinter{err: wantErr}, export.NewMemoryStore())

	err := renderer.DownloadPDF(context.Background(), export.ExportAsPDFRequest{Filename: "app.py"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected print error, got %v", err)
	}
}

func TestDownloadPDF_Validation(t *testing.T) {
	var renderer *Renderer
	err := renderer.DownloadPDF(context.Background(), export.ExportAsPDFRequest{})
	if export.KindFromError(err) != export.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	renderer = &Renderer{Printer: &stubPrinter{}}
	err = renderer.DownloadPDF(context.Background(), export.ExportAsPDFRequest{})
	if export.KindFromError(err) != export.KindValidation {
		t.Fatalf("expected validation error for missing exporter, got %v", err)
	}
}

func TestPresetPrintOptions(t *testing.T) {
	slides := presetPrintOptions(export.PresetSlides)
	if !slides.Landscape || slides.Margin != "0in" {
		t.Fatalf("unexpected slides options: %+v", slides)
	}
	doc := presetPrintOptions(export.PresetDocument)
	if doc.Landscape || doc.PageSize != "A4" {
		t.Fatalf("unexpected document options: %+v", doc)
	}
}

func TestDownloadName(t *testing.T) {
	cases := map[string]string{
		"notebooks/slides.py": "slides.pdf",
		"app.py":              "app.pdf",
		"":                    "notebook.pdf",
	}
	for in, want := range cases {
		if got := downloadName(in); got != want {
			t.Fatalf("downloadName(%q) = %q, want %q", in, got, want)
		}
	}
}
