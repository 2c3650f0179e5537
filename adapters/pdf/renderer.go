package pdfchrome

import (
	"bytes"
	"context"
	"path"
	"strings"
	"time"

	"github.com/peter-gy/marimo/export"
)

// ViewLoader resolves the executed session view for a notebook filename.
type ViewLoader func(ctx context.Context, filename string) (*export.SessionView, error)

// Printer prints HTML documents to PDF bytes.
type Printer interface {
	PrintHTML(ctx context.Context, html string, opts PrintOptions) ([]byte, error)
}

// Renderer is a local PDF download capability: it exports the session to
// standalone HTML, prints it with Chromium, and stores the artifact.
type Renderer struct {
	Printer  Printer
	Exporter export.HTMLExporter
	Views    ViewLoader
	Store    export.ArtifactStore
	Logger   export.Logger
	Now      func() time.Time
}

var _ export.PDFDownloader = (*Renderer)(nil)

// DownloadPDF renders the notebook and stores the resulting PDF.
func (r *Renderer) DownloadPDF(ctx context.Context, req export.ExportAsPDFRequest) error {
	if r == nil || r.Printer == nil {
		return export.NewError(export.KindValidation, "pdf printer is required", nil)
	}
	if r.Exporter == nil {
		return export.NewError(export.KindValidation, "html exporter is required", nil)
	}
	if r.Views == nil {
		return export.NewError(export.KindValidation, "session view loader is required", nil)
	}
	if r.Store == nil {
		return export.NewError(export.KindValidation, "artifact store is required", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	view, err := r.Views(ctx, req.Filename)
	if err != nil {
		return err
	}

	html, _, err := r.Exporter.ExportAsHTML(view, req.Filename, export.ExportAsHTMLRequest{
		Download:    false,
		Files:       []string{},
		IncludeCode: req.IncludeInputs,
	})
	if err != nil {
		return err
	}

	pdf, err := r.Printer.PrintHTML(ctx, html, presetPrintOptions(req.Preset))
	if err != nil {
		return err
	}

	name := downloadName(req.Filename)
	meta := export.ArtifactMeta{
		ContentType: "application/pdf",
		Filename:    name,
		CreatedAt:   r.now(),
	}
	ref, err := r.Store.Put(ctx, name, bytes.NewReader(pdf), meta)
	if err != nil {
		return export.NewError(export.KindInternal, "pdf artifact store failed", err)
	}

	r.logger().Infof("rendered pdf for %q: %s (%d bytes)", req.Filename, ref.Key, ref.Meta.Size)
	return nil
}

func (r *Renderer) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

func (r *Renderer) logger() export.Logger {
	if r == nil || r.Logger == nil {
		return export.NopLogger{}
	}
	return r.Logger
}

func downloadName(filename string) string {
	base := path.Base(filename)
	if base == "." || base == "/" || base == "" {
		base = "notebook"
	}
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base + ".pdf"
}
