package command

import (
	"context"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
	"github.com/peter-gy/marimo/export"
)

// DownloadPDFHandler dispatches server-side PDF downloads.
type DownloadPDFHandler struct {
	Downloader export.PDFDownloader
}

func NewDownloadPDFHandler(downloader export.PDFDownloader) *DownloadPDFHandler {
	return &DownloadPDFHandler{Downloader: downloader}
}

func (h *DownloadPDFHandler) Execute(ctx context.Context, msg DownloadPDF) error {
	if h == nil || h.Downloader == nil {
		return errors.New("pdf downloader is required", errors.CategoryInternal).
			WithTextCode("DOWNLOADER_REQUIRED")
	}
	preset := msg.Preset
	if preset == "" {
		preset = export.PresetDocument
	}
	return export.RunServerSidePDFDownload(ctx, msg.Filename, preset, h.Downloader)
}

// CollectFallbacksHandler captures PNG fallbacks ahead of PDF conversion.
type CollectFallbacksHandler struct {
	Rasterizer *export.Rasterizer
}

func NewCollectFallbacksHandler(rasterizer *export.Rasterizer) *CollectFallbacksHandler {
	return &CollectFallbacksHandler{Rasterizer: rasterizer}
}

func (h *CollectFallbacksHandler) Execute(ctx context.Context, msg CollectFallbacks) error {
	if h == nil || h.Rasterizer == nil {
		return errors.New("rasterizer is required", errors.CategoryInternal).
			WithTextCode("RASTERIZER_REQUIRED")
	}

	captures, err := h.Rasterizer.CollectPNGFallbacks(ctx, export.CaptureInput{
		View:     msg.View,
		Filename: msg.Filename,
		Filepath: msg.Filepath,
		Argv:     msg.Argv,
	}, msg.Options)
	if err != nil {
		return err
	}

	if msg.Result != nil {
		*msg.Result = captures
	}
	if res := gcmd.ResultFromContext[map[export.CellID]string](ctx); res != nil {
		res.Store(captures)
	}
	return nil
}

// ExportHTMLHandler renders standalone notebook HTML.
type ExportHTMLHandler struct {
	Exporter export.HTMLExporter
}

func NewExportHTMLHandler(exporter export.HTMLExporter) *ExportHTMLHandler {
	return &ExportHTMLHandler{Exporter: exporter}
}

func (h *ExportHTMLHandler) Execute(ctx context.Context, msg ExportHTML) error {
	_ = ctx
	if h == nil || h.Exporter == nil {
		return errors.New("html exporter is required", errors.CategoryInternal).
			WithTextCode("EXPORTER_REQUIRED")
	}

	page, _, err := h.Exporter.ExportAsHTML(msg.View, msg.Filename, msg.Request)
	if err != nil {
		return err
	}

	if msg.Result != nil {
		*msg.Result = page
	}
	if res := gcmd.ResultFromContext[string](ctx); res != nil {
		res.Store(page)
	}
	return nil
}

// InjectFallbacksHandler rewrites ipynb outputs with captured PNGs.
type InjectFallbacksHandler struct{}

func NewInjectFallbacksHandler() *InjectFallbacksHandler {
	return &InjectFallbacksHandler{}
}

func (h *InjectFallbacksHandler) Execute(ctx context.Context, msg InjectFallbacks) error {
	_ = h
	injected := export.InjectPNGFallbacks(msg.Notebook, msg.Captures)

	if msg.Result != nil {
		*msg.Result = injected
	}
	if res := gcmd.ResultFromContext[int](ctx); res != nil {
		res.Store(injected)
	}
	return nil
}
