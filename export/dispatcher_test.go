package export

import (
	"context"
	"errors"
	"testing"
)

type recordingDownloader struct {
	calls    int
	requests []ExportAsPDFRequest
	err      error
}

func (d *recordingDownloader) DownloadPDF(ctx context.Context, req ExportAsPDFRequest) error {
	_ = ctx
	d.calls++
	d.requests = append(d.requests, req)
	return d.err
}

func TestRunServerSidePDFDownload_DocumentPreset(t *testing.T) {
	downloader := &recordingDownloader{}

	if err := RunServerSidePDFDownload(context.Background(), "slides.py", PresetDocument, downloader); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if downloader.calls != 1 {
		t.Fatalf("expected exactly one download call, got %d", downloader.calls)
	}

	want := ExportAsPDFRequest{
		Filename:         "slides.py",
		WebPDF:           true,
		Preset:           PresetDocument,
		IncludeInputs:    false,
		RasterizeOutputs: true,
		RasterScale:      DefaultRasterScale,
		RasterServer:     RasterServerLive,
	}
	if downloader.requests[0] != want {
		t.Fatalf("unexpected request: %+v", downloader.requests[0])
	}
}

func TestRunServerSidePDFDownload_SlidesPreset(t *testing.T) {
	downloader := &recordingDownloader{}

	if err := RunServerSidePDFDownload(context.Background(), "slides.py", PresetSlides, downloader); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if downloader.calls != 1 {
		t.Fatalf("expected exactly one download call, got %d", downloader.calls)
	}

	req := downloader.requests[0]
	if req.Preset != PresetSlides {
		t.Fatalf("expected slides preset, got %q", req.Preset)
	}
	if req.Filename != "slides.py" {
		t.Fatalf("filename changed: %q", req.Filename)
	}
	if !req.WebPDF || req.IncludeInputs || req.RasterServer != RasterServerLive {
		t.Fatalf("fixed fields not preserved: %+v", req)
	}
}

func TestRunServerSidePDFDownload_PropagatesError(t *testing.T) {
	downloadErr := errors.New("backend unavailable")
	downloader := &recordingDownloader{err: downloadErr}

	err := RunServerSidePDFDownload(context.Background(), "demo.py", PresetDocument, downloader)
	if !errors.Is(err, downloadErr) {
		t.Fatalf("expected downloader error, got %v", err)
	}
	if downloader.calls != 1 {
		t.Fatalf("expected exactly one download call, got %d", downloader.calls)
	}
}

func TestRunServerSidePDFDownload_NilDownloader(t *testing.T) {
	err := RunServerSidePDFDownload(context.Background(), "demo.py", PresetDocument, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", KindFromError(err))
	}
}

func TestRunServerSidePDFDownload_NilContext(t *testing.T) {
	var seen context.Context
	downloader := PDFDownloaderFunc(func(ctx context.Context, req ExportAsPDFRequest) error {
		seen = ctx
		_ = req
		return nil
	})

	if err := RunServerSidePDFDownload(nil, "demo.py", PresetDocument, downloader); err != nil { //nolint:staticcheck
		t.Fatalf("unexpected error: %v", err)
	}
	if seen == nil {
		t.Fatalf("expected a non-nil context")
	}
}

func TestPDFDownloaderFunc_Nil(t *testing.T) {
	var fn PDFDownloaderFunc
	err := fn.DownloadPDF(context.Background(), ExportAsPDFRequest{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if KindFromError(err) != KindInternal {
		t.Fatalf("expected internal error, got %v", KindFromError(err))
	}
}
