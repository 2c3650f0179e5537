// Package exportactivity emits export lifecycle events.
package exportactivity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peter-gy/marimo/export"
)

// Event is one export lifecycle event.
type Event struct {
	ID        string
	Name      string
	Filename  string
	Preset    export.PDFPreset
	Timestamp time.Time
	Error     string
}

// Event names emitted around a PDF download.
const (
	EventDownloadStarted   = "pdf.download.started"
	EventDownloadCompleted = "pdf.download.completed"
	EventDownloadFailed    = "pdf.download.failed"
)

// Sink receives lifecycle events.
type Sink interface {
	Log(ctx context.Context, evt Event) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, evt Event) error

func (f SinkFunc) Log(ctx context.Context, evt Event) error {
	if f == nil {
		return export.NewError(export.KindInternal, "activity sink func is nil", nil)
	}
	return f(ctx, evt)
}

// LoggerSink writes events through the export logger.
type LoggerSink struct {
	Logger export.Logger
}

func (s LoggerSink) Log(_ context.Context, evt Event) error {
	logger := s.Logger
	if logger == nil {
		logger = export.NopLogger{}
	}
	if evt.Error != "" {
		logger.Warnf("activity %s [%s, preset=%s]: %s", evt.Name, evt.Filename, evt.Preset, evt.Error)
		return nil
	}
	logger.Infof("activity %s [%s, preset=%s]", evt.Name, evt.Filename, evt.Preset)
	return nil
}

// Downloader decorates a PDF download capability with lifecycle events.
// Sink failures are logged, never surfaced to the caller.
type Downloader struct {
	Next   export.PDFDownloader
	Sink   Sink
	Logger export.Logger
	Now    func() time.Time
}

var _ export.PDFDownloader = (*Downloader)(nil)

func (d *Downloader) DownloadPDF(ctx context.Context, req export.ExportAsPDFRequest) error {
	if d == nil || d.Next == nil {
		return export.NewError(export.KindValidation, "pdf downloader is required", nil)
	}

	d.emit(ctx, Event{
		Name:     EventDownloadStarted,
		Filename: req.Filename,
		Preset:   req.Preset,
	})

	err := d.Next.DownloadPDF(ctx, req)
	if err != nil {
		d.emit(ctx, Event{
			Name:     EventDownloadFailed,
			Filename: req.Filename,
			Preset:   req.Preset,
			Error:    err.Error(),
		})
		return err
	}

	d.emit(ctx, Event{
		Name:     EventDownloadCompleted,
		Filename: req.Filename,
		Preset:   req.Preset,
	})
	return nil
}

func (d *Downloader) emit(ctx context.Context, evt Event) {
	if d.Sink == nil {
		return
	}
	if strings.TrimSpace(evt.ID) == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = d.now()
	}
	if err := d.Sink.Log(ctx, evt); err != nil {
		d.logger().Warnf("activity sink failed for %s: %v", evt.Name, err)
	}
}

func (d *Downloader) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

func (d *Downloader) logger() export.Logger {
	if d == nil || d.Logger == nil {
		return export.NopLogger{}
	}
	return d.Logger
}
