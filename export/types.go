package export

import (
	"context"
	"io"
	"time"
)

// PDFPreset selects the output layout of a PDF export.
type PDFPreset string

const (
	// PresetDocument renders the standard paginated layout.
	PresetDocument PDFPreset = "document"
	// PresetSlides renders the presentation layout.
	PresetSlides PDFPreset = "slides"
)

// RasterServerMode selects which backend serves pages during raster capture.
type RasterServerMode string

const (
	// RasterServerStatic captures from exported static HTML.
	RasterServerStatic RasterServerMode = "static"
	// RasterServerLive captures from a live notebook server.
	RasterServerLive RasterServerMode = "live"
)

// DefaultRasterScale is the device scale factor used for PNG capture.
const DefaultRasterScale = 4.0

// ExportAsPDFRequest describes a server-side PDF export.
type ExportAsPDFRequest struct {
	Filename         string           `json:"filename"`
	WebPDF           bool             `json:"webpdf"`
	Preset           PDFPreset        `json:"preset"`
	IncludeInputs    bool             `json:"includeInputs"`
	RasterizeOutputs bool             `json:"rasterizeOutputs"`
	RasterScale      float64          `json:"rasterScale"`
	RasterServer     RasterServerMode `json:"rasterServer"`
}

// ExportAsHTMLRequest describes a standalone HTML export.
type ExportAsHTMLRequest struct {
	Download    bool     `json:"download"`
	Files       []string `json:"files"`
	IncludeCode bool     `json:"includeCode"`
	AssetURL    string   `json:"assetUrl,omitempty"`
}

// PDFDownloader performs the actual PDF download. Implementations own the
// transport; the dispatcher only shapes the request.
type PDFDownloader interface {
	DownloadPDF(ctx context.Context, req ExportAsPDFRequest) error
}

// PDFDownloaderFunc adapts a function to a PDFDownloader.
type PDFDownloaderFunc func(ctx context.Context, req ExportAsPDFRequest) error

func (f PDFDownloaderFunc) DownloadPDF(ctx context.Context, req ExportAsPDFRequest) error {
	if f == nil {
		return NewError(KindInternal, "pdf downloader func is nil", nil)
	}
	return f(ctx, req)
}

// ExportState captures export lifecycle states.
type ExportState string

const (
	StateQueued    ExportState = "queued"
	StateRunning   ExportState = "running"
	StateCompleted ExportState = "completed"
	StateFailed    ExportState = "failed"
)

// ExportRecord captures tracker state for a PDF export.
type ExportRecord struct {
	ID          string
	Filename    string
	Preset      PDFPreset
	State       ExportState
	Error       string
	Artifact    ArtifactRef
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// ExportFilter filters tracker listings.
type ExportFilter struct {
	Filename string
	State    ExportState
	Since    time.Time
	Until    time.Time
}

// ExportTracker records export lifecycle transitions.
type ExportTracker interface {
	Start(ctx context.Context, record ExportRecord) (string, error)
	Complete(ctx context.Context, id string, artifact ArtifactRef) error
	Fail(ctx context.Context, id string, err error) error
	Status(ctx context.Context, id string) (ExportRecord, error)
	List(ctx context.Context, filter ExportFilter) ([]ExportRecord, error)
}

// ArtifactMeta captures stored artifact metadata.
type ArtifactMeta struct {
	ContentType string
	Size        int64
	Filename    string
	CreatedAt   time.Time
}

// ArtifactRef references a stored artifact.
type ArtifactRef struct {
	Key  string
	Meta ArtifactMeta
}

// ArtifactStore stores export artifacts.
type ArtifactStore interface {
	Put(ctx context.Context, key string, r io.Reader, meta ArtifactMeta) (ArtifactRef, error)
	Open(ctx context.Context, key string) (io.ReadCloser, ArtifactMeta, error)
	Delete(ctx context.Context, key string) error
}

// Logger provides logging hooks.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger is a no-op logger.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Warnf(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}
