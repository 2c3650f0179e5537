package export

import (
	"context"
	"encoding/base64"
	"strings"
)

// PNGDataURLPrefix prefixes base64 PNG payloads embedded as data URLs.
const PNGDataURLPrefix = "data:image/png;base64,"

// ToPNGDataURL encodes a PNG image as a data URL.
func ToPNGDataURL(image []byte) string {
	return PNGDataURLPrefix + base64.StdEncoding.EncodeToString(image)
}

// RasterOptions configures PNG fallback capture.
type RasterOptions struct {
	Enabled    bool
	Scale      float64
	ServerMode RasterServerMode
}

// DefaultRasterOptions returns the capture defaults.
func DefaultRasterOptions() RasterOptions {
	return RasterOptions{
		Enabled:    true,
		Scale:      DefaultRasterScale,
		ServerMode: RasterServerStatic,
	}
}

// PageCapturer captures PNG screenshots of target outputs from a page URL.
// Results map cell ids to PNG data URLs; targets that failed to stabilize
// are absent from the result rather than reported as errors.
type PageCapturer interface {
	CapturePNGs(ctx context.Context, pageURL string, targets []RasterTarget, scale float64) (map[CellID]string, error)
}

// AssetPageServer serves exported HTML plus its static assets during a
// static capture pass.
type AssetPageServer interface {
	Start() error
	SetHTML(html string) error
	BaseURL() string
	PageURL() string
	Close() error
}

// AssetServerFactory creates an asset server per capture pass.
type AssetServerFactory func() (AssetPageServer, error)

// LiveServer is a running notebook server used for live capture.
type LiveServer interface {
	PageURL() string
	Close() error
}

// LiveServerFactory launches a notebook server for the given file.
type LiveServerFactory func(ctx context.Context, filepath string, argv []string) (LiveServer, error)

// HTMLExporter renders a session view into standalone HTML.
type HTMLExporter interface {
	ExportAsHTML(view *SessionView, filename string, req ExportAsHTMLRequest) (string, string, error)
}

// Rasterizer orchestrates PNG fallback capture ahead of PDF conversion.
type Rasterizer struct {
	Capturer    PageCapturer
	AssetServer AssetServerFactory
	LiveServer  LiveServerFactory
	Exporter    HTMLExporter
	Logger      Logger
}

// CaptureInput identifies the notebook being captured.
type CaptureInput struct {
	View     *SessionView
	Filename string
	Filepath string
	Argv     []string
}

// CollectPNGFallbacks captures per-cell PNG fallbacks for eligible outputs.
// RasterServerStatic captures every target from exported static HTML, with
// component markup promoted so it renders without a kernel. RasterServerLive
// captures every target against a live notebook server instead.
func (r *Rasterizer) CollectPNGFallbacks(ctx context.Context, input CaptureInput, opts RasterOptions) (map[CellID]string, error) {
	if r == nil || r.Capturer == nil {
		return nil, NewError(KindValidation, "raster capturer is required", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := r.logger()

	if !opts.Enabled {
		logger.Debugf("raster capture disabled by options")
		return map[CellID]string{}, nil
	}

	targets := CollectRasterTargets(input.View)
	if len(targets) == 0 {
		logger.Debugf("raster capture skipped: no eligible outputs")
		return map[CellID]string{}, nil
	}

	mode := RasterServerMode(strings.ToLower(string(opts.ServerMode)))
	switch mode {
	case RasterServerStatic, RasterServerLive:
	default:
		logger.Warnf("unknown raster server mode %q; defaulting to static", opts.ServerMode)
		mode = RasterServerStatic
	}

	scale := opts.Scale
	if scale <= 0 {
		scale = DefaultRasterScale
	}

	logger.Infof("rasterizing %d output(s) for pdf [mode=%s, scale=%v]", len(targets), mode, scale)

	var captures map[CellID]string
	var err error
	if mode == RasterServerLive {
		logger.Debugf("raster capture strategy: live-only")
		captures, err = r.collectLiveCaptures(ctx, input, targets, scale)
	} else {
		logger.Debugf("raster capture strategy: static-only")
		captures, err = r.collectStaticCaptures(ctx, input, targets, scale)
	}
	if err != nil {
		return nil, err
	}

	logger.Infof("raster capture complete: %d/%d output(s) captured", len(captures), len(targets))
	return captures, nil
}

func (r *Rasterizer) collectStaticCaptures(ctx context.Context, input CaptureInput, targets []RasterTarget, scale float64) (map[CellID]string, error) {
	logger := r.logger()
	if r.AssetServer == nil || r.Exporter == nil {
		return nil, NewError(KindValidation, "asset server and html exporter are required for static capture", nil)
	}

	logger.Debugf("raster capture static phase: %d target(s), scale=%v", len(targets), scale)

	server, err := r.AssetServer()
	if err != nil {
		return nil, NewError(KindInternal, "asset server init failed", err)
	}
	if err := server.Start(); err != nil {
		return nil, NewError(KindInternal, "asset server start failed", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			logger.Debugf("asset server close failed: %v", closeErr)
		}
	}()

	captureView := PromoteComponentMarkup(input.View, targets)
	html, _, err := r.Exporter.ExportAsHTML(captureView, input.Filename, ExportAsHTMLRequest{
		Download:    false,
		Files:       []string{},
		IncludeCode: true,
		AssetURL:    server.BaseURL(),
	})
	if err != nil {
		return nil, err
	}
	if err := server.SetHTML(html); err != nil {
		return nil, err
	}

	captures, err := r.Capturer.CapturePNGs(ctx, server.PageURL(), targets, scale)
	if err != nil {
		return nil, err
	}
	logger.Debugf("raster capture static phase complete: %d/%d captured", len(captures), len(targets))
	return captures, nil
}

func (r *Rasterizer) collectLiveCaptures(ctx context.Context, input CaptureInput, targets []RasterTarget, scale float64) (map[CellID]string, error) {
	logger := r.logger()
	if input.Filepath == "" {
		logger.Debugf("raster capture live phase skipped: no filepath provided")
		return map[CellID]string{}, nil
	}
	if r.LiveServer == nil {
		return nil, NewError(KindValidation, "live server factory is required for live capture", nil)
	}

	logger.Debugf("raster capture live phase: %d target(s), scale=%v", len(targets), scale)

	server, err := r.LiveServer(ctx, input.Filepath, input.Argv)
	if err != nil {
		return nil, NewError(KindInternal, "live notebook server start failed", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			logger.Debugf("live notebook server close failed: %v", closeErr)
		}
	}()

	captures, err := r.Capturer.CapturePNGs(ctx, server.PageURL(), targets, scale)
	if err != nil {
		return nil, err
	}
	logger.Debugf("raster capture live phase complete: %d/%d captured", len(captures), len(targets))
	return captures, nil
}

func (r *Rasterizer) logger() Logger {
	if r == nil || r.Logger == nil {
		return NopLogger{}
	}
	return r.Logger
}
