package rasterchrome

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/peter-gy/marimo/export"
)

const (
	defaultViewportWidth  = 1440
	defaultViewportHeight = 1000

	defaultReadinessTimeout = 90 * time.Second
	defaultSettleWait       = 10 * time.Second
	defaultQuietWait        = 2 * time.Second
)

// pageReadyFunc reports whether the notebook frontend has hydrated.
const pageReadyFunc = `() => {
  const root = document.getElementById("root");
  if (!root) return false;
  return root.childElementCount > 0;
}`

// goToNextSlideExpr advances slide-layout notebooks so each output is on
// screen before its screenshot.
const goToNextSlideExpr = `(() => {
  const swiper = document.querySelector('.swiper')?.swiper;
  if (swiper) {
    swiper.slideNext();
  }
})()`

// waitForNextPaintExpr resolves after two animation frames.
const waitForNextPaintExpr = `new Promise((resolve) => {
  requestAnimationFrame(() => requestAnimationFrame(resolve));
})`

// Engine captures PNG screenshots using a shared headless Chromium instance.
// The zero value is usable; the browser starts lazily on first capture.
type Engine struct {
	BrowserPath string
	Headless    bool
	Args        []string

	ViewportWidth  int
	ViewportHeight int

	// ReadinessTimeout bounds page hydration and per-target stabilization.
	ReadinessTimeout time.Duration
	// SettleWait is the extra quiet period applied to targets expecting
	// dynamic payloads (anywidget, vega).
	SettleWait time.Duration
	// QuietWait is the short pause applied after navigation settles.
	QuietWait time.Duration

	Logger export.Logger

	initOnce      sync.Once
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewEngine creates a headless capture engine.
func NewEngine() *Engine {
	return &Engine{Headless: true}
}

// CapturePNGs screenshots each target output on the page and returns the
// captured images as PNG data URLs keyed by cell id.
func (e *Engine) CapturePNGs(ctx context.Context, pageURL string, targets []export.RasterTarget, scale float64) (map[export.CellID]string, error) {
	if e == nil {
		return nil, export.NewError(export.KindInternal, "capture engine is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if pageURL == "" {
		return nil, export.NewError(export.KindValidation, "page url is required", nil)
	}
	logger := e.logger()

	if err := e.ensureBrowser(); err != nil {
		return nil, export.NewError(export.KindInternal, "capture engine init failed", err)
	}

	tabCtx, cancel := chromedp.NewContext(e.browserCtx)
	defer cancel()

	execCtx, cancelReq := context.WithCancel(tabCtx)
	defer cancelReq()
	go func() {
		select {
		case <-ctx.Done():
			cancelReq()
		case <-execCtx.Done():
		}
	}()

	deviceScale := scale
	if deviceScale < 1 {
		deviceScale = 1
	}
	width, height := e.viewport()

	logger.Debugf("raster page capture start: url=%s targets=%d scale=%v", pageURL, len(targets), scale)

	readyCtx, cancelReady := context.WithTimeout(execCtx, e.readinessTimeout())
	defer cancelReady()

	var ready bool
	err := chromedp.Run(readyCtx,
		emulation.SetDeviceMetricsOverride(int64(width), int64(height), deviceScale, false),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.PollFunction(pageReadyFunc, &ready, chromedp.WithPollingTimeout(e.readinessTimeout())),
		chromedp.Sleep(e.quietWait()),
	)
	if err != nil {
		return nil, export.NewError(export.KindInternal, "raster page load failed", err)
	}

	captures := make(map[export.CellID]string, len(targets))
	for index, target := range targets {
		logger.Infof("rasterizing [%d/%d] cell=%s (%s)", index+1, len(targets), target.CellID, formatExpects(target.Expects))

		image, err := e.captureTarget(execCtx, target)
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Debugf("raster target skipped: cell=%s err=%v", target.CellID, err)
			continue
		}
		captures[target.CellID] = export.ToPNGDataURL(image)
	}

	logger.Infof("rasterization complete: captured %d/%d output(s)", len(captures), len(targets))
	return captures, nil
}

// captureTarget stabilizes one output element and screenshots it. Output
// wrappers often use display:contents, which cannot be screenshotted, so the
// selector targets a concrete child node.
func (e *Engine) captureTarget(ctx context.Context, target export.RasterTarget) ([]byte, error) {
	targetCtx, cancel := context.WithTimeout(ctx, e.readinessTimeout())
	defer cancel()

	sel := fmt.Sprintf("#output-%s > .output", target.CellID)

	actions := []chromedp.Action{
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		awaitNextPaint(),
	}
	if len(target.Expects) > 0 {
		actions = append(actions, chromedp.Sleep(e.settleWait()))
	}
	actions = append(actions,
		chromedp.Evaluate(goToNextSlideExpr, nil),
		awaitNextPaint(),
	)

	var image []byte
	actions = append(actions, chromedp.Screenshot(sel, &image, chromedp.NodeVisible, chromedp.ByQuery))

	if err := chromedp.Run(targetCtx, actions...); err != nil {
		return nil, err
	}
	return image, nil
}

// Close releases Chromium resources if they have been initialized.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	if e.browserCancel != nil {
		e.browserCancel()
	}
	if e.allocCancel != nil {
		e.allocCancel()
	}
	return nil
}

func (e *Engine) ensureBrowser() error {
	e.initOnce.Do(func() {
		options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		if e.BrowserPath != "" {
			options = append(options, chromedp.ExecPath(e.BrowserPath))
		}
		options = append(options, chromedp.Flag("headless", e.Headless))
		options = append(options, allocatorOptionsFromArgs(e.Args)...)

		e.allocCtx, e.allocCancel = chromedp.NewExecAllocator(context.Background(), options...)
		e.browserCtx, e.browserCancel = chromedp.NewContext(e.allocCtx)
	})
	if e.allocCtx == nil || e.browserCtx == nil {
		return errors.New("chromium allocator unavailable")
	}
	return nil
}

func awaitNextPaint() chromedp.Action {
	return chromedp.Evaluate(waitForNextPaintExpr, nil, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	})
}

func (e *Engine) viewport() (int, int) {
	width := e.ViewportWidth
	if width <= 0 {
		width = defaultViewportWidth
	}
	height := e.ViewportHeight
	if height <= 0 {
		height = defaultViewportHeight
	}
	return width, height
}

func (e *Engine) readinessTimeout() time.Duration {
	if e.ReadinessTimeout > 0 {
		return e.ReadinessTimeout
	}
	return defaultReadinessTimeout
}

func (e *Engine) settleWait() time.Duration {
	if e.SettleWait > 0 {
		return e.SettleWait
	}
	return defaultSettleWait
}

func (e *Engine) quietWait() time.Duration {
	if e.QuietWait > 0 {
		return e.QuietWait
	}
	return defaultQuietWait
}

func (e *Engine) logger() export.Logger {
	if e == nil || e.Logger == nil {
		return export.NopLogger{}
	}
	return e.Logger
}

func formatExpects(expects []export.CaptureExpectation) string {
	if len(expects) == 0 {
		return "generic"
	}
	parts := make([]string, len(expects))
	for i, expect := range expects {
		parts[i] = string(expect)
	}
	return strings.Join(parts, ",")
}

func allocatorOptionsFromArgs(args []string) []chromedp.ExecAllocatorOption {
	options := make([]chromedp.ExecAllocatorOption, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		arg = strings.TrimPrefix(arg, "--")
		if arg == "" {
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok {
			options = append(options, chromedp.Flag(name, value))
			continue
		}
		options = append(options, chromedp.Flag(arg, true))
	}
	return options
}
