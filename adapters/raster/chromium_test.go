package rasterchrome

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/peter-gy/marimo/export"
)

func chromeBinaryPath(t *testing.T) string {
	t.Helper()

	chromePath := os.Getenv("CHROME_BIN")
	if chromePath == "" {
		paths := []string{"google-chrome", "chromium", "chromium-browser"}
		for _, candidate := range paths {
			if path, err := exec.LookPath(candidate); err == nil {
				chromePath = path
				break
			}
		}
	}
	if chromePath == "" {
		t.Skip("chromium binary not found; set CHROME_BIN to run this test")
	}

	return chromePath
}

func TestFormatExpects(t *testing.T) {
	if got := formatExpects(nil); got != "generic" {
		t.Fatalf("expected generic, got %s", got)
	}
	got := formatExpects([]export.CaptureExpectation{export.ExpectAnywidget, export.ExpectVega})
	if got != "anywidget,vega" {
		t.Fatalf("unexpected format: %s", got)
	}
}

func TestAllocatorOptionsFromArgs(t *testing.T) {
	options := allocatorOptionsFromArgs([]string{
		"",
		"--disable-gpu",
		"--window-size=1280,720",
		"no-sandbox",
		"--",
	})
	if len(options) != 3 {
		t.Fatalf("expected 3 options, got %d", len(options))
	}
}

func TestEngineDefaults(t *testing.T) {
	engine := NewEngine()
	if !engine.Headless {
		t.Fatalf("expected headless default")
	}

	width, height := engine.viewport()
	if width != defaultViewportWidth || height != defaultViewportHeight {
		t.Fatalf("unexpected viewport: %dx%d", width, height)
	}
	if engine.readinessTimeout() != defaultReadinessTimeout {
		t.Fatalf("unexpected readiness timeout")
	}
	if engine.settleWait() != defaultSettleWait {
		t.Fatalf("unexpected settle wait")
	}
}

func TestCapturePNGs_Validation(t *testing.T) {
	var nilEngine *Engine
	if _, err := nilEngine.CapturePNGs(context.Background(), "http://127.0.0.1", nil, 1); err == nil {
		t.Fatalf("expected error for nil engine")
	}

	engine := NewEngine()
	_, err := engine.CapturePNGs(context.Background(), "", nil, 1)
	if export.KindFromError(err) != export.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCapturePNGs_Browser(t *testing.T) {
	chromePath := chromeBinaryPath(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html><body>
<div id="root">
<div id="output-cell-1"><div class="output" style="width:60px;height:40px;background:#336699"></div></div>
</div>
</body></html>`))
	}))
	defer server.Close()

	engine := NewEngine()
	engine.BrowserPath = chromePath
	engine.Args = []string{"--no-sandbox", "--disable-gpu"}
	engine.ReadinessTimeout = 10 * time.Second
	engine.SettleWait = 100 * time.Millisecond
	engine.QuietWait = 100 * time.Millisecond
	defer func() { _ = engine.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	captures, err := engine.CapturePNGs(ctx, server.URL, []export.RasterTarget{
		{CellID: "cell-1"},
		{CellID: "missing"},
	}, 2.0)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	dataURL, ok := captures["cell-1"]
	if !ok {
		t.Fatalf("expected capture for cell-1, got %v", captures)
	}
	if !strings.HasPrefix(dataURL, export.PNGDataURLPrefix) {
		t.Fatalf("expected png data url, got %s", dataURL[:32])
	}
	if _, ok := captures["missing"]; ok {
		t.Fatalf("missing target should be skipped")
	}
}
