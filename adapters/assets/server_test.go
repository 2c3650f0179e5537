package assetserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/peter-gy/marimo/export"
)

func TestServer_DynamicRoute(t *testing.T) {
	server := New("")
	app := server.newApp()
	server.html = "<html><body>capture page</body></html>"

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, DefaultRoute, nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Fatalf("expected no-store, got %q", cc)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "capture page") {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestServer_StaticAssets(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.js"), []byte("console.log('hi')"), 0o644); err != nil {
		t.Fatalf("write asset: %v", err)
	}

	server := New(dir)
	app := server.newApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/index.js", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for asset, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "console.log") {
		t.Fatalf("unexpected asset body: %s", body)
	}
}

func TestServer_RouteNormalization(t *testing.T) {
	server := New("")
	server.Route = "custom.html"
	if got := server.route(); got != "/custom.html" {
		t.Fatalf("expected leading slash, got %s", got)
	}
}

func TestServer_Lifecycle(t *testing.T) {
	server := New("")

	if server.BaseURL() != "" || server.PageURL() != "" {
		t.Fatalf("urls should be empty before start")
	}
	if err := server.SetHTML("<html></html>"); export.KindFromError(err) != export.KindValidation {
		t.Fatalf("expected validation error before start, got %v", err)
	}

	if err := server.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer func() { _ = server.Close() }()

	if err := server.Start(); err == nil {
		t.Fatalf("expected error for double start")
	}
	if err := server.SetHTML("<html><body>ready</body></html>"); err != nil {
		t.Fatalf("set html failed: %v", err)
	}

	if !strings.HasPrefix(server.BaseURL(), "http://127.0.0.1:") {
		t.Fatalf("unexpected base url: %s", server.BaseURL())
	}
	if !strings.HasSuffix(server.PageURL(), DefaultRoute) {
		t.Fatalf("unexpected page url: %s", server.PageURL())
	}

	resp, err := http.Get(server.PageURL())
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ready") {
		t.Fatalf("unexpected body: %s", body)
	}

	if err := server.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestServer_MissingAssetDir(t *testing.T) {
	server := New(filepath.Join(t.TempDir(), "does-not-exist"))
	err := server.Start()
	if export.KindFromError(err) != export.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
