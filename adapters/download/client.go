// Package downloadhttp downloads server-rendered notebook PDFs over HTTP.
package downloadhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peter-gy/marimo/export"
)

// ExportPDFPath is the server endpoint rendering notebook PDFs.
const ExportPDFPath = "/api/export/pdf"

const pdfContentType = "application/pdf"

// Client downloads PDFs from a notebook server and stores the artifact.
type Client struct {
	// BaseURL is the notebook server root, e.g. "http://127.0.0.1:2718".
	BaseURL string
	// HTTPClient overrides the transport. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Store receives the downloaded PDF. Required.
	Store export.ArtifactStore
	// Tracker records export lifecycle transitions. Optional.
	Tracker export.ExportTracker
	// Clock overrides time for tests.
	Clock func() time.Time

	Logger export.Logger
}

var _ export.PDFDownloader = (*Client)(nil)

// DownloadPDF posts the export request and streams the resulting PDF into
// the artifact store. Lifecycle transitions are recorded on the tracker
// when one is configured.
func (c *Client) DownloadPDF(ctx context.Context, req export.ExportAsPDFRequest) error {
	if c == nil {
		return export.NewError(export.KindInternal, "pdf download client is nil", nil)
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return export.NewError(export.KindValidation, "pdf download base URL is required", nil)
	}
	if c.Store == nil {
		return export.NewError(export.KindValidation, "artifact store is required", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	id, err := c.trackStart(ctx, req)
	if err != nil {
		return err
	}

	ref, err := c.download(ctx, id, req)
	if err != nil {
		c.trackFail(ctx, id, err)
		return err
	}

	return c.trackComplete(ctx, id, ref)
}

func (c *Client) download(ctx context.Context, id string, req export.ExportAsPDFRequest) (export.ArtifactRef, error) {
	logger := c.logger()

	payload, err := json.Marshal(req)
	if err != nil {
		return export.ArtifactRef{}, export.NewError(export.KindValidation, "pdf export request invalid", err)
	}

	url := strings.TrimRight(c.BaseURL, "/") + ExportPDFPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return export.ArtifactRef{}, export.NewError(export.KindInternal, "pdf export request failed", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", pdfContentType)

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	logger.Debugf("downloading pdf for %q [preset=%s]", req.Filename, req.Preset)

	resp, err := client.Do(httpReq)
	if err != nil {
		return export.ArtifactRef{}, export.NewError(export.KindExternal, "pdf export request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return export.ArtifactRef{}, statusError(resp.StatusCode)
	}

	meta := export.ArtifactMeta{
		ContentType: pdfContentType,
		Size:        resp.ContentLength,
		Filename:    pdfFilename(req.Filename),
		CreatedAt:   c.now(),
	}
	ref, err := c.Store.Put(ctx, artifactKey(id, meta.Filename), resp.Body, meta)
	if err != nil {
		return export.ArtifactRef{}, export.NewError(export.KindInternal, "pdf artifact store failed", err)
	}

	logger.Infof("pdf download complete: %s (%d bytes)", ref.Key, ref.Meta.Size)
	return ref, nil
}

func (c *Client) trackStart(ctx context.Context, req export.ExportAsPDFRequest) (string, error) {
	id := uuid.NewString()
	if c.Tracker == nil {
		return id, nil
	}
	record := export.ExportRecord{
		ID:        id,
		Filename:  req.Filename,
		Preset:    req.Preset,
		State:     export.StateRunning,
		CreatedAt: c.now(),
		StartedAt: c.now(),
	}
	tracked, err := c.Tracker.Start(ctx, record)
	if err != nil {
		return "", export.NewError(export.KindInternal, "export tracking failed", err)
	}
	if tracked != "" {
		id = tracked
	}
	return id, nil
}

func (c *Client) trackComplete(ctx context.Context, id string, ref export.ArtifactRef) error {
	if c.Tracker == nil {
		return nil
	}
	if err := c.Tracker.Complete(ctx, id, ref); err != nil {
		return export.NewError(export.KindInternal, "export tracking failed", err)
	}
	return nil
}

func (c *Client) trackFail(ctx context.Context, id string, cause error) {
	if c.Tracker == nil {
		return
	}
	if err := c.Tracker.Fail(ctx, id, cause); err != nil {
		c.logger().Warnf("export failure tracking failed: %v", err)
	}
}

func (c *Client) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}

func (c *Client) logger() export.Logger {
	if c.Logger == nil {
		return export.NopLogger{}
	}
	return c.Logger
}

func statusError(status int) error {
	msg := fmt.Sprintf("pdf export returned status %d", status)
	switch {
	case status == http.StatusNotFound:
		return export.NewError(export.KindNotFound, msg, nil)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return export.NewError(export.KindTimeout, msg, nil)
	case status >= 400 && status < 500:
		return export.NewError(export.KindValidation, msg, nil)
	default:
		return export.NewError(export.KindExternal, msg, nil)
	}
}

// pdfFilename swaps the notebook extension for .pdf.
func pdfFilename(notebook string) string {
	base := path.Base(notebook)
	if base == "." || base == "/" || base == "" {
		base = "notebook"
	}
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base + ".pdf"
}

func artifactKey(id, filename string) string {
	return id + "/" + filename
}
