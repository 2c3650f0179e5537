package export

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

// DownloadFormat is the artifact format of a finished export.
type DownloadFormat string

const (
	DownloadPDF  DownloadFormat = "pdf"
	DownloadHTML DownloadFormat = "html"
)

type filenameData struct {
	Notebook  string
	Preset    string
	Format    string
	Timestamp string
	Date      string
}

const defaultFilenameTemplate = "{{.Notebook}}"

// RenderDownloadFilename derives the download filename for an export from
// the source notebook filename. An empty nameTemplate uses the notebook's
// base name; templates may reference .Notebook, .Preset, .Format,
// .Timestamp, and .Date.
func RenderDownloadFilename(notebookFilename string, preset PDFPreset, format DownloadFormat, nameTemplate string, now time.Time) (string, error) {
	if format == "" {
		return "", NewError(KindValidation, "download format is required", nil)
	}

	base := filepath.Base(notebookFilename)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." {
		base = "notebook"
	}

	name := nameTemplate
	if name == "" {
		name = defaultFilenameTemplate
	}

	data := filenameData{
		Notebook:  base,
		Preset:    string(preset),
		Format:    string(format),
		Timestamp: now.UTC().Format("20060102T150405Z"),
		Date:      now.UTC().Format("20060102"),
	}

	tmpl, err := template.New("filename").Parse(name)
	if err != nil {
		return "", NewError(KindValidation, fmt.Sprintf("invalid filename template: %s", name), err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", NewError(KindValidation, "filename template execution failed", err)
	}

	result := strings.TrimSpace(buf.String())
	if result == "" {
		return "", NewError(KindValidation, "empty download filename", nil)
	}

	ext := "." + string(format)
	if !strings.HasSuffix(strings.ToLower(result), ext) {
		result += ext
	}
	return result, nil
}
