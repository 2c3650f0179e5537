package command

import (
	"github.com/goliatone/go-errors"
	"github.com/peter-gy/marimo/export"
)

// DownloadPDF requests a server-side PDF download for a notebook.
type DownloadPDF struct {
	Filename string
	Preset   export.PDFPreset
}

func (DownloadPDF) Type() string { return "notebook:pdf:download" }

func (msg DownloadPDF) Validate() error {
	if msg.Filename == "" {
		return errors.New("notebook filename is required", errors.CategoryValidation).
			WithTextCode("FILENAME_REQUIRED")
	}
	switch msg.Preset {
	case "", export.PresetDocument, export.PresetSlides:
		return nil
	default:
		return errors.New("unknown pdf preset", errors.CategoryValidation).
			WithTextCode("PRESET_INVALID")
	}
}

// CollectFallbacks captures PNG fallbacks for a notebook session.
type CollectFallbacks struct {
	View     *export.SessionView
	Filename string
	Filepath string
	Argv     []string
	Options  export.RasterOptions
	Result   *map[export.CellID]string
}

func (CollectFallbacks) Type() string { return "notebook:pdf:fallbacks" }

func (msg CollectFallbacks) Validate() error {
	if msg.View == nil {
		return errors.New("session view is required", errors.CategoryValidation).
			WithTextCode("VIEW_REQUIRED")
	}
	return nil
}

// ExportHTML renders a notebook session as standalone HTML.
type ExportHTML struct {
	View     *export.SessionView
	Filename string
	Request  export.ExportAsHTMLRequest
	Result   *string
}

func (ExportHTML) Type() string { return "notebook:html:export" }

func (msg ExportHTML) Validate() error {
	if msg.View == nil {
		return errors.New("session view is required", errors.CategoryValidation).
			WithTextCode("VIEW_REQUIRED")
	}
	return nil
}

// InjectFallbacks replaces replaced MIME outputs in an ipynb document with
// captured PNG data URLs.
type InjectFallbacks struct {
	Notebook *export.Notebook
	Captures map[export.CellID]string
	Result   *int
}

func (InjectFallbacks) Type() string { return "notebook:ipynb:fallbacks" }

func (msg InjectFallbacks) Validate() error {
	if msg.Notebook == nil {
		return errors.New("notebook document is required", errors.CategoryValidation).
			WithTextCode("NOTEBOOK_REQUIRED")
	}
	return nil
}
