package query

import (
	"github.com/goliatone/go-errors"
	"github.com/peter-gy/marimo/export"
)

// ExportStatus requests a single export record.
type ExportStatus struct {
	ExportID string
}

func (ExportStatus) Type() string { return "notebook:pdf:status" }

func (msg ExportStatus) Validate() error {
	if msg.ExportID == "" {
		return errors.New("export id is required", errors.CategoryValidation).
			WithTextCode("EXPORT_ID_REQUIRED")
	}
	return nil
}

// ExportHistory requests export history, newest first.
type ExportHistory struct {
	Filter export.ExportFilter
}

func (ExportHistory) Type() string { return "notebook:pdf:history" }

func (ExportHistory) Validate() error { return nil }

// ArtifactMetadata requests stored artifact metadata for an export.
type ArtifactMetadata struct {
	ExportID string
}

func (ArtifactMetadata) Type() string { return "notebook:pdf:artifact" }

func (msg ArtifactMetadata) Validate() error {
	if msg.ExportID == "" {
		return errors.New("export id is required", errors.CategoryValidation).
			WithTextCode("EXPORT_ID_REQUIRED")
	}
	return nil
}
