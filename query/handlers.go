// Package query exposes read-side handlers for export history and artifacts.
package query

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/peter-gy/marimo/export"
)

// ExportStatusHandler returns a single export record.
type ExportStatusHandler struct {
	Tracker export.ExportTracker
}

func NewExportStatusHandler(tracker export.ExportTracker) *ExportStatusHandler {
	return &ExportStatusHandler{Tracker: tracker}
}

func (h *ExportStatusHandler) Query(ctx context.Context, msg ExportStatus) (export.ExportRecord, error) {
	if h == nil || h.Tracker == nil {
		return export.ExportRecord{}, errors.New("export tracker is required", errors.CategoryInternal).
			WithTextCode("TRACKER_REQUIRED")
	}
	return h.Tracker.Status(ctx, msg.ExportID)
}

// ExportHistoryHandler returns export history.
type ExportHistoryHandler struct {
	Tracker export.ExportTracker
}

func NewExportHistoryHandler(tracker export.ExportTracker) *ExportHistoryHandler {
	return &ExportHistoryHandler{Tracker: tracker}
}

func (h *ExportHistoryHandler) Query(ctx context.Context, msg ExportHistory) ([]export.ExportRecord, error) {
	if h == nil || h.Tracker == nil {
		return nil, errors.New("export tracker is required", errors.CategoryInternal).
			WithTextCode("TRACKER_REQUIRED")
	}
	return h.Tracker.List(ctx, msg.Filter)
}

// ArtifactMetadataHandler returns artifact metadata for a completed export.
type ArtifactMetadataHandler struct {
	Tracker export.ExportTracker
}

func NewArtifactMetadataHandler(tracker export.ExportTracker) *ArtifactMetadataHandler {
	return &ArtifactMetadataHandler{Tracker: tracker}
}

func (h *ArtifactMetadataHandler) Query(ctx context.Context, msg ArtifactMetadata) (export.ArtifactRef, error) {
	if h == nil || h.Tracker == nil {
		return export.ArtifactRef{}, errors.New("export tracker is required", errors.CategoryInternal).
			WithTextCode("TRACKER_REQUIRED")
	}

	record, err := h.Tracker.Status(ctx, msg.ExportID)
	if err != nil {
		return export.ArtifactRef{}, err
	}
	if record.State != export.StateCompleted || record.Artifact.Key == "" {
		return export.ArtifactRef{}, export.NewError(export.KindNotFound, "export has no stored artifact", nil)
	}
	return record.Artifact, nil
}
