// Package trackerbun records PDF export history in a Bun-backed database.
package trackerbun

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/peter-gy/marimo/export"
	"github.com/uptrace/bun"
)

// Tracker stores export lifecycle records.
type Tracker struct {
	DB          *bun.DB
	Now         func() time.Time
	IDGenerator func() string
}

// NewTracker creates a Bun-backed export tracker.
func NewTracker(db *bun.DB) *Tracker {
	return &Tracker{DB: db, Now: time.Now, IDGenerator: uuid.NewString}
}

var _ export.ExportTracker = (*Tracker)(nil)

// CreateTable creates the export history table when it does not exist.
func (t *Tracker) CreateTable(ctx context.Context) error {
	if t == nil || t.DB == nil {
		return export.NewError(export.KindNotImpl, "tracker database not configured", nil)
	}
	_, err := t.DB.NewCreateTable().Model((*recordModel)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Start inserts a new export record and returns its id.
func (t *Tracker) Start(ctx context.Context, record export.ExportRecord) (string, error) {
	if t == nil || t.DB == nil {
		return "", export.NewError(export.KindNotImpl, "tracker database not configured", nil)
	}
	if record.ID == "" {
		record.ID = t.nextID()
	}
	if record.State == "" {
		record.State = export.StateQueued
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = t.now()
	}
	if record.State == export.StateRunning && record.StartedAt.IsZero() {
		record.StartedAt = t.now()
	}

	model, err := modelFromRecord(record)
	if err != nil {
		return "", err
	}
	if _, err := t.DB.NewInsert().Model(&model).Exec(ctx); err != nil {
		return "", err
	}
	return record.ID, nil
}

// Complete marks the export as completed and stores the artifact reference.
func (t *Tracker) Complete(ctx context.Context, id string, artifact export.ArtifactRef) error {
	if t == nil || t.DB == nil {
		return export.NewError(export.KindNotImpl, "tracker database not configured", nil)
	}
	if id == "" {
		return export.NewError(export.KindValidation, "export id is required", nil)
	}

	meta, err := json.Marshal(artifact.Meta)
	if err != nil {
		return err
	}

	res, err := t.DB.NewUpdate().Model((*recordModel)(nil)).
		Set("state = ?", export.StateCompleted).
		Set("error = ''").
		Set("artifact_key = ?", artifact.Key).
		Set("artifact_meta = ?", meta).
		Set("completed_at = COALESCE(completed_at, ?)", t.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

// Fail marks the export as failed and records the cause.
func (t *Tracker) Fail(ctx context.Context, id string, cause error) error {
	if t == nil || t.DB == nil {
		return export.NewError(export.KindNotImpl, "tracker database not configured", nil)
	}
	if id == "" {
		return export.NewError(export.KindValidation, "export id is required", nil)
	}

	message := ""
	if cause != nil {
		message = cause.Error()
	}

	res, err := t.DB.NewUpdate().Model((*recordModel)(nil)).
		Set("state = ?", export.StateFailed).
		Set("error = ?", message).
		Set("completed_at = COALESCE(completed_at, ?)", t.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

// Status returns a record by id.
func (t *Tracker) Status(ctx context.Context, id string) (export.ExportRecord, error) {
	if t == nil || t.DB == nil {
		return export.ExportRecord{}, export.NewError(export.KindNotImpl, "tracker database not configured", nil)
	}
	if id == "" {
		return export.ExportRecord{}, export.NewError(export.KindValidation, "export id is required", nil)
	}

	model := new(recordModel)
	err := t.DB.NewSelect().Model(model).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return export.ExportRecord{}, export.NewError(export.KindNotFound, fmt.Sprintf("export %q not found", id), nil)
		}
		return export.ExportRecord{}, err
	}
	return model.toRecord()
}

// List returns records matching a filter, newest first.
func (t *Tracker) List(ctx context.Context, filter export.ExportFilter) ([]export.ExportRecord, error) {
	if t == nil || t.DB == nil {
		return nil, export.NewError(export.KindNotImpl, "tracker database not configured", nil)
	}

	models := make([]recordModel, 0)
	query := t.DB.NewSelect().Model(&models)
	if filter.Filename != "" {
		query = query.Where("filename = ?", filter.Filename)
	}
	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		query = query.Where("created_at <= ?", filter.Until)
	}
	query = query.Order("created_at DESC")

	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	records := make([]export.ExportRecord, 0, len(models))
	for _, model := range models {
		record, err := model.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// Delete removes a record from the history.
func (t *Tracker) Delete(ctx context.Context, id string) error {
	if t == nil || t.DB == nil {
		return export.NewError(export.KindNotImpl, "tracker database not configured", nil)
	}
	if id == "" {
		return export.NewError(export.KindValidation, "export id is required", nil)
	}

	res, err := t.DB.NewDelete().Model((*recordModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

type recordModel struct {
	bun.BaseModel `bun:"table:pdf_exports,alias:pdf_exports"`

	ID           string    `bun:",pk"`
	Filename     string    `bun:",notnull"`
	Preset       string    `bun:",notnull"`
	State        string    `bun:",notnull"`
	Error        string    `bun:"error"`
	ArtifactKey  string    `bun:"artifact_key"`
	ArtifactMeta []byte    `bun:"artifact_meta"`
	CreatedAt    time.Time `bun:"created_at"`
	StartedAt    time.Time `bun:"started_at,nullzero"`
	CompletedAt  time.Time `bun:"completed_at,nullzero"`
}

func modelFromRecord(record export.ExportRecord) (recordModel, error) {
	meta, err := json.Marshal(record.Artifact.Meta)
	if err != nil {
		return recordModel{}, err
	}

	return recordModel{
		ID:           record.ID,
		Filename:     record.Filename,
		Preset:       string(record.Preset),
		State:        string(record.State),
		Error:        record.Error,
		ArtifactKey:  record.Artifact.Key,
		ArtifactMeta: meta,
		CreatedAt:    record.CreatedAt,
		StartedAt:    record.StartedAt,
		CompletedAt:  record.CompletedAt,
	}, nil
}

func (m recordModel) toRecord() (export.ExportRecord, error) {
	record := export.ExportRecord{
		ID:       m.ID,
		Filename: m.Filename,
		Preset:   export.PDFPreset(m.Preset),
		State:    export.ExportState(m.State),
		Error:    m.Error,
		Artifact: export.ArtifactRef{
			Key: m.ArtifactKey,
		},
		CreatedAt:   m.CreatedAt,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
	}

	if len(m.ArtifactMeta) > 0 {
		if err := json.Unmarshal(m.ArtifactMeta, &record.Artifact.Meta); err != nil {
			return export.ExportRecord{}, err
		}
	}
	return record, nil
}

func requireAffected(res sql.Result, id string) error {
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return export.NewError(export.KindNotFound, fmt.Sprintf("export %q not found", id), nil)
	}
	return nil
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *Tracker) nextID() string {
	if t.IDGenerator != nil {
		return t.IDGenerator()
	}
	return uuid.NewString()
}
