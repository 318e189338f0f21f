package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"sleuth-ingest/models"
)

// ErrRunNotFound is returned by RunTracker.Get for unknown IDs.
var ErrRunNotFound = errors.New("import run not found")

// RunTracker persists the state of import runs.
type RunTracker struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewRunTracker creates a tracker on db.
func NewRunTracker(db *gorm.DB, logger *zap.Logger) *RunTracker {
	return &RunTracker{DB: db, Logger: logger}
}

// Start inserts a running record and returns it.
func (t *RunTracker) Start(ctx context.Context, name string, fileNames []string) (*models.ImportRun, error) {
	run := &models.ImportRun{
		ID:        uuid.NewString(),
		Name:      name,
		FileNames: strings.Join(fileNames, "\n"),
		Status:    models.RunStatusRunning,
	}
	if err := t.DB.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("create import run: %w", err)
	}
	return run, nil
}

// Progress stores the latest progress of a running import. Older values
// never overwrite newer ones.
func (t *RunTracker) Progress(ctx context.Context, id string, value int, text string) error {
	return t.DB.WithContext(ctx).Model(&models.ImportRun{}).
		Where("id = ? AND status = ? AND progress <= ?", id, models.RunStatusRunning, value).
		Updates(map[string]any{"progress": value, "progress_text": text}).Error
}

// Created records the ID of a remote resource created by the run.
func (t *RunTracker) Created(ctx context.Context, id, kind, resourceID string) error {
	var column string
	switch kind {
	case ResourceStudyset:
		column = "studyset_id"
	case ResourceAnnotation:
		column = "annotation_id"
	case ResourceProject:
		column = "project_id"
	default:
		return fmt.Errorf("unknown resource kind %q", kind)
	}
	return t.DB.WithContext(ctx).Model(&models.ImportRun{}).
		Where("id = ?", id).
		Update(column, resourceID).Error
}

// Complete marks the run completed and stores its per-file summary.
func (t *RunTracker) Complete(ctx context.Context, id string, res *ImportResult) error {
	summary, err := json.Marshal(res.Files)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return t.DB.WithContext(ctx).Model(&models.ImportRun{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        models.RunStatusCompleted,
			"progress":      100,
			"progress_text": "complete",
			"studyset_id":   res.StudysetID,
			"annotation_id": res.AnnotationID,
			"project_id":    res.ProjectID,
			"summary":       string(summary),
		}).Error
}

// Fail marks the run failed. The last progress value is kept.
func (t *RunTracker) Fail(ctx context.Context, id string, cause error) error {
	return t.DB.WithContext(ctx).Model(&models.ImportRun{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": models.RunStatusFailed, "error": cause.Error()}).Error
}

// Get loads a run by ID.
func (t *RunTracker) Get(ctx context.Context, id string) (*models.ImportRun, error) {
	var run models.ImportRun
	if err := t.DB.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

// Prune deletes finished runs created before now minus olderThan and returns
// how many were removed. Running imports are kept.
func (t *RunTracker) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := t.DB.WithContext(ctx).
		Where("created_at < ? AND status <> ?", cutoff, models.RunStatusRunning).
		Delete(&models.ImportRun{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune import runs: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		t.Logger.Info("Pruned import runs", zap.Int64("deleted", res.RowsAffected), zap.Time("cutoff", cutoff))
	}
	return res.RowsAffected, nil
}
