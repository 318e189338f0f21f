package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sleuth-ingest/models"
)

func newTestTracker(t *testing.T) *RunTracker {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "runs.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ImportRun{}))
	return NewRunTracker(db, zap.NewNop())
}

func TestRunTracker_Lifecycle(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	run, err := tr.Start(ctx, "import", []string{"a.txt", "b.txt"})
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)

	require.NoError(t, tr.Progress(ctx, run.ID, 40, "files"))
	require.NoError(t, tr.Progress(ctx, run.ID, 20, "late update"))
	require.NoError(t, tr.Created(ctx, run.ID, ResourceStudyset, "ss1"))

	got, err := tr.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, got.Status)
	assert.Equal(t, 40, got.Progress)
	assert.Equal(t, "files", got.ProgressText)
	assert.Equal(t, "ss1", got.StudysetID)
	assert.Equal(t, "a.txt\nb.txt", got.FileNames)

	require.NoError(t, tr.Complete(ctx, run.ID, &ImportResult{
		ProjectID: "p1", StudysetID: "ss1", AnnotationID: "an1",
		Files: []FileSummary{{FileName: "a.txt", AnalysesImported: 2, CoordinatesImported: 5}},
	}))
	got, err = tr.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, "p1", got.ProjectID)
	assert.JSONEq(t, `[{"file_name":"a.txt","analyses_imported":2,"coordinates_imported":5}]`, got.Summary)
}

func TestRunTracker_Fail(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	run, err := tr.Start(ctx, "import", nil)
	require.NoError(t, err)
	require.NoError(t, tr.Progress(ctx, run.ID, 55, "files"))
	require.NoError(t, tr.Fail(ctx, run.ID, errors.New("boom")))

	got, err := tr.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
	assert.Equal(t, 55, got.Progress)

	require.NoError(t, tr.Progress(ctx, run.ID, 80, "after failure"))
	got, err = tr.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 55, got.Progress)
}

func TestRunTracker_UnknownKindAndMissingRun(t *testing.T) {
	tr := newTestTracker(t)
	assert.Error(t, tr.Created(context.Background(), "x", "dataset", "1"))
	_, err := tr.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRunTracker_Prune(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	require.NoError(t, tr.DB.Create(&models.ImportRun{ID: "old-done", CreatedAt: old, Status: models.RunStatusCompleted}).Error)
	require.NoError(t, tr.DB.Create(&models.ImportRun{ID: "old-running", CreatedAt: old, Status: models.RunStatusRunning}).Error)
	recent, err := tr.Start(ctx, "recent", nil)
	require.NoError(t, err)
	require.NoError(t, tr.Fail(ctx, recent.ID, errors.New("x")))

	n, err := tr.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = tr.Get(ctx, "old-done")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = tr.Get(ctx, "old-running")
	assert.NoError(t, err)
	_, err = tr.Get(ctx, recent.ID)
	assert.NoError(t, err)
}
