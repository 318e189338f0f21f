package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"sleuth-ingest/models"
)

// Archiver keeps a copy of uploaded files. *storage.Archiver implements it.
type Archiver interface {
	Archive(ctx context.Context, runID, fileName string, data []byte) (string, error)
}

// Upload is a validated file together with its raw content.
type Upload struct {
	File *models.SleuthFileUpload
	Raw  []byte
}

// Runner starts pipeline runs in the background and records their state.
type Runner struct {
	Service  *ImportService
	Tracker  *RunTracker
	Archiver Archiver
	Logger   *zap.Logger

	wg sync.WaitGroup
}

// Launch records a new run, archives the raw uploads and starts the pipeline
// in its own goroutine. The returned run is in the running state.
func (r *Runner) Launch(ctx context.Context, name, description string, uploads []Upload) (*models.ImportRun, error) {
	fileNames := make([]string, len(uploads))
	files := make([]*models.SleuthFileUpload, len(uploads))
	for i, u := range uploads {
		fileNames[i] = u.File.FileName
		files[i] = u.File
	}
	run, err := r.Tracker.Start(ctx, name, fileNames)
	if err != nil {
		return nil, err
	}
	log := r.Logger.With(zap.String("run_id", run.ID))

	if r.Archiver != nil {
		for _, u := range uploads {
			if _, err := r.Archiver.Archive(ctx, run.ID, u.File.FileName, u.Raw); err != nil {
				// archiving is best effort
				log.Warn("Failed to archive upload", zap.String("file", u.File.FileName), zap.Error(err))
			}
		}
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(run.ID, ImportRequest{Name: name, Description: description, Uploads: files}, log)
	}()
	return run, nil
}

func (r *Runner) execute(runID string, req ImportRequest, log *zap.Logger) {
	// the request context ends with the HTTP response
	ctx := context.Background()
	req.OnCreated = func(kind, id string) {
		if err := r.Tracker.Created(ctx, runID, kind, id); err != nil {
			log.Warn("Failed to record created resource", zap.String("kind", kind), zap.Error(err))
		}
	}
	progress := func(value int, text string) {
		if err := r.Tracker.Progress(ctx, runID, value, text); err != nil {
			log.Warn("Failed to record progress", zap.Error(err))
		}
	}

	res, err := r.Service.Run(ctx, req, progress)
	if err != nil {
		if ferr := r.Tracker.Fail(ctx, runID, err); ferr != nil {
			log.Error("Failed to mark run failed", zap.Error(ferr))
		}
		return
	}
	if err := r.Tracker.Complete(ctx, runID, res); err != nil {
		log.Error("Failed to mark run completed", zap.Error(err))
	}
}

// Wait blocks until every launched run has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
