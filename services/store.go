package services

import (
	"context"
	"errors"

	"sleuth-ingest/models"
)

var (
	// ErrNoBaseStudy means a stub has no counterpart in the bulk ingestion
	// response.
	ErrNoBaseStudy = errors.New("no corresponding base study found")
	// ErrNoVersions means an ingested base study came back without versions.
	ErrNoVersions = errors.New("no versions found")
)

// Store is the part of the storage and project services the pipeline uses.
// *neurostore.Client implements it.
type Store interface {
	IngestBaseStudies(ctx context.Context, records []models.BaseStudyRecord) ([]models.BaseStudy, error)
	CreateAnalysis(ctx context.Context, studyVersionID string, payload models.AnalysisPayload) (*models.Analysis, error)
	CreateStudyWithAnalyses(ctx context.Context, baseVersionID string, analyses []models.AnalysisPayload) (*models.Study, error)
	CreateStudyset(ctx context.Context, name, description string, studyIDs []string) (*models.Studyset, error)
	CreateAnnotation(ctx context.Context, payload models.AnnotationPayload) (*models.Annotation, error)
	CreateProject(ctx context.Context, payload models.ProjectPayload) (*models.Project, error)
}
