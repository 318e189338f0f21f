package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"sleuth-ingest/config"
	"sleuth-ingest/httpx"
	"sleuth-ingest/models"
	"sleuth-ingest/providers"
	"sleuth-ingest/providers/europepmc"
	"sleuth-ingest/providers/pubmed"
	"sleuth-ingest/sleuth"
)

// ErrNoUploads is returned when an import is started without files.
var ErrNoUploads = errors.New("no files to import")

// Kinds of remote resources reported through ImportRequest.OnCreated.
const (
	ResourceStudyset   = "studyset"
	ResourceAnnotation = "annotation"
	ResourceProject    = "project"
)

// ProgressFunc receives the overall pipeline progress (0-100) and a short
// description of the current stage.
type ProgressFunc func(value int, text string)

// ImportRequest describes one pipeline run.
type ImportRequest struct {
	Name        string
	Description string
	Uploads     []*models.SleuthFileUpload
	// OnCreated is called with the kind and ID of every top-level remote
	// resource right after it was created.
	OnCreated func(kind, id string)
}

// FileSummary reports what was imported from one file.
type FileSummary struct {
	FileName            string `json:"file_name"`
	AnalysesImported    int    `json:"analyses_imported"`
	CoordinatesImported int    `json:"coordinates_imported"`
}

// ImportResult is returned by a successful run.
type ImportResult struct {
	ProjectID    string        `json:"project_id"`
	StudysetID   string        `json:"studyset_id"`
	AnnotationID string        `json:"annotation_id"`
	Files        []FileSummary `json:"files"`
}

// ImportService runs the Sleuth import pipeline end to end.
type ImportService struct {
	Resolver *IdentifierResolver
	Ingester *Ingester
	Store    Store
	Logger   *zap.Logger
}

// progressTracker forwards progress updates and never lets the value go
// backwards.
type progressTracker struct {
	mu   sync.Mutex
	fn   ProgressFunc
	last int
	text string
}

func (p *progressTracker) set(value int, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	value = max(p.last, min(value, 100))
	if value == p.last && text == p.text {
		return
	}
	p.last, p.text = value, text
	if p.fn != nil {
		p.fn(value, text)
	}
}

// span maps a 0-100 sub-stage percentage onto [from, to].
func (p *progressTracker) span(from, to int, text string) func(pct int) {
	return func(pct int) {
		p.set(from+(to-from)*pct/100, text)
	}
}

// Run resolves identifiers, ingests base studies and analyses, then creates
// the studyset, annotation and project. Any failure stops the run; resources
// created up to that point are left in place.
func (s *ImportService) Run(ctx context.Context, req ImportRequest, progress ProgressFunc) (*ImportResult, error) {
	log := s.Logger.With(zap.String("import", req.Name), zap.Int("files", len(req.Uploads)))
	importRunsCounter.WithLabelValues("started").Inc()

	res, err := s.run(ctx, req, &progressTracker{fn: progress}, log)
	if err != nil {
		importRunsCounter.WithLabelValues(models.RunStatusFailed).Inc()
		log.Error("Import failed", zap.Error(err))
		return nil, err
	}
	importRunsCounter.WithLabelValues(models.RunStatusCompleted).Inc()
	log.Info("Import completed",
		zap.String("project_id", res.ProjectID),
		zap.String("studyset_id", res.StudysetID),
		zap.String("annotation_id", res.AnnotationID))
	return res, nil
}

func (s *ImportService) run(ctx context.Context, req ImportRequest, p *progressTracker, log *zap.Logger) (*ImportResult, error) {
	if len(req.Uploads) == 0 {
		return nil, ErrNoUploads
	}
	names := make([]string, len(req.Uploads))
	for i, u := range req.Uploads {
		names[i] = u.FileName
	}
	if err := sleuth.CheckFileKeys(names); err != nil {
		return nil, err
	}
	created := func(kind, id string) {
		if req.OnCreated != nil {
			req.OnCreated(kind, id)
		}
	}

	p.set(0, "Resolving study identifiers")
	records, err := s.Resolver.Resolve(ctx, sleuth.ToBaseStudies(req.Uploads), p.span(0, 20, "Resolving study identifiers"))
	if err != nil {
		return nil, fmt.Errorf("resolve identifiers: %w", err)
	}

	p.set(20, "Ingesting base studies")
	bases, err := s.Store.IngestBaseStudies(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("ingest base studies: %w", err)
	}
	log.Info("Base studies ingested", zap.Int("submitted", len(records)), zap.Int("returned", len(bases)))
	idx := NewBaseStudyIndex(bases)
	p.set(25, "Ingesting base studies")

	files := make([]FileLinks, 0, len(req.Uploads))
	summaries := make([]FileSummary, 0, len(req.Uploads))
	n := len(req.Uploads)
	for i, upload := range req.Uploads {
		text := fmt.Sprintf("Creating analyses for %s", upload.FileName)
		from, to := 25+60*i/n, 25+60*(i+1)/n
		p.set(from, text)
		links, err := s.Ingester.IngestFile(ctx, upload, idx, p.span(from, to, text))
		if err != nil {
			return nil, fmt.Errorf("ingest %s: %w", upload.FileName, err)
		}
		files = append(files, FileLinks{Upload: upload, Links: links})
		summaries = append(summaries, FileSummary{
			FileName:            upload.FileName,
			AnalysesImported:    len(links),
			CoordinatesImported: upload.CoordinateCount(),
		})
	}

	p.set(85, "Creating studyset")
	studyset, err := s.Store.CreateStudyset(ctx, req.Name, req.Description, UniqueStudyIDs(files))
	if err != nil {
		return nil, fmt.Errorf("create studyset: %w", err)
	}
	created(ResourceStudyset, studyset.ID)
	p.set(90, "Creating annotation")

	annotation, err := s.Store.CreateAnnotation(ctx, BuildAnnotation(
		req.Name+" Annotation", "Annotation generated from Sleuth files", studyset.ID, files))
	if err != nil {
		return nil, fmt.Errorf("create annotation: %w", err)
	}
	created(ResourceAnnotation, annotation.ID)
	p.set(95, "Creating project")

	project, err := s.Store.CreateProject(ctx, BuildProjectPayload(ProjectInput{
		Name:         req.Name,
		Description:  req.Description,
		StudysetID:   studyset.ID,
		AnnotationID: annotation.ID,
		Files:        files,
		Records:      records,
		Index:        idx,
	}))
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	created(ResourceProject, project.ID)
	p.set(100, "complete")

	return &ImportResult{
		ProjectID:    project.ID,
		StudysetID:   studyset.ID,
		AnnotationID: annotation.ID,
		Files:        summaries,
	}, nil
}

// NewImportService wires the pipeline stages from the configuration.
func NewImportService(cfg *config.Config, provider providers.Resolver, store Store, logger *zap.Logger) *ImportService {
	limit, delay := cfg.LookupLimits()
	return &ImportService{
		Resolver: &IdentifierResolver{
			Provider:  provider,
			Logger:    logger.Named("resolve"),
			RateLimit: limit,
			Delay:     delay,
			PageSize:  cfg.DetailsPageSize,
		},
		Ingester: &Ingester{
			Store:     store,
			Logger:    logger.Named("ingest"),
			UserID:    cfg.NeurostoreUserID,
			RateLimit: cfg.StoreRateLimit,
		},
		Store:  store,
		Logger: logger,
	}
}

// NewProvider returns the lookup provider selected by LOOKUP_PROVIDER.
func NewProvider(cfg *config.Config, logger *zap.Logger, client httpx.Doer) (providers.Resolver, error) {
	switch strings.ToLower(cfg.LookupProvider) {
	case "", "pubmed":
		return pubmed.NewFetcher(cfg, logger.Named("pubmed"), client), nil
	case "europepmc":
		return europepmc.NewFetcher(cfg, logger.Named("europepmc"), client), nil
	}
	return nil, fmt.Errorf("unknown lookup provider %q", cfg.LookupProvider)
}
