package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"sleuth-ingest/batch"
	"sleuth-ingest/models"
)

// BaseStudyIndex finds ingested base studies by DOI or PMID and by the ID of
// any of their versions.
type BaseStudyIndex struct {
	studies []*models.BaseStudy
}

// NewBaseStudyIndex indexes the bulk ingestion response.
func NewBaseStudyIndex(studies []models.BaseStudy) *BaseStudyIndex {
	idx := &BaseStudyIndex{}
	for i := range studies {
		s := studies[i]
		idx.studies = append(idx.studies, &s)
	}
	return idx
}

// Find returns the base study with the given DOI or, failing that, PMID.
func (idx *BaseStudyIndex) Find(doi, pmid string) *models.BaseStudy {
	for _, s := range idx.studies {
		if models.SameDOI(s.DOI, doi) {
			return s
		}
	}
	for _, s := range idx.studies {
		if models.SamePMID(s.PMID, pmid) {
			return s
		}
	}
	return nil
}

// ByVersion returns the base study owning the given study version.
func (idx *BaseStudyIndex) ByVersion(studyID string) *models.BaseStudy {
	for _, s := range idx.studies {
		for _, v := range s.Versions {
			if v.ID == studyID {
				return s
			}
		}
	}
	return nil
}

// ByID returns the base study with the given ID.
func (idx *BaseStudyIndex) ByID(id string) *models.BaseStudy {
	for _, s := range idx.studies {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// OwnedVersion returns the first version of s owned by userID.
func OwnedVersion(s *models.BaseStudy, userID string) *models.StudyVersion {
	if userID == "" {
		return nil
	}
	for i := range s.Versions {
		if s.Versions[i].User == userID {
			return &s.Versions[i]
		}
	}
	return nil
}

// SelectBestVersion picks the version new analyses are cloned from: the one
// with the most analyses, then the most recently updated, then the first.
func SelectBestVersion(versions []models.StudyVersion) *models.StudyVersion {
	var best *models.StudyVersion
	for i := range versions {
		v := &versions[i]
		if best == nil {
			best = v
			continue
		}
		switch {
		case len(v.Analyses) > len(best.Analyses):
			best = v
		case len(v.Analyses) == len(best.Analyses) && lastTouched(v).After(lastTouched(best)):
			best = v
		}
	}
	return best
}

func lastTouched(v *models.StudyVersion) time.Time {
	if v.UpdatedAt != nil {
		return *v.UpdatedAt
	}
	if v.CreatedAt != nil {
		return *v.CreatedAt
	}
	return time.Time{}
}

// CanonicalSpace maps the declared reference space to the storage service's
// identifiers. Unknown spaces pass through unchanged.
func CanonicalSpace(space string) string {
	s := strings.ToUpper(strings.TrimSpace(space))
	switch {
	case strings.HasPrefix(s, "MNI"):
		return "MNI"
	case s == "TAL" || strings.HasPrefix(s, "TALAIRACH"):
		return "TAL"
	}
	return space
}

// BuildAnalysis turns a stub into an analysis payload.
func BuildAnalysis(stub models.SleuthStub, space string) models.AnalysisPayload {
	canonical := CanonicalSpace(space)
	points := make([]models.Point, len(stub.Coordinates))
	for i, c := range stub.Coordinates {
		points[i] = models.Point{
			Coordinates: []float64{c.X, c.Y, c.Z},
			Space:       canonical,
			Order:       i,
		}
	}
	return models.AnalysisPayload{
		Name:     stub.AnalysisName,
		Metadata: models.AnalysisMetadata{Subjects: stub.Subjects},
		Points:   points,
	}
}

type placementKind int

const (
	createAnalysis placementKind = iota
	createStudy
)

// Placement is one request the ingester will send: either an analysis on a
// version the user owns, or a new study cloned from the best version.
type Placement struct {
	Kind      placementKind
	Base      *models.BaseStudy
	VersionID string
	Analyses  []models.AnalysisPayload
}

// IsNewStudy reports whether the placement creates a study.
func (p Placement) IsNewStudy() bool { return p.Kind == createStudy }

// Ingester attaches the experiments of an upload to ingested base studies.
type Ingester struct {
	Store     Store
	Logger    *zap.Logger
	UserID    string
	RateLimit int
}

// Plan decides per stub where its analysis goes. Analyses for base studies
// the user owns a version of are emitted immediately; the rest are grouped per
// base study, in first-seen order, after all stubs.
func (in *Ingester) Plan(upload *models.SleuthFileUpload, idx *BaseStudyIndex) ([]Placement, error) {
	var (
		out     []Placement
		order   []string
		pending = map[string]*Placement{}
	)
	for _, stub := range upload.SleuthStubs {
		base := idx.Find(stub.DOI, stub.PMID)
		if base == nil {
			return nil, fmt.Errorf("%w: doi=%q pmid=%q in %s", ErrNoBaseStudy, stub.DOI, stub.PMID, upload.FileName)
		}
		if len(base.Versions) == 0 {
			return nil, fmt.Errorf("%w: base study %s", ErrNoVersions, base.ID)
		}
		analysis := BuildAnalysis(stub, upload.Space)

		if v := OwnedVersion(base, in.UserID); v != nil {
			out = append(out, Placement{Kind: createAnalysis, Base: base, VersionID: v.ID, Analyses: []models.AnalysisPayload{analysis}})
			continue
		}
		p, ok := pending[base.ID]
		if !ok {
			p = &Placement{Kind: createStudy, Base: base}
			pending[base.ID] = p
			order = append(order, base.ID)
		}
		p.Analyses = append(p.Analyses, analysis)
	}
	for _, id := range order {
		p := pending[id]
		p.VersionID = SelectBestVersion(p.Base.Versions).ID
		out = append(out, *p)
	}
	return out, nil
}

// created is the raw outcome of one placement request.
type created struct {
	study    *models.Study
	analysis *models.Analysis
}

// IngestFile sends the placements of one upload and returns a link per
// created analysis. Versions created here are recorded as owned by the user,
// so later uploads of the same run add analyses to them.
func (in *Ingester) IngestFile(ctx context.Context, upload *models.SleuthFileUpload, idx *BaseStudyIndex, onProgress func(pct int)) ([]models.StudyAnalysisLink, error) {
	plan, err := in.Plan(upload, idx)
	if err != nil {
		return nil, err
	}
	log := in.Logger.With(zap.String("file", upload.FileName))
	log.Info("Sending analyses", zap.Int("requests", len(plan)), zap.Int("stubs", len(upload.SleuthStubs)))

	reqs := make([]batch.Request[created], len(plan))
	for i, p := range plan {
		p := p // per-iteration copy (go directive < 1.22)
		if p.IsNewStudy() {
			reqs[i] = func(ctx context.Context) (created, error) {
				s, err := in.Store.CreateStudyWithAnalyses(ctx, p.VersionID, p.Analyses)
				if err != nil {
					return created{}, err
				}
				if s.BaseStudy == "" {
					s.BaseStudy = p.Base.ID
				}
				return created{study: s}, nil
			}
			continue
		}
		reqs[i] = func(ctx context.Context) (created, error) {
			a, err := in.Store.CreateAnalysis(ctx, p.VersionID, p.Analyses[0])
			if err != nil {
				return created{}, err
			}
			if a.Study == "" {
				a.Study = p.VersionID
			}
			return created{analysis: a}, nil
		}
	}

	results, err := batch.Execute(ctx, reqs, batch.Options{RateLimit: in.RateLimit, OnProgress: onProgress})
	if err != nil {
		return nil, fmt.Errorf("create analyses for %s: %w", upload.FileName, err)
	}

	var links []models.StudyAnalysisLink
	for _, res := range results {
		if res.study != nil && res.study.BaseStudy != "" {
			base := idx.ByID(res.study.BaseStudy)
			doi, pmid := res.study.DOI, res.study.PMID
			if base != nil {
				setIfEmpty(&doi, base.DOI)
				setIfEmpty(&pmid, base.PMID)
				base.Versions = append(base.Versions, models.StudyVersion{ID: res.study.ID, User: in.UserID})
			}
			for _, a := range res.study.Analyses {
				links = append(links, models.StudyAnalysisLink{StudyID: res.study.ID, AnalysisID: a.ID, DOI: doi, PMID: pmid})
			}
			continue
		}
		if res.analysis == nil {
			continue
		}
		link := models.StudyAnalysisLink{StudyID: res.analysis.Study, AnalysisID: res.analysis.ID}
		if base := idx.ByVersion(res.analysis.Study); base != nil {
			link.DOI, link.PMID = base.DOI, base.PMID
		}
		links = append(links, link)
	}
	analysesImportedCounter.Add(float64(len(links)))
	coordinatesImportedCounter.Add(float64(upload.CoordinateCount()))
	log.Info("Analyses created", zap.Int("analyses", len(links)))
	return links, nil
}
