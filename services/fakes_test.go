package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"sleuth-ingest/models"
	"sleuth-ingest/providers"
)

type fakeProvider struct {
	mu      sync.Mutex
	lookups map[string]providers.LookupResult
	details map[string]models.BibliographicRecord
	looked  []string
	fetched [][]string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) LookupPMIDByDOI(ctx context.Context, doi string) (providers.LookupResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.looked = append(f.looked, doi)
	if res, ok := f.lookups[doi]; ok {
		return res, nil
	}
	return providers.LookupResult{IDList: []string{}}, nil
}

func (f *fakeProvider) FetchDetails(ctx context.Context, pmids []string) ([]models.BibliographicRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, pmids)
	var out []models.BibliographicRecord
	for _, id := range pmids {
		if d, ok := f.details[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// fakeStore mimics the storage service: every ingested record becomes a base
// study with the versions configured in versions (keyed by DOI or PMID).
type fakeStore struct {
	mu       sync.Mutex
	versions map[string][]models.StudyVersion
	failOn   string

	ingested    []models.BaseStudyRecord
	analyses    []string
	studies     []string
	studySets   [][]string
	annotation  *models.AnnotationPayload
	project     *models.ProjectPayload
	nextID      int
	baseByStudy map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{versions: map[string][]models.StudyVersion{}, baseByStudy: map[string]string{}}
}

func (s *fakeStore) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s%d", prefix, s.nextID)
}

func (s *fakeStore) fail(op string) error {
	if s.failOn == op {
		return errors.New(op + " failed")
	}
	return nil
}

func (s *fakeStore) IngestBaseStudies(ctx context.Context, records []models.BaseStudyRecord) ([]models.BaseStudy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ingest"); err != nil {
		return nil, err
	}
	s.ingested = append(s.ingested, records...)
	out := make([]models.BaseStudy, len(records))
	for i, r := range records {
		bs := models.BaseStudy{ID: s.id("bs"), DOI: r.DOI, PMID: r.PMID, Name: r.Name}
		vs, ok := s.versions[r.DOI]
		if !ok {
			vs, ok = s.versions[r.PMID]
		}
		if !ok {
			vs = []models.StudyVersion{{ID: s.id("v"), User: "someone"}}
		}
		bs.Versions = vs
		for _, v := range vs {
			s.baseByStudy[v.ID] = bs.ID
		}
		out[i] = bs
	}
	return out, nil
}

func (s *fakeStore) CreateAnalysis(ctx context.Context, studyVersionID string, payload models.AnalysisPayload) (*models.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("analysis"); err != nil {
		return nil, err
	}
	s.analyses = append(s.analyses, studyVersionID+"/"+payload.Name)
	return &models.Analysis{ID: s.id("a"), Study: studyVersionID, Name: payload.Name}, nil
}

func (s *fakeStore) CreateStudyWithAnalyses(ctx context.Context, baseVersionID string, analyses []models.AnalysisPayload) (*models.Study, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("study"); err != nil {
		return nil, err
	}
	s.studies = append(s.studies, baseVersionID)
	st := &models.Study{ID: s.id("s"), BaseStudy: s.baseByStudy[baseVersionID]}
	for range analyses {
		st.Analyses = append(st.Analyses, models.AnalysisRef{ID: s.id("a")})
	}
	return st, nil
}

func (s *fakeStore) CreateStudyset(ctx context.Context, name, description string, studyIDs []string) (*models.Studyset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("studyset"); err != nil {
		return nil, err
	}
	s.studySets = append(s.studySets, studyIDs)
	return &models.Studyset{ID: "ss1", Name: name, Studies: studyIDs}, nil
}

func (s *fakeStore) CreateAnnotation(ctx context.Context, payload models.AnnotationPayload) (*models.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("annotation"); err != nil {
		return nil, err
	}
	s.annotation = &payload
	return &models.Annotation{ID: "an1", Studyset: payload.Studyset}, nil
}

func (s *fakeStore) CreateProject(ctx context.Context, payload models.ProjectPayload) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("project"); err != nil {
		return nil, err
	}
	s.project = &payload
	return &models.Project{ID: "p1", Name: payload.Name}, nil
}
