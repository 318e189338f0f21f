package neurostore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sleuth-ingest/config"
	"sleuth-ingest/httpx"
	"sleuth-ingest/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := &config.Config{
		NeurostoreBaseURL: srv.URL + "/api/",
		ComposeBaseURL:    srv.URL + "/compose",
		NeurostoreToken:   "tok",
	}
	return NewClient(cfg, zap.NewNop(), srv.Client())
}

func TestIngestBaseStudies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/base-studies/", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in []models.BaseStudyRecord
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		require.Len(t, in, 1)
		assert.Equal(t, "10.1/x", in[0].DOI)

		io.WriteString(w, `[{"id":"bs1","doi":"10.1/x","pmid":"","versions":[
			{"id":"s1","user":"u1","analyses":["a1","a2"],"updated_at":"2023-05-10T12:00:00Z"},
			{"id":"s2","user":"u2","analyses":[{"id":"a3","name":"n"}]}]}]`)
	})

	out, err := c.IngestBaseStudies(context.Background(), []models.BaseStudyRecord{{DOI: "10.1/x"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	bs := out[0]
	assert.Equal(t, "bs1", bs.ID)
	require.Len(t, bs.Versions, 2)
	assert.Equal(t, []models.AnalysisRef{{ID: "a1"}, {ID: "a2"}}, bs.Versions[0].Analyses)
	assert.Equal(t, []models.AnalysisRef{{ID: "a3", Name: "n"}}, bs.Versions[1].Analyses)
	require.NotNil(t, bs.Versions[0].UpdatedAt)
	assert.Equal(t, 2023, bs.Versions[0].UpdatedAt.Year())
}

func TestCreateAnalysis(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/analyses/", r.URL.Path)
		var in models.AnalysisPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "s1", in.Study)
		assert.Equal(t, 12, in.Metadata.Subjects)
		require.Len(t, in.Points, 1)
		assert.Equal(t, "MNI", in.Points[0].Space)
		io.WriteString(w, `{"id":"a9","study":"s1","name":"A"}`)
	})

	a, err := c.CreateAnalysis(context.Background(), "s1", models.AnalysisPayload{
		Name:     "A",
		Metadata: models.AnalysisMetadata{Subjects: 12},
		Points:   []models.Point{{Coordinates: []float64{1, 2, 3}, Space: "MNI"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "a9", a.ID)
	assert.Equal(t, "s1", a.Study)
}

func TestCreateStudyWithAnalyses(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/studies/", r.URL.Path)
		assert.Equal(t, "v1", r.URL.Query().Get("source_id"))
		var in struct {
			Analyses []models.AnalysisPayload `json:"analyses"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Len(t, in.Analyses, 2)
		io.WriteString(w, `{"id":"s5","base_study":"bs1","analyses":["x","y"]}`)
	})

	s, err := c.CreateStudyWithAnalyses(context.Background(), "v1", []models.AnalysisPayload{{Name: "a"}, {Name: "b"}})
	require.NoError(t, err)
	assert.Equal(t, "bs1", s.BaseStudy)
	assert.Equal(t, []models.AnalysisRef{{ID: "x"}, {ID: "y"}}, s.Analyses)
}

func TestCreateStudysetAnnotationProject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/studysets/":
			io.WriteString(w, `{"id":"ss1","name":"n","studies":["s1"]}`)
		case "/api/annotations/":
			var in models.AnnotationPayload
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, "ss1", in.Studyset)
			assert.Equal(t, "boolean", in.NoteKeys["included"])
			io.WriteString(w, `{"id":"an1","studyset":"ss1"}`)
		case "/compose/projects":
			var in models.ProjectPayload
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.True(t, in.Provenance.MetaAnalysisMetadata.CanEditMetaAnalyses)
			io.WriteString(w, `{"id":"p1","name":"proj"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	ss, err := c.CreateStudyset(ctx, "n", "d", []string{"s1"})
	require.NoError(t, err)
	assert.Equal(t, "ss1", ss.ID)

	an, err := c.CreateAnnotation(ctx, models.AnnotationPayload{Studyset: "ss1", NoteKeys: map[string]string{"included": "boolean"}})
	require.NoError(t, err)
	assert.Equal(t, "an1", an.ID)

	p, err := c.CreateProject(ctx, models.ProjectPayload{
		Name:       "proj",
		Provenance: models.Provenance{MetaAnalysisMetadata: models.MetaAnalysisMetadata{CanEditMetaAnalyses: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
}

func TestPost_StatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"detail":"not allowed"}`)
	})

	_, err := c.CreateStudyset(context.Background(), "n", "d", nil)
	require.Error(t, err)
	var se *httpx.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
	assert.Contains(t, se.Body, "not allowed")
}
