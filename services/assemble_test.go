package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sleuth-ingest/models"
)

func twoFiles() []FileLinks {
	a := &models.SleuthFileUpload{FileName: "first.txt", SleuthStubs: []models.SleuthStub{
		stub("10.1/x", "", "one"),
		stub("", "42", "two"),
	}}
	b := &models.SleuthFileUpload{FileName: "second.v2.txt", SleuthStubs: []models.SleuthStub{
		stub("10.1/X", "", "three"),
	}}
	return []FileLinks{
		{Upload: a, Links: []models.StudyAnalysisLink{
			{StudyID: "s1", AnalysisID: "a1", DOI: "10.1/x"},
			{StudyID: "s2", AnalysisID: "a2", PMID: "42"},
		}},
		{Upload: b, Links: []models.StudyAnalysisLink{
			{StudyID: "s1", AnalysisID: "a3", DOI: "10.1/x"},
		}},
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id%d", n)
	}
}

func TestUniqueStudyIDs(t *testing.T) {
	assert.Equal(t, []string{"s1", "s2"}, UniqueStudyIDs(twoFiles()))
}

func TestBuildAnnotation(t *testing.T) {
	ann := BuildAnnotation("n", "d", "ss1", twoFiles())
	assert.Equal(t, "ss1", ann.Studyset)
	assert.Equal(t, map[string]string{
		"included":    "boolean",
		"firsttxt":    "boolean",
		"secondv2txt": "boolean",
	}, ann.NoteKeys)

	require.Len(t, ann.Notes, 3)
	for _, n := range ann.Notes {
		assert.Len(t, n.Note, 3, "every note carries every key")
		assert.True(t, n.Note["included"])
	}
	assert.Equal(t, "a1", ann.Notes[0].Analysis)
	assert.True(t, ann.Notes[0].Note["firsttxt"])
	assert.False(t, ann.Notes[0].Note["secondv2txt"])
	assert.Equal(t, "a3", ann.Notes[2].Analysis)
	assert.False(t, ann.Notes[2].Note["firsttxt"])
	assert.True(t, ann.Notes[2].Note["secondv2txt"])
}

func TestBuildProjectPayload(t *testing.T) {
	records := []models.BaseStudyRecord{
		{DOI: "10.1/x", PMID: "7", Name: "Paper X", Year: intPtr(2010), Publication: "NeuroImage"},
		{PMID: "42"},
	}
	idx := NewBaseStudyIndex([]models.BaseStudy{{ID: "bsx", DOI: "10.1/x"}, {ID: "bs42", PMID: "42"}})

	p := BuildProjectPayload(ProjectInput{
		Name:         "proj",
		Description:  "desc",
		StudysetID:   "ss1",
		AnnotationID: "an1",
		Files:        twoFiles(),
		Records:      records,
		Index:        idx,
		NewID:        sequentialIDs(),
	})

	assert.Equal(t, "ss1", p.Studyset)
	assert.Equal(t, "an1", p.Annotation)
	assert.True(t, p.Provenance.MetaAnalysisMetadata.CanEditMetaAnalyses)

	cur := p.Provenance.CurationMetadata
	require.Len(t, cur.Columns, 2)
	assert.Equal(t, "not included", cur.Columns[0].Name)
	assert.Empty(t, cur.Columns[0].StubStudies)
	assert.Equal(t, "included", cur.Columns[1].Name)
	require.Len(t, cur.InfoTags, 2)
	assert.Equal(t, "first.txt", cur.InfoTags[0].Label)

	stubs := cur.Columns[1].StubStudies
	require.Len(t, stubs, 2)
	x := stubs[0]
	assert.Equal(t, "Paper X", x.Title)
	assert.Equal(t, "7", x.PMID)
	assert.Equal(t, "2010", x.ArticleYear)
	assert.Equal(t, "NeuroImage", x.Journal)
	assert.Equal(t, "bsx", x.NeurostoreID)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/7", x.ArticleLink)
	assert.Equal(t, cur.InfoTags, x.Tags, "tagged with both files")

	assert.Equal(t, "42", stubs[1].PMID)
	assert.Equal(t, "bs42", stubs[1].NeurostoreID)
	assert.Equal(t, []models.Tag{cur.InfoTags[0]}, stubs[1].Tags)

	ext := p.Provenance.ExtractionMetadata
	assert.Equal(t, []models.StudyStatus{{ID: "s1", Status: "completed"}, {ID: "s2", Status: "completed"}}, ext.StudyStatusList)
}
