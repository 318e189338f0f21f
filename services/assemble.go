package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"sleuth-ingest/models"
	"sleuth-ingest/sleuth"
)

const (
	columnNotIncluded   = "not included"
	columnIncluded      = "included"
	extractionCompleted = "completed"
	sleuthSourceID      = "sleuth"
	sleuthSourceLabel   = "Sleuth"
	pubmedArticlePrefix = "https://pubmed.ncbi.nlm.nih.gov/"
	doiResolverPrefix   = "https://doi.org/"
)

// FileLinks pairs an upload with the analyses created from it.
type FileLinks struct {
	Upload *models.SleuthFileUpload
	Links  []models.StudyAnalysisLink
}

// UniqueStudyIDs returns every study ID referenced by the links, first
// occurrence first.
func UniqueStudyIDs(files []FileLinks) []string {
	seen := map[string]bool{}
	var ids []string
	for _, f := range files {
		for _, l := range f.Links {
			if l.StudyID == "" || seen[l.StudyID] {
				continue
			}
			seen[l.StudyID] = true
			ids = append(ids, l.StudyID)
		}
	}
	return ids
}

// BuildAnnotation returns an annotation with an inclusion column plus one
// boolean column per file. Every note carries every key.
func BuildAnnotation(name, description, studysetID string, files []FileLinks) models.AnnotationPayload {
	keys := make([]string, len(files))
	noteKeys := map[string]string{sleuth.IncludedNoteKey: "boolean"}
	for i, f := range files {
		keys[i] = sleuth.SanitizeFileKey(f.Upload.FileName)
		noteKeys[keys[i]] = "boolean"
	}

	notes := []models.AnnotationNote{}
	for i, f := range files {
		for _, l := range f.Links {
			note := map[string]bool{sleuth.IncludedNoteKey: true}
			for _, k := range keys {
				note[k] = false
			}
			note[keys[i]] = true
			notes = append(notes, models.AnnotationNote{Study: l.StudyID, Analysis: l.AnalysisID, Note: note})
		}
	}
	return models.AnnotationPayload{
		Name:        name,
		Description: description,
		Studyset:    studysetID,
		NoteKeys:    noteKeys,
		Notes:       notes,
	}
}

// ProjectInput is everything the project payload is built from.
type ProjectInput struct {
	Name         string
	Description  string
	StudysetID   string
	AnnotationID string
	Files        []FileLinks
	// Records are the resolved base studies, used for curation stub details.
	Records []models.BaseStudyRecord
	Index   *BaseStudyIndex
	// NewID generates curation IDs. Defaults to random UUIDs.
	NewID func() string
}

// BuildProjectPayload assembles the project provenance: a curation board
// whose included column holds one stub per unique paper, tagged with every
// file that references it, and an extraction block marking every created
// study completed.
func BuildProjectPayload(in ProjectInput) models.ProjectPayload {
	newID := in.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	source := models.IdentificationSource{ID: sleuthSourceID, Label: sleuthSourceLabel}

	tags := make([]models.Tag, len(in.Files))
	for i, f := range in.Files {
		tags[i] = models.Tag{ID: newID(), Label: f.Upload.FileName, IsAssignable: true}
	}

	var (
		stubs []models.CurationStub
		pos   = map[string]int{}
	)
	for i, f := range in.Files {
		for _, s := range f.Upload.SleuthStubs {
			rec := findRecord(in.Records, s.DOI, s.PMID)
			key := paperKey(rec, s)
			if j, ok := pos[key]; ok {
				stubs[j].Tags = appendTag(stubs[j].Tags, tags[i])
				continue
			}
			// a stub can share its DOI with one paper and its PMID with another
			if j, ok := pos[pmidKey(rec, s)]; ok {
				stubs[j].Tags = appendTag(stubs[j].Tags, tags[i])
				continue
			}
			cs := curationStub(rec, s, newID(), source)
			cs.Tags = []models.Tag{tags[i]}
			if in.Index != nil {
				if base := in.Index.Find(cs.DOI, cs.PMID); base != nil {
					cs.NeurostoreID = base.ID
				}
			}
			stubs = append(stubs, cs)
			pos[key] = len(stubs) - 1
			if k := pmidKey(rec, s); k != "" {
				pos[k] = len(stubs) - 1
			}
		}
	}
	if stubs == nil {
		stubs = []models.CurationStub{}
	}

	statuses := []models.StudyStatus{}
	for _, id := range UniqueStudyIDs(in.Files) {
		statuses = append(statuses, models.StudyStatus{ID: id, Status: extractionCompleted})
	}

	return models.ProjectPayload{
		Name:        in.Name,
		Description: in.Description,
		Studyset:    in.StudysetID,
		Annotation:  in.AnnotationID,
		Provenance: models.Provenance{
			CurationMetadata: models.CurationMetadata{
				Columns: []models.CurationColumn{
					{ID: newID(), Name: columnNotIncluded, StubStudies: []models.CurationStub{}},
					{ID: newID(), Name: columnIncluded, StubStudies: stubs},
				},
				InfoTags:              tags,
				ExclusionTags:         []models.Tag{},
				IdentificationSources: []models.IdentificationSource{source},
			},
			ExtractionMetadata: models.ExtractionMetadata{
				StudysetID:      in.StudysetID,
				AnnotationID:    in.AnnotationID,
				StudyStatusList: statuses,
			},
			MetaAnalysisMetadata: models.MetaAnalysisMetadata{CanEditMetaAnalyses: true},
		},
	}
}

func findRecord(records []models.BaseStudyRecord, doi, pmid string) *models.BaseStudyRecord {
	for i := range records {
		if models.SameDOI(records[i].DOI, doi) {
			return &records[i]
		}
	}
	for i := range records {
		if models.SamePMID(records[i].PMID, pmid) {
			return &records[i]
		}
	}
	return nil
}

func paperKey(rec *models.BaseStudyRecord, s models.SleuthStub) string {
	if rec != nil {
		return rec.Key()
	}
	if s.DOI != "" {
		return "doi:" + strings.ToLower(s.DOI)
	}
	return "pmid:" + s.PMID
}

func pmidKey(rec *models.BaseStudyRecord, s models.SleuthStub) string {
	pmid := s.PMID
	if rec != nil && rec.PMID != "" {
		pmid = rec.PMID
	}
	if pmid == "" {
		return ""
	}
	return "pmid:" + pmid
}

func appendTag(tags []models.Tag, t models.Tag) []models.Tag {
	for _, have := range tags {
		if have.ID == t.ID {
			return tags
		}
	}
	return append(tags, t)
}

func curationStub(rec *models.BaseStudyRecord, s models.SleuthStub, id string, source models.IdentificationSource) models.CurationStub {
	cs := models.CurationStub{
		ID:                   id,
		DOI:                  s.DOI,
		PMID:                 s.PMID,
		Authors:              s.AuthorYearString,
		IdentificationSource: source,
	}
	if rec != nil {
		cs.Title = rec.Name
		cs.Authors = firstNonEmpty(rec.Authors, cs.Authors)
		cs.DOI = firstNonEmpty(rec.DOI, cs.DOI)
		cs.PMID = firstNonEmpty(rec.PMID, cs.PMID)
		cs.PMCID = rec.PMCID
		cs.Journal = rec.Publication
		cs.AbstractText = rec.Description
		if rec.Year != nil {
			cs.ArticleYear = strconv.Itoa(*rec.Year)
		}
	}
	switch {
	case cs.PMID != "":
		cs.ArticleLink = pubmedArticlePrefix + cs.PMID
	case cs.DOI != "":
		cs.ArticleLink = doiResolverPrefix + cs.DOI
	}
	if cs.Title == "" {
		cs.Title = fmt.Sprintf("%s (%s)", s.AuthorYearString, firstNonEmpty(cs.DOI, cs.PMID))
	}
	return cs
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
