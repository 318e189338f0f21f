package models

import "strings"

// BaseStudyRecord is a normalized candidate for bulk ingestion into the
// storage service. Dedup key is DOI if present, else PMID.
type BaseStudyRecord struct {
	Name        string `json:"name"`
	DOI         string `json:"doi"`
	PMID        string `json:"pmid"`
	PMCID       string `json:"pmcid"`
	Year        *int   `json:"year,omitempty"`
	Description string `json:"description"`
	Publication string `json:"publication"`
	Authors     string `json:"authors"`
}

// Key returns the dedup key of the record.
func (r BaseStudyRecord) Key() string {
	if r.DOI != "" {
		return "doi:" + strings.ToLower(r.DOI)
	}
	return "pmid:" + r.PMID
}

// BibliographicRecord holds metadata returned by a bibliographic provider for a PMID.
type BibliographicRecord struct {
	PMID     string `json:"pmid"`
	PMCID    string `json:"pmcid,omitempty"`
	DOI      string `json:"doi,omitempty"`
	Title    string `json:"title"`
	Abstract string `json:"abstract,omitempty"`
	Authors  string `json:"authors,omitempty"`
	Journal  string `json:"journal,omitempty"`
	Year     *int   `json:"year,omitempty"`
}

// StudyAnalysisLink ties an analysis created in the storage service back to
// the paper it came from.
type StudyAnalysisLink struct {
	StudyID    string `json:"study_id"`
	AnalysisID string `json:"analysis_id"`
	DOI        string `json:"doi"`
	PMID       string `json:"pmid"`
}

// SameDOI compares DOIs case-insensitively; empty never matches.
func SameDOI(a, b string) bool {
	return a != "" && b != "" && strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// SamePMID compares PMIDs; empty never matches.
func SamePMID(a, b string) bool {
	return a != "" && b != "" && strings.TrimSpace(a) == strings.TrimSpace(b)
}
