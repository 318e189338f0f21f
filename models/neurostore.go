package models

import (
	"time"

	"github.com/segmentio/encoding/json"
)

// StudyVersion is one user's copy of a base study in the storage service.
type StudyVersion struct {
	ID        string        `json:"id"`
	User      string        `json:"user"`
	Analyses  []AnalysisRef `json:"analyses,omitempty"`
	CreatedAt *time.Time    `json:"created_at,omitempty"`
	UpdatedAt *time.Time    `json:"updated_at,omitempty"`
}

// BaseStudy is returned by bulk ingestion. It groups every version of a paper.
type BaseStudy struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	DOI      string         `json:"doi"`
	PMID     string         `json:"pmid"`
	Versions []StudyVersion `json:"versions"`
}

// AnalysisRef accepts either a bare analysis ID or a nested analysis object.
type AnalysisRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

func (a *AnalysisRef) UnmarshalJSON(b []byte) error {
	var id string
	if err := json.Unmarshal(b, &id); err == nil {
		a.ID = id
		return nil
	}
	type plain AnalysisRef
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*a = AnalysisRef(p)
	return nil
}

// Point is a coordinate attached to an analysis.
type Point struct {
	Coordinates []float64 `json:"coordinates"`
	Space       string    `json:"space"`
	Order       int       `json:"order"`
}

// AnalysisMetadata carries per-analysis metadata sent to the storage service.
type AnalysisMetadata struct {
	Subjects int `json:"subjects"`
}

// AnalysisPayload is the body used to create an analysis.
type AnalysisPayload struct {
	Study    string           `json:"study,omitempty"`
	Name     string           `json:"name"`
	Metadata AnalysisMetadata `json:"metadata"`
	Points   []Point          `json:"points"`
}

// Analysis is a created analysis.
type Analysis struct {
	ID    string `json:"id"`
	Study string `json:"study"`
	Name  string `json:"name"`
}

// Study is a created study version. BaseStudy is set when the study was
// cloned from a base study version together with its analyses.
type Study struct {
	ID        string        `json:"id"`
	BaseStudy string        `json:"base_study,omitempty"`
	Name      string        `json:"name,omitempty"`
	DOI       string        `json:"doi,omitempty"`
	PMID      string        `json:"pmid,omitempty"`
	Analyses  []AnalysisRef `json:"analyses"`
}

// Studyset is a created studyset.
type Studyset struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Studies     []string `json:"studies"`
}

// AnnotationNote is one row of an annotation.
type AnnotationNote struct {
	Study    string          `json:"study"`
	Analysis string          `json:"analysis"`
	Note     map[string]bool `json:"note"`
}

// AnnotationPayload is the body used to create an annotation.
type AnnotationPayload struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Studyset    string            `json:"studyset"`
	NoteKeys    map[string]string `json:"note_keys"`
	Notes       []AnnotationNote  `json:"notes"`
}

// Annotation is a created annotation.
type Annotation struct {
	ID       string `json:"id"`
	Studyset string `json:"studyset"`
}
