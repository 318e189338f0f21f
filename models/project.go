package models

// Tag labels a curation stub.
type Tag struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	IsExclusionTag bool   `json:"isExclusionTag"`
	IsAssignable   bool   `json:"isAssignable"`
}

// IdentificationSource names where a curation stub came from.
type IdentificationSource struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// CurationStub is a study card on the curation board.
type CurationStub struct {
	ID                   string               `json:"id"`
	Title                string               `json:"title"`
	Authors              string               `json:"authors"`
	Keywords             string               `json:"keywords"`
	PMID                 string               `json:"pmid"`
	PMCID                string               `json:"pmcid"`
	DOI                  string               `json:"doi"`
	ArticleYear          string               `json:"articleYear"`
	Journal              string               `json:"journal"`
	AbstractText         string               `json:"abstractText"`
	ArticleLink          string               `json:"articleLink"`
	ExclusionTag         *Tag                 `json:"exclusionTag"`
	IdentificationSource IdentificationSource `json:"identificationSource"`
	Tags                 []Tag                `json:"tags"`
	NeurostoreID         string               `json:"neurostoreId"`
}

// CurationColumn is one column of the curation board.
type CurationColumn struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	StubStudies []CurationStub `json:"stubStudies"`
}

type PrismaConfig struct {
	IsPrisma bool `json:"isPrisma"`
}

type CurationMetadata struct {
	Columns               []CurationColumn       `json:"columns"`
	PrismaConfig          PrismaConfig           `json:"prismaConfig"`
	InfoTags              []Tag                  `json:"infoTags"`
	ExclusionTags         []Tag                  `json:"exclusionTags"`
	IdentificationSources []IdentificationSource `json:"identificationSources"`
}

// StudyStatus marks the extraction state of a study.
type StudyStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type ExtractionMetadata struct {
	StudysetID      string        `json:"studysetId"`
	AnnotationID    string        `json:"annotationId"`
	StudyStatusList []StudyStatus `json:"studyStatusList"`
}

type MetaAnalysisMetadata struct {
	CanEditMetaAnalyses bool `json:"canEditMetaAnalyses"`
}

type Provenance struct {
	CurationMetadata     CurationMetadata     `json:"curationMetadata"`
	ExtractionMetadata   ExtractionMetadata   `json:"extractionMetadata"`
	MetaAnalysisMetadata MetaAnalysisMetadata `json:"metaAnalysisMetadata"`
}

// ProjectPayload is the body used to create a project.
type ProjectPayload struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Studyset    string     `json:"studyset"`
	Annotation  string     `json:"annotation"`
	Public      bool       `json:"public"`
	Provenance  Provenance `json:"provenance"`
}

// Project is a created project.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
