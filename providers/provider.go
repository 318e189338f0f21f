package providers

import (
	"context"

	"sleuth-ingest/models"
)

// LookupResult is the answer to a DOI -> PMID search.
type LookupResult struct {
	Count  int      `json:"count"`
	IDList []string `json:"idlist"`
	Error  string   `json:"error,omitempty"`
}

// PMID returns the single PMID of an unambiguous result. Zero or several
// candidates, or an error reported by the service, yield false.
func (r LookupResult) PMID() (string, bool) {
	if r.Error != "" || r.Count != 1 || len(r.IDList) != 1 || r.IDList[0] == "" {
		return "", false
	}
	return r.IDList[0], true
}

// Resolver is implemented by every bibliographic lookup service.
type Resolver interface {
	// Name returns the unique provider name (e.g. "pubmed").
	Name() string

	// LookupPMIDByDOI searches the PMID of the paper with the given DOI.
	LookupPMIDByDOI(ctx context.Context, doi string) (LookupResult, error)

	// FetchDetails returns metadata for the given PMIDs. Unknown PMIDs are
	// silently missing from the result.
	FetchDetails(ctx context.Context, pmids []string) ([]models.BibliographicRecord, error)
}
