package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"sleuth-ingest/batch"
	"sleuth-ingest/models"
	"sleuth-ingest/providers"
)

// IdentifierResolver fills in PMIDs and bibliographic details for base study
// records and collapses duplicates.
type IdentifierResolver struct {
	Provider providers.Resolver
	Logger   *zap.Logger
	// RateLimit and Delay are applied to lookups and detail fetches alike.
	RateLimit int
	Delay     time.Duration
	// PageSize is the number of PMIDs per detail request.
	PageSize int
}

// Resolve looks up missing PMIDs by DOI, fetches details for every resolved
// PMID, merges them onto the records and removes duplicates. onProgress gets
// 0-100 for the whole stage.
func (r *IdentifierResolver) Resolve(ctx context.Context, records []models.BaseStudyRecord, onProgress func(pct int)) ([]models.BaseStudyRecord, error) {
	report := func(pct int) {
		if onProgress != nil {
			onProgress(pct)
		}
	}

	lookups, err := r.lookup(ctx, records, func(pct int) { report(pct / 2) })
	if err != nil {
		return nil, err
	}
	report(50)

	resolved := make([]string, len(records))
	var pmids []string
	seen := map[string]bool{}
	for i, l := range lookups {
		pmid, ok := l.PMID()
		if !ok {
			continue
		}
		resolved[i] = pmid
		if !seen[pmid] {
			seen[pmid] = true
			pmids = append(pmids, pmid)
		}
	}
	r.Logger.Info("Identifier lookup finished",
		zap.Int("records", len(records)),
		zap.Int("resolved_pmids", len(pmids)))

	details, err := r.fetchDetails(ctx, pmids, func(pct int) { report(50 + pct/2) })
	if err != nil {
		return nil, err
	}
	report(100)

	merged := MergeDetails(records, resolved, details)
	deduped := DedupBaseStudies(merged)
	r.Logger.Info("Base studies ready for ingestion",
		zap.Int("details", len(details)),
		zap.Int("unique", len(deduped)))
	return deduped, nil
}

// lookup returns one result per record. Records that already carry a PMID
// get a local single-hit result without any request.
func (r *IdentifierResolver) lookup(ctx context.Context, records []models.BaseStudyRecord, onProgress func(pct int)) ([]providers.LookupResult, error) {
	results := make([]providers.LookupResult, len(records))
	var (
		pending []int
		reqs    []batch.Request[providers.LookupResult]
	)
	for i, rec := range records {
		if rec.PMID != "" {
			results[i] = providers.LookupResult{Count: 1, IDList: []string{rec.PMID}}
			continue
		}
		if rec.DOI == "" {
			results[i] = providers.LookupResult{IDList: []string{}}
			continue
		}
		doi := rec.DOI
		pending = append(pending, i)
		reqs = append(reqs, func(ctx context.Context) (providers.LookupResult, error) {
			lookupRequestsCounter.WithLabelValues(r.Provider.Name(), "lookup").Inc()
			return r.Provider.LookupPMIDByDOI(ctx, doi)
		})
	}
	if len(reqs) == 0 {
		return results, nil
	}

	r.Logger.Info("Looking up PMIDs by DOI",
		zap.String("provider", r.Provider.Name()),
		zap.Int("requests", len(reqs)),
		zap.Int("rate_limit", r.RateLimit),
		zap.Duration("delay", r.Delay))
	out, err := batch.Execute(ctx, reqs, batch.Options{RateLimit: r.RateLimit, Delay: r.Delay, OnProgress: onProgress})
	if err != nil {
		return nil, fmt.Errorf("pmid lookup: %w", err)
	}
	for j, i := range pending {
		results[i] = out[j]
	}
	return results, nil
}

func (r *IdentifierResolver) fetchDetails(ctx context.Context, pmids []string, onProgress func(pct int)) ([]models.BibliographicRecord, error) {
	if len(pmids) == 0 {
		return nil, nil
	}
	size := r.PageSize
	if size < 1 {
		size = 200
	}
	var reqs []batch.Request[[]models.BibliographicRecord]
	for start := 0; start < len(pmids); start += size {
		page := pmids[start:min(start+size, len(pmids))]
		reqs = append(reqs, func(ctx context.Context) ([]models.BibliographicRecord, error) {
			lookupRequestsCounter.WithLabelValues(r.Provider.Name(), "details").Inc()
			return r.Provider.FetchDetails(ctx, page)
		})
	}
	pages, err := batch.Execute(ctx, reqs, batch.Options{RateLimit: r.RateLimit, Delay: r.Delay, OnProgress: onProgress})
	if err != nil {
		return nil, fmt.Errorf("fetch details: %w", err)
	}
	var out []models.BibliographicRecord
	for _, p := range pages {
		out = append(out, p...)
	}
	return out, nil
}

// MergeDetails enriches records with bibliographic details. A detail matches
// a record by the record's PMID, the PMID resolved for it, or its DOI. Fields
// already set on a record are never overwritten.
func MergeDetails(records []models.BaseStudyRecord, resolved []string, details []models.BibliographicRecord) []models.BaseStudyRecord {
	byPMID := map[string]models.BibliographicRecord{}
	byDOI := map[string]models.BibliographicRecord{}
	for _, d := range details {
		if d.PMID != "" {
			byPMID[d.PMID] = d
		}
		if d.DOI != "" {
			byDOI[strings.ToLower(d.DOI)] = d
		}
	}

	out := make([]models.BaseStudyRecord, len(records))
	for i, rec := range records {
		d, ok := byPMID[rec.PMID]
		if !ok && i < len(resolved) && resolved[i] != "" {
			d, ok = byPMID[resolved[i]]
		}
		if !ok && rec.DOI != "" {
			d, ok = byDOI[strings.ToLower(rec.DOI)]
		}
		if ok {
			fillEmpty(&rec, d)
		}
		out[i] = rec
	}
	return out
}

func fillEmpty(rec *models.BaseStudyRecord, d models.BibliographicRecord) {
	setIfEmpty(&rec.Name, d.Title)
	setIfEmpty(&rec.DOI, d.DOI)
	setIfEmpty(&rec.PMID, d.PMID)
	setIfEmpty(&rec.PMCID, d.PMCID)
	setIfEmpty(&rec.Description, d.Abstract)
	setIfEmpty(&rec.Publication, d.Journal)
	setIfEmpty(&rec.Authors, d.Authors)
	if rec.Year == nil && d.Year != nil {
		y := *d.Year
		rec.Year = &y
	}
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// DedupBaseStudies collapses records sharing a DOI or a PMID. The first
// occurrence wins.
func DedupBaseStudies(records []models.BaseStudyRecord) []models.BaseStudyRecord {
	seenDOI := map[string]bool{}
	seenPMID := map[string]bool{}
	var out []models.BaseStudyRecord
	for _, rec := range records {
		doi := strings.ToLower(strings.TrimSpace(rec.DOI))
		pmid := strings.TrimSpace(rec.PMID)
		if (doi != "" && seenDOI[doi]) || (pmid != "" && seenPMID[pmid]) {
			continue
		}
		// only kept records register keys, so every dropped record still
		// matches a kept one
		if doi != "" {
			seenDOI[doi] = true
		}
		if pmid != "" {
			seenPMID[pmid] = true
		}
		out = append(out, rec)
	}
	return out
}
