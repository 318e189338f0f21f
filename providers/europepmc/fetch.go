package europepmc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"sleuth-ingest/config"
	"sleuth-ingest/httpx"
	"sleuth-ingest/models"
	"sleuth-ingest/providers"
)

// Fetcher implements providers.Resolver on top of Europe PMC.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	Client httpx.Doer
}

// NewFetcher creates a new Europe PMC fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger, client httpx.Doer) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger, Client: client}
}

// Name returns the provider name.
func (f *Fetcher) Name() string {
	return "europepmc"
}

// LookupPMIDByDOI searches MEDLINE records carrying the DOI.
func (f *Fetcher) LookupPMIDByDOI(ctx context.Context, doi string) (providers.LookupResult, error) {
	sr, err := f.search(ctx, fmt.Sprintf(`DOI:"%s" AND SRC:MED`, doi), "lite", 2)
	if err != nil {
		return providers.LookupResult{}, fmt.Errorf("europepmc lookup for doi %s: %w", doi, err)
	}
	res := providers.LookupResult{Count: sr.HitCount, IDList: []string{}}
	for _, a := range sr.ResultList.Result {
		if a.PMID != "" {
			res.IDList = append(res.IDList, a.PMID)
		}
	}
	return res, nil
}

// FetchDetails fetches core metadata for the given PMIDs in one query.
func (f *Fetcher) FetchDetails(ctx context.Context, pmids []string) ([]models.BibliographicRecord, error) {
	if len(pmids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("EXT_ID:(%s) AND SRC:MED", strings.Join(pmids, " OR "))
	sr, err := f.search(ctx, query, "core", len(pmids))
	if err != nil {
		return nil, fmt.Errorf("europepmc details: %w", err)
	}
	records := make([]models.BibliographicRecord, 0, len(sr.ResultList.Result))
	for i := range sr.ResultList.Result {
		records = append(records, mapArticleToRecord(&sr.ResultList.Result[i]))
	}
	return records, nil
}

func (f *Fetcher) search(ctx context.Context, query, resultType string, pageSize int) (*SearchResponse, error) {
	vs := url.Values{}
	vs.Set("query", query)
	vs.Set("format", "json")
	vs.Set("resultType", resultType)
	vs.Set("pageSize", strconv.Itoa(max(pageSize, 1)))
	link := fmt.Sprintf("%s?%s", f.Config.EuropePMCURL, vs.Encode())
	f.Logger.Debug("Calling Europe PMC", zap.String("query", query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := httpx.CheckStatus(resp); err != nil {
		return nil, err
	}
	var sr SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, err
	}
	return &sr, nil
}

// mapArticleToRecord converts a Europe PMC article into a bibliographic record.
func mapArticleToRecord(article *Article) models.BibliographicRecord {
	rec := models.BibliographicRecord{
		PMID:     article.PMID,
		PMCID:    article.PMCID,
		DOI:      article.DOI,
		Title:    article.Title,
		Abstract: article.AbstractText,
		Authors:  strings.TrimSuffix(article.AuthorString, "."),
		Journal:  article.JournalInfo.Journal.Title,
	}
	if rec.Journal == "" {
		rec.Journal = article.JournalTitle
	}
	if y, err := strconv.Atoi(article.PubYear); err == nil {
		rec.Year = &y
	}
	return rec
}
