package pubmed

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"sleuth-ingest/config"
	"sleuth-ingest/httpx"
	"sleuth-ingest/models"
	"sleuth-ingest/providers"
)

var yearRe = regexp.MustCompile(`\d{4}`)

// Fetcher talks to the esearch and efetch endpoints.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	Client httpx.Doer
}

// NewFetcher creates a new PubMed fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger, client httpx.Doer) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger, Client: client}
}

// Name returns the provider name.
func (f *Fetcher) Name() string {
	return "pubmed"
}

// LookupPMIDByDOI runs an esearch restricted to the DOI field.
func (f *Fetcher) LookupPMIDByDOI(ctx context.Context, doi string) (providers.LookupResult, error) {
	vs := f.baseParams()
	vs.Set("db", "pubmed")
	vs.Set("term", doi+"[DOI]")
	vs.Set("retmode", "json")
	link := fmt.Sprintf("%s/esearch.fcgi?%s", f.Config.PubMedBaseURL, vs.Encode())
	f.Logger.Debug("Calling esearch", zap.String("doi", doi))

	resp, err := f.get(ctx, link)
	if err != nil {
		return providers.LookupResult{}, fmt.Errorf("esearch for doi %s: %w", doi, err)
	}
	defer resp.Body.Close()

	var er ESearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return providers.LookupResult{}, fmt.Errorf("decode esearch response for doi %s: %w", doi, err)
	}
	res := providers.LookupResult{
		IDList: er.ESearchResult.IdList,
		Error:  er.ESearchResult.Error,
	}
	if er.ESearchResult.Count != "" {
		if n, err := strconv.Atoi(er.ESearchResult.Count); err == nil {
			res.Count = n
		}
	}
	if res.IDList == nil {
		res.IDList = []string{}
	}
	return res, nil
}

// FetchDetails runs one efetch for all given PMIDs.
func (f *Fetcher) FetchDetails(ctx context.Context, pmids []string) ([]models.BibliographicRecord, error) {
	if len(pmids) == 0 {
		return nil, nil
	}
	vs := f.baseParams()
	vs.Set("db", "pubmed")
	vs.Set("id", strings.Join(pmids, ","))
	vs.Set("retmode", "xml")
	link := fmt.Sprintf("%s/efetch.fcgi?%s", f.Config.PubMedBaseURL, vs.Encode())
	f.Logger.Debug("Calling efetch", zap.Int("pmids", len(pmids)))

	resp, err := f.get(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("efetch: %w", err)
	}
	defer resp.Body.Close()

	var set PubmedArticleSet
	if err := xml.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode efetch response: %w", err)
	}
	records := make([]models.BibliographicRecord, 0, len(set.PubmedArticle))
	for i := range set.PubmedArticle {
		records = append(records, mapArticleToRecord(&set.PubmedArticle[i]))
	}
	return records, nil
}

func (f *Fetcher) get(ctx context.Context, link string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if err := httpx.CheckStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// baseParams carries the identification NCBI asks every client to send.
func (f *Fetcher) baseParams() url.Values {
	vs := url.Values{}
	if f.Config.PubMedAPIKey != "" {
		vs.Set("api_key", f.Config.PubMedAPIKey)
	}
	if f.Config.PubMedTool != "" {
		vs.Set("tool", f.Config.PubMedTool)
	}
	if f.Config.PubMedEmail != "" {
		vs.Set("email", f.Config.PubMedEmail)
	}
	return vs
}

func joinText(parts []InlineText, sep string) string {
	ss := make([]string, len(parts))
	for i, p := range parts {
		ss[i] = string(p)
	}
	return strings.Join(ss, sep)
}

// mapArticleToRecord converts an efetch article into a bibliographic record.
func mapArticleToRecord(article *PubmedArticle) models.BibliographicRecord {
	a := article.MedlineCitation.Article
	rec := models.BibliographicRecord{
		PMID:     strings.TrimSpace(article.MedlineCitation.PMID),
		Title:    strings.TrimSpace(string(a.Title)),
		Abstract: strings.TrimSpace(joinText(a.Abstract.Text, "\n")),
		Journal:  strings.TrimSpace(a.Journal.Title),
	}

	var authors []string
	for _, au := range a.Authors {
		switch {
		case au.CollectiveName != "":
			authors = append(authors, au.CollectiveName)
		case au.LastName != "":
			authors = append(authors, strings.TrimSpace(au.LastName+" "+au.Initials))
		}
	}
	rec.Authors = strings.Join(authors, ", ")

	for _, id := range article.PubmedData.ArticleIDs {
		switch id.IDType {
		case "doi":
			rec.DOI = strings.TrimSpace(id.Value)
		case "pmc":
			rec.PMCID = strings.TrimSpace(id.Value)
		}
	}
	if rec.DOI == "" {
		for _, id := range a.ELocationID {
			if id.IDType == "doi" && id.ValidYN != "N" {
				rec.DOI = strings.TrimSpace(id.Value)
				break
			}
		}
	}

	year := a.Journal.PubDate.Year
	if year == "" {
		year = yearRe.FindString(a.Journal.PubDate.MedlineDate)
	}
	if y, err := strconv.Atoi(strings.TrimSpace(year)); err == nil {
		rec.Year = &y
	}
	return rec
}
