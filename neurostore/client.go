// Package neurostore is a small client for the study storage service and the
// project service that sits next to it.
package neurostore

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"sleuth-ingest/config"
	"sleuth-ingest/httpx"
	"sleuth-ingest/models"
)

// Client calls the storage service (BaseURL) and the project service (ComposeURL).
type Client struct {
	BaseURL    string
	ComposeURL string
	Token      string
	HTTP       httpx.Doer
	Logger     *zap.Logger
}

// NewClient creates a client from the configuration.
func NewClient(cfg *config.Config, logger *zap.Logger, doer httpx.Doer) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(cfg.NeurostoreBaseURL, "/"),
		ComposeURL: strings.TrimRight(cfg.ComposeBaseURL, "/"),
		Token:      cfg.NeurostoreToken,
		HTTP:       doer,
		Logger:     logger,
	}
}

// IngestBaseStudies submits records in a single bulk call and returns one
// base study per record, each with its existing versions.
func (c *Client) IngestBaseStudies(ctx context.Context, records []models.BaseStudyRecord) ([]models.BaseStudy, error) {
	var out []models.BaseStudy
	if err := c.post(ctx, c.BaseURL+"/base-studies/", records, &out); err != nil {
		return nil, fmt.Errorf("ingest base studies: %w", err)
	}
	return out, nil
}

// CreateAnalysis adds an analysis to an existing study version.
func (c *Client) CreateAnalysis(ctx context.Context, studyVersionID string, payload models.AnalysisPayload) (*models.Analysis, error) {
	payload.Study = studyVersionID
	var out models.Analysis
	if err := c.post(ctx, c.BaseURL+"/analyses/", payload, &out); err != nil {
		return nil, fmt.Errorf("create analysis on study %s: %w", studyVersionID, err)
	}
	return &out, nil
}

// CreateStudyWithAnalyses clones the given base version into a new study
// owned by the caller, carrying the given analyses.
func (c *Client) CreateStudyWithAnalyses(ctx context.Context, baseVersionID string, analyses []models.AnalysisPayload) (*models.Study, error) {
	vs := url.Values{}
	vs.Set("source_id", baseVersionID)
	body := struct {
		Analyses []models.AnalysisPayload `json:"analyses"`
	}{Analyses: analyses}
	var out models.Study
	if err := c.post(ctx, c.BaseURL+"/studies/?"+vs.Encode(), body, &out); err != nil {
		return nil, fmt.Errorf("create study from %s: %w", baseVersionID, err)
	}
	return &out, nil
}

// CreateStudyset creates a studyset containing the given studies.
func (c *Client) CreateStudyset(ctx context.Context, name, description string, studyIDs []string) (*models.Studyset, error) {
	body := models.Studyset{Name: name, Description: description, Studies: studyIDs}
	var out models.Studyset
	if err := c.post(ctx, c.BaseURL+"/studysets/", body, &out); err != nil {
		return nil, fmt.Errorf("create studyset: %w", err)
	}
	return &out, nil
}

// CreateAnnotation creates an annotation on a studyset.
func (c *Client) CreateAnnotation(ctx context.Context, payload models.AnnotationPayload) (*models.Annotation, error) {
	var out models.Annotation
	if err := c.post(ctx, c.BaseURL+"/annotations/", payload, &out); err != nil {
		return nil, fmt.Errorf("create annotation: %w", err)
	}
	return &out, nil
}

// CreateProject creates a project in the project service.
func (c *Client) CreateProject(ctx context.Context, payload models.ProjectPayload) (*models.Project, error) {
	var out models.Project
	if err := c.post(ctx, c.ComposeURL+"/projects", payload, &out); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, link string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, link, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	c.Logger.Debug("POST", zap.String("url", link), zap.Int("bytes", len(b)))

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := httpx.CheckStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
