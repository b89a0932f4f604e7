package docupanda

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/broker-docs/internal/core/domain"
	"github.com/kirillkom/broker-docs/internal/infrastructure/resilience"
)

type Options struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	Executor *resilience.Executor
}

// Client is a DocuPanda REST client. Jobs are submitted and polled by the
// caller; the client itself never waits.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(options Options) *Client {
	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = "https://app.docupanda.io"
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     options.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.Executor,
	}
}

func (c *Client) Submit(ctx context.Context, fileName string, content []byte) (domain.AnalysisHandle, error) {
	request := map[string]string{
		"content":  base64.StdEncoding.EncodeToString(content),
		"filename": fileName,
	}
	var response struct {
		DocumentID string `json:"documentId"`
		JobID      string `json:"jobId"`
	}
	if err := c.postJSON(ctx, "/document", request, &response, "submit"); err != nil {
		return domain.AnalysisHandle{}, err
	}
	if response.DocumentID == "" || response.JobID == "" {
		return domain.AnalysisHandle{}, errors.New("docupanda submit response misses document or job id")
	}
	return domain.AnalysisHandle{DocumentID: response.DocumentID, JobID: response.JobID}, nil
}

func (c *Client) JobStatus(ctx context.Context, jobID string) (domain.JobStatus, error) {
	var raw []byte
	if err := c.getJSON(ctx, "/job/"+url.PathEscape(jobID), &raw, "job_status"); err != nil {
		return domain.JobStatus{}, err
	}
	var response struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(raw, &response, "job_status"); err != nil {
		return domain.JobStatus{}, err
	}
	return domain.JobStatus{Status: response.Status, Payload: string(raw)}, nil
}

func (c *Client) Standardize(ctx context.Context, documentID, schemaID string) (string, error) {
	request := map[string]any{
		"documentIds": []string{documentID},
		"schemaId":    schemaID,
		"displayMode": "auto",
		"effortLevel": "high",
	}
	var response struct {
		StandardizationIDs []string `json:"standardizationIds"`
	}
	if err := c.postJSON(ctx, "/v2/standardize/batch", request, &response, "standardize"); err != nil {
		return "", err
	}
	if len(response.StandardizationIDs) == 0 {
		return "", errors.New("docupanda standardize response has no standardization ids")
	}
	return response.StandardizationIDs[0], nil
}

func (c *Client) Standardization(ctx context.Context, standardizationID string) ([]byte, error) {
	var raw []byte
	if err := c.getJSON(ctx, "/standardization/"+url.PathEscape(standardizationID), &raw, "standardization"); err != nil {
		return nil, err
	}
	return raw, nil
}
