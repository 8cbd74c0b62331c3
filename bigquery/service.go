package bigquery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// DefaultBaseURL is the BigQuery v2 REST endpoint.
const DefaultBaseURL = "https://bigquery.googleapis.com/bigquery/v2"

// Service is a thin bearer-authenticated client for the BigQuery REST API,
// covering the calls the fallback transport dispatches natively.
type Service struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Service)

// WithBaseURL overrides the REST endpoint, mainly for tests.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) {
		s.baseURL = baseURL
	}
}

// New creates a Service; httpClient has to carry the bearer authentication.
func New(httpClient *http.Client, options ...Option) *Service {
	ret := &Service{
		baseURL:    DefaultBaseURL,
		httpClient: httpClient,
	}
	if ret.httpClient == nil {
		ret.httpClient = http.DefaultClient
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// Query runs a query job synchronously via jobs.query. A request without a
// RequestID is stamped with one so the server can deduplicate retries.
func (s *Service) Query(ctx context.Context, projectID string, request *QueryRequest) (*QueryResponse, error) {
	if request == nil || request.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	body := *request
	if body.RequestID == "" {
		body.RequestID = uuid.NewString()
	}
	URL := fmt.Sprintf("%v/projects/%v/queries", s.baseURL, url.PathEscape(projectID))
	response := &QueryResponse{}
	if err := s.post(ctx, URL, &body, response); err != nil {
		return nil, err
	}
	return response, nil
}

// ListDatasets lists datasets in the project via datasets.list.
func (s *Service) ListDatasets(ctx context.Context, projectID string) (*DatasetList, error) {
	URL := fmt.Sprintf("%v/projects/%v/datasets", s.baseURL, url.PathEscape(projectID))
	response := &DatasetList{}
	if err := s.get(ctx, URL, response); err != nil {
		return nil, err
	}
	return response, nil
}

func (s *Service) post(ctx context.Context, URL string, payload, result interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.send(req, result)
}

func (s *Service) get(ctx context.Context, URL string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, URL, nil)
	if err != nil {
		return err
	}
	return s.send(req, result)
}

func (s *Service) send(req *http.Request, result interface{}) error {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, data)
	}
	if err = json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(statusCode int, data []byte) error {
	envelope := &errorEnvelope{}
	if err := json.Unmarshal(data, envelope); err == nil && envelope.Error != nil {
		if envelope.Error.Code == 0 {
			envelope.Error.Code = statusCode
		}
		return envelope.Error
	}
	return &APIError{Code: statusCode, Message: string(data)}
}
