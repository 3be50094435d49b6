package typedsign

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the TypedSign REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

// SignatureRequest is the payload accepted by the signature submission endpoint.
type SignatureRequest struct {
	ID      string          `json:"id,omitempty"`
	Domain  string          `json:"domain"`
	Kind    string          `json:"kind"`
	Key     string          `json:"key"`
	Message json.RawMessage `json:"message"`
}

// SignatureResult holds the hex encoded outputs of a completed signature.
type SignatureResult struct {
	TypeHash        string `json:"type_hash"`
	DomainSeparator string `json:"domain_separator"`
	Digest          string `json:"digest"`
	Signature       string `json:"signature"`
	Signer          string `json:"signer"`
}

// SignatureJob describes a queued or completed signature job.
type SignatureJob struct {
	ID         string           `json:"id"`
	Domain     string           `json:"domain"`
	Kind       string           `json:"kind"`
	Key        string           `json:"key"`
	Message    json.RawMessage  `json:"message"`
	Status     string           `json:"status"`
	Attempts   int              `json:"attempts"`
	MaxRetries int              `json:"max_retries"`
	Terminal   bool             `json:"terminal,omitempty"`
	LastError  string           `json:"last_error,omitempty"`
	ErrorCode  string           `json:"error_code,omitempty"`
	Result     *SignatureResult `json:"result,omitempty"`
	CreatedAt  int64            `json:"created_at"`
	UpdatedAt  int64            `json:"updated_at"`
}

// Finished reports whether the job will not change any more.
func (j SignatureJob) Finished() bool {
	return j.Status == "succeeded" || (j.Status == "failed" && (j.Terminal || j.Attempts >= j.MaxRetries))
}

// SignatureStats aggregates job counts by status.
type SignatureStats struct {
	Total           int   `json:"total"`
	Pending         int   `json:"pending"`
	Running         int   `json:"running"`
	Succeeded       int   `json:"succeeded"`
	Failed          int   `json:"failed"`
	OldestUpdatedAt int64 `json:"oldest_updated_at,omitempty"`
	NewestUpdatedAt int64 `json:"newest_updated_at,omitempty"`
}

// ListFilter narrows the jobs returned by ListSignatures and Stats.
type ListFilter struct {
	Statuses  []string
	Domain    string
	Kind      string
	Key       string
	Query     string
	Limit     int
	Offset    int
	Ascending bool
}

// TypedData identifies a message to hash or recover.
type TypedData struct {
	Domain    string          `json:"domain"`
	Kind      string          `json:"kind"`
	Message   json.RawMessage `json:"message"`
	Signature string          `json:"signature,omitempty"`
}

// HashPreview lists every intermediate hash of a typed-data message.
type HashPreview struct {
	Domain          string `json:"domain"`
	Kind            string `json:"kind"`
	PrimaryType     string `json:"primary_type"`
	EncodedType     string `json:"encoded_type"`
	TypeHash        string `json:"type_hash"`
	StructHash      string `json:"struct_hash"`
	DomainSeparator string `json:"domain_separator"`
	Digest          string `json:"digest"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("typedsign api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("typedsign api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the TypedSign API. When httpClient is
// nil, a default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// AccessToken returns the currently stored token string.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// SetAccessToken sets the bearer token sent with every request. An empty
// token disables the Authorization header.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

// SubmitSignature queues a new signature job.
func (c *Client) SubmitSignature(ctx context.Context, req SignatureRequest) (SignatureJob, error) {
	var job SignatureJob
	if err := c.post(ctx, "/api/v1/signatures", nil, req, &job); err != nil {
		return SignatureJob{}, err
	}
	return job, nil
}

// SignAndWait submits a job and asks the server to hold the response for up
// to wait until the job finishes. The returned job may still be pending.
func (c *Client) SignAndWait(ctx context.Context, req SignatureRequest, wait time.Duration) (SignatureJob, error) {
	var job SignatureJob
	query := url.Values{"wait": {wait.String()}}
	if err := c.post(ctx, "/api/v1/signatures", query, req, &job); err != nil {
		return SignatureJob{}, err
	}
	return job, nil
}

// GetSignature fetches a job by identifier.
func (c *Client) GetSignature(ctx context.Context, id string) (SignatureJob, error) {
	var job SignatureJob
	if err := c.get(ctx, "/api/v1/signatures/"+url.PathEscape(id), nil, &job); err != nil {
		return SignatureJob{}, err
	}
	return job, nil
}

// WaitForSignature polls a job until it finishes or ctx is done.
func (c *Client) WaitForSignature(ctx context.Context, id string, interval time.Duration) (SignatureJob, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := c.GetSignature(ctx, id)
		if err != nil {
			return SignatureJob{}, err
		}
		if job.Finished() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ListSignatures returns jobs matching filter.
func (c *Client) ListSignatures(ctx context.Context, filter ListFilter) ([]SignatureJob, error) {
	var jobs []SignatureJob
	if err := c.get(ctx, "/api/v1/signatures", filter.values(), &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Stats returns aggregated job counts for filter.
func (c *Client) Stats(ctx context.Context, filter ListFilter) (SignatureStats, error) {
	var stats SignatureStats
	if err := c.get(ctx, "/api/v1/signatures/stats", filter.values(), &stats); err != nil {
		return SignatureStats{}, err
	}
	return stats, nil
}

// Hash computes the encoded type and hashes of a message without signing it.
func (c *Client) Hash(ctx context.Context, data TypedData) (HashPreview, error) {
	var preview HashPreview
	data.Signature = ""
	if err := c.post(ctx, "/api/v1/typed-data/hash", nil, data, &preview); err != nil {
		return HashPreview{}, err
	}
	return preview, nil
}

// Recover returns the address that produced data.Signature.
func (c *Client) Recover(ctx context.Context, data TypedData) (string, error) {
	if data.Signature == "" {
		return "", errors.New("typedsign: signature is required")
	}
	var out struct {
		Signer string `json:"signer"`
	}
	if err := c.post(ctx, "/api/v1/typed-data/recover", nil, data, &out); err != nil {
		return "", err
	}
	return out.Signer, nil
}

func (f ListFilter) values() url.Values {
	q := url.Values{}
	setIf := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	setIf("status", strings.Join(f.Statuses, ","))
	setIf("domain", f.Domain)
	setIf("kind", f.Kind)
	setIf("key", f.Key)
	setIf("q", f.Query)
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	if f.Ascending {
		q.Set("order", "asc")
	}
	return q
}

func (c *Client) post(ctx context.Context, endpoint string, query url.Values, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, query, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	u := c.baseURL.ResolveReference(rel)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &struct {
				Error *APIError `json:"error"`
			}{Error: &apiErr}); err != nil {
				_ = json.Unmarshal(data, &apiErr)
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return &apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
