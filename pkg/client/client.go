// Package client is the Go SDK for the ClinSight HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const Version = "0.1.0"

const defaultTimeout = 60 * time.Second

// Client is the ClinSight SDK client.  It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	retryMax   int
	retryWait  time.Duration

	triage          *TriageClient
	triageOnce      sync.Once
	terminology     *TerminologyClient
	terminologyOnce sync.Once
	model           *ModelClient
	modelOnce       sync.Once
}

// APIError is an error response from the API.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clinsight: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
}

// IsBusy reports whether the pipeline rejected the call because a stage is
// already running.
func (e *APIError) IsBusy() bool { return e.StatusCode == http.StatusConflict }

// IsModelNotReady reports whether the model runtime is still loading.
func (e *APIError) IsModelNotReady() bool {
	return e.StatusCode == http.StatusServiceUnavailable && strings.HasPrefix(e.Code, "MDL")
}

func (e *APIError) IsServerError() bool { return e.StatusCode >= 500 }

// NewClient creates an SDK client for the given base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("clinsight: baseURL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("clinsight: invalid baseURL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("clinsight: baseURL scheme must be http or https")
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  "clinsight-go/" + Version,
		retryMax:   2,
		retryWait:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Triage returns the pipeline sub-client.
func (c *Client) Triage() *TriageClient {
	c.triageOnce.Do(func() { c.triage = &TriageClient{c: c} })
	return c.triage
}

// Terminology returns the terminology sub-client.
func (c *Client) Terminology() *TerminologyClient {
	c.terminologyOnce.Do(func() { c.terminology = &TerminologyClient{c: c} })
	return c.terminology
}

// Model returns the model-lifecycle sub-client.
func (c *Client) Model() *ModelClient {
	c.modelOnce.Do(func() { c.model = &ModelClient{c: c} })
	return c.model
}

// do issues one request, retrying transport failures and 5xx responses.
// Responses in the 4xx range are terminal: the request will not change.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("clinsight: encode request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryWait * time.Duration(attempt)):
			}
		}

		err := c.once(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *APIError
		if asAPIError(err, &apiErr) && !apiErr.IsServerError() {
			return err
		}
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, out interface{}) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("clinsight: decode response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func asAPIError(err error, target **APIError) bool {
	apiErr, ok := err.(*APIError)
	if ok {
		*target = apiErr
	}
	return ok
}
