package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pario-ai/quelldemo/pkg/models"
)

// ErrMalformedResponse is returned when a 2xx body cannot be interpreted.
var ErrMalformedResponse = errors.New("malformed response")

// StatusError is returned for non-2xx responses. Message is taken from the
// error body when it could be parsed.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote returned %d", e.Code)
	}
	return fmt.Sprintf("remote returned %d: %s", e.Code, e.Message)
}

// Client issues execute and clear requests against the remote endpoints.
type Client struct {
	graphqlURL    string
	clearCacheURL string
	http          *http.Client
}

// New creates a Client. A zero timeout means no client-side timeout.
func New(graphqlURL, clearCacheURL string, timeout time.Duration) *Client {
	return &Client{
		graphqlURL:    graphqlURL,
		clearCacheURL: clearCacheURL,
		http:          &http.Client{Timeout: timeout},
	}
}

// GraphQLURL returns the execution endpoint.
func (c *Client) GraphQLURL() string {
	return c.graphqlURL
}

// Execute POSTs the query and cost options to the execution endpoint.
func (c *Client) Execute(ctx context.Context, query string, limits models.LimitConfig) (*models.QueryResponse, error) {
	return c.ExecuteAt(ctx, c.graphqlURL, query, limits)
}

// ExecuteAt is Execute against an explicit endpoint.
func (c *Client) ExecuteAt(ctx context.Context, endpoint, query string, limits models.LimitConfig) (*models.QueryResponse, error) {
	body, err := json.Marshal(models.GraphQLRequest{Query: query, CostOptions: limits})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Message: errorMessage(respBody)}
	}

	var out models.GraphQLResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w: %v", ErrMalformedResponse, err)
	}
	if out.QueryResponse == nil {
		return nil, fmt.Errorf("missing queryResponse: %w", ErrMalformedResponse)
	}
	return out.QueryResponse, nil
}

// ClearCache asks the remote to drop its cache.
func (c *Client) ClearCache(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.clearCacheURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("clear remote cache: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// errorMessage pulls a human-readable message out of an error body. It
// understands {"error":{"message":...}}, {"error":"..."} and {"message":...}.
func errorMessage(body []byte) string {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return ""
	}
	if e, ok := raw["error"]; ok {
		var s string
		if json.Unmarshal(e, &s) == nil {
			return s
		}
		var d models.ErrorDetail
		if json.Unmarshal(e, &d) == nil {
			return d.Message
		}
	}
	if m, ok := raw["message"]; ok {
		var s string
		if json.Unmarshal(m, &s) == nil {
			return s
		}
	}
	return ""
}
