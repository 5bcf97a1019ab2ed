package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultTimeout = 5 * time.Second

// HTTPClient is a Client that POSTs queries as JSON to a knowledge-service
// endpoint.
type HTTPClient struct {
	endpoint string
	client   *http.Client
}

// NewHTTPClient creates an HTTP client for the given endpoint. A
// non-positive timeout falls back to 5s.
func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type queryRequest struct {
	Query string `json:"query"`
}

// Query sends the query and decodes the service's answer.
func (c *HTTPClient) Query(ctx context.Context, query string) (Answer, error) {
	body, err := json.Marshal(queryRequest{Query: query})
	if err != nil {
		return Answer{}, fmt.Errorf("failed to encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Answer{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Answer{}, fmt.Errorf("knowledge service request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return Answer{}, fmt.Errorf("knowledge service returned status %d", resp.StatusCode)
	}

	var answer Answer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return Answer{}, fmt.Errorf("failed to decode answer: %w", err)
	}
	return answer, nil
}
