package epias

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Item is one record of an EPIAS "items" response.
type Item map[string]interface{}

type itemsResponse struct {
	Items []Item `json:"items"`
}

// Client posts date-range queries to the EPIAS transparency platform
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new EPIAS client with the given request timeout
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchItems sends {startDate, endDate, ...extra} to url and returns the items array
func (c *Client) FetchItems(ctx context.Context, url string, start, end time.Time, extra map[string]interface{}) ([]Item, error) {
	body := map[string]interface{}{
		"startDate": start.Format(time.RFC3339),
		"endDate":   end.Format(time.RFC3339),
	}
	for k, v := range extra {
		body[k] = v
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%s returned error status %d: %s", url, resp.StatusCode, string(bodyBytes))
	}

	var parsed itemsResponse
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response from %s: %w", url, err)
	}

	return parsed.Items, nil
}
