package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrMissingAccessKey is returned when no exchange-rate API key is configured
var ErrMissingAccessKey = errors.New("exchange rate API access key is not configured (set exchange.access_key or ELECDATA_EXCHANGE_ACCESS_KEY)")

// DefaultBaseURL is the exchangeratesapi.io v1 endpoint
const DefaultBaseURL = "http://api.exchangeratesapi.io/v1"

type ratesResponse struct {
	Success *bool              `json:"success"`
	Rates   map[string]float64 `json:"rates"`
	Error   *struct {
		Code int    `json:"code"`
		Type string `json:"type"`
		Info string `json:"info"`
	} `json:"error"`
}

// Client is a RateService backed by exchangeratesapi.io
type Client struct {
	baseURL    string
	accessKey  string
	shiftDays  int
	httpClient *http.Client
}

// NewClient creates a new exchange-rate client. Lookups for a day query the
// rate published shiftDays earlier.
func NewClient(baseURL, accessKey string, shiftDays int, timeout time.Duration) (*Client, error) {
	if accessKey == "" {
		return nil, ErrMissingAccessKey
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		accessKey: accessKey,
		shiftDays: shiftDays,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Rate returns how many units of target one unit of base buys on day
func (c *Client) Rate(ctx context.Context, day time.Time, base, target string) (float64, error) {
	date := day.AddDate(0, 0, -c.shiftDays).Format("2006-01-02")

	query := url.Values{}
	query.Set("access_key", c.accessKey)
	query.Set("symbols", target+","+base)
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, date, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to exchange rate service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("exchange rate service returned error status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var parsed ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("failed to parse exchange rate response: %w", err)
	}
	if parsed.Success != nil && !*parsed.Success {
		if parsed.Error != nil {
			return 0, fmt.Errorf("exchange rate service error %d (%s): %s", parsed.Error.Code, parsed.Error.Type, parsed.Error.Info)
		}
		return 0, fmt.Errorf("exchange rate service reported failure for %s", date)
	}

	targetRate, ok := parsed.Rates[target]
	if !ok {
		return 0, fmt.Errorf("no %s rate for %s", target, date)
	}
	baseRate, ok := parsed.Rates[base]
	if !ok || baseRate == 0 {
		return 0, fmt.Errorf("no %s rate for %s", base, date)
	}

	return targetRate / baseRate, nil
}
