// Package disagg talks to the external energy-disaggregation service that
// splits a household's monthly kWh across its appliances.
package disagg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured is returned when no service URL is set
var ErrNotConfigured = errors.New("disaggregation service not configured")

// Device is one appliance class sent for disaggregation
type Device struct {
	Type       string  `json:"type"`
	Quantity   int     `json:"quantity"`
	RatedWatts float64 `json:"rated_watts"`
}

// Share is the service's estimate for one device
type Share struct {
	Type           string  `json:"type"`
	KWh            float64 `json:"kwh"`
	Percent        float64 `json:"percent"`
	DailyHours     float64 `json:"daily_hours"`
	PhantomLoadKWh float64 `json:"phantom_load_kwh,omitempty"`
}

// Result is the service response
type Result struct {
	Breakdown []Share `json:"breakdown"`
	Summary   string  `json:"summary"`
}

// Client calls the disaggregation service over HTTP
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for the service at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type request struct {
	TotalKWh float64  `json:"total_kwh"`
	Devices  []Device `json:"devices"`
}

// Disaggregate asks the service to split totalKWh across devices
func (c *Client) Disaggregate(ctx context.Context, totalKWh float64, devices []Device) (*Result, error) {
	if c == nil || c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(request{TotalKWh: totalKWh, Devices: devices})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/disaggregate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling disaggregation service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("disaggregation service returned status %d: %s", resp.StatusCode, string(msg))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &result, nil
}
