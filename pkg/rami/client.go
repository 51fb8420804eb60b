// Package rami provides a client for the Israel Land Authority planning
// portal (apps.land.gov.il), which lists statutory plans per land parcel.
package rami

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the planning portal lookups.
type Client interface {
	// PlansByParcel returns the statutory plans touching the given block and
	// plot. Empty means no plans on record.
	PlansByParcel(ctx context.Context, block, plot string) ([]Plan, error)
}

// Plan is one statutory plan entry.
type Plan struct {
	PlanNumber   string `json:"plan_number"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	StatusDate   string `json:"status_date"`
	Authority    string `json:"authority"`
	DocumentsURL string `json:"documents_url,omitempty"`
}

// Option configures the rami client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a new planning portal client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://apps.land.gov.il",
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchRequest struct {
	Gush    string `json:"gush"`
	Chelka  string `json:"chelka"`
	FromRow int    `json:"fromRow"`
	ToRow   int    `json:"toRow"`
}

type searchResponse struct {
	ErrorMessage string `json:"ErrorMessage"`
	Plans        []struct {
		PlanNumber   string `json:"planNumber"`
		PlanName     string `json:"planName"`
		Status       string `json:"status"`
		StatusDate   string `json:"statusDate"`
		Authority    string `json:"authority"`
		DocumentsURL string `json:"documentsUrl"`
	} `json:"plansSmall"`
}

func (c *httpClient) PlansByParcel(ctx context.Context, block, plot string) ([]Plan, error) {
	if block == "" || plot == "" {
		return nil, eris.New("rami: block and plot are required")
	}

	payload, err := json.Marshal(searchRequest{Gush: block, Chelka: plot, FromRow: 0, ToRow: 100})
	if err != nil {
		return nil, eris.Wrap(err, "rami: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/MichrazimSite/api/SearchPlansApi/Search", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "rami: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "rami: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "rami: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("rami: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "rami: unmarshal response")
	}
	if parsed.ErrorMessage != "" {
		return nil, eris.Errorf("rami: api error: %s", parsed.ErrorMessage)
	}

	out := make([]Plan, 0, len(parsed.Plans))
	for _, p := range parsed.Plans {
		out = append(out, Plan{
			PlanNumber:   p.PlanNumber,
			Name:         p.PlanName,
			Status:       p.Status,
			StatusDate:   p.StatusDate,
			Authority:    p.Authority,
			DocumentsURL: p.DocumentsURL,
		})
	}
	return out, nil
}
