// Package gov provides a client for the gov.il decisive-appraisal registry,
// which publishes binding valuation rulings ("שמאי מכריע") per land parcel.
package gov

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// ErrAccessDenied is returned when the registry rejects the request outright,
// typically after the portal rotates its anti-bot token.
var ErrAccessDenied = eris.New("gov: access denied")

// Client defines the decisive-appraisal lookups.
type Client interface {
	// DecisiveByParcel returns the appraisal rulings filed for the given
	// block ("gush") and plot ("chelka"). Empty means none filed.
	DecisiveByParcel(ctx context.Context, block, plot string) ([]Appraisal, error)
}

// Appraisal is one decisive-appraisal ruling.
type Appraisal struct {
	CaseNumber   string `json:"case_number"`
	Block        string `json:"block"`
	Plot         string `json:"plot"`
	Appraiser    string `json:"appraiser"`
	Committee    string `json:"committee"`
	DecisionDate string `json:"decision_date"`
	DocumentURL  string `json:"document_url,omitempty"`
}

// Option configures the gov client.
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

// NewClient creates a new gov.il decisive-appraisal client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://www.gov.il",
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchResponse struct {
	TotalResults int `json:"TotalResults"`
	Results      []struct {
		Data struct {
			CaseNumber   string `json:"mispar_tik"`
			Block        string `json:"gush"`
			Plot         string `json:"chelka"`
			Appraiser    string `json:"shamay_machria"`
			Committee    string `json:"vaada"`
			DecisionDate string `json:"taarich_hachlata"`
			DocumentURL  string `json:"kishur_mismach"`
		} `json:"Data"`
	} `json:"Results"`
}

func (c *httpClient) DecisiveByParcel(ctx context.Context, block, plot string) ([]Appraisal, error) {
	if block == "" || plot == "" {
		return nil, eris.New("gov: block and plot are required")
	}

	params := url.Values{}
	params.Set("gush", block)
	params.Set("chelka", plot)
	params.Set("skip", "0")
	params.Set("limit", "100")

	endpoint := c.baseURL + "/he/api/DynamicCollector/decisive-appraiser?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "gov: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "gov: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "gov: read response body")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, eris.Wrapf(ErrAccessDenied, "status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("gov: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "gov: unmarshal response")
	}

	out := make([]Appraisal, 0, len(parsed.Results))
	for _, res := range parsed.Results {
		d := res.Data
		out = append(out, Appraisal{
			CaseNumber:   d.CaseNumber,
			Block:        d.Block,
			Plot:         d.Plot,
			Appraiser:    d.Appraiser,
			Committee:    d.Committee,
			DecisionDate: d.DecisionDate,
			DocumentURL:  d.DocumentURL,
		})
	}
	return out, nil
}
