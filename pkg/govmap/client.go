// Package govmap provides a client for the govmap.gov.il geocoding API,
// resolving free-text Israeli addresses to projected ITM (EPSG:2039)
// coordinates.
package govmap

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the geocoding operations.
type Client interface {
	// Geocode resolves a free-text address. A miss is reported via
	// Result.Matched, not an error; errors mean the service itself failed.
	Geocode(ctx context.Context, query string) (*Result, error)
}

// Result holds one geocoding outcome in ITM coordinates.
type Result struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Accuracy int     `json:"accuracy"`
	Matched  bool    `json:"matched"`
	Address  string  `json:"address,omitempty"`
}

// Option configures the govmap client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a new govmap geocoding client.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: "https://ags.govmap.gov.il",
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type geocodeRequest struct {
	Keyword string `json:"keyword"`
	Type    int    `json:"type"`
	Token   string `json:"token,omitempty"`
}

type geocodeResponse struct {
	Data []struct {
		X            float64 `json:"X"`
		Y            float64 `json:"Y"`
		AccuracyType int     `json:"AccuracyType"`
		ResultLabel  string  `json:"ResultLable"` // sic: API field is misspelled upstream
	} `json:"data"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"Error"`
}

func (c *httpClient) Geocode(ctx context.Context, query string) (*Result, error) {
	payload, err := json.Marshal(geocodeRequest{Keyword: query, Type: 0, Token: c.token})
	if err != nil {
		return nil, eris.Wrap(err, "govmap: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/Search/SearchApi/SearchAndLocate", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "govmap: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "govmap: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "govmap: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("govmap: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result geocodeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "govmap: unmarshal response")
	}
	if result.Error != nil && result.Error.Code != 0 {
		return nil, eris.Errorf("govmap: api error %d: %s", result.Error.Code, result.Error.Message)
	}

	if len(result.Data) == 0 {
		return &Result{Matched: false}, nil
	}

	best := result.Data[0]
	return &Result{
		X:        best.X,
		Y:        best.Y,
		Accuracy: best.AccuracyType,
		Matched:  true,
		Address:  best.ResultLabel,
	}, nil
}
