// Package yad2 provides a client for the yad2.co.il real-estate listing feed.
// The feed throttles aggressively, so all calls share a rate limiter and
// transient statuses are retried with backoff.
package yad2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the listing feed operations.
type Client interface {
	// Search returns listings matching the query. An empty result set is not
	// an error.
	Search(ctx context.Context, q SearchQuery) ([]Listing, error)
}

// SearchQuery narrows a listing search. City and Street are free-text Hebrew;
// the client normalizes them before sending.
type SearchQuery struct {
	City    string
	Street  string
	Number  int
	Area    string
	MaxPage int
}

// Listing is one normalized feed item.
type Listing struct {
	Token        string  `json:"token"`
	Title        string  `json:"title"`
	Price        float64 `json:"price"`
	Rooms        float64 `json:"rooms"`
	Floor        int     `json:"floor"`
	SquareMeters float64 `json:"square_meters"`
	Address      string  `json:"address"`
	City         string  `json:"city"`
	UpdatedAt    string  `json:"updated_at"`
	URL          string  `json:"url"`
}

// Option configures the yad2 client.
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

// WithRateLimit overrides the default request rate.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMaxRetries overrides the retry count for throttled or failed requests.
func WithMaxRetries(n int) Option {
	return func(c *httpClient) {
		c.maxRetries = n
	}
}

type httpClient struct {
	baseURL    string
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

// NewClient creates a new yad2 feed client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://gw.yad2.co.il",
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		// One request per 2s keeps us under the feed's soft limit.
		limiter:    rate.NewLimiter(rate.Every(2*time.Second), 1),
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type feedResponse struct {
	Data struct {
		Feed struct {
			FeedItems  []feedItem `json:"feed_items"`
			TotalPages int        `json:"total_pages"`
		} `json:"feed"`
	} `json:"data"`
}

type feedItem struct {
	Token        string          `json:"token"`
	Title        string          `json:"title_1"`
	Price        json.RawMessage `json:"price"`
	Rooms        float64         `json:"Rooms_text,string"`
	Line2        string          `json:"line_2"`
	Street       string          `json:"street"`
	City         string          `json:"city"`
	Floor        int             `json:"line_1_floor"`
	SquareMeters float64         `json:"square_meters"`
	UpdatedAt    string          `json:"date"`
}

func (c *httpClient) Search(ctx context.Context, q SearchQuery) ([]Listing, error) {
	maxPage := q.MaxPage
	if maxPage <= 0 {
		maxPage = 1
	}

	var out []Listing
	for page := 1; page <= maxPage; page++ {
		items, totalPages, err := c.searchPage(ctx, q, page)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if page >= totalPages {
			break
		}
	}
	return out, nil
}

func (c *httpClient) searchPage(ctx context.Context, q SearchQuery, page int) ([]Listing, int, error) {
	params := url.Values{}
	params.Set("page", fmt.Sprintf("%d", page))
	if q.City != "" {
		params.Set("city", NormalizeHebrew(q.City))
	}
	if q.Street != "" {
		params.Set("street", NormalizeHebrew(q.Street))
	}
	if q.Number > 0 {
		params.Set("houseNumber", fmt.Sprintf("%d", q.Number))
	}
	if q.Area != "" {
		params.Set("neighborhood", NormalizeHebrew(q.Area))
	}

	body, err := c.getWithRetry(ctx, "/feed-search-legacy/realestate/forsale?"+params.Encode())
	if err != nil {
		return nil, 0, err
	}

	var resp feedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, 0, eris.Wrap(err, "yad2: unmarshal feed response")
	}

	items := make([]Listing, 0, len(resp.Data.Feed.FeedItems))
	for _, it := range resp.Data.Feed.FeedItems {
		items = append(items, Listing{
			Token:        it.Token,
			Title:        it.Title,
			Price:        parsePrice(it.Price),
			Rooms:        it.Rooms,
			Floor:        it.Floor,
			SquareMeters: it.SquareMeters,
			Address:      it.Line2,
			City:         it.City,
			UpdatedAt:    it.UpdatedAt,
			URL:          "https://www.yad2.co.il/item/" + it.Token,
		})
	}
	return items, resp.Data.Feed.TotalPages, nil
}

func (c *httpClient) getWithRetry(ctx context.Context, path string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, eris.Wrap(ctx.Err(), "yad2: retry cancelled")
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "yad2: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, eris.Wrap(err, "yad2: create request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = eris.Wrap(err, "yad2: request failed")
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = eris.Wrap(readErr, "yad2: read response body")
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = eris.Errorf("yad2: status %d", resp.StatusCode)
			continue
		default:
			return nil, eris.Errorf("yad2: unexpected status %d: %s", resp.StatusCode, string(body))
		}
	}
	return nil, eris.Wrapf(lastErr, "yad2: request failed after %d retries", c.maxRetries)
}

// parsePrice accepts the feed's two price encodings: a bare number or a
// grouped string like "2,500,000 ₪".
func parsePrice(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	var digits []rune
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) == 0 {
		return 0
	}
	var v float64
	for _, d := range digits {
		v = v*10 + float64(d-'0')
	}
	return v
}
