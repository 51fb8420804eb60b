package yad2

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHebrew(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"הַגּוֹלָן", "הגולן"},
		{"רחוב הגולן", "הגולן"},
		{"רח' אבן גבירול", "אבן גבירול"},
		{"  תל   אביב ", "תל אביב"},
		{"Florentin", "Florentin"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeHebrew(tc.in))
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()

	t.Run("parses feed items", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "הגולן", r.URL.Query().Get("street"))
			assert.Equal(t, "1", r.URL.Query().Get("houseNumber"))
			_, _ = w.Write([]byte(`{"data":{"feed":{"total_pages":1,"feed_items":[
				{"token":"abc123","title_1":"דירה 3 חדרים","price":"2,500,000 ₪","Rooms_text":"3","line_2":"הגולן 1, תל אביב","city":"תל אביב","line_1_floor":2,"square_meters":78,"date":"2025-11-02"}
			]}}}`))
		}))
		defer srv.Close()

		c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000, 10))
		listings, err := c.Search(context.Background(), SearchQuery{City: "תל אביב", Street: "רחוב הגולן", Number: 1})
		require.NoError(t, err)
		require.Len(t, listings, 1)

		l := listings[0]
		assert.Equal(t, "abc123", l.Token)
		assert.Equal(t, 2500000.0, l.Price)
		assert.Equal(t, 3.0, l.Rooms)
		assert.Equal(t, 2, l.Floor)
		assert.Equal(t, 78.0, l.SquareMeters)
		assert.Equal(t, "https://www.yad2.co.il/item/abc123", l.URL)
	})

	t.Run("empty feed is not an error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"feed":{"total_pages":0,"feed_items":[]}}}`))
		}))
		defer srv.Close()

		c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000, 10))
		listings, err := c.Search(context.Background(), SearchQuery{City: "תל אביב"})
		require.NoError(t, err)
		assert.Empty(t, listings)
	})

	t.Run("retries throttled responses", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte(`{"data":{"feed":{"total_pages":0,"feed_items":[]}}}`))
		}))
		defer srv.Close()

		c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000, 10), WithMaxRetries(2))
		_, err := c.Search(context.Background(), SearchQuery{City: "תל אביב"})
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("client errors do not retry", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000, 10), WithMaxRetries(3))
		_, err := c.Search(context.Background(), SearchQuery{City: "תל אביב"})
		assert.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestParsePrice(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2500000.0, parsePrice([]byte(`2500000`)))
	assert.Equal(t, 2500000.0, parsePrice([]byte(`"2,500,000 ₪"`)))
	assert.Equal(t, 0.0, parsePrice([]byte(`"לא צוין מחיר"`)))
	assert.Equal(t, 0.0, parsePrice(nil))
}
