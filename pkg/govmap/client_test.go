package govmap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeocode(t *testing.T) {
	t.Parallel()

	t.Run("match returns coordinates", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/Search/SearchApi/SearchAndLocate", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":[{"X":184320.94,"Y":668548.65,"AccuracyType":1,"ResultLable":"הגולן 1, תל אביב"}]}`))
		}))
		defer srv.Close()

		c := NewClient("", WithBaseURL(srv.URL))
		res, err := c.Geocode(context.Background(), "הגולן 1, תל אביב")
		require.NoError(t, err)
		assert.True(t, res.Matched)
		assert.InDelta(t, 184320.94, res.X, 0.001)
		assert.InDelta(t, 668548.65, res.Y, 0.001)
	})

	t.Run("no results is a miss not an error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":[]}`))
		}))
		defer srv.Close()

		c := NewClient("", WithBaseURL(srv.URL))
		res, err := c.Geocode(context.Background(), "רחוב שלא קיים 999")
		require.NoError(t, err)
		assert.False(t, res.Matched)
	})

	t.Run("server error surfaces", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		c := NewClient("", WithBaseURL(srv.URL))
		_, err := c.Geocode(context.Background(), "הגולן 1")
		assert.Error(t, err)
	})

	t.Run("api-level error surfaces", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"Error":{"code":401,"message":"invalid token"}}`))
		}))
		defer srv.Close()

		c := NewClient("bad-token", WithBaseURL(srv.URL))
		_, err := c.Geocode(context.Background(), "הגולן 1")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid token")
	})
}
