package rami

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlansByParcel(t *testing.T) {
	t.Parallel()

	t.Run("parses plans", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "6638", req["gush"])
			assert.Equal(t, "96", req["chelka"])
			_, _ = w.Write([]byte(`{"plansSmall":[
				{"planNumber":"תא/3800","planName":"מתאר תל אביב","status":"מאושרת","statusDate":"2016-12-21","authority":"מחוזית תל אביב"},
				{"planNumber":"תא/5000","planName":"תכנית רובעים","status":"בהפקדה","statusDate":"2024-03-05","authority":"מקומית תל אביב"}
			]}`))
		}))
		defer srv.Close()

		c := NewClient(WithBaseURL(srv.URL))
		plans, err := c.PlansByParcel(context.Background(), "6638", "96")
		require.NoError(t, err)
		require.Len(t, plans, 2)
		assert.Equal(t, "תא/3800", plans[0].PlanNumber)
		assert.Equal(t, "מאושרת", plans[0].Status)
	})

	t.Run("no plans is empty", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"plansSmall":[]}`))
		}))
		defer srv.Close()

		c := NewClient(WithBaseURL(srv.URL))
		plans, err := c.PlansByParcel(context.Background(), "6638", "97")
		require.NoError(t, err)
		assert.Empty(t, plans)
	})

	t.Run("missing parcel identifiers rejected", func(t *testing.T) {
		t.Parallel()
		c := NewClient()
		_, err := c.PlansByParcel(context.Background(), "6638", "")
		assert.Error(t, err)
	})

	t.Run("api error message surfaces", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"ErrorMessage":"invalid parcel"}`))
		}))
		defer srv.Close()

		c := NewClient(WithBaseURL(srv.URL))
		_, err := c.PlansByParcel(context.Background(), "0", "0")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid parcel")
	})
}
