package gov

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisiveByParcel(t *testing.T) {
	t.Parallel()

	t.Run("parses rulings", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "6638", r.URL.Query().Get("gush"))
			assert.Equal(t, "96", r.URL.Query().Get("chelka"))
			_, _ = w.Write([]byte(`{"TotalResults":1,"Results":[{"Data":{
				"mispar_tik":"8001/2022","gush":"6638","chelka":"96","shamay_machria":"י. כהן","vaada":"תל אביב","taarich_hachlata":"2022-09-14","kishur_mismach":"https://www.gov.il/doc/8001-2022"
			}}]}`))
		}))
		defer srv.Close()

		c := NewClient(WithBaseURL(srv.URL))
		rulings, err := c.DecisiveByParcel(context.Background(), "6638", "96")
		require.NoError(t, err)
		require.Len(t, rulings, 1)
		assert.Equal(t, "8001/2022", rulings[0].CaseNumber)
		assert.Equal(t, "י. כהן", rulings[0].Appraiser)
	})

	t.Run("no rulings is empty", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"TotalResults":0,"Results":[]}`))
		}))
		defer srv.Close()

		c := NewClient(WithBaseURL(srv.URL))
		rulings, err := c.DecisiveByParcel(context.Background(), "6638", "97")
		require.NoError(t, err)
		assert.Empty(t, rulings)
	})

	t.Run("missing parcel identifiers rejected", func(t *testing.T) {
		t.Parallel()
		c := NewClient()
		_, err := c.DecisiveByParcel(context.Background(), "", "96")
		assert.Error(t, err)
	})

	t.Run("access denied surfaces", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		c := NewClient(WithBaseURL(srv.URL))
		_, err := c.DecisiveByParcel(context.Background(), "6638", "96")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "access denied")
	})
}
