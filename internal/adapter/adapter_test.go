package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
	"github.com/MrAnde7son/realestate-agent-sub002/pkg/gov"
	"github.com/MrAnde7son/realestate-agent-sub002/pkg/rami"
	"github.com/MrAnde7son/realestate-agent-sub002/pkg/tlvgis"
	"github.com/MrAnde7son/realestate-agent-sub002/pkg/yad2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSink collects merged records in memory, stamping ids like the store does.
type memSink struct {
	records []model.SourceRecord
	err     error
}

func (s *memSink) MergeRecord(_ context.Context, rec model.SourceRecord) (*model.SourceRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	rec.ID = uuid.NewString()
	s.records = append(s.records, rec)
	return &rec, nil
}

type fakeYad2 struct {
	listings []yad2.Listing
	err      error
}

func (f *fakeYad2) Search(context.Context, yad2.SearchQuery) ([]yad2.Listing, error) {
	return f.listings, f.err
}

type fakeTlv struct {
	permits []tlvgis.Permit
	rights  *tlvgis.Rights
	err     error
}

func (f *fakeTlv) QueryPermits(context.Context, float64, float64, int) ([]tlvgis.Permit, error) {
	return f.permits, f.err
}

func (f *fakeTlv) QueryRights(context.Context, float64, float64) (*tlvgis.Rights, error) {
	return f.rights, f.err
}

type fakeGov struct {
	rulings []gov.Appraisal
	err     error
}

func (f *fakeGov) DecisiveByParcel(context.Context, string, string) ([]gov.Appraisal, error) {
	return f.rulings, f.err
}

type fakeRami struct {
	plans []rami.Plan
	err   error
}

func (f *fakeRami) PlansByParcel(context.Context, string, string) ([]rami.Plan, error) {
	return f.plans, f.err
}

func addressCtx() Context {
	return Context{
		Asset: model.Asset{
			ID: "asset-1",
			Scope: model.Scope{
				Type: model.ScopeAddress, City: "תל אביב", Street: "הגולן", Number: 1,
			},
		},
		Address:  "הגולן 1, תל אביב",
		X:        184320.94,
		Y:        668548.65,
		Geocoded: true,
		Block:    "6638",
		Plot:     "96",
	}
}

func TestYad2Adapter(t *testing.T) {
	t.Parallel()

	t.Run("emits per-listing records plus comps aggregate", func(t *testing.T) {
		t.Parallel()
		client := &fakeYad2{listings: []yad2.Listing{
			{Token: "a1", Price: 2500000, Rooms: 3, SquareMeters: 78, Address: "הגולן 1, תל אביב", City: "תל אביב", URL: "https://www.yad2.co.il/item/a1"},
			{Token: "a2", Price: 2650000, Rooms: 3.5, SquareMeters: 82, Address: "הגולן 3, תל אביב", City: "תל אביב", URL: "https://www.yad2.co.il/item/a2"},
		}}
		sink := &memSink{}
		a := NewYad2(client, 0)

		recs, err := a.Fetch(context.Background(), addressCtx(), sink)
		require.NoError(t, err)
		require.Len(t, recs, 3)

		assert.Equal(t, 2500000.0, recs[0].Fields[model.FieldPrice])
		assert.Equal(t, "https://www.yad2.co.il/item/a1", recs[0].URLFor(model.FieldPrice))

		comps, ok := recs[2].Fields[model.FieldComps].([]map[string]any)
		require.True(t, ok)
		assert.Len(t, comps, 2)

		for _, r := range recs {
			assert.NotEmpty(t, r.ID)
			assert.Equal(t, "asset-1", r.AssetID)
			assert.Equal(t, model.SourceYad2, r.Source)
		}
	})

	t.Run("no listings means no records and no error", func(t *testing.T) {
		t.Parallel()
		sink := &memSink{}
		a := NewYad2(&fakeYad2{}, 0)
		recs, err := a.Fetch(context.Background(), addressCtx(), sink)
		require.NoError(t, err)
		assert.Empty(t, recs)
		assert.Empty(t, sink.records)
	})

	t.Run("client error is classified", func(t *testing.T) {
		t.Parallel()
		a := NewYad2(&fakeYad2{err: context.DeadlineExceeded}, 0)
		_, err := a.Fetch(context.Background(), addressCtx(), &memSink{})
		var ae *Error
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, KindTimeout, ae.Kind)
		assert.Equal(t, model.SourceYad2, ae.Source)
	})

	t.Run("applicability needs city plus street or area", func(t *testing.T) {
		t.Parallel()
		a := NewYad2(&fakeYad2{}, 0)
		assert.True(t, a.Applicable(addressCtx()))

		actx := addressCtx()
		actx.Asset.Scope.Street = ""
		assert.False(t, a.Applicable(actx))

		actx.Asset.Scope.Area = "פלורנטין"
		assert.True(t, a.Applicable(actx))
	})
}

func TestGisPermitsAdapter(t *testing.T) {
	t.Parallel()

	t.Run("emits one record with the permit list", func(t *testing.T) {
		t.Parallel()
		client := &fakeTlv{permits: []tlvgis.Permit{{RequestNumber: "2023-1234", Status: "הוצא היתר"}}}
		sink := &memSink{}
		a := NewGisPermits(client, 30, 0)

		recs, err := a.Fetch(context.Background(), addressCtx(), sink)
		require.NoError(t, err)
		require.Len(t, recs, 1)

		list, ok := recs[0].Fields[model.FieldPermits].([]map[string]any)
		require.True(t, ok)
		require.Len(t, list, 1)
		assert.Equal(t, "2023-1234", list[0]["requestNumber"])
	})

	t.Run("not applicable without geocode", func(t *testing.T) {
		t.Parallel()
		a := NewGisPermits(&fakeTlv{}, 30, 0)
		actx := addressCtx()
		actx.Geocoded = false
		assert.False(t, a.Applicable(actx))
	})

	t.Run("sink failure is a storage error, not retryable", func(t *testing.T) {
		t.Parallel()
		client := &fakeTlv{permits: []tlvgis.Permit{{RequestNumber: "x"}}}
		a := NewGisPermits(client, 30, 0)
		_, err := a.Fetch(context.Background(), addressCtx(), &memSink{err: errors.New("disk full")})
		require.Error(t, err)
		var ae *Error
		require.True(t, errors.As(err, &ae))
		assert.Equal(t, KindStorageError, ae.Kind)
		assert.False(t, Retryable(err))
	})
}

func TestGisRightsAdapter(t *testing.T) {
	t.Parallel()

	t.Run("contributes parcel identifiers and rights figures", func(t *testing.T) {
		t.Parallel()
		client := &fakeTlv{rights: &tlvgis.Rights{
			Block: "6638", Plot: "96", PlanNumber: "תא/3800",
			MainRightsSqm: 450, ServiceRightsSqm: 90, RemainingRightsSqm: 120,
			ParcelAreaSqm: 560,
		}}
		sink := &memSink{}
		a := NewGisRights(client, 0)

		recs, err := a.Fetch(context.Background(), addressCtx(), sink)
		require.NoError(t, err)
		require.Len(t, recs, 1)

		f := recs[0].Fields
		assert.Equal(t, "6638", f[model.FieldBlock])
		assert.Equal(t, "96", f[model.FieldPlot])
		assert.Equal(t, 120.0, f[model.FieldRemainingRightsSqm])
		assert.Equal(t, 184320.94, f[model.FieldX])
		assert.Equal(t, 668548.65, f[model.FieldY])
	})

	t.Run("no covering parcel yields no record", func(t *testing.T) {
		t.Parallel()
		a := NewGisRights(&fakeTlv{}, 0)
		recs, err := a.Fetch(context.Background(), addressCtx(), &memSink{})
		require.NoError(t, err)
		assert.Empty(t, recs)
	})
}

func TestGovDecisiveAdapter(t *testing.T) {
	t.Parallel()

	t.Run("needs parcel identifiers", func(t *testing.T) {
		t.Parallel()
		a := NewGovDecisive(&fakeGov{}, 0)
		assert.True(t, a.Applicable(addressCtx()))

		actx := addressCtx()
		actx.Block = ""
		assert.False(t, a.Applicable(actx))
	})

	t.Run("access denied maps to auth_error", func(t *testing.T) {
		t.Parallel()
		a := NewGovDecisive(&fakeGov{err: gov.ErrAccessDenied}, 0)
		_, err := a.Fetch(context.Background(), addressCtx(), &memSink{})
		var ae *Error
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, KindAuthError, ae.Kind)
		assert.False(t, Retryable(err))
	})

	t.Run("emits one record with the ruling list", func(t *testing.T) {
		t.Parallel()
		a := NewGovDecisive(&fakeGov{rulings: []gov.Appraisal{{CaseNumber: "8001/2022"}}}, 0)
		recs, err := a.Fetch(context.Background(), addressCtx(), &memSink{})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		list, ok := recs[0].Fields[model.FieldDecisiveAppraisals].([]map[string]any)
		require.True(t, ok)
		assert.Len(t, list, 1)
	})
}

func TestRamiPlansAdapter(t *testing.T) {
	t.Parallel()

	t.Run("first plan contributes scalar plan fields", func(t *testing.T) {
		t.Parallel()
		a := NewRamiPlans(&fakeRami{plans: []rami.Plan{
			{PlanNumber: "תא/3800", Status: "מאושרת"},
			{PlanNumber: "תא/5000", Status: "בהפקדה"},
		}}, 0)
		recs, err := a.Fetch(context.Background(), addressCtx(), &memSink{})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "תא/3800", recs[0].Fields[model.FieldPlanNumber])
		assert.Equal(t, "מאושרת", recs[0].Fields[model.FieldPlanStatus])
	})
}

func TestRegistryOrder(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(NewYad2(&fakeYad2{}, 0))
	r.Register(NewGisPermits(&fakeTlv{}, 30, 0))
	r.Register(NewGisRights(&fakeTlv{}, 0))
	r.Register(NewGovDecisive(&fakeGov{}, 0))
	r.Register(NewRamiPlans(&fakeRami{}, 0))

	all := r.All()
	require.Len(t, all, 5)
	assert.Equal(t, model.SourceYad2, all[0].Name())
	assert.Equal(t, model.SourceRamiPlan, all[4].Name())
	assert.NotNil(t, r.Get(model.SourceGisRights))
	assert.Nil(t, r.Get(model.Source("unknown")))

	// Re-registering replaces without duplicating.
	r.Register(NewYad2(&fakeYad2{}, time.Second))
	assert.Len(t, r.All(), 5)
}
