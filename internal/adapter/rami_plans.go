package adapter

import (
	"context"
	"time"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
	"github.com/MrAnde7son/realestate-agent-sub002/pkg/rami"
	"github.com/rotisserie/eris"
)

// RamiPlans pulls statutory plans from the land-authority planning portal
// for the asset's parcel. The newest approved plan also contributes the
// planNumber and planStatus scalar fields.
type RamiPlans struct {
	client  rami.Client
	timeout time.Duration
}

// NewRamiPlans creates the planning-portal adapter.
func NewRamiPlans(client rami.Client, timeout time.Duration) *RamiPlans {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RamiPlans{client: client, timeout: timeout}
}

func (a *RamiPlans) Name() model.Source     { return model.SourceRamiPlan }
func (a *RamiPlans) Timeout() time.Duration { return a.timeout }

func (a *RamiPlans) Applicable(actx Context) bool {
	return actx.Block != "" && actx.Plot != ""
}

func (a *RamiPlans) Fetch(ctx context.Context, actx Context, sink RecordSink) ([]model.SourceRecord, error) {
	plans, err := a.client.PlansByParcel(ctx, actx.Block, actx.Plot)
	if err != nil {
		return nil, Classify(model.SourceRamiPlan, err)
	}
	if len(plans) == 0 {
		return nil, nil
	}

	list := make([]map[string]any, 0, len(plans))
	urls := map[string]string{"": "https://apps.land.gov.il/MichrazimSite/#/search"}
	for _, p := range plans {
		list = append(list, map[string]any{
			"planNumber": p.PlanNumber,
			"name":       p.Name,
			"status":     p.Status,
			"statusDate": p.StatusDate,
			"authority":  p.Authority,
		})
		if p.DocumentsURL != "" {
			urls[model.FieldPlans] = p.DocumentsURL
		}
	}

	fields := map[string]any{model.FieldPlans: list}
	// First entry is the portal's most relevant plan for the parcel.
	fields[model.FieldPlanNumber] = plans[0].PlanNumber
	fields[model.FieldPlanStatus] = plans[0].Status

	rec := model.SourceRecord{
		AssetID:   actx.Asset.ID,
		Source:    model.SourceRamiPlan,
		Fields:    fields,
		FieldURLs: urls,
		FetchedAt: time.Now().UTC(),
	}
	stored, err := sink.MergeRecord(ctx, rec)
	if err != nil {
		return nil, NewError(model.SourceRamiPlan, KindStorageError, eris.Wrap(err, "persist plan record"))
	}
	return []model.SourceRecord{*stored}, nil
}
