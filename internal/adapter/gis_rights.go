package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
	"github.com/MrAnde7son/realestate-agent-sub002/pkg/tlvgis"
	"github.com/rotisserie/eris"
)

// GisRights pulls land-use rights for the parcel covering the asset's
// geocoded point. Beyond the rights figures it contributes the parcel's
// block and plot, which unlock the land-authority adapters on re-runs.
type GisRights struct {
	client  tlvgis.Client
	timeout time.Duration
}

// NewGisRights creates the rights-layer adapter.
func NewGisRights(client tlvgis.Client, timeout time.Duration) *GisRights {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &GisRights{client: client, timeout: timeout}
}

func (a *GisRights) Name() model.Source           { return model.SourceGisRights }
func (a *GisRights) Timeout() time.Duration       { return a.timeout }
func (a *GisRights) Applicable(actx Context) bool { return actx.Geocoded }

func (a *GisRights) Fetch(ctx context.Context, actx Context, sink RecordSink) ([]model.SourceRecord, error) {
	rights, err := a.client.QueryRights(ctx, actx.X, actx.Y)
	if err != nil {
		return nil, Classify(model.SourceGisRights, err)
	}
	if rights == nil {
		return nil, nil
	}

	fields := map[string]any{
		model.FieldX: actx.X,
		model.FieldY: actx.Y,
	}
	if rights.Block != "" {
		fields[model.FieldBlock] = rights.Block
	}
	if rights.Plot != "" {
		fields[model.FieldPlot] = rights.Plot
	}
	if rights.PlanNumber != "" {
		fields[model.FieldPlanNumber] = rights.PlanNumber
	}
	if rights.MainRightsSqm > 0 {
		fields[model.FieldMainRightsSqm] = rights.MainRightsSqm
	}
	if rights.ServiceRightsSqm > 0 {
		fields[model.FieldServiceRightsSqm] = rights.ServiceRightsSqm
	}
	if rights.RemainingRightsSqm > 0 {
		fields[model.FieldRemainingRightsSqm] = rights.RemainingRightsSqm
	}
	if rights.ParcelAreaSqm > 0 {
		fields[model.FieldGrossSqm] = rights.ParcelAreaSqm
	}

	rec := model.SourceRecord{
		AssetID: actx.Asset.ID,
		Source:  model.SourceGisRights,
		Fields:  fields,
		FieldURLs: map[string]string{
			"": fmt.Sprintf("https://gisn.tel-aviv.gov.il/iview2js4/index.aspx?x=%.2f&y=%.2f", actx.X, actx.Y),
		},
		FetchedAt: time.Now().UTC(),
	}
	stored, err := sink.MergeRecord(ctx, rec)
	if err != nil {
		return nil, NewError(model.SourceGisRights, KindStorageError, eris.Wrap(err, "persist rights record"))
	}
	return []model.SourceRecord{*stored}, nil
}
