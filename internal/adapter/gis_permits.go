package adapter

import (
	"context"
	"time"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
	"github.com/MrAnde7son/realestate-agent-sub002/pkg/tlvgis"
	"github.com/rotisserie/eris"
)

// GisPermits pulls building permits from the municipal GIS around the
// asset's geocoded point. It emits a single record whose permits field holds
// the full permit list.
type GisPermits struct {
	client  tlvgis.Client
	radiusM int
	timeout time.Duration
}

// NewGisPermits creates the permit-layer adapter.
func NewGisPermits(client tlvgis.Client, radiusM int, timeout time.Duration) *GisPermits {
	if radiusM <= 0 {
		radiusM = 30
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &GisPermits{client: client, radiusM: radiusM, timeout: timeout}
}

func (a *GisPermits) Name() model.Source     { return model.SourceGisPermit }
func (a *GisPermits) Timeout() time.Duration { return a.timeout }

// Applicable requires a geocoded point: without coordinates the permit layer
// cannot be queried at all.
func (a *GisPermits) Applicable(actx Context) bool { return actx.Geocoded }

func (a *GisPermits) Fetch(ctx context.Context, actx Context, sink RecordSink) ([]model.SourceRecord, error) {
	permits, err := a.client.QueryPermits(ctx, actx.X, actx.Y, a.radiusM)
	if err != nil {
		return nil, Classify(model.SourceGisPermit, err)
	}
	if len(permits) == 0 {
		return nil, nil
	}

	list := make([]map[string]any, 0, len(permits))
	urls := map[string]string{"": permitLayerURL}
	for _, p := range permits {
		list = append(list, map[string]any{
			"requestNumber": p.RequestNumber,
			"address":       p.Address,
			"description":   p.Description,
			"status":        p.Status,
			"issuedAt":      p.IssuedAt,
			"areaSqm":       p.AreaSqm,
		})
		if p.URL != "" {
			urls[model.FieldPermits] = p.URL
		}
	}

	rec := model.SourceRecord{
		AssetID:   actx.Asset.ID,
		Source:    model.SourceGisPermit,
		Fields:    map[string]any{model.FieldPermits: list},
		FieldURLs: urls,
		FetchedAt: time.Now().UTC(),
	}
	stored, err := sink.MergeRecord(ctx, rec)
	if err != nil {
		return nil, NewError(model.SourceGisPermit, KindStorageError, eris.Wrap(err, "persist permit record"))
	}
	return []model.SourceRecord{*stored}, nil
}

const permitLayerURL = "https://gisn.tel-aviv.gov.il/iview2js4/index.aspx?layer=permits"
