package adapter

import (
	"context"
	"time"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
	"github.com/MrAnde7son/realestate-agent-sub002/pkg/yad2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Yad2 pulls market listings for the asset's address or neighborhood. It
// emits one record per listing plus a single aggregate record holding the
// comparable-sales set, so the resolver sees both the newest listing fields
// and the full market picture.
type Yad2 struct {
	client  yad2.Client
	timeout time.Duration
}

// NewYad2 creates the listing adapter.
func NewYad2(client yad2.Client, timeout time.Duration) *Yad2 {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Yad2{client: client, timeout: timeout}
}

func (a *Yad2) Name() model.Source     { return model.SourceYad2 }
func (a *Yad2) Timeout() time.Duration { return a.timeout }
func (a *Yad2) Applicable(actx Context) bool {
	return actx.Asset.Scope.City != "" &&
		(actx.Asset.Scope.Street != "" || actx.Asset.Scope.Area != "")
}

func (a *Yad2) Fetch(ctx context.Context, actx Context, sink RecordSink) ([]model.SourceRecord, error) {
	scope := actx.Asset.Scope
	listings, err := a.client.Search(ctx, yad2.SearchQuery{
		City:   scope.City,
		Street: scope.Street,
		Number: scope.Number,
		Area:   scope.Area,
	})
	if err != nil {
		return nil, Classify(model.SourceYad2, err)
	}
	if len(listings) == 0 {
		zap.L().Debug("yad2: no listings for scope", zap.String("asset_id", actx.Asset.ID))
		return nil, nil
	}

	now := time.Now().UTC()
	records := make([]model.SourceRecord, 0, len(listings)+1)
	comps := make([]map[string]any, 0, len(listings))

	for _, l := range listings {
		fields := map[string]any{
			model.FieldAddress: l.Address,
			model.FieldCity:    l.City,
		}
		if l.Price > 0 {
			fields[model.FieldPrice] = l.Price
		}
		if l.Rooms > 0 {
			fields[model.FieldRooms] = l.Rooms
		}
		if l.Floor != 0 {
			fields[model.FieldFloor] = l.Floor
		}
		if l.SquareMeters > 0 {
			fields[model.FieldNetSqm] = l.SquareMeters
		}
		records = append(records, model.SourceRecord{
			AssetID:   actx.Asset.ID,
			Source:    model.SourceYad2,
			Fields:    fields,
			FieldURLs: map[string]string{"": l.URL},
			FetchedAt: now,
		})

		comps = append(comps, map[string]any{
			"address": l.Address,
			"price":   l.Price,
			"rooms":   l.Rooms,
			"netSqm":  l.SquareMeters,
			"url":     l.URL,
		})
	}

	records = append(records, model.SourceRecord{
		AssetID:   actx.Asset.ID,
		Source:    model.SourceYad2,
		Fields:    map[string]any{model.FieldComps: comps},
		FieldURLs: map[string]string{"": "https://www.yad2.co.il"},
		FetchedAt: now,
	})

	out := make([]model.SourceRecord, 0, len(records))
	for _, rec := range records {
		stored, err := sink.MergeRecord(ctx, rec)
		if err != nil {
			return nil, NewError(model.SourceYad2, KindStorageError, eris.Wrap(err, "persist listing record"))
		}
		out = append(out, *stored)
	}
	return out, nil
}
