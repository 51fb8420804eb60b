package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
	"github.com/MrAnde7son/realestate-agent-sub002/pkg/gov"
	"github.com/rotisserie/eris"
)

// GovDecisive pulls decisive-appraisal rulings from the gov.il registry. It
// needs parcel identifiers, which come either from the asset's scope or from
// a prior gis_rights record.
type GovDecisive struct {
	client  gov.Client
	timeout time.Duration
}

// NewGovDecisive creates the decisive-appraisal adapter.
func NewGovDecisive(client gov.Client, timeout time.Duration) *GovDecisive {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GovDecisive{client: client, timeout: timeout}
}

func (a *GovDecisive) Name() model.Source     { return model.SourceGovDecisive }
func (a *GovDecisive) Timeout() time.Duration { return a.timeout }

func (a *GovDecisive) Applicable(actx Context) bool {
	return actx.Block != "" && actx.Plot != ""
}

func (a *GovDecisive) Fetch(ctx context.Context, actx Context, sink RecordSink) ([]model.SourceRecord, error) {
	rulings, err := a.client.DecisiveByParcel(ctx, actx.Block, actx.Plot)
	if err != nil {
		if errors.Is(err, gov.ErrAccessDenied) {
			return nil, NewError(model.SourceGovDecisive, KindAuthError, err)
		}
		return nil, Classify(model.SourceGovDecisive, err)
	}
	if len(rulings) == 0 {
		return nil, nil
	}

	list := make([]map[string]any, 0, len(rulings))
	urls := map[string]string{"": "https://www.gov.il/he/service/decisive-appraiser"}
	for _, r := range rulings {
		list = append(list, map[string]any{
			"caseNumber":   r.CaseNumber,
			"appraiser":    r.Appraiser,
			"committee":    r.Committee,
			"decisionDate": r.DecisionDate,
		})
		if r.DocumentURL != "" {
			urls[model.FieldDecisiveAppraisals] = r.DocumentURL
		}
	}

	rec := model.SourceRecord{
		AssetID: actx.Asset.ID,
		Source:  model.SourceGovDecisive,
		Fields: map[string]any{
			model.FieldDecisiveAppraisals: list,
			model.FieldBlock:              actx.Block,
			model.FieldPlot:               actx.Plot,
		},
		FieldURLs: urls,
		FetchedAt: time.Now().UTC(),
	}
	stored, err := sink.MergeRecord(ctx, rec)
	if err != nil {
		return nil, NewError(model.SourceGovDecisive, KindStorageError, eris.Wrap(err, "persist appraisal record"))
	}
	return []model.SourceRecord{*stored}, nil
}
