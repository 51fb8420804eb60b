package jobs

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/enrich"
	"github.com/MrAnde7son/realestate-agent-sub002/internal/store"
)

// ActivityEnrichAsset is the registered activity name.
const ActivityEnrichAsset = "EnrichAssetActivity"

// Activities holds the dependencies activity implementations need.
type Activities struct {
	Orch *enrich.Orchestrator
}

// EnrichAsset runs the orchestrator for one asset. Whole-run failures that a
// replay cannot fix are marked non-retryable so Temporal stops immediately.
func (a *Activities) EnrichAsset(ctx context.Context, input EnrichInput) (*enrich.RunResult, error) {
	result, err := a.Orch.Run(ctx, input.AssetID)
	if err != nil {
		switch {
		case errors.Is(err, enrich.ErrRunInProgress):
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), errTypeRunInProgress, err)
		case errors.Is(err, store.ErrNotFound):
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), errTypeNotFound, err)
		default:
			return nil, err
		}
	}
	return result, nil
}
