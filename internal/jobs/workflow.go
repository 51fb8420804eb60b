// Package jobs dispatches enrichment runs through Temporal. The workflow ID
// is derived from the asset id, so Temporal itself rejects a second
// concurrent run for the same asset — the distributed counterpart of the
// in-process queue's dedupe.
package jobs

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/enrich"
)

// WorkflowName identifies the enrichment workflow type.
const WorkflowName = "EnrichAsset"

// EnrichInput is the workflow/activity payload.
type EnrichInput struct {
	AssetID string `json:"asset_id"`
}

// Error types the activity marks non-retryable. Parse and auth failures need
// a code or credential fix; replaying them burns quota for nothing.
const (
	errTypeParse         = "parse_error"
	errTypeAuth          = "auth_error"
	errTypeRunInProgress = "run_in_progress"
	errTypeNotFound      = "asset_not_found"
)

// EnrichWorkflow runs one enrichment pass for an asset as a single activity
// with Temporal-managed retries for transient failures.
func EnrichWorkflow(ctx workflow.Context, input EnrichInput) (*enrich.RunResult, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    2 * time.Minute,
			MaximumAttempts:    3,
			NonRetryableErrorTypes: []string{
				errTypeParse, errTypeAuth, errTypeRunInProgress, errTypeNotFound,
			},
		},
	})

	var result enrich.RunResult
	if err := workflow.ExecuteActivity(ctx, ActivityEnrichAsset, input).Get(ctx, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
