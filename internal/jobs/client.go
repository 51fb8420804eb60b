package jobs

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/config"
	"github.com/MrAnde7son/realestate-agent-sub002/internal/enrich"
)

// WorkflowID returns the deterministic workflow id for an asset's
// enrichment run.
func WorkflowID(assetID string) string {
	return "enrich-" + assetID
}

// Dispatcher starts enrichment workflows on a Temporal cluster.
type Dispatcher struct {
	client    client.Client
	taskQueue string
}

// NewDispatcher connects to Temporal. Returns nil when no address is
// configured; callers then fall back to the in-process queue.
func NewDispatcher(ctx context.Context, cfg config.TemporalConfig) (*Dispatcher, error) {
	if cfg.Address == "" {
		return nil, nil
	}

	c, err := client.DialContext(ctx, client.Options{
		HostPort:  cfg.Address,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "jobs: dial temporal %s", cfg.Address)
	}
	return &Dispatcher{client: c, taskQueue: cfg.TaskQueue}, nil
}

// Client exposes the underlying Temporal client for worker setup.
func (d *Dispatcher) Client() client.Client {
	return d.client
}

// Start launches an enrichment workflow for the asset and returns the run
// id. A run already live for the same asset maps to ErrRunInProgress.
func (d *Dispatcher) Start(ctx context.Context, assetID string) (string, error) {
	run, err := d.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                                       WorkflowID(assetID),
		TaskQueue:                                d.taskQueue,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, WorkflowName, EnrichInput{AssetID: assetID})
	if err != nil {
		var already *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &already) {
			return "", eris.Wrapf(enrich.ErrRunInProgress, "asset %s", assetID)
		}
		return "", eris.Wrapf(err, "jobs: start workflow for asset %s", assetID)
	}

	zap.L().Info("enrichment workflow started",
		zap.String("asset_id", assetID),
		zap.String("workflow_id", run.GetID()),
		zap.String("run_id", run.GetRunID()),
	)
	return run.GetRunID(), nil
}

// Close releases the Temporal connection.
func (d *Dispatcher) Close() {
	if d != nil && d.client != nil {
		d.client.Close()
	}
}
