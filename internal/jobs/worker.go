package jobs

import (
	"context"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/enrich"
)

// RunWorker registers the enrichment workflow and activity on the task queue
// and blocks until ctx is cancelled.
func RunWorker(ctx context.Context, c client.Client, taskQueue string, orch *enrich.Orchestrator) error {
	w := worker.New(c, taskQueue, worker.Options{})

	w.RegisterWorkflowWithOptions(EnrichWorkflow, workflow.RegisterOptions{Name: WorkflowName})

	acts := &Activities{Orch: orch}
	w.RegisterActivityWithOptions(acts.EnrichAsset, activity.RegisterOptions{Name: ActivityEnrichAsset})

	if err := w.Start(); err != nil {
		return eris.Wrap(err, "jobs: start worker")
	}
	zap.L().Info("enrichment worker started", zap.String("task_queue", taskQueue))

	<-ctx.Done()
	w.Stop()
	zap.L().Info("enrichment worker stopped")
	return nil
}
