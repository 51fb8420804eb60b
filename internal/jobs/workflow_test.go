package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/enrich"
	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
)

func newTestEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflowWithOptions(EnrichWorkflow, workflow.RegisterOptions{Name: WorkflowName})
	env.RegisterActivityWithOptions(
		func(context.Context, EnrichInput) (*enrich.RunResult, error) { return nil, nil },
		activity.RegisterOptions{Name: ActivityEnrichAsset},
	)
	return env
}

func TestEnrichWorkflowSuccess(t *testing.T) {
	env := newTestEnv(t)

	want := &enrich.RunResult{AssetID: "asset-1", Status: model.StatusDone, Succeeded: 2}
	env.OnActivity(ActivityEnrichAsset, mock.Anything, EnrichInput{AssetID: "asset-1"}).
		Return(want, nil).Once()

	env.ExecuteWorkflow(WorkflowName, EnrichInput{AssetID: "asset-1"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var got enrich.RunResult
	require.NoError(t, env.GetWorkflowResult(&got))
	assert.Equal(t, model.StatusDone, got.Status)
	env.AssertExpectations(t)
}

func TestEnrichWorkflowRetriesTransientActivityFailure(t *testing.T) {
	env := newTestEnv(t)

	want := &enrich.RunResult{AssetID: "asset-1", Status: model.StatusDone}
	env.OnActivity(ActivityEnrichAsset, mock.Anything, mock.Anything).
		Return(nil, errors.New("store unavailable")).Once()
	env.OnActivity(ActivityEnrichAsset, mock.Anything, mock.Anything).
		Return(want, nil).Once()

	env.ExecuteWorkflow(WorkflowName, EnrichInput{AssetID: "asset-1"})
	require.True(t, env.IsWorkflowCompleted())
	assert.NoError(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}

func TestEnrichWorkflowDoesNotRetryNonRetryable(t *testing.T) {
	env := newTestEnv(t)

	env.OnActivity(ActivityEnrichAsset, mock.Anything, mock.Anything).
		Return(nil, temporal.NewNonRetryableApplicationError("already running", errTypeRunInProgress, nil)).
		Once()

	env.ExecuteWorkflow(WorkflowName, EnrichInput{AssetID: "asset-1"})
	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}

func TestWorkflowID(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "enrich-abc-123", WorkflowID("abc-123"))
}
