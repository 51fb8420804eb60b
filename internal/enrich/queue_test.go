package enrich

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
)

func TestQueueRunsJob(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	asset := newAsset(t, st)

	yad2 := &fakeAdapter{name: model.SourceYad2, fields: map[string]any{model.FieldPrice: 2500000.0}}
	q := NewQueue(context.Background(), newOrchestrator(st, geocodeHit(), yad2), 2, 8)
	defer q.Close()

	job, created, err := q.Enqueue(asset.ID)
	require.NoError(t, err)
	assert.True(t, created)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := job.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, res.Status)
	assert.True(t, job.Done())
}

func TestQueueDeduplicatesPerAsset(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	asset := newAsset(t, st)

	release := make(chan struct{})
	var once sync.Once
	slow := &fakeAdapter{
		name:    model.SourceYad2,
		fields:  map[string]any{model.FieldPrice: 1.0},
		onFetch: func() { <-release },
	}
	q := NewQueue(context.Background(), newOrchestrator(st, geocodeHit(), slow), 2, 8)
	defer q.Close()
	defer once.Do(func() { close(release) })

	first, created, err := q.Enqueue(asset.ID)
	require.NoError(t, err)
	require.True(t, created)

	// While the first job is live, a second enqueue returns the same handle.
	second, created, err := q.Enqueue(asset.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, first, second)

	once.Do(func() { close(release) })
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = first.Wait(ctx)
	require.NoError(t, err)

	// After completion a fresh job is created.
	third, created, err := q.Enqueue(asset.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotSame(t, first, third)
	_, _ = third.Wait(ctx)
}

func TestQueueParallelAssetsIndependent(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	yad2 := &fakeAdapter{name: model.SourceYad2, fields: map[string]any{model.FieldPrice: 1.0}}
	q := NewQueue(context.Background(), newOrchestrator(st, geocodeHit(), yad2), 4, 16)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var jobs []*Job
	for range 5 {
		asset := newAsset(t, st)
		job, created, err := q.Enqueue(asset.ID)
		require.NoError(t, err)
		require.True(t, created)
		jobs = append(jobs, job)
	}
	for _, job := range jobs {
		res, err := job.Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.StatusDone, res.Status)
	}
}

func TestQueueClosedRejectsEnqueue(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	q := NewQueue(context.Background(), newOrchestrator(st, geocodeHit()), 1, 1)
	q.Close()

	_, _, err := q.Enqueue("any")
	assert.ErrorIs(t, err, ErrQueueClosed)
}
