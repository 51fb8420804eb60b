package enrich

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrQueueClosed is returned by Enqueue after Close.
var ErrQueueClosed = eris.New("enrichment queue closed")

// ErrQueueFull is returned when the pending buffer is exhausted.
var ErrQueueFull = eris.New("enrichment queue full")

// Job is the handle returned to callers for an enqueued enrichment run.
type Job struct {
	ID      string
	AssetID string

	done   chan struct{}
	result *RunResult
	err    error
}

// Wait blocks until the job finishes or ctx is done.
func (j *Job) Wait(ctx context.Context) (*RunResult, error) {
	select {
	case <-j.done:
		return j.result, j.err
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "waiting for enrichment job")
	}
}

// Done reports whether the job has finished without blocking.
func (j *Job) Done() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Queue runs enrichment jobs on a bounded worker pool. At most one job per
// asset id is pending or running at any time: enqueueing an asset that
// already has a live job returns that job instead of a second one, which is
// how the no-concurrent-runs-per-asset rule is enforced in-process.
type Queue struct {
	orch *Orchestrator

	mu       sync.Mutex
	closed   bool
	inflight map[string]*Job

	jobs chan *Job
	wg   sync.WaitGroup
}

// NewQueue creates the queue and starts its workers. The run context is
// passed to every orchestrator run; cancel it to abort in-flight work.
func NewQueue(ctx context.Context, orch *Orchestrator, workers, buffer int) *Queue {
	if workers <= 0 {
		workers = 4
	}
	if buffer <= 0 {
		buffer = 64
	}
	q := &Queue{
		orch:     orch,
		inflight: make(map[string]*Job),
		jobs:     make(chan *Job, buffer),
	}
	for range workers {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	return q
}

// Enqueue schedules an enrichment run for the asset and returns its handle.
// The bool reports whether a new job was created; false means an existing
// live job for the same asset was returned.
func (q *Queue) Enqueue(assetID string) (*Job, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, false, ErrQueueClosed
	}
	if existing, ok := q.inflight[assetID]; ok {
		return existing, false, nil
	}

	job := &Job{
		ID:      uuid.NewString(),
		AssetID: assetID,
		done:    make(chan struct{}),
	}
	select {
	case q.jobs <- job:
	default:
		return nil, false, eris.Wrapf(ErrQueueFull, "asset %s", assetID)
	}
	q.inflight[assetID] = job
	return job, true, nil
}

// Close stops accepting jobs and waits for in-flight runs to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for job := range q.jobs {
		if ctx.Err() != nil {
			job.err = eris.Wrap(ctx.Err(), "queue shutting down")
			q.complete(job)
			continue
		}

		result, err := q.orch.Run(ctx, job.AssetID)
		job.result, job.err = result, err
		if err != nil {
			zap.L().Error("enrichment job failed",
				zap.String("job_id", job.ID),
				zap.String("asset_id", job.AssetID),
				zap.Error(err),
			)
		}
		q.complete(job)
	}
}

func (q *Queue) complete(job *Job) {
	q.mu.Lock()
	delete(q.inflight, job.AssetID)
	q.mu.Unlock()
	close(job.done)
}
