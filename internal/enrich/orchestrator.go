// Package enrich drives the per-asset enrichment workflow: geocode, fan out
// to the applicable source adapters, re-resolve the field view, and move the
// asset through its lifecycle states.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/adapter"
	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
	"github.com/MrAnde7son/realestate-agent-sub002/internal/resilience"
	"github.com/MrAnde7son/realestate-agent-sub002/internal/resolve"
	"github.com/MrAnde7son/realestate-agent-sub002/internal/store"
	"github.com/MrAnde7son/realestate-agent-sub002/pkg/govmap"
)

// ErrRunInProgress is returned when an enrichment run is requested for an
// asset that is already enriching or syncing.
var ErrRunInProgress = eris.New("enrichment run already in progress")

// Geocoder resolves a free-text address to projected coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*govmap.Result, error)
}

// RunResult summarizes one orchestrator run.
type RunResult struct {
	AssetID   string            `json:"asset_id"`
	Status    model.AssetStatus `json:"status"`
	Attempted int               `json:"attempted"`
	Succeeded int               `json:"succeeded"`
	Skipped   int               `json:"skipped"`
	Records   int               `json:"records"`
	Failures  []string          `json:"failures,omitempty"`
	Discarded bool              `json:"discarded,omitempty"`
	Duration  time.Duration     `json:"duration"`
}

// Options tunes an Orchestrator.
type Options struct {
	// RunTimeout is the wall-clock ceiling for a whole run.
	RunTimeout time.Duration

	// MaxParallel bounds concurrent adapter fetches within one run.
	MaxParallel int

	// Retry is applied around each adapter fetch; only transient
	// classifications retry.
	Retry resilience.Policy
}

// Orchestrator runs the enrichment workflow for one asset at a time. Callers
// must serialize runs per asset id; concurrent runs on different assets are
// independent.
type Orchestrator struct {
	store    store.Store
	registry *adapter.Registry
	geocoder Geocoder
	table    model.PriorityTable
	opts     Options
}

// New creates an Orchestrator.
func New(st store.Store, registry *adapter.Registry, geocoder Geocoder, table model.PriorityTable, opts Options) *Orchestrator {
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 2 * time.Minute
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 4
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = adapter.Retryable
	}
	return &Orchestrator{store: st, registry: registry, geocoder: geocoder, table: table, opts: opts}
}

// Run executes one enrichment pass for the asset. It transitions the asset
// to enriching (first run) or syncing (re-run), fans out to the applicable
// adapters, resolves the field view from the full record ledger, and lands
// the asset on done or failed.
func (o *Orchestrator) Run(ctx context.Context, assetID string) (*RunResult, error) {
	start := time.Now()

	asset, err := o.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, eris.Wrapf(err, "load asset %s", assetID)
	}

	target, err := o.runTransition(asset)
	if err != nil {
		return nil, err
	}
	if err := o.store.MarkSyncStarted(ctx, assetID, start); err != nil {
		return nil, eris.Wrap(err, "mark sync started")
	}
	if err := o.store.UpdateAssetStatus(ctx, assetID, target); err != nil {
		return nil, eris.Wrap(err, "transition to "+string(target))
	}

	runCtx, cancel := context.WithTimeout(ctx, o.opts.RunTimeout)
	defer cancel()

	actx := o.buildContext(runCtx, *asset)
	res := o.fanOut(runCtx, actx)

	// Parcel adapters depend on block/plot, which a gis_rights fetch in this
	// very run may have just discovered. Give them a second phase.
	if actx.Block == "" || actx.Plot == "" {
		if block, plot := o.discoverParcel(runCtx, assetID); block != "" && plot != "" {
			actx.Block, actx.Plot = block, plot
			second := o.fanOutSources(runCtx, actx, []model.Source{model.SourceGovDecisive, model.SourceRamiPlan})
			res.merge(second)
		}
	}

	return o.finish(ctx, assetID, target, res, start)
}

// buildContext assembles adapter inputs: the address line and, when the
// address geocodes, projected coordinates. A geocode failure only narrows
// the adapter set; it is never an adapter failure.
func (o *Orchestrator) buildContext(ctx context.Context, asset model.Asset) adapter.Context {
	actx := adapter.Context{
		Asset:   asset,
		Address: asset.Scope.AddressLine(),
		Block:   asset.Scope.Block,
		Plot:    asset.Scope.Plot,
	}

	// Prior runs may have resolved parcel identifiers already.
	if actx.Block == "" {
		actx.Block = asset.ResolvedString(model.FieldBlock)
	}
	if actx.Plot == "" {
		actx.Plot = asset.ResolvedString(model.FieldPlot)
	}

	if actx.Address == "" || o.geocoder == nil {
		return actx
	}

	result, err := o.geocoder.Geocode(ctx, actx.Address)
	if err != nil {
		zap.L().Warn("geocode failed, skipping GIS sources",
			zap.String("asset_id", asset.ID),
			zap.String("address", actx.Address),
			zap.Error(err),
		)
		return actx
	}
	if !result.Matched {
		zap.L().Info("address did not geocode, skipping GIS sources",
			zap.String("asset_id", asset.ID),
			zap.String("address", actx.Address),
		)
		return actx
	}

	actx.X, actx.Y = result.X, result.Y
	actx.Geocoded = true
	return actx
}

type runTally struct {
	mu         sync.Mutex
	attempted  int
	succeeded  int
	skipped    int
	records    int
	failures   []string
	ran        map[model.Source]bool
	skippedSrc map[model.Source]bool
}

// merge folds a later phase into the tally. A source skipped earlier but
// dispatched in the later phase counts once, by its final disposition.
func (t *runTally) merge(other *runTally) {
	for src := range other.ran {
		if t.skippedSrc[src] {
			t.skipped--
			delete(t.skippedSrc, src)
		}
		t.ran[src] = true
	}
	t.attempted += other.attempted
	t.succeeded += other.succeeded
	t.skipped += other.skipped
	t.records += other.records
	t.failures = append(t.failures, other.failures...)
	for src := range other.skippedSrc {
		t.skippedSrc[src] = true
	}
}

func (o *Orchestrator) fanOut(ctx context.Context, actx adapter.Context) *runTally {
	var sources []model.Source
	for _, a := range o.registry.All() {
		sources = append(sources, a.Name())
	}
	return o.fanOutSources(ctx, actx, sources)
}

// fanOutSources runs the named adapters concurrently. Individual failures
// are tallied, never propagated: one flaky source must not abort siblings.
func (o *Orchestrator) fanOutSources(ctx context.Context, actx adapter.Context, sources []model.Source) *runTally {
	tally := &runTally{
		ran:        make(map[model.Source]bool),
		skippedSrc: make(map[model.Source]bool),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.MaxParallel)

	for _, src := range sources {
		a := o.registry.Get(src)
		if a == nil || tally.ran[src] {
			continue
		}
		tally.ran[src] = true

		if !a.Applicable(actx) {
			tally.skipped++
			tally.skippedSrc[src] = true
			zap.L().Debug("source not applicable, skipped",
				zap.String("asset_id", actx.Asset.ID),
				zap.String("source", string(src)),
			)
			continue
		}

		tally.attempted++
		g.Go(func() error {
			records, err := o.fetchOne(gctx, a, actx)

			tally.mu.Lock()
			defer tally.mu.Unlock()
			if err != nil {
				ae := adapter.Classify(a.Name(), err)
				tally.failures = append(tally.failures, fmt.Sprintf("%s:%s", ae.Source, ae.Kind))
				zap.L().Warn("source fetch failed",
					zap.String("asset_id", actx.Asset.ID),
					zap.String("source", string(ae.Source)),
					zap.String("kind", string(ae.Kind)),
					zap.Error(err),
				)
				return nil
			}
			tally.succeeded++
			tally.records += len(records)
			zap.L().Info("source fetched",
				zap.String("asset_id", actx.Asset.ID),
				zap.String("source", string(a.Name())),
				zap.Int("records", len(records)),
			)
			return nil
		})
	}
	_ = g.Wait()
	return tally
}

func (o *Orchestrator) fetchOne(ctx context.Context, a adapter.Adapter, actx adapter.Context) ([]model.SourceRecord, error) {
	policy := o.opts.Retry
	policy.OnRetry = resilience.LogRetries(string(a.Name()))

	return resilience.DoVal(ctx, policy, func(ctx context.Context) ([]model.SourceRecord, error) {
		callCtx, cancel := context.WithTimeout(ctx, a.Timeout())
		defer cancel()
		return a.Fetch(callCtx, actx, o.store)
	})
}

// discoverParcel pulls block/plot from the freshest record that carries both.
func (o *Orchestrator) discoverParcel(ctx context.Context, assetID string) (string, string) {
	records, err := o.store.RecordsFor(ctx, assetID)
	if err != nil {
		return "", ""
	}
	block, plot := "", ""
	for _, rec := range records {
		if b, ok := rec.Fields[model.FieldBlock].(string); ok && b != "" {
			if p, ok := rec.Fields[model.FieldPlot].(string); ok && p != "" {
				block, plot = b, p
			}
		}
	}
	return block, plot
}

// finish re-resolves the field view and lands the asset on done or failed.
// If the asset was deleted mid-run, all results are discarded.
func (o *Orchestrator) finish(ctx context.Context, assetID string, from model.AssetStatus, tally *runTally, start time.Time) (*RunResult, error) {
	result := &RunResult{
		AssetID:   assetID,
		Attempted: tally.attempted,
		Succeeded: tally.succeeded,
		Skipped:   tally.skipped,
		Records:   tally.records,
		Failures:  tally.failures,
		Duration:  time.Since(start),
	}

	asset, err := o.store.GetAsset(ctx, assetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			result.Discarded = true
			zap.L().Info("asset deleted mid-run, discarding results", zap.String("asset_id", assetID))
			return result, nil
		}
		return nil, eris.Wrap(err, "reload asset")
	}

	records, err := o.store.RecordsFor(ctx, assetID)
	if err != nil {
		return nil, eris.Wrap(err, "load records")
	}
	view := resolve.Resolve(asset.Scope, records, o.table)

	if tally.records > 0 {
		now := time.Now().UTC()
		if err := o.store.SaveResolved(ctx, assetID, view, &now, ""); err != nil {
			return nil, eris.Wrap(err, "save resolved view")
		}
		result.Status = model.StatusDone
	} else {
		summary := "no_usable_data"
		if len(tally.failures) > 0 {
			summary = strings.Join(tally.failures, "; ")
		}
		if err := o.store.SaveResolved(ctx, assetID, view, nil, summary); err != nil {
			return nil, eris.Wrap(err, "save failure summary")
		}
		result.Status = model.StatusFailed
	}

	if err := o.store.UpdateAssetStatus(ctx, assetID, result.Status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			result.Discarded = true
			return result, nil
		}
		return nil, eris.Wrap(err, "final status transition")
	}

	zap.L().Info("enrichment run finished",
		zap.String("asset_id", assetID),
		zap.String("from", string(from)),
		zap.String("status", string(result.Status)),
		zap.Int("attempted", result.Attempted),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("skipped", result.Skipped),
		zap.Int("records", result.Records),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// runTransition picks the target state for this run. An asset already
// enriching or syncing rejects re-entry — unless its run marker is older
// than the run ceiling, which means the previous worker died mid-run; the
// new run takes over instead of wedging the asset forever.
func (o *Orchestrator) runTransition(asset *model.Asset) (model.AssetStatus, error) {
	switch asset.Status {
	case model.StatusPending:
		return model.StatusEnriching, nil
	case model.StatusDone, model.StatusFailed:
		return model.StatusSyncing, nil
	case model.StatusEnriching, model.StatusSyncing:
		if started := asset.LastSyncStartedAt; started != nil && time.Since(*started) > o.opts.RunTimeout {
			zap.L().Warn("taking over stale enrichment run",
				zap.String("asset_id", asset.ID),
				zap.String("status", string(asset.Status)),
				zap.Time("started_at", *started),
			)
			return asset.Status, nil
		}
		return "", eris.Wrapf(ErrRunInProgress, "status %s", asset.Status)
	default:
		return "", eris.Errorf("unknown asset status %q", asset.Status)
	}
}
