package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/adapter"
	"github.com/MrAnde7son/realestate-agent-sub002/internal/enrich"
	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
	"github.com/MrAnde7son/realestate-agent-sub002/internal/resilience"
	"github.com/MrAnde7son/realestate-agent-sub002/internal/store"
	"github.com/MrAnde7son/realestate-agent-sub002/pkg/gov"
	"github.com/MrAnde7son/realestate-agent-sub002/pkg/govmap"
	"github.com/MrAnde7son/realestate-agent-sub002/pkg/rami"
	"github.com/MrAnde7son/realestate-agent-sub002/pkg/tlvgis"
	"github.com/MrAnde7son/realestate-agent-sub002/pkg/yad2"
)

// appEnv bundles the wired components commands share.
type appEnv struct {
	Store store.Store
	Orch  *enrich.Orchestrator
	Queue *enrich.Queue
}

func (e *appEnv) Close() {
	if e.Queue != nil {
		e.Queue.Close()
	}
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("store close failed", zap.Error(err))
		}
	}
}

// initApp wires the store, adapters, and orchestrator from config.
func initApp(ctx context.Context, withQueue bool) (*appEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	table := model.DefaultPriorityTable()
	if path := cfg.Enrich.PriorityTablePath; path != "" {
		table, err = model.LoadPriorityTable(path)
		if err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "load priority table")
		}
		zap.L().Info("priority table loaded", zap.String("path", path), zap.Int("version", table.Version))
	}

	registry := adapter.NewRegistry()
	registry.Register(adapter.NewYad2(
		yad2.NewClient(yad2.WithBaseURL(cfg.Adapters.Yad2.BaseURL)),
		secs(cfg.Adapters.Yad2.TimeoutSecs),
	))
	gisClient := tlvgis.NewClient(tlvgis.WithBaseURL(cfg.Adapters.TLVGis.BaseURL))
	registry.Register(adapter.NewGisPermits(gisClient, cfg.Adapters.TLVGis.PermitRadiusM, secs(cfg.Adapters.TLVGis.TimeoutSecs)))
	registry.Register(adapter.NewGisRights(gisClient, secs(cfg.Adapters.TLVGis.TimeoutSecs)))
	registry.Register(adapter.NewGovDecisive(
		gov.NewClient(gov.WithBaseURL(cfg.Adapters.Gov.BaseURL)),
		secs(cfg.Adapters.Gov.TimeoutSecs),
	))
	registry.Register(adapter.NewRamiPlans(
		rami.NewClient(rami.WithBaseURL(cfg.Adapters.Rami.BaseURL)),
		secs(cfg.Adapters.Rami.TimeoutSecs),
	))

	geocoder := govmap.NewClient(cfg.Govmap.Token,
		govmap.WithBaseURL(cfg.Govmap.BaseURL),
		govmap.WithTimeout(secs(cfg.Govmap.TimeoutSecs)),
	)

	orch := enrich.New(st, registry, geocoder, table, enrich.Options{
		RunTimeout:  secs(cfg.Enrich.RunTimeoutSecs),
		MaxParallel: cfg.Enrich.QueueWorkers,
		Retry: resilience.Policy{
			Attempts:  cfg.Enrich.RetryAttempts,
			Retryable: adapter.Retryable,
		},
	})

	env := &appEnv{Store: st, Orch: orch}
	if withQueue {
		env.Queue = enrich.NewQueue(ctx, orch, cfg.Enrich.QueueWorkers, 0)
	}
	return env, nil
}

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "", "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}
