package store

import (
	"context"
	"time"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when a lookup misses. Callers distinguish it from
// infrastructure failures with eris/errors.Is.
var ErrNotFound = eris.New("not found")

// AssetFilter specifies criteria for listing assets.
type AssetFilter struct {
	Status model.AssetStatus `json:"status,omitempty"`
	City   string            `json:"city,omitempty"`
	Limit  int               `json:"limit,omitempty"`
	Offset int               `json:"offset,omitempty"`
}

// Store defines the persistence interface for assets and their append-only
// source-record ledger.
type Store interface {
	// Assets
	CreateAsset(ctx context.Context, scope model.Scope) (*model.Asset, error)
	GetAsset(ctx context.Context, assetID string) (*model.Asset, error)
	ListAssets(ctx context.Context, filter AssetFilter) ([]model.Asset, error)
	UpdateAssetStatus(ctx context.Context, assetID string, status model.AssetStatus) error
	MarkSyncStarted(ctx context.Context, assetID string, at time.Time) error
	SaveResolved(ctx context.Context, assetID string, view model.ResolvedView, enrichedAt *time.Time, enrichErr string) error
	DeleteAsset(ctx context.Context, assetID string) error

	// Source records. MergeRecord appends; records are never updated and
	// only removed via asset cascade deletion.
	MergeRecord(ctx context.Context, rec model.SourceRecord) (*model.SourceRecord, error)
	RecordsFor(ctx context.Context, assetID string) ([]model.SourceRecord, error)
	CountRecords(ctx context.Context, assetID string) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
