package adapter

import (
	"context"
	"time"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
)

// Context carries the per-asset inputs adapters may require: a free-text
// address for listing search, projected ITM coordinates for the GIS layers,
// and block/plot identifiers for the land-authority sources. The orchestrator
// populates what it can; each adapter declares what it needs via Applicable.
type Context struct {
	Asset    model.Asset
	Address  string
	X, Y     float64
	Geocoded bool
	Block    string
	Plot     string
}

// RecordSink receives an adapter's normalized records. Adapters persist their
// own output; the orchestrator never parses adapter payloads.
type RecordSink interface {
	MergeRecord(ctx context.Context, rec model.SourceRecord) (*model.SourceRecord, error)
}

// Adapter wraps one external data source behind a normalized fetch contract.
//
// Fetch performs the network I/O, maps the source's response shape into
// canonical-field records, hands them to the sink, and returns them. On any
// failure it returns a classified *Error carrying the source id.
type Adapter interface {
	// Name returns the source identifier (e.g., "yad2", "gis_permit").
	Name() model.Source

	// Timeout returns the per-call network ceiling for this source.
	Timeout() time.Duration

	// Applicable reports whether the adapter's required inputs are present
	// in the context. An inapplicable adapter is skipped, not failed.
	Applicable(actx Context) bool

	// Fetch retrieves and normalizes records for the asset, persisting them
	// through the sink on success.
	Fetch(ctx context.Context, actx Context, sink RecordSink) ([]model.SourceRecord, error)
}

// Registry holds the configured adapters in registration order.
type Registry struct {
	adapters map[model.Source]Adapter
	order    []model.Source
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[model.Source]Adapter)}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(a Adapter) {
	name := a.Name()
	if _, exists := r.adapters[name]; !exists {
		r.order = append(r.order, name)
	}
	r.adapters[name] = a
}

// Get returns an adapter by source id, or nil.
func (r *Registry) Get(name model.Source) Adapter {
	return r.adapters[name]
}

// All returns all adapters in registration order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.adapters[name])
	}
	return out
}
