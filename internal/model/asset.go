package model

import (
	"fmt"
	"strings"
	"time"
)

// AssetStatus represents the lifecycle state of an asset.
type AssetStatus string

const (
	StatusPending   AssetStatus = "pending"
	StatusEnriching AssetStatus = "enriching"
	StatusSyncing   AssetStatus = "syncing"
	StatusDone      AssetStatus = "done"
	StatusFailed    AssetStatus = "failed"
)

// CanTransition reports whether moving from one lifecycle state to another is
// allowed. Terminal states (done/failed) may only re-enter via syncing.
func CanTransition(from, to AssetStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusEnriching
	case StatusEnriching:
		return to == StatusDone || to == StatusFailed
	case StatusSyncing:
		return to == StatusDone || to == StatusFailed
	case StatusDone, StatusFailed:
		return to == StatusSyncing
	default:
		return false
	}
}

// ScopeType describes the kind of real-world entity an asset represents.
// It is immutable after creation and determines which adapters are eligible.
type ScopeType string

const (
	ScopeAddress      ScopeType = "address"
	ScopeParcel       ScopeType = "parcel"
	ScopeNeighborhood ScopeType = "neighborhood"
)

// ParseScopeType converts a string into a ScopeType.
func ParseScopeType(s string) (ScopeType, error) {
	switch s {
	case "address":
		return ScopeAddress, nil
	case "parcel":
		return ScopeParcel, nil
	case "neighborhood":
		return ScopeNeighborhood, nil
	default:
		return "", fmt.Errorf("unknown scope type: %q (valid: address, parcel, neighborhood)", s)
	}
}

// Scope identifies what an asset tracks: a street address, a block/plot
// parcel, or a neighborhood search area.
type Scope struct {
	Type    ScopeType `json:"type"`
	City    string    `json:"city,omitempty"`
	Street  string    `json:"street,omitempty"`
	Number  int       `json:"number,omitempty"`
	Block   string    `json:"block,omitempty"`
	Plot    string    `json:"plot,omitempty"`
	Area    string    `json:"area,omitempty"`
	RadiusM int       `json:"radius_m,omitempty"`
}

// AddressLine renders the scope as a free-text address for geocoding and
// listing search. Empty for parcel scopes without address data.
func (s Scope) AddressLine() string {
	var parts []string
	if s.Street != "" {
		if s.Number > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", s.Street, s.Number))
		} else {
			parts = append(parts, s.Street)
		}
	}
	if s.Area != "" {
		parts = append(parts, s.Area)
	}
	if s.City != "" {
		parts = append(parts, s.City)
	}
	return strings.Join(parts, ", ")
}

// HasParcel reports whether block/plot identifiers are present on the scope.
func (s Scope) HasParcel() bool {
	return s.Block != "" && s.Plot != ""
}

// ResolvedField is the authoritative value for one canonical field together
// with the provenance backing it.
type ResolvedField struct {
	Value     any       `json:"value"`
	Source    Source    `json:"source,omitempty"`
	FetchedAt time.Time `json:"fetched_at,omitempty"`
	URL       string    `json:"url,omitempty"`
}

// ResolvedView maps canonical field names to their resolved values. This is
// what reports and listing views read.
type ResolvedView map[string]ResolvedField

// Asset is a property or search scope tracked for enrichment.
type Asset struct {
	ID                string       `json:"id"`
	Scope             Scope        `json:"scope"`
	Status            AssetStatus  `json:"status"`
	Resolved          ResolvedView `json:"resolved,omitempty"`
	LastEnrichedAt    *time.Time   `json:"last_enriched_at,omitempty"`
	LastSyncStartedAt *time.Time   `json:"last_sync_started_at,omitempty"`
	LastEnrichError   string       `json:"last_enrich_error,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// ResolvedString returns the resolved value of a field as a string, or ""
// when the field is unresolved or null.
func (a *Asset) ResolvedString(field string) string {
	if a.Resolved == nil {
		return ""
	}
	rf, ok := a.Resolved[field]
	if !ok || rf.Value == nil {
		return ""
	}
	if s, ok := rf.Value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", rf.Value)
}
