// Package resolve computes the authoritative per-field view of an asset from
// its accumulated source records. It is a pure function of (scope, records,
// priority table) with no store or network access, so the resolution policy
// is testable against fixed record fixtures.
package resolve

import (
	"sort"
	"time"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
)

// Resolve computes the current truth for every canonical field present in
// records, plus explicit null entries for the fields the scope type requires.
//
// Policy: among records carrying a field, the latest fetched_at wins, unless
// the priority table names preferred sources for that field, in which case
// the first listed source holding the field wins regardless of age. Within a
// single source, newer always beats older.
//
// Records may arrive in any order; resolution sorts a copy and never mutates
// its inputs.
func Resolve(scope model.Scope, records []model.SourceRecord, table model.PriorityTable) model.ResolvedView {
	sorted := make([]model.SourceRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FetchedAt.Before(sorted[j].FetchedAt)
	})

	view := make(model.ResolvedView)
	for _, field := range fieldsPresent(sorted) {
		if rec, ok := pick(field, sorted, table); ok {
			view[field] = model.ResolvedField{
				Value:     rec.Fields[field],
				Source:    rec.Source,
				FetchedAt: rec.FetchedAt,
				URL:       rec.URLFor(field),
			}
		}
	}

	// Required fields resolve to explicit nulls when no source supplied
	// them, so a done asset never has an absent required field.
	for _, field := range RequiredFields(scope.Type) {
		if _, ok := view[field]; !ok {
			view[field] = model.ResolvedField{Value: nil, FetchedAt: time.Time{}}
		}
	}
	return view
}

// pick selects the authoritative record for one field from records already
// sorted ascending by fetched_at.
func pick(field string, sorted []model.SourceRecord, table model.PriorityTable) (model.SourceRecord, bool) {
	if preferred := table.OverrideFor(field); len(preferred) > 0 {
		for _, src := range preferred {
			if rec, ok := newestFromSource(field, src, sorted); ok {
				return rec, true
			}
		}
		// None of the preferred sources supplied the field; fall through to
		// recency among whatever did.
	}

	var best model.SourceRecord
	found := false
	for _, rec := range sorted {
		if rec.HasField(field) {
			best = rec
			found = true
		}
	}
	return best, found
}

func newestFromSource(field string, src model.Source, sorted []model.SourceRecord) (model.SourceRecord, bool) {
	var best model.SourceRecord
	found := false
	for _, rec := range sorted {
		if rec.Source == src && rec.HasField(field) {
			best = rec
			found = true
		}
	}
	return best, found
}

func fieldsPresent(records []model.SourceRecord) []string {
	seen := make(map[string]struct{})
	var fields []string
	for _, rec := range records {
		for field := range rec.Fields {
			if _, ok := seen[field]; !ok {
				seen[field] = struct{}{}
				fields = append(fields, field)
			}
		}
	}
	sort.Strings(fields)
	return fields
}

// RequiredFields lists the canonical fields a scope type must always carry
// in its resolved view, even as explicit nulls.
func RequiredFields(scope model.ScopeType) []string {
	switch scope {
	case model.ScopeAddress:
		return []string{
			model.FieldAddress, model.FieldCity, model.FieldPrice,
			model.FieldNetSqm, model.FieldRooms,
			model.FieldPermits, model.FieldRemainingRightsSqm,
		}
	case model.ScopeParcel:
		return []string{
			model.FieldBlock, model.FieldPlot,
			model.FieldPlans, model.FieldDecisiveAppraisals,
			model.FieldRemainingRightsSqm,
		}
	case model.ScopeNeighborhood:
		return []string{model.FieldCity, model.FieldComps}
	default:
		return nil
	}
}
