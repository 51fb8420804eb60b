package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Source identifies one external data source.
type Source string

const (
	SourceYad2        Source = "yad2"
	SourceGisPermit   Source = "gis_permit"
	SourceGisRights   Source = "gis_rights"
	SourceGovDecisive Source = "gov_decisive"
	SourceRamiPlan    Source = "rami_plan"
)

// ParseSource converts a string into a Source.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceYad2, SourceGisPermit, SourceGisRights, SourceGovDecisive, SourceRamiPlan:
		return Source(s), nil
	default:
		return "", eris.Errorf("unknown source: %q", s)
	}
}

// Canonical field names shared across adapters. Every adapter that can supply
// a given attribute must use the same key; the resolver treats these as the
// vocabulary of the resolved view.
const (
	FieldAddress            = "address"
	FieldCity               = "city"
	FieldStreet             = "street"
	FieldNumber             = "number"
	FieldBlock              = "block"
	FieldPlot               = "plot"
	FieldPrice              = "price"
	FieldNetSqm             = "netSqm"
	FieldGrossSqm           = "grossSqm"
	FieldRooms              = "rooms"
	FieldFloor              = "floor"
	FieldPermits            = "permits"
	FieldRemainingRightsSqm = "remainingRightsSqm"
	FieldMainRightsSqm      = "mainRightsSqm"
	FieldServiceRightsSqm   = "serviceRightsSqm"
	FieldPlanNumber         = "planNumber"
	FieldPlanStatus         = "planStatus"
	FieldPlans              = "plans"
	FieldDecisiveAppraisals = "decisiveAppraisals"
	FieldComps              = "comps"
	FieldX                  = "x"
	FieldY                  = "y"
)

// SourceRecord is one normalized snapshot from one adapter invocation for one
// asset. Records are immutable once created; corrections are new records.
type SourceRecord struct {
	ID        string            `json:"id"`
	AssetID   string            `json:"asset_id"`
	Source    Source            `json:"source"`
	Fields    map[string]any    `json:"fields"`
	FieldURLs map[string]string `json:"field_urls,omitempty"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// HasField reports whether the record carries a value for the given canonical
// field.
func (r SourceRecord) HasField(field string) bool {
	_, ok := r.Fields[field]
	return ok
}

// URLFor returns the provenance URL for a field, falling back to the record's
// generic URL field when no per-field URL was emitted.
func (r SourceRecord) URLFor(field string) string {
	if u, ok := r.FieldURLs[field]; ok {
		return u
	}
	return r.FieldURLs[""]
}
