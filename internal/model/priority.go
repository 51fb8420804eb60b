package model

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// PriorityTable declares, per canonical field, which sources outrank recency.
// For a field with an override list, the first listed source that has any
// record wins even when another source holds a fresher value. Fields without
// an entry fall back to pure recency.
//
// The table is versioned so that resolved views can be tied to the policy
// that produced them.
type PriorityTable struct {
	Version   int                 `yaml:"version" json:"version"`
	Overrides map[string][]Source `yaml:"overrides" json:"overrides"`
}

// DefaultPriorityTable returns the built-in v1 policy: official-registry data
// outranks listing-derived estimates for legal rights, permits, plans and
// decisive appraisals.
func DefaultPriorityTable() PriorityTable {
	return PriorityTable{
		Version: 1,
		Overrides: map[string][]Source{
			FieldRemainingRightsSqm: {SourceGisRights},
			FieldMainRightsSqm:      {SourceGisRights},
			FieldServiceRightsSqm:   {SourceGisRights},
			FieldPermits:            {SourceGisPermit},
			FieldPlanNumber:         {SourceRamiPlan, SourceGisRights},
			FieldPlanStatus:         {SourceRamiPlan},
			FieldPlans:              {SourceRamiPlan},
			FieldDecisiveAppraisals: {SourceGovDecisive},
			FieldBlock:              {SourceGisRights, SourceGovDecisive},
			FieldPlot:               {SourceGisRights, SourceGovDecisive},
		},
	}
}

// LoadPriorityTable reads a priority table from a YAML file. The file fully
// replaces the default table; a zero version is rejected to keep the policy
// explicitly versioned.
func LoadPriorityTable(path string) (PriorityTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PriorityTable{}, eris.Wrapf(err, "priority: read %s", path)
	}

	var t PriorityTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return PriorityTable{}, eris.Wrap(err, "priority: parse table")
	}
	if t.Version == 0 {
		return PriorityTable{}, eris.Errorf("priority: %s is missing a version", path)
	}
	for field, sources := range t.Overrides {
		for _, s := range sources {
			if _, err := ParseSource(string(s)); err != nil {
				return PriorityTable{}, eris.Wrapf(err, "priority: field %s", field)
			}
		}
	}
	return t, nil
}

// OverrideFor returns the source preference order for a field, or nil when
// the field resolves by recency alone.
func (t PriorityTable) OverrideFor(field string) []Source {
	return t.Overrides[field]
}
