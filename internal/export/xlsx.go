package export

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
)

// assetColumns is the fixed identity portion of the export; resolved fields
// follow in sorted order so files diff cleanly across runs.
var assetColumns = []string{"id", "scope_type", "city", "street", "number", "block", "plot", "status", "last_enriched_at"}

// WriteAssets renders assets and their resolved views into an XLSX workbook
// at path. Each resolved field becomes a value column plus a source column.
func WriteAssets(path string, assets []model.Asset) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Assets")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	fields := collectFields(assets)

	header := sheet.AddRow()
	for _, col := range assetColumns {
		header.AddCell().SetString(col)
	}
	for _, field := range fields {
		header.AddCell().SetString(field)
		header.AddCell().SetString(field + "_source")
	}

	for _, asset := range assets {
		row := sheet.AddRow()
		row.AddCell().SetString(asset.ID)
		row.AddCell().SetString(string(asset.Scope.Type))
		row.AddCell().SetString(asset.Scope.City)
		row.AddCell().SetString(asset.Scope.Street)
		if asset.Scope.Number > 0 {
			row.AddCell().SetInt(asset.Scope.Number)
		} else {
			row.AddCell()
		}
		row.AddCell().SetString(asset.Scope.Block)
		row.AddCell().SetString(asset.Scope.Plot)
		row.AddCell().SetString(string(asset.Status))
		if asset.LastEnrichedAt != nil {
			row.AddCell().SetString(asset.LastEnrichedAt.Format(time.RFC3339))
		} else {
			row.AddCell()
		}

		for _, field := range fields {
			rf, ok := asset.Resolved[field]
			if !ok || rf.Value == nil {
				row.AddCell()
				row.AddCell()
				continue
			}
			setValue(row.AddCell(), rf.Value)
			row.AddCell().SetString(string(rf.Source))
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// collectFields returns the union of resolved field names across assets,
// sorted for a stable column order.
func collectFields(assets []model.Asset) []string {
	seen := map[string]struct{}{}
	for _, asset := range assets {
		for field := range asset.Resolved {
			seen[field] = struct{}{}
		}
	}
	fields := make([]string, 0, len(seen))
	for field := range seen {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func setValue(cell *xlsx.Cell, v any) {
	switch val := v.(type) {
	case string:
		cell.SetString(val)
	case float64:
		cell.SetFloat(val)
	case int:
		cell.SetInt(val)
	case int64:
		cell.SetInt64(val)
	case bool:
		cell.SetBool(val)
	default:
		// Lists (permits, plans, comps) render as a count; the records
		// endpoint carries the full payload.
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice {
			cell.SetString(fmt.Sprintf("%d items", rv.Len()))
			return
		}
		cell.SetString(fmt.Sprintf("%v", val))
	}
}
