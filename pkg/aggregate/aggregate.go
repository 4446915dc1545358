// pkg/aggregate/aggregate.go
package aggregate

import (
	"fmt"
	"strings"

	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

// Spec describes one dataset's group-by
type Spec struct {
	Tag    string   // Dataset tag used as column prefix (demo, enroll, bio)
	Keys   []string // Group-by key columns
	Values []string // Columns to sum
}

// Stats counts what happened during aggregation
type Stats struct {
	InputRows   int
	DroppedRows int // Rows with an absent key value
	Groups      int
	Completed   []string // Value columns materialized as zero
}

// PrefixColumn returns tag_col unless col already carries the tag prefix
func PrefixColumn(tag, col string) string {
	if tag == "" || strings.HasPrefix(col, tag+"_") {
		return col
	}
	return tag + "_" + col
}

// CompleteSchema materializes every absent value column as a zero-filled
// number column and returns the names it added
func CompleteSchema(t *model.Table, values []string) []string {
	var added []string
	for _, col := range t.Missing(values...) {
		t.AddColumn(col, model.KindNumber, 0.0)
		added = append(added, col)
	}
	return added
}

type group struct {
	keys model.Row
	sums []float64
}

// Aggregate groups t by the key columns and sums each value column.
// The result has one row per distinct key, sorted by key, with value
// columns prefixed by the tag exactly once. The input gains any missing
// value columns.
func Aggregate(t *model.Table, spec Spec) (*model.Table, Stats, error) {
	stats := Stats{InputRows: t.Len()}

	if missing := t.Missing(spec.Keys...); len(missing) > 0 {
		return nil, stats, &model.SchemaMismatchError{Dataset: spec.Tag, Stage: "aggregate", Missing: missing}
	}

	values := dedupe(spec.Values)
	outNames := make([]string, len(values))
	seen := make(map[string]string, len(values))
	for i, v := range values {
		name := PrefixColumn(spec.Tag, v)
		if prev, dup := seen[name]; dup {
			return nil, stats, fmt.Errorf("aggregate %s: columns %q and %q both map to %q", spec.Tag, prev, v, name)
		}
		seen[name] = v
		outNames[i] = name
	}

	stats.Completed = CompleteSchema(t, values)

	groups := make(map[string]*group)
	var order []string
	for i, row := range t.Rows {
		key, ok := model.KeyString(row, spec.Keys)
		if !ok {
			stats.DroppedRows++
			continue
		}
		g, exists := groups[key]
		if !exists {
			g = &group{keys: make(model.Row, len(spec.Keys)), sums: make([]float64, len(values))}
			for _, k := range spec.Keys {
				g.keys[k] = row[k]
			}
			groups[key] = g
			order = append(order, key)
		}
		for j, col := range values {
			cell := row[col]
			if cell == nil {
				continue
			}
			f, ok := model.ToFloat(cell)
			if !ok {
				return nil, stats, model.MalformedValue(spec.Tag, "", col, i+1, cell)
			}
			g.sums[j] += f
		}
	}

	out := model.NewTable(spec.Tag)
	for _, k := range spec.Keys {
		out.Columns = append(out.Columns, model.Column{Name: k, Kind: model.KindForKey(k), IsKey: true})
	}
	for _, name := range outNames {
		out.Columns = append(out.Columns, model.Column{Name: name, Kind: model.KindNumber})
	}
	for _, key := range order {
		g := groups[key]
		row := g.keys
		for j, name := range outNames {
			row[name] = g.sums[j]
		}
		out.Append(row)
	}
	out.SortByKeys(spec.Keys)

	stats.Groups = out.Len()
	return out, stats, nil
}

func dedupe(cols []string) []string {
	seen := make(map[string]bool, len(cols))
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
