// pkg/merge/merge.go
package merge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

// Mode selects the join type
type Mode string

const (
	Outer Mode = "outer"
	Left  Mode = "left"
)

// ParseMode validates a join mode name; empty means outer
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Outer:
		return Outer, nil
	case Left:
		return Left, nil
	default:
		return "", fmt.Errorf("unknown join mode %q", s)
	}
}

// Options configures a merge
type Options struct {
	Keys     []string
	Mode     Mode
	Renames  map[string]string // applied after zero-fill
	Suffixes [2]string         // for colliding non-key columns, default _x/_y
}

// Merge joins the tables pairwise, left to right, on the key columns.
// Outer joins return the union of keys sorted by key; left joins keep the
// left row order. Every absent non-key cell is then set to 0.
func Merge(tables []*model.Table, opts Options) (*model.Table, error) {
	if len(tables) == 0 {
		return nil, errors.New("merge: no tables to merge")
	}
	if opts.Mode == "" {
		opts.Mode = Outer
	}
	if opts.Suffixes == [2]string{} {
		opts.Suffixes = [2]string{"_x", "_y"}
	}
	for _, t := range tables {
		if missing := t.Missing(opts.Keys...); len(missing) > 0 {
			return nil, &model.SchemaMismatchError{Dataset: t.Name, Stage: "merge", Missing: missing}
		}
	}

	result := tables[0].Clone()
	for _, right := range tables[1:] {
		result = join(result, right, opts)
	}

	ZeroFill(result)
	result.RenameColumns(opts.Renames)
	result.Name = "merged"
	return result, nil
}

// ZeroFill replaces every absent non-key cell with 0
func ZeroFill(t *model.Table) {
	for _, c := range t.Columns {
		if c.IsKey {
			continue
		}
		for _, row := range t.Rows {
			if row[c.Name] == nil {
				row[c.Name] = 0.0
			}
		}
	}
}

func join(left, right *model.Table, opts Options) *model.Table {
	keySet := make(map[string]bool, len(opts.Keys))
	for _, k := range opts.Keys {
		keySet[k] = true
	}

	out := model.NewTable(left.Name)
	leftNames := make(map[string]string)
	rightNames := make(map[string]string)
	for _, k := range opts.Keys {
		col := *left.Column(k)
		col.IsKey = true
		out.Columns = append(out.Columns, col)
	}
	for _, c := range left.Columns {
		if keySet[c.Name] {
			continue
		}
		name := c.Name
		if right.HasColumn(c.Name) {
			name += opts.Suffixes[0]
		}
		leftNames[c.Name] = name
		c.Name = name
		out.Columns = append(out.Columns, c)
	}
	for _, c := range right.Columns {
		if keySet[c.Name] {
			continue
		}
		name := c.Name
		if left.HasColumn(c.Name) {
			name += opts.Suffixes[1]
		}
		rightNames[c.Name] = name
		c.Name = name
		out.Columns = append(out.Columns, c)
	}

	index := make(map[string][]int, right.Len())
	for i, row := range right.Rows {
		if k, ok := model.KeyString(row, opts.Keys); ok {
			index[k] = append(index[k], i)
		}
	}

	matched := make([]bool, right.Len())
	for _, lrow := range left.Rows {
		base := make(model.Row, len(out.Columns))
		for _, k := range opts.Keys {
			base[k] = lrow[k]
		}
		for from, to := range leftNames {
			base[to] = lrow[from]
		}

		k, ok := model.KeyString(lrow, opts.Keys)
		matches := index[k]
		if !ok || len(matches) == 0 {
			for _, to := range rightNames {
				base[to] = nil
			}
			out.Append(base)
			continue
		}
		for n, ri := range matches {
			matched[ri] = true
			row := base
			if n < len(matches)-1 {
				row = base.Clone()
			}
			for from, to := range rightNames {
				row[to] = right.Rows[ri][from]
			}
			out.Append(row)
		}
	}

	if opts.Mode == Outer {
		for i, rrow := range right.Rows {
			if matched[i] {
				continue
			}
			row := make(model.Row, len(out.Columns))
			for _, k := range opts.Keys {
				row[k] = rrow[k]
			}
			for _, to := range leftNames {
				row[to] = nil
			}
			for from, to := range rightNames {
				row[to] = rrow[from]
			}
			out.Append(row)
		}
		out.SortByKeys(opts.Keys)
	}
	return out
}

// DoublePrefixRenames maps every tag_tag_x column to tag_x
func DoublePrefixRenames(columns []string, tags []string) map[string]string {
	renames := make(map[string]string)
	for _, c := range columns {
		for _, tag := range tags {
			double := tag + "_" + tag + "_"
			if strings.HasPrefix(c, double) {
				renames[c] = tag + "_" + strings.TrimPrefix(c, double)
				break
			}
		}
	}
	return renames
}
