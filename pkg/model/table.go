package model

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Row maps column name to cell value. Values are string, float64, bool,
// time.Time, or nil for an absent cell.
type Row map[string]interface{}

// Table is an ordered set of columns and rows
type Table struct {
	Name    string
	Columns []Column
	Rows    []Row
}

// NewTable creates an empty table with the given columns
func NewTable(name string, columns ...Column) *Table {
	return &Table{
		Name:    name,
		Columns: append([]Column(nil), columns...),
	}
}

// Len returns the number of rows
func (t *Table) Len() int { return len(t.Rows) }

// ColumnNames returns the column names in order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns a column by name, nil if absent
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// HasColumn reports whether the table has a column with this name
func (t *Table) HasColumn(name string) bool {
	return t.Column(name) != nil
}

// AddColumn appends a column and sets def on every row.
// An existing column is left untouched.
func (t *Table) AddColumn(name string, kind Kind, def interface{}) {
	if t.HasColumn(name) {
		return
	}
	t.Columns = append(t.Columns, Column{Name: name, Kind: kind})
	for _, row := range t.Rows {
		row[name] = def
	}
}

// SetColumn adds the column if missing and assigns fn(row) to every row
func (t *Table) SetColumn(name string, kind Kind, fn func(Row) interface{}) {
	if c := t.Column(name); c != nil {
		c.Kind = kind
	} else {
		t.Columns = append(t.Columns, Column{Name: name, Kind: kind})
	}
	for _, row := range t.Rows {
		row[name] = fn(row)
	}
}

// RenameColumns renames columns in place using old -> new.
// A rename onto a column that already exists is skipped.
func (t *Table) RenameColumns(renames map[string]string) {
	if len(renames) == 0 {
		return
	}
	for i, c := range t.Columns {
		to, ok := renames[c.Name]
		if !ok || to == c.Name || t.HasColumn(to) {
			continue
		}
		t.Columns[i].Name = to
		for _, row := range t.Rows {
			if v, exists := row[c.Name]; exists {
				delete(row, c.Name)
				row[to] = v
			}
		}
	}
}

// Missing returns the names from columns that the table lacks
func (t *Table) Missing(columns ...string) []string {
	var missing []string
	for _, c := range columns {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// Append adds a row
func (t *Table) Append(row Row) {
	t.Rows = append(t.Rows, row)
}

// Float returns the numeric value of a cell; absent or non-numeric cells read as 0
func (t *Table) Float(row Row, column string) float64 {
	f, _ := ToFloat(row[column])
	return f
}

// Clone returns a deep copy of the table structure and row maps
func (t *Table) Clone() *Table {
	out := &Table{
		Name:    t.Name,
		Columns: append([]Column(nil), t.Columns...),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = row.Clone()
	}
	return out
}

// Filter returns a new table holding the rows for which keep is true.
// Rows are shared with the receiver.
func (t *Table) Filter(name string, keep func(Row) bool) *Table {
	out := &Table{Name: name, Columns: append([]Column(nil), t.Columns...)}
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// SortStable orders rows by a numeric column; ties keep their input order
func (t *Table) SortStable(column string, descending bool) {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		a, b := t.Float(t.Rows[i], column), t.Float(t.Rows[j], column)
		if descending {
			return a > b
		}
		return a < b
	})
}

// SortByKeys orders rows by the given key columns, ascending
func (t *Table) SortByKeys(keys []string) {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return CompareKeys(t.Rows[i], t.Rows[j], keys) < 0
	})
}

// Head truncates the table to its first k rows
func (t *Table) Head(k int) {
	if k >= 0 && len(t.Rows) > k {
		t.Rows = t.Rows[:k]
	}
}

// Clone copies a row map
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// KeyString encodes the key columns of a row into a comparable string.
// The second result is false when any key cell is absent.
func KeyString(row Row, keys []string) (string, bool) {
	var sb strings.Builder
	for i, k := range keys {
		v, ok := row[k]
		if !ok || v == nil {
			return "", false
		}
		if i > 0 {
			sb.WriteByte('\x1f')
		}
		sb.WriteString(FormatValue(v))
	}
	return sb.String(), true
}

// CompareKeys compares two rows on the key columns
func CompareKeys(a, b Row, keys []string) int {
	for _, k := range keys {
		if c := compareValues(a[k], b[k]); c != 0 {
			return c
		}
	}
	return 0
}

func compareValues(a, b interface{}) int {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(FormatValue(a), FormatValue(b))
}

// ToFloat converts a cell value to float64
func ToFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// FormatValue renders a cell the way it is written to CSV
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return FormatNumber(val)
	case bool:
		if val {
			return "True"
		}
		return "False"
	case time.Time:
		return val.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", val)
	}
}

// FormatNumber prints whole numbers without decimals and other values in
// their shortest exact form
func FormatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%d", int64(v))
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
