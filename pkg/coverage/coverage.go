// pkg/coverage/coverage.go
package coverage

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

// SafeDivide returns num/den, or 0 when den is not positive or the result
// is not finite
func SafeDivide(num, den float64) float64 {
	if den > 0 {
		if r := num / den; !math.IsNaN(r) && !math.IsInf(r, 0) {
			return r
		}
	}
	return 0
}

// Result holds the augmented table and its extracts
type Result struct {
	Table       *model.Table
	Extracts    []*model.Table // in Config.Extracts order, named after each extract
	FlagCounts  map[string]int // rows flagged true per flag
	Correlation *model.Table   // nil unless Config.Correlation is set
}

// Extract returns the extract with the given name, nil if absent
func (r *Result) Extract(name string) *model.Table {
	for _, e := range r.Extracts {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Compute adds ratio, flag and score columns to t in place, then builds the
// extracts. An unknown column fails before anything is written.
func Compute(t *model.Table, cfg Config) (*Result, error) {
	if err := cfg.Validate(t.ColumnNames()); err != nil {
		return nil, err
	}

	for _, r := range cfg.Ratios {
		r := r
		t.SetColumn(r.Name, model.KindNumber, func(row model.Row) interface{} {
			return SafeDivide(t.Float(row, r.Numerator), t.Float(row, r.Denominator))
		})
	}

	counts := make(map[string]int, len(cfg.Flags))
	for _, f := range cfg.Flags {
		f := f
		t.SetColumn(f.Name, model.KindBool, func(row model.Row) interface{} {
			hit := f.Op.Holds(t.Float(row, f.Column), f.Threshold)
			if hit {
				counts[f.Name]++
			}
			return hit
		})
	}

	if cfg.Score != nil {
		applyScore(t, *cfg.Score)
	}

	result := &Result{Table: t, FlagCounts: counts}
	for _, e := range cfg.Extracts {
		result.Extracts = append(result.Extracts, BuildExtract(t, e))
	}

	if len(cfg.Correlation) > 0 {
		corr, err := Correlation(t, cfg.Correlation)
		if err != nil {
			return nil, err
		}
		result.Correlation = corr
	}
	return result, nil
}

func applyScore(t *model.Table, s Score) {
	raw := make([]float64, t.Len())
	for i, row := range t.Rows {
		var sum float64
		for _, term := range s.Terms {
			v := t.Float(row, term.Column)
			if term.Invert {
				v = 1 - v
			}
			sum += v * term.Weight
		}
		raw[i] = sum
	}
	if s.Scale == ScalePercentRank {
		raw = PercentRank(raw)
	}
	t.SetColumn(s.Name, model.KindNumber, func(model.Row) interface{} { return nil })
	for i, row := range t.Rows {
		row[s.Name] = raw[i]
	}
}

// PercentRank maps each value to its average rank divided by n, times 100.
// Ties share the mean of the ranks they span.
func PercentRank(values []float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	for start := 0; start < n; {
		end := start
		for end+1 < n && values[idx[end+1]] == values[idx[start]] {
			end++
		}
		// 1-based ranks start+1 .. end+1
		avg := float64(start+end+2) / 2
		for k := start; k <= end; k++ {
			out[idx[k]] = avg / float64(n) * 100
		}
		start = end + 1
	}
	return out
}

// BuildExtract returns the rows of t selected by e. Rows are shared with t.
func BuildExtract(t *model.Table, e Extract) *model.Table {
	if e.TopK > 0 {
		return TopK(t, e.Name, e.Column, e.TopK)
	}
	out := t.Filter(e.Name, func(row model.Row) bool {
		return e.Op.Holds(t.Float(row, e.Column), e.Threshold)
	})
	out.SortStable(e.Column, e.Descending)
	return out
}

// TopK returns the k rows with the largest values in column.
// Ties keep their input order.
func TopK(t *model.Table, name, column string, k int) *model.Table {
	out := t.Filter(name, func(model.Row) bool { return true })
	out.SortStable(column, true)
	out.Head(k)
	return out
}

// Correlation returns the Pearson correlation matrix of the columns as a
// table with a leading "column" label column. Constant columns yield NaN.
func Correlation(t *model.Table, columns []string) (*model.Table, error) {
	if missing := t.Missing(columns...); len(missing) > 0 {
		return nil, &model.UnknownColumnError{Stage: "metrics", Item: "correlation", Column: missing[0]}
	}
	series := make([][]float64, len(columns))
	for i, col := range columns {
		series[i] = make([]float64, t.Len())
		for j, row := range t.Rows {
			series[i][j] = t.Float(row, col)
		}
	}

	out := model.NewTable("correlation", model.Column{Name: "column", Kind: model.KindText})
	for _, col := range columns {
		out.Columns = append(out.Columns, model.Column{Name: col, Kind: model.KindNumber})
	}
	for i, a := range columns {
		row := model.Row{"column": a}
		for j, b := range columns {
			row[b] = pearson(series[i], series[j])
		}
		out.Append(row)
	}
	return out, nil
}

func pearson(x, y []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}

// CorrelationValue reads one cell of a correlation table
func CorrelationValue(corr *model.Table, a, b string) (float64, error) {
	for _, row := range corr.Rows {
		if row["column"] == a {
			v, ok := row[b].(float64)
			if !ok {
				return 0, fmt.Errorf("no correlation column %q", b)
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("no correlation row %q", a)
}
