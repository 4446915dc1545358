// pkg/loader/loader.go
package loader

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/David-Botos/aadhaar-coverage/pkg/cleaner"
	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

// Options controls how a dataset's sources are normalized
type Options struct {
	// Keys are kept as text (the date key as a date)
	Keys []string
	// DateColumn is parsed day-first wherever it appears, key or not
	DateColumn string
	// Values must hold numbers; other text fails with the source row
	Values []string
	// Renames standardizes column names after whitespace trimming
	Renames map[string]string
	Cleaner *cleaner.DataCleaner
	Logger  *zap.Logger
}

// Result is the concatenated table of one dataset
type Result struct {
	Table        *model.Table
	Operations   []model.CleaningOperation
	RowsBySource map[string]int
}

// Load reads every source, normalizes it and appends the rows into one table.
// Columns are the union of all sources in first-seen order.
func Load(ctx context.Context, dataset string, sources []Source, opts Options) (*Result, error) {
	if len(sources) == 0 {
		return nil, &model.EmptyInputError{Dataset: dataset}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := opts.Cleaner
	if cl == nil {
		cl = cleaner.NewDataCleaner(logger)
	}

	result := &Result{
		Table:        model.NewTable(dataset),
		RowsBySource: make(map[string]int, len(sources)),
	}
	for _, src := range sources {
		raw, err := src.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", dataset, err)
		}
		standardizeHeaders(raw, opts.Renames)

		ops, err := cl.CleanTable(dataset, src.Name(), raw, opts.Keys, opts.DateColumn)
		if err != nil {
			return nil, err
		}
		if err := checkValues(dataset, src.Name(), raw, opts.Values); err != nil {
			return nil, err
		}
		result.Operations = append(result.Operations, ops...)
		result.RowsBySource[src.Name()] = raw.Len()
		appendTable(result.Table, raw)

		logger.Debug("Loaded source",
			zap.String("dataset", dataset),
			zap.String("source", src.Name()),
			zap.Int("rows", raw.Len()),
			zap.Int("columns", len(raw.Columns)))
	}

	fillAbsent(result.Table)
	cl.LogSummary(dataset, result.Operations)
	logger.Info("Loaded dataset",
		zap.String("dataset", dataset),
		zap.Int("sources", len(sources)),
		zap.Int("rows", result.Table.Len()))
	return result, nil
}

func checkValues(dataset, source string, t *model.Table, values []string) error {
	for _, col := range values {
		if !t.HasColumn(col) {
			continue
		}
		for i, row := range t.Rows {
			cell := row[col]
			if cell == nil {
				continue
			}
			if _, ok := model.ToFloat(cell); !ok {
				return model.MalformedValue(dataset, source, col, i+1, cell)
			}
		}
	}
	return nil
}

// standardizeHeaders trims header whitespace then applies renames.
// When two headers collapse to the same name the first one wins.
func standardizeHeaders(t *model.Table, renames map[string]string) {
	seen := make(map[string]bool, len(t.Columns))
	columns := t.Columns[:0]
	mapping := make(map[string]string, len(t.Columns))
	for _, c := range t.Columns {
		name := model.NormalizeColumnName(c.Name)
		if to, ok := renames[name]; ok && to != "" {
			name = to
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		mapping[c.Name] = name
		c.Name = name
		columns = append(columns, c)
	}
	t.Columns = columns

	for i, row := range t.Rows {
		out := make(model.Row, len(mapping))
		for from, to := range mapping {
			if v, ok := row[from]; ok {
				out[to] = v
			}
		}
		t.Rows[i] = out
	}
}

func appendTable(dst, src *model.Table) {
	for _, c := range src.Columns {
		existing := dst.Column(c.Name)
		if existing == nil {
			dst.Columns = append(dst.Columns, c)
			continue
		}
		if existing.Kind != c.Kind && !allAbsent(src, c.Name) {
			if allAbsent(dst, c.Name) {
				existing.Kind = c.Kind
			} else {
				existing.Kind = model.KindText
			}
		}
	}
	dst.Rows = append(dst.Rows, src.Rows...)
}

func allAbsent(t *model.Table, column string) bool {
	for _, row := range t.Rows {
		if row[column] != nil {
			return false
		}
	}
	return true
}

// fillAbsent gives every row an explicit nil for columns it lacks
func fillAbsent(t *model.Table) {
	for _, row := range t.Rows {
		for _, c := range t.Columns {
			if _, ok := row[c.Name]; !ok {
				row[c.Name] = nil
			}
		}
	}
}
