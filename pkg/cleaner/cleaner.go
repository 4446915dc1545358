// pkg/cleaner/cleaner.go
package cleaner

import (
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

// DataCleaner normalizes raw cells into typed values during loading
type DataCleaner struct {
	logger *zap.Logger
	cfg    Config
	nulls  map[string]bool
}

// Config controls which tokens read as absent and how dates parse
type Config struct {
	// Cell contents treated as an absent value (compared after trimming)
	NullTokens []string
	// Date layouts tried in order; day-first by default
	DateLayouts []string
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		NullTokens:  []string{"", "NA", "N/A", "NaN", "nan", "null", "NULL", "None"},
		DateLayouts: dayFirstLayouts,
	}
}

// NewDataCleaner creates a new DataCleaner with default configuration
func NewDataCleaner(logger *zap.Logger) *DataCleaner {
	return NewDataCleanerWithConfig(logger, DefaultConfig())
}

// NewDataCleanerWithConfig creates a DataCleaner with custom configuration
func NewDataCleanerWithConfig(logger *zap.Logger, cfg Config) *DataCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.DateLayouts) == 0 {
		cfg.DateLayouts = dayFirstLayouts
	}
	nulls := make(map[string]bool, len(cfg.NullTokens))
	for _, tok := range cfg.NullTokens {
		nulls[tok] = true
	}
	return &DataCleaner{logger: logger, cfg: cfg, nulls: nulls}
}

// CleanValue normalizes a single cell.
// Key cells become text, the date cell a time.Time, everything else a
// number when it parses as one.
func (c *DataCleaner) CleanValue(cc model.CleaningContext, value interface{}) (interface{}, *model.CleaningOperation, error) {
	if b, ok := value.([]byte); ok {
		value = string(b)
	}
	if value == nil {
		return nil, nil, nil
	}
	if s, ok := value.(string); ok && c.nulls[strings.TrimSpace(s)] {
		var op *model.CleaningOperation
		if s != "" {
			op = newOperation(cc, s, "", "null_token", "absent_value")
		}
		return nil, op, nil
	}

	switch {
	case cc.IsDate:
		return c.cleanDate(cc, value)
	case cc.IsKey:
		v, op := cleanKey(cc, value)
		return v, op, nil
	default:
		v, op := cleanMeasure(cc, value)
		return v, op, nil
	}
}

// CleanTable normalizes every cell of a freshly parsed table in place and
// assigns column kinds. Key columns and the date column are named by the caller.
func (c *DataCleaner) CleanTable(
	dataset, source string,
	table *model.Table,
	keys []string,
	dateColumn string,
) ([]model.CleaningOperation, error) {
	if table == nil {
		return nil, errors.New("table cannot be nil")
	}

	keySet := make(map[string]bool, len(keys))
	for _, k := range keys {
		keySet[k] = true
	}

	var operations []model.CleaningOperation
	for i, row := range table.Rows {
		for _, col := range table.Columns {
			value, present := row[col.Name]
			if !present {
				continue
			}
			cc := model.CleaningContext{
				Dataset:    dataset,
				Source:     source,
				ColumnName: col.Name,
				RowNumber:  i + 1,
				IsKey:      keySet[col.Name] && col.Name != dateColumn,
				IsDate:     dateColumn != "" && col.Name == dateColumn,
			}
			cleaned, op, err := c.CleanValue(cc, value)
			if err != nil {
				return operations, err
			}
			row[col.Name] = cleaned
			if op != nil {
				operations = append(operations, *op)
			}
		}
	}

	InferKinds(table, keySet, dateColumn)
	return operations, nil
}

// InferKinds assigns each column the kind of its non-absent cells.
// Mixed columns fall back to text.
func InferKinds(table *model.Table, keys map[string]bool, dateColumn string) {
	for i := range table.Columns {
		col := &table.Columns[i]
		switch {
		case dateColumn != "" && col.Name == dateColumn:
			col.Kind = model.KindDate
			col.IsKey = keys[col.Name]
			continue
		case keys[col.Name]:
			col.Kind = model.KindText
			col.IsKey = true
			continue
		}

		kind, seen := model.KindText, false
		for _, row := range table.Rows {
			var k model.Kind
			switch row[col.Name].(type) {
			case nil:
				continue
			case float64:
				k = model.KindNumber
			case bool:
				k = model.KindBool
			default:
				k = model.KindText
			}
			if !seen {
				kind, seen = k, true
			} else if kind != k {
				kind = model.KindText
				break
			}
		}
		if !seen {
			kind = model.KindNumber
		}
		col.Kind = kind
	}
}

// LogSummary logs cleaning operation counts by operation and reason
func (c *DataCleaner) LogSummary(dataset string, operations []model.CleaningOperation) {
	if len(operations) == 0 {
		return
	}
	counts := SummarizeOperations(operations)
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := []zap.Field{zap.String("dataset", dataset), zap.Int("total", len(operations))}
	for _, k := range keys {
		fields = append(fields, zap.Int(k, counts[k]))
	}
	c.logger.Info("Normalized input cells", fields...)
}

// SummarizeOperations counts operations keyed by "operation/reason"
func SummarizeOperations(operations []model.CleaningOperation) map[string]int {
	counts := make(map[string]int)
	for _, op := range operations {
		counts[op.Operation+"/"+op.Reason]++
	}
	return counts
}
