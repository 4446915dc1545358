// pkg/store/sink.go
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/David-Botos/aadhaar-coverage/pkg/converter"
	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

const (
	runIDColumn      = "run_id"
	cleaningLogTable = "cleaning_log"
	runsTable        = "coverage_runs"
)

// SQLSink writes result tables to a database.
// Every written row carries the run ID so repeated runs append side by side.
type SQLSink struct {
	db        *sqlx.DB
	converter *converter.TypeConverter
	logger    *zap.Logger
	schema    string
	batchSize int
	timeout   time.Duration
}

// Options configures a SQLSink
type Options struct {
	Schema    string
	BatchSize int
	Timeout   time.Duration
}

// NewSQLSink creates a sink for db, picking the SQL dialect from its driver name
func NewSQLSink(db *sqlx.DB, logger *zap.Logger, opts Options) (*SQLSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dialect, err := converter.DialectForDriver(db.DriverName())
	if err != nil {
		return nil, err
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &SQLSink{
		db:        db,
		converter: converter.NewTypeConverter(logger, dialect),
		logger:    logger.Named("sql-sink"),
		schema:    opts.Schema,
		batchSize: opts.BatchSize,
		timeout:   opts.Timeout,
	}, nil
}

// WriteTable creates the target table if absent and appends every row of t
func (s *SQLSink) WriteTable(ctx context.Context, runID, name string, t *model.Table) (int64, error) {
	columns := append([]model.Column{{Name: runIDColumn, Kind: model.KindText, IsKey: true}}, t.Columns...)

	if err := s.CreateTableIfNotExists(ctx, name, columns); err != nil {
		return 0, err
	}

	rows := make([][]interface{}, 0, t.Len())
	for i, row := range t.Rows {
		values, err := s.converter.ConvertRow(row, t.Columns)
		if err != nil {
			return 0, fmt.Errorf("table %s row %d: %w", name, i+1, err)
		}
		rows = append(rows, append([]interface{}{runID}, values...))
	}

	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}

	inserted, err := s.BatchInsert(ctx, name, names, rows)
	if err != nil {
		return inserted, err
	}

	s.logger.Info("Wrote table",
		zap.String("table", converter.QualifiedName(s.schema, name)),
		zap.String("run_id", runID),
		zap.Int64("rows", inserted))
	return inserted, nil
}

// RecordCleaningOperations writes the cleaning log for a run
func (s *SQLSink) RecordCleaningOperations(ctx context.Context, runID string, ops []model.CleaningOperation) (int64, error) {
	t := model.NewTable(cleaningLogTable,
		model.Column{Name: "dataset", Kind: model.KindText},
		model.Column{Name: "source", Kind: model.KindText},
		model.Column{Name: "column_name", Kind: model.KindText},
		model.Column{Name: "row_number", Kind: model.KindNumber},
		model.Column{Name: "original_value", Kind: model.KindText},
		model.Column{Name: "new_value", Kind: model.KindText},
		model.Column{Name: "operation", Kind: model.KindText},
		model.Column{Name: "reason", Kind: model.KindText},
	)
	for _, op := range ops {
		t.Append(model.Row{
			"dataset":        op.Dataset,
			"source":         op.Source,
			"column_name":    op.ColumnName,
			"row_number":     float64(op.RowNumber),
			"original_value": textOrNil(op.OriginalValue),
			"new_value":      textOrNil(op.NewValue),
			"operation":      op.Operation,
			"reason":         op.Reason,
		})
	}
	return s.WriteTable(ctx, runID, cleaningLogTable, t)
}

// RunRecord summarizes one pipeline run
type RunRecord struct {
	RunID      string
	Profile    string
	StartedAt  time.Time
	Duration   time.Duration
	MergedRows int
	Outputs    []string
}

// RecordRun appends a row to the runs table
func (s *SQLSink) RecordRun(ctx context.Context, r RunRecord) error {
	t := model.NewTable(runsTable,
		model.Column{Name: "profile", Kind: model.KindText},
		model.Column{Name: "started_at", Kind: model.KindText},
		model.Column{Name: "duration_seconds", Kind: model.KindNumber},
		model.Column{Name: "merged_rows", Kind: model.KindNumber},
		model.Column{Name: "outputs", Kind: model.KindText},
	)
	t.Append(model.Row{
		"profile":          r.Profile,
		"started_at":       r.StartedAt.UTC().Format(time.RFC3339),
		"duration_seconds": r.Duration.Seconds(),
		"merged_rows":      float64(r.MergedRows),
		"outputs":          strings.Join(r.Outputs, ","),
	})
	_, err := s.WriteTable(ctx, r.RunID, runsTable, t)
	return err
}

func textOrNil(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	return model.FormatValue(v)
}
