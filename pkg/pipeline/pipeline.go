// pkg/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/David-Botos/aadhaar-coverage/pkg/aggregate"
	"github.com/David-Botos/aadhaar-coverage/pkg/chart"
	"github.com/David-Botos/aadhaar-coverage/pkg/cleaner"
	"github.com/David-Botos/aadhaar-coverage/pkg/config"
	"github.com/David-Botos/aadhaar-coverage/pkg/coverage"
	"github.com/David-Botos/aadhaar-coverage/pkg/loader"
	"github.com/David-Botos/aadhaar-coverage/pkg/merge"
	"github.com/David-Botos/aadhaar-coverage/pkg/model"
	"github.com/David-Botos/aadhaar-coverage/pkg/report"
	"github.com/David-Botos/aadhaar-coverage/pkg/store"
)

// Request is everything one run needs
type Request struct {
	Profile *config.Profile
	// Sources per dataset tag
	Sources map[string][]loader.Source

	// Writer receives the CSV outputs; nil keeps results in memory
	Writer *report.Writer
	// Workbook also writes every output table into one XLSX file
	Workbook bool
	// Charts renders the profile's charts when set
	Charts *chart.Renderer
	// Sink exports the results to a database when set
	Sink *store.SQLSink
	// RecordCleaning writes the cleaning log through Sink
	RecordCleaning bool

	Cleaner *cleaner.DataCleaner
	Metrics *Metrics
	Logger  *zap.Logger
	// RunID is generated when empty
	RunID string
}

// Result is the outcome of a successful run
type Result struct {
	RunID      string
	Table      *model.Table
	Metrics    *coverage.Result
	Aggregates []*model.Table
	Operations []model.CleaningOperation
	Summary    *Summary
}

type runner struct {
	req     Request
	logger  *zap.Logger
	summary *Summary
	current Stage
}

// Run executes Loader -> Aggregator (per dataset) -> Merger -> Metrics, then
// writes the outputs. Any error aborts the run; outputs already written stay.
func Run(ctx context.Context, req Request) (*Result, error) {
	if req.Profile == nil {
		return nil, errors.New("pipeline: profile is required")
	}
	if err := req.Profile.Validate(); err != nil {
		return nil, err
	}
	if req.Logger == nil {
		req.Logger = zap.NewNop()
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if req.Cleaner == nil {
		req.Cleaner = cleaner.NewDataCleaner(req.Logger)
	}

	r := &runner{
		req:    req,
		logger: req.Logger.With(zap.String("run_id", req.RunID), zap.String("profile", req.Profile.Name)),
		summary: &Summary{
			RunID:     req.RunID,
			Profile:   req.Profile.Name,
			StartTime: time.Now(),
			Extracts:  make(map[string]int),
			Stages:    make(map[Stage]time.Duration),
		},
	}

	result, err := r.run(ctx)
	r.summary.EndTime = time.Now()
	if err != nil {
		req.Metrics.RecordFailure(r.current)
		r.logger.Error("Run failed",
			zap.String("stage", string(r.current)),
			zap.String("category", Categorize(err).String()),
			zap.Error(err))
		return nil, err
	}

	req.Metrics.RecordSuccess(r.summary.EndTime)
	result.Summary = r.summary
	r.summary.Log(r.logger)
	return result, nil
}

func (r *runner) timed(stage Stage, fn func() error) error {
	r.current = stage
	start := time.Now()
	err := fn()
	d := time.Since(start)
	r.summary.Stages[stage] += d
	r.req.Metrics.ObserveStage(stage, d)
	return err
}

func (r *runner) run(ctx context.Context) (*Result, error) {
	p := r.req.Profile
	result := &Result{RunID: r.req.RunID}

	// Load
	loaded := make([]*model.Table, len(p.Datasets))
	err := r.timed(StageLoad, func() error {
		for i, ds := range p.Datasets {
			if err := ctx.Err(); err != nil {
				return stageError(StageLoad, ds.Tag, err)
			}
			sources := r.req.Sources[ds.Tag]
			res, err := loader.Load(ctx, ds.Tag, sources, loader.Options{
				Keys:       p.Keys,
				DateColumn: p.DateColumn,
				Values:     ds.Values,
				Renames:    ds.Renames,
				Cleaner:    r.req.Cleaner,
				Logger:     r.logger,
			})
			if err != nil {
				return stageError(StageLoad, ds.Tag, err)
			}
			loaded[i] = res.Table
			result.Operations = append(result.Operations, res.Operations...)
			r.req.Metrics.ObserveLoad(ds.Tag, res.Table.Len(), cleaner.SummarizeOperations(res.Operations))
			r.summary.Datasets = append(r.summary.Datasets, DatasetSummary{
				Tag:         ds.Tag,
				Sources:     len(sources),
				RowsLoaded:  res.Table.Len(),
				CleaningOps: len(res.Operations),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Aggregate
	err = r.timed(StageAggregate, func() error {
		for i, ds := range p.Datasets {
			agg, stats, err := aggregate.Aggregate(loaded[i], aggregate.Spec{
				Tag:    ds.Tag,
				Keys:   p.Keys,
				Values: ds.Values,
			})
			if err != nil {
				return stageError(StageAggregate, ds.Tag, err)
			}
			if stats.DroppedRows > 0 {
				r.logger.Warn("Dropped rows with absent key values",
					zap.String("dataset", ds.Tag),
					zap.Int("dropped", stats.DroppedRows))
			}
			if len(stats.Completed) > 0 {
				r.logger.Info("Filled missing value columns with 0",
					zap.String("dataset", ds.Tag),
					zap.Strings("columns", stats.Completed))
			}
			r.req.Metrics.ObserveAggregate(ds.Tag, stats.Groups, stats.DroppedRows)
			sum := &r.summary.Datasets[i]
			sum.Keys = stats.Groups
			sum.Dropped = stats.DroppedRows
			sum.Completed = stats.Completed
			result.Aggregates = append(result.Aggregates, agg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Merge
	var merged *model.Table
	err = r.timed(StageMerge, func() error {
		opts, err := r.mergeOptions(result.Aggregates)
		if err != nil {
			return stageError(StageMerge, "", err)
		}
		merged, err = merge.Merge(result.Aggregates, opts)
		if err != nil {
			var sm *model.SchemaMismatchError
			if errors.As(err, &sm) {
				return stageError(StageMerge, sm.Dataset, err)
			}
			return stageError(StageMerge, "", err)
		}
		r.req.Metrics.ObserveMerge(merged.Len())
		r.summary.MergedRows = merged.Len()
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Metrics
	err = r.timed(StageMetrics, func() error {
		res, err := coverage.Compute(merged, p.Metrics)
		if err != nil {
			return stageError(StageMetrics, "", err)
		}
		result.Table = res.Table
		result.Metrics = res
		r.req.Metrics.ObserveFlags(res.FlagCounts)
		r.summary.FlagCounts = res.FlagCounts
		for _, e := range res.Extracts {
			r.summary.Extracts[e.Name] = e.Len()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := r.timed(StageOutput, func() error { return r.writeOutputs(result) }); err != nil {
		return nil, err
	}

	if r.req.Sink != nil {
		if err := r.timed(StageExport, func() error { return r.export(ctx, result) }); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (r *runner) mergeOptions(tables []*model.Table) (merge.Options, error) {
	p := r.req.Profile
	mode, err := merge.ParseMode(p.Join)
	if err != nil {
		return merge.Options{}, err
	}

	renames := make(map[string]string)
	if p.FixDoublePrefix {
		var columns []string
		for _, t := range tables {
			columns = append(columns, t.ColumnNames()...)
		}
		for from, to := range merge.DoublePrefixRenames(columns, p.Tags()) {
			renames[from] = to
		}
	}
	for from, to := range p.Renames {
		renames[from] = to
	}

	opts := merge.Options{Keys: p.Keys, Mode: mode, Renames: renames}
	if len(p.Suffixes) == 2 {
		opts.Suffixes = [2]string{p.Suffixes[0], p.Suffixes[1]}
	}
	return opts, nil
}

// outputTables lists the tables written for a run, with their file names
func (r *runner) outputTables(result *Result) []namedTable {
	p := r.req.Profile
	out := []namedTable{{file: p.Outputs.Summary, table: result.Table}}
	for i, e := range p.Metrics.Extracts {
		if e.Output != "" {
			out = append(out, namedTable{file: e.Output, table: result.Metrics.Extracts[i]})
		}
	}
	if p.Outputs.Correlation != "" && result.Metrics.Correlation != nil {
		out = append(out, namedTable{file: p.Outputs.Correlation, table: result.Metrics.Correlation})
	}
	return out
}

type namedTable struct {
	file  string
	table *model.Table
}

func (r *runner) writeOutputs(result *Result) error {
	w := r.req.Writer
	if w == nil {
		return nil
	}
	p := r.req.Profile

	tables := r.outputTables(result)
	for _, nt := range tables {
		path, err := w.WriteCSV(nt.file, nt.table)
		if err != nil {
			return stageError(StageOutput, "", err)
		}
		r.summary.Outputs = append(r.summary.Outputs, path)
	}

	if r.req.Workbook && p.Outputs.Workbook != "" {
		sheets := make([]*model.Table, 0, len(tables))
		for _, nt := range tables {
			sheet := *nt.table
			sheet.Name = tableName(nt.file)
			sheets = append(sheets, &sheet)
		}
		path, err := w.WriteWorkbook(p.Outputs.Workbook, sheets)
		if err != nil {
			return stageError(StageOutput, "", err)
		}
		r.summary.Outputs = append(r.summary.Outputs, path)
	}

	if r.req.Charts != nil {
		paths, err := r.renderCharts(result)
		if err != nil {
			return stageError(StageOutput, "", err)
		}
		r.summary.Outputs = append(r.summary.Outputs, paths...)
	}
	return nil
}

func (r *runner) renderCharts(result *Result) ([]string, error) {
	c := r.req.Profile.Charts
	rd := r.req.Charts
	t := result.Table
	var paths []string

	add := func(path string, err error) error {
		if errors.Is(err, chart.ErrNoRows) {
			r.logger.Warn("Skipped chart with no rows")
			return nil
		}
		if err != nil {
			return err
		}
		paths = append(paths, path)
		return nil
	}

	if c.Bar != nil {
		if err := add(rd.TopBar(t, c.Bar.Column, c.Bar.TopN, c.Bar.File)); err != nil {
			return nil, err
		}
	}
	if c.Scatter != nil {
		if err := add(rd.Scatter(t, c.Scatter.X, c.Scatter.Y, c.Scatter.File)); err != nil {
			return nil, err
		}
	}
	if c.Stacked != nil {
		if err := add(rd.StackedBar(t, c.Stacked.SortBy, c.Stacked.Columns, c.Stacked.TopN, c.Stacked.File)); err != nil {
			return nil, err
		}
	}
	if c.Heatmap != "" && result.Metrics.Correlation != nil {
		if err := add(rd.Heatmap(result.Metrics.Correlation, c.Heatmap)); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func (r *runner) export(ctx context.Context, result *Result) error {
	sink := r.req.Sink
	verifier := sink.Verifier()
	for _, nt := range r.outputTables(result) {
		name := tableName(nt.file)
		if _, err := sink.WriteTable(ctx, result.RunID, name, nt.table); err != nil {
			return stageError(StageExport, name, err)
		}
		report, err := verifier.VerifyTable(ctx, result.RunID, name, nt.table)
		if err != nil {
			return stageError(StageExport, name, err)
		}
		if err := report.Err(); err != nil {
			return stageError(StageExport, name, err)
		}
	}
	if r.req.RecordCleaning && len(result.Operations) > 0 {
		if _, err := sink.RecordCleaningOperations(ctx, result.RunID, result.Operations); err != nil {
			return stageError(StageExport, "", err)
		}
	}
	err := sink.RecordRun(ctx, store.RunRecord{
		RunID:      result.RunID,
		Profile:    r.req.Profile.Name,
		StartedAt:  r.summary.StartTime,
		Duration:   time.Since(r.summary.StartTime),
		MergedRows: r.summary.MergedRows,
		Outputs:    r.summary.Outputs,
	})
	return stageError(StageExport, "", err)
}

// tableName derives a SQL table or sheet name from an output file name
func tableName(file string) string {
	base := filepath.Base(file)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ToLower(strings.NewReplacer("-", "_", " ", "_", ".", "_").Replace(base))
}

// DescribeFailure renders an error from Run for terminal output
func DescribeFailure(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		if se.Dataset != "" {
			return fmt.Sprintf("%s failed for dataset %s (%s): %v", se.Stage, se.Dataset, Categorize(err), se.Err)
		}
		return fmt.Sprintf("%s failed (%s): %v", se.Stage, Categorize(err), se.Err)
	}
	return err.Error()
}
