// cmd/coverage/run.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/David-Botos/aadhaar-coverage/pkg/chart"
	"github.com/David-Botos/aadhaar-coverage/pkg/config"
	"github.com/David-Botos/aadhaar-coverage/pkg/connector"
	"github.com/David-Botos/aadhaar-coverage/pkg/loader"
	"github.com/David-Botos/aadhaar-coverage/pkg/pipeline"
	"github.com/David-Botos/aadhaar-coverage/pkg/report"
	"github.com/David-Botos/aadhaar-coverage/pkg/store"
)

type runOptions struct {
	profile        string
	profileFile    string
	inputs         map[string][]string
	extraInputs    []string
	out            string
	charts         bool
	xlsx           bool
	sqlExport      bool
	recordCleaning bool
	top            int
	metricsFile    string
	report         bool
}

func (a *app) runCmd() *cobra.Command {
	opts := &runOptions{inputs: make(map[string][]string)}
	var demo, enroll, bio []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load, aggregate, merge and score the datasets",
		Example: `  coverage run --profile national --demo 'api_data_aadhar_demographic/*.csv' \
    --enroll 'api_data_aadhar_enrolment/*.csv' --bio 'api_data_aadhar_biometric/*.csv' --charts
  coverage run --profile district --demo demographic.csv --enroll enrollment.csv --bio biometric.csv --out .`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.inputs["demo"] = demo
			opts.inputs["enroll"] = enroll
			opts.inputs["bio"] = bio
			for _, in := range opts.extraInputs {
				tag, pattern, ok := strings.Cut(in, "=")
				if !ok || tag == "" || pattern == "" {
					return fmt.Errorf("--input must be tag=pattern, got %q", in)
				}
				opts.inputs[tag] = append(opts.inputs[tag], pattern)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.run(ctx, cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.profile, "profile", "", "built-in profile name (default from COVERAGE_PROFILE)")
	f.StringVar(&opts.profileFile, "profile-file", "", "YAML profile file (overrides --profile)")
	f.StringArrayVar(&demo, "demo", nil, "demographic CSV files or glob patterns")
	f.StringArrayVar(&enroll, "enroll", nil, "enrollment CSV files or glob patterns")
	f.StringArrayVar(&bio, "bio", nil, "biometric CSV files or glob patterns")
	f.StringArrayVar(&opts.extraInputs, "input", nil, "tag=pattern input for profile datasets, repeatable")
	f.StringVar(&opts.out, "out", "", "output directory (default from COVERAGE_OUTPUT_DIR)")
	f.BoolVar(&opts.charts, "charts", false, "render PNG charts")
	f.BoolVar(&opts.xlsx, "xlsx", false, "also write an XLSX workbook")
	f.BoolVar(&opts.sqlExport, "sql-export", false, "write results to the configured database")
	f.BoolVar(&opts.recordCleaning, "record-cleaning", false, "with --sql-export, also write the cleaning log")
	f.IntVar(&opts.top, "top", 0, "rows of the console extract to print (0 for all)")
	f.StringVar(&opts.metricsFile, "metrics-textfile", "", "write Prometheus metrics to this file (default from METRICS_TEXTFILE)")
	f.BoolVar(&opts.report, "report", false, "print the run report")
	return cmd
}

func (a *app) run(ctx context.Context, out io.Writer, opts *runOptions) error {
	c := *a.cfg
	cfg := &c
	if opts.profile != "" {
		cfg.Profile = opts.profile
		cfg.ProfileFile = ""
	}
	if opts.profileFile != "" {
		cfg.ProfileFile = opts.profileFile
	}
	if opts.out != "" {
		cfg.OutputDir = opts.out
	}
	if opts.metricsFile != "" {
		cfg.MetricsTextfile = opts.metricsFile
	}

	profile, err := cfg.ResolveProfile()
	if err != nil {
		return err
	}

	metrics := pipeline.NewMetrics()
	factory := connector.NewConnectorFactory(cfg, a.logger)
	sources, closeSources, err := a.buildSources(ctx, cfg, factory, metrics, profile, opts.inputs)
	if err != nil {
		return err
	}
	defer closeSources()

	writer, err := report.NewWriter(cfg.OutputDir, a.logger)
	if err != nil {
		return err
	}

	req := pipeline.Request{
		Profile:        profile,
		Sources:        sources,
		Writer:         writer,
		Workbook:       opts.xlsx,
		RecordCleaning: opts.recordCleaning,
		Metrics:        metrics,
		Logger:         a.logger,
	}

	if opts.charts {
		req.Charts, err = chart.NewRenderer(cfg.OutputDir, a.logger)
		if err != nil {
			return err
		}
	}

	if opts.sqlExport {
		conn, driver, err := factory.CreateSinkConnector(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()
		a.logger.Info("Exporting results", zap.String("driver", driver), zap.String("schema", conn.Schema()))
		if err := connector.RegisterPoolMetrics(metrics.Registry(), "sink", conn); err != nil {
			return err
		}

		req.Sink, err = store.NewSQLSink(conn.DB(), a.logger, store.Options{
			Schema:    conn.Schema(),
			BatchSize: cfg.ChunkSize,
		})
		if err != nil {
			return err
		}
	}

	res, runErr := pipeline.Run(ctx, req)

	// Metrics are written for failed runs too
	if cfg.MetricsTextfile != "" {
		if err := req.Metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			a.logger.Warn("Failed to write metrics textfile", zap.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}

	printConsole(out, profile, res, opts.top)
	if opts.report {
		fmt.Fprint(out, res.Summary.Report())
	}
	return nil
}

// buildSources resolves the inputs for every dataset of the profile.
// File patterns win; otherwise configured Snowflake tables are read.
func (a *app) buildSources(
	ctx context.Context,
	cfg *config.Config,
	factory *connector.ConnectorFactory,
	metrics *pipeline.Metrics,
	profile *config.Profile,
	inputs map[string][]string,
) (map[string][]loader.Source, func(), error) {
	sources := make(map[string][]loader.Source)
	var snow *connector.SnowflakeConnector
	closeFn := func() {
		if snow != nil {
			snow.Close()
		}
	}

	for _, tag := range profile.Tags() {
		if patterns := inputs[tag]; len(patterns) > 0 {
			paths, err := loader.GlobFiles(patterns...)
			if err != nil {
				closeFn()
				return nil, nil, err
			}
			if len(paths) == 0 {
				a.logger.Warn("No files matched", zap.String("dataset", tag), zap.Strings("patterns", patterns))
			}
			sources[tag] = loader.FileSources(paths)
			continue
		}

		tables := cfg.SnowflakeTables[tag]
		if len(tables) == 0 {
			continue
		}
		if snow == nil {
			var err error
			snow, err = factory.CreateSnowflakeConnector(ctx)
			if err != nil {
				return nil, nil, err
			}
			if err := snow.Validate(ctx); err != nil {
				closeFn()
				return nil, nil, err
			}
			if err := connector.RegisterPoolMetrics(metrics.Registry(), "snowflake", snow); err != nil {
				closeFn()
				return nil, nil, err
			}
		}
		srcs, err := snow.TableSources(ctx, tables)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		sources[tag] = srcs
	}
	return sources, closeFn, nil
}

func printConsole(out io.Writer, profile *config.Profile, res *pipeline.Result, top int) {
	c := profile.Console
	if c.Extract == "" {
		return
	}
	extract := res.Metrics.Extract(c.Extract)
	if extract == nil {
		return
	}
	if top > 0 && top < extract.Len() {
		// Rows are shared with the result table; copy before truncating
		view := *extract
		view.Rows = extract.Rows[:top]
		extract = &view
	}

	color.New(color.FgGreen, color.Bold).Fprintf(out, "\n%s (%d rows)\n", c.Extract, extract.Len())
	report.RenderTable(out, extract, c.Columns)

	if flagged := res.Metrics.FlagCounts; len(flagged) > 0 {
		warn := color.New(color.FgYellow)
		for _, f := range profile.Metrics.Flags {
			if n := flagged[f.Name]; n > 0 {
				warn.Fprintf(out, "%s: %d of %d rows\n", f.Name, n, res.Table.Len())
			}
		}
	}
	if outputs := res.Summary.Outputs; len(outputs) > 0 {
		fmt.Fprintf(out, "run %s wrote %s\n", res.RunID, strings.Join(outputs, ", "))
	}
}
