// cmd/coverage/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/David-Botos/aadhaar-coverage/pkg/config"
	"github.com/David-Botos/aadhaar-coverage/pkg/pipeline"
)

type app struct {
	cfg    *config.Config
	logger *zap.Logger

	envFiles  []string
	logLevel  string
	logFormat string
}

func main() {
	a := &app{}
	root := a.rootCmd()
	if err := root.Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "error:", pipeline.DescribeFailure(err))
		if a.logger != nil {
			_ = a.logger.Sync()
		}
		os.Exit(1)
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "coverage",
		Short:         "Aggregate Aadhaar demographic, enrollment and biometric extracts into coverage metrics",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnvFile(a.envFiles...); err != nil {
				return err
			}
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if a.logLevel != "" {
				cfg.LogLevel = a.logLevel
			}
			if a.logFormat != "" {
				cfg.LogFormat = a.logFormat
			}
			logger, err := buildLogger(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)
			a.cfg = cfg
			a.logger = logger
			return nil
		},
	}

	root.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: json or console (overrides LOG_FORMAT)")

	root.AddCommand(a.runCmd(), a.profilesCmd())
	return root
}

// buildLogger builds a production (json) or development (console) logger
func buildLogger(level, format string) (*zap.Logger, error) {
	var zcfg zap.Config
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
