// pkg/pipeline/summary.go
package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DatasetSummary counts rows through load and aggregation for one dataset
type DatasetSummary struct {
	Tag         string
	Sources     int
	RowsLoaded  int
	CleaningOps int
	Dropped     int
	Keys        int
	Completed   []string
}

// Summary describes a finished run
type Summary struct {
	RunID      string
	Profile    string
	StartTime  time.Time
	EndTime    time.Time
	Datasets   []DatasetSummary
	MergedRows int
	FlagCounts map[string]int
	Extracts   map[string]int
	Outputs    []string
	Stages     map[Stage]time.Duration
}

// Duration returns the wall time of the run
func (s *Summary) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// formatDuration formats a duration to a human-readable string
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Report renders the summary as text
func (s *Summary) Report() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, `
Coverage Run Report
===================
Run ID:                  %s
Profile:                 %s
Duration:                %s
Start Time:              %s

Datasets
--------
`,
		s.RunID,
		s.Profile,
		formatDuration(s.Duration()),
		s.StartTime.Format(time.RFC3339),
	)

	for _, d := range s.Datasets {
		fmt.Fprintf(&sb, "- %s: %d sources, %d rows, %d keys, %d dropped, %d cleaning ops\n",
			d.Tag, d.Sources, d.RowsLoaded, d.Keys, d.Dropped, d.CleaningOps)
		if len(d.Completed) > 0 {
			fmt.Fprintf(&sb, "  missing columns filled with 0: %s\n", strings.Join(d.Completed, ", "))
		}
	}

	fmt.Fprintf(&sb, "\nMerged Rows:             %d\n", s.MergedRows)

	if len(s.FlagCounts) > 0 {
		sb.WriteString("\nFlags\n-----\n")
		for _, name := range sortedKeys(s.FlagCounts) {
			fmt.Fprintf(&sb, "- %s: %d (%.1f%%)\n", name, s.FlagCounts[name], percentage(s.FlagCounts[name], s.MergedRows))
		}
	}

	if len(s.Extracts) > 0 {
		sb.WriteString("\nExtracts\n--------\n")
		for _, name := range sortedKeys(s.Extracts) {
			fmt.Fprintf(&sb, "- %s: %d rows\n", name, s.Extracts[name])
		}
	}

	if len(s.Stages) > 0 {
		sb.WriteString("\nStages\n------\n")
		for _, st := range Stages {
			if d, ok := s.Stages[st]; ok {
				fmt.Fprintf(&sb, "- %s: %s\n", st, formatDuration(d))
			}
		}
	}

	if len(s.Outputs) > 0 {
		sb.WriteString("\nOutputs\n-------\n")
		for _, o := range s.Outputs {
			fmt.Fprintf(&sb, "- %s\n", o)
		}
	}

	return sb.String()
}

// Log writes the summary as one structured log entry
func (s *Summary) Log(logger *zap.Logger) {
	fields := []zap.Field{
		zap.String("run_id", s.RunID),
		zap.String("profile", s.Profile),
		zap.Duration("duration", s.Duration()),
		zap.Int("merged_rows", s.MergedRows),
		zap.Any("flags", s.FlagCounts),
		zap.Any("extracts", s.Extracts),
		zap.Strings("outputs", s.Outputs),
	}
	for _, d := range s.Datasets {
		fields = append(fields, zap.Dict(d.Tag,
			zap.Int("rows", d.RowsLoaded),
			zap.Int("keys", d.Keys),
			zap.Int("dropped", d.Dropped)))
	}
	logger.Info("Run complete", fields...)
}

// percentage safely calculates a percentage, avoiding division by zero
func percentage(value, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(value) / float64(total) * 100
}
