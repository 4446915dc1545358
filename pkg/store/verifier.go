// pkg/store/verifier.go
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/David-Botos/aadhaar-coverage/pkg/converter"
	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

// ErrVerificationFailed is returned when exported rows don't match the table
var ErrVerificationFailed = errors.New("export verification failed")

// IntegrityIssue represents a data integrity issue in an exported table
type IntegrityIssue struct {
	IssueType    string
	Description  string
	ColumnName   string
	AffectedRows int64
}

// VerificationReport contains the results of verifying one exported table
type VerificationReport struct {
	Table            string
	RunID            string
	VerificationTime time.Time
	RowCountMatches  bool
	ExpectedRowCount int64
	TargetRowCount   int64
	IntegrityIssues  []IntegrityIssue
	Duration         time.Duration
}

// OK reports whether the table passed every check
func (r *VerificationReport) OK() bool {
	return r.RowCountMatches && len(r.IntegrityIssues) == 0
}

// Err returns nil for a passing report, otherwise an error matching ErrVerificationFailed
func (r *VerificationReport) Err() error {
	if r.OK() {
		return nil
	}
	var problems []string
	if !r.RowCountMatches {
		problems = append(problems, fmt.Sprintf("expected %d rows, found %d", r.ExpectedRowCount, r.TargetRowCount))
	}
	for _, issue := range r.IntegrityIssues {
		problems = append(problems, fmt.Sprintf("%s (%d rows)", issue.Description, issue.AffectedRows))
	}
	return fmt.Errorf("%w: table %s run %s: %s", ErrVerificationFailed, r.Table, r.RunID, strings.Join(problems, "; "))
}

// Verifier checks what a run wrote to the sink database
type Verifier struct {
	db      *sqlx.DB
	schema  string
	logger  *zap.Logger
	timeout time.Duration
}

// NewVerifier creates a verifier over the sink's database
func NewVerifier(db *sqlx.DB, schema string, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		db:      db,
		schema:  schema,
		logger:  logger.Named("verifier"),
		timeout: time.Minute,
	}
}

// Verifier returns a verifier sharing the sink's connection and schema
func (s *SQLSink) Verifier() *Verifier {
	return NewVerifier(s.db, s.schema, s.logger).WithTimeout(s.timeout)
}

// WithTimeout sets a custom timeout for verification queries
func (v *Verifier) WithTimeout(timeout time.Duration) *Verifier {
	v.timeout = timeout
	return v
}

// VerifyTable checks that the run's rows in table match t: same row count and,
// when t has key columns, one row per key.
func (v *Verifier) VerifyTable(ctx context.Context, runID, table string, t *model.Table) (*VerificationReport, error) {
	start := time.Now()
	report := &VerificationReport{
		Table:            table,
		RunID:            runID,
		VerificationTime: start,
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	matches, count, err := v.VerifyRowCount(ctx, runID, table, int64(t.Len()))
	if err != nil {
		return nil, err
	}
	report.RowCountMatches = matches
	report.ExpectedRowCount = int64(t.Len())
	report.TargetRowCount = count

	var keys []string
	for _, c := range t.Columns {
		if c.IsKey {
			keys = append(keys, c.Name)
		}
	}
	issues, err := v.CheckKeyUniqueness(ctx, runID, table, keys)
	if err != nil {
		return nil, err
	}
	report.IntegrityIssues = issues
	report.Duration = time.Since(start)

	if report.OK() {
		v.logger.Debug("Export verified",
			zap.String("table", table),
			zap.String("run_id", runID),
			zap.Int64("rows", count))
	}
	return report, nil
}

// VerifyRowCount compares the rows written for a run with the expected count
func (v *Verifier) VerifyRowCount(ctx context.Context, runID, table string, expected int64) (bool, int64, error) {
	query := v.db.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?",
		converter.QualifiedName(v.schema, table), converter.QuoteIdentifier(runIDColumn)))

	var count int64
	if err := v.db.GetContext(ctx, &count, query, runID); err != nil {
		return false, 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}

	matches := count == expected
	if !matches {
		v.logger.Warn("Row count mismatch",
			zap.String("table", table),
			zap.String("run_id", runID),
			zap.Int64("expected", expected),
			zap.Int64("found", count),
			zap.Int64("difference", expected-count))
	}
	return matches, count, nil
}

// CheckKeyUniqueness reports keys that occur more than once within a run
func (v *Verifier) CheckKeyUniqueness(ctx context.Context, runID, table string, keys []string) ([]IntegrityIssue, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = converter.QuoteIdentifier(k)
	}
	keyList := strings.Join(quoted, ", ")

	// Each duplicate group affects (count-1) rows
	query := v.db.Rebind(fmt.Sprintf(`
		SELECT COUNT(*), COALESCE(SUM(n - 1), 0)
		FROM (
			SELECT COUNT(*) AS n
			FROM %s
			WHERE %s = ?
			GROUP BY %s
			HAVING COUNT(*) > 1
		) dup`,
		converter.QualifiedName(v.schema, table), converter.QuoteIdentifier(runIDColumn), keyList))

	var groups, affected int64
	if err := v.db.QueryRowxContext(ctx, query, runID).Scan(&groups, &affected); err != nil {
		return nil, fmt.Errorf("failed to check key uniqueness in %s: %w", table, err)
	}
	if groups == 0 {
		return nil, nil
	}

	keyDescription := strings.Join(keys, ",")
	v.logger.Warn("Key uniqueness violation",
		zap.String("table", table),
		zap.String("run_id", runID),
		zap.Strings("keys", keys),
		zap.Int64("duplicateGroups", groups),
		zap.Int64("affectedRows", affected))
	return []IntegrityIssue{{
		IssueType:    "KEY_VIOLATION",
		Description:  fmt.Sprintf("duplicate values for key (%s)", keyDescription),
		ColumnName:   keyDescription,
		AffectedRows: affected,
	}}, nil
}
