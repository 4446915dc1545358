// pkg/store/batch.go
package store

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/David-Botos/aadhaar-coverage/pkg/converter"
	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

// maxBindParams keeps one statement under sqlite's and Postgres' bind limits
const maxBindParams = 32766

// BatchInsert performs a bulk insert into a table.
// Placeholders are written as ? and rebound to the driver's bindvar style.
func (s *SQLSink) BatchInsert(
	ctx context.Context,
	table string,
	columns []string,
	valueRows [][]interface{},
) (int64, error) {
	if len(valueRows) == 0 {
		return 0, nil
	}

	fullTableName := converter.QualifiedName(s.schema, table)
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = converter.QuoteIdentifier(c)
	}
	columnStr := strings.Join(quoted, ", ")
	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	batchSize := s.batchSize
	if limit := maxBindParams / len(columns); batchSize > limit {
		batchSize = limit
	}

	var totalRowsInserted int64

	// Process in batches
	for i := 0; i < len(valueRows); i += batchSize {
		end := i + batchSize
		if end > len(valueRows) {
			end = len(valueRows)
		}

		currentBatch := valueRows[i:end]
		placeholders := make([]string, len(currentBatch))
		args := make([]interface{}, 0, len(currentBatch)*len(columns))
		for j, row := range currentBatch {
			if len(row) != len(columns) {
				return totalRowsInserted, fmt.Errorf("row %d has %d values, want %d", i+j+1, len(row), len(columns))
			}
			placeholders[j] = rowPlaceholder
			args = append(args, row...)
		}

		query := s.db.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			fullTableName, columnStr, strings.Join(placeholders, ", ")))

		batchCtx, cancel := context.WithTimeout(ctx, s.timeout)
		result, err := s.db.ExecContext(batchCtx, query, args...)
		cancel()
		if err != nil {
			return totalRowsInserted, fmt.Errorf("batch insert into %s failed: %w", fullTableName, err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			s.logger.Warn("Couldn't get rows affected", zap.Error(err))
			rowsAffected = int64(len(currentBatch))
		}
		totalRowsInserted += rowsAffected
	}

	return totalRowsInserted, nil
}

// CreateTableIfNotExists creates a table with the given columns if it doesn't exist
func (s *SQLSink) CreateTableIfNotExists(ctx context.Context, table string, columns []model.Column) error {
	fullTableName := converter.QualifiedName(s.schema, table)

	createSQL := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		fullTableName,
		strings.Join(s.converter.GenerateColumnDefinitions(columns), ",\n\t"),
	)

	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.db.ExecContext(execCtx, createSQL); err != nil {
		return fmt.Errorf("failed to create table %s: %w", fullTableName, err)
	}

	s.logger.Debug("Ensured table", zap.String("table", fullTableName))
	return nil
}
