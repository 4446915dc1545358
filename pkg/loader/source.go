// pkg/loader/source.go
package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

// Source yields one raw table. Cells are left as read (strings for CSV,
// driver values for SQL); normalization happens in Load.
type Source interface {
	Name() string
	Read(ctx context.Context) (*model.Table, error)
}

// FileSource reads a CSV file with a header row
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return s.Path }

func (s FileSource) Read(ctx context.Context) (*model.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.Path, err)
	}
	defer f.Close()
	return parseCSV(s.Path, f)
}

// ReaderSource reads CSV from an in-memory reader
type ReaderSource struct {
	Label  string
	Reader io.Reader
}

func (s ReaderSource) Name() string { return s.Label }

func (s ReaderSource) Read(ctx context.Context) (*model.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return parseCSV(s.Label, s.Reader)
}

// FileSources wraps paths as sources
func FileSources(paths []string) []Source {
	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		sources = append(sources, FileSource{Path: p})
	}
	return sources
}

// GlobFiles expands the patterns into a sorted, de-duplicated path list
func GlobFiles(patterns ...string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad glob pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func parseCSV(name string, r io.Reader) (*model.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("source %s: missing header row", name)
	}
	if err != nil {
		return nil, fmt.Errorf("source %s: failed to read CSV headers: %w", name, err)
	}

	table := model.NewTable(name)
	for _, h := range headers {
		table.Columns = append(table.Columns, model.Column{Name: h})
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("source %s: line %d: %w", name, line, err)
		}

		row := make(model.Row, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = record[i]
			}
		}
		table.Append(row)
	}
	return table, nil
}

// SQLSource reads the result of a query.
// Paging with LIMIT/OFFSET is only used when OrderBy is set; the columns must
// form a total order or pages can repeat or skip rows. Without it the query
// runs once and rows are streamed.
type SQLSource struct {
	DB       *sqlx.DB
	Label    string
	Query    string
	OrderBy  []string
	PageSize int
	Timeout  time.Duration
}

// NewTableSource selects every column of a table in a single streamed query
func NewTableSource(db *sqlx.DB, table string) *SQLSource {
	return &SQLSource{
		DB:    db,
		Label: table,
		Query: fmt.Sprintf("SELECT * FROM %s", table),
	}
}

func (s *SQLSource) Name() string { return s.Label }

func (s *SQLSource) Read(ctx context.Context) (*model.Table, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	table := model.NewTable(s.Label)
	if len(s.OrderBy) == 0 || s.PageSize <= 0 {
		queryCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if _, err := s.readRows(queryCtx, table, s.Query, 0); err != nil {
			return nil, err
		}
		return table, nil
	}

	ordered := fmt.Sprintf("%s ORDER BY %s", s.Query, strings.Join(s.OrderBy, ", "))
	offset := 0
	for {
		rowCount, err := s.readPage(ctx, table, ordered, offset, timeout)
		if err != nil {
			return nil, err
		}
		// A short page is the last one
		if rowCount < s.PageSize {
			break
		}
		offset += s.PageSize
	}
	return table, nil
}

func (s *SQLSource) readPage(ctx context.Context, table *model.Table, query string, offset int, timeout time.Duration) (int, error) {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	page := fmt.Sprintf("%s LIMIT %d OFFSET %d", query, s.PageSize, offset)
	return s.readRows(queryCtx, table, page, offset)
}

func (s *SQLSource) readRows(ctx context.Context, table *model.Table, query string, offset int) (int, error) {
	rows, err := s.DB.QueryxContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("source %s: query failed at offset %d: %w", s.Label, offset, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("source %s: failed to read columns: %w", s.Label, err)
	}
	if len(table.Columns) == 0 {
		for _, c := range cols {
			table.Columns = append(table.Columns, model.Column{Name: c})
		}
	}

	rowCount := 0
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return rowCount, fmt.Errorf("source %s: scan failed at row %d: %w", s.Label, offset+rowCount, err)
		}
		row := make(model.Row, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		table.Append(row)
		rowCount++
	}
	if err := rows.Err(); err != nil {
		return rowCount, fmt.Errorf("source %s: error iterating rows at offset %d: %w", s.Label, offset, err)
	}
	return rowCount, nil
}
