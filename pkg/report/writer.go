// pkg/report/writer.go
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

// Writer persists tables under an explicit output directory
type Writer struct {
	Dir    string
	logger *zap.Logger
}

// NewWriter creates the output directory if needed
func NewWriter(dir string, logger *zap.Logger) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory must be set")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return &Writer{Dir: dir, logger: logger}, nil
}

// Path returns the location of a named output
func (w *Writer) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// WriteCSV writes a header row and one line per row, no index column
func (w *Writer) WriteCSV(name string, t *model.Table) (string, error) {
	path := w.Path(name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := EncodeCSV(f, t); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}

	w.logger.Info("Wrote table",
		zap.String("table", t.Name),
		zap.String("path", path),
		zap.Int("rows", t.Len()))
	return path, nil
}

// EncodeCSV renders t as CSV. Whole numbers print without decimals, bools as
// True/False, dates as YYYY-MM-DD and absent cells empty.
func EncodeCSV(out io.Writer, t *model.Table) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(t.ColumnNames()); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, c := range t.Columns {
			record[i] = model.FormatValue(row[c.Name])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
