// pkg/report/workbook.go
package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

const maxSheetName = 31

// WriteWorkbook writes one XLSX workbook holding a sheet per table
func (w *Writer) WriteWorkbook(name string, sheets []*model.Table) (string, error) {
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook %s: no sheets", name)
	}

	f := excelize.NewFile()
	defer f.Close()

	used := make(map[string]bool, len(sheets))
	for i, t := range sheets {
		sheet := sheetName(t.Name, i, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return "", fmt.Errorf("workbook %s: %w", name, err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return "", fmt.Errorf("workbook %s: %w", name, err)
		}
		if err := writeSheet(f, sheet, t); err != nil {
			return "", fmt.Errorf("workbook %s sheet %s: %w", name, sheet, err)
		}
	}

	path := w.Path(name)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	w.logger.Info("Wrote workbook", zap.String("path", path), zap.Int("sheets", len(sheets)))
	return path, nil
}

func writeSheet(f *excelize.File, sheet string, t *model.Table) error {
	header := make([]interface{}, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Name
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for r, row := range t.Rows {
		values := make([]interface{}, len(t.Columns))
		for i, c := range t.Columns {
			values[i] = cellValue(row[c.Name])
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

func cellValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format("2006-01-02")
	case float64, bool, string:
		return val
	default:
		return model.FormatValue(val)
	}
}

func sheetName(name string, i int, used map[string]bool) string {
	if name == "" {
		name = fmt.Sprintf("table_%d", i+1)
	}
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	base := name
	for n := 2; used[name]; n++ {
		suffix := fmt.Sprintf("_%d", n)
		cut := base
		if len(cut)+len(suffix) > maxSheetName {
			cut = cut[:maxSheetName-len(suffix)]
		}
		name = cut + suffix
	}
	used[name] = true
	return name
}
