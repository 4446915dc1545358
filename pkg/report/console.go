// pkg/report/console.go
package report

import (
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

// RenderTable prints the selected columns of t as a console table.
// An empty column list prints every column.
func RenderTable(w io.Writer, t *model.Table, columns []string) {
	if len(columns) == 0 {
		columns = t.ColumnNames()
	}

	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(columns)
	for _, row := range t.Rows {
		record := make([]string, len(columns))
		for i, c := range columns {
			record[i] = model.FormatValue(row[c])
		}
		table.Append(record)
	}
	table.Render()
}
