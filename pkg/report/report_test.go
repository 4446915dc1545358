package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/David-Botos/aadhaar-coverage/pkg/loader"
	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

func summaryTable() *model.Table {
	t := model.NewTable("summary",
		model.Column{Name: model.ColDate, Kind: model.KindDate, IsKey: true},
		model.Column{Name: model.ColState, IsKey: true},
		model.Column{Name: model.ColDistrict, IsKey: true},
		model.Column{Name: model.ColPincode, IsKey: true},
		model.Column{Name: "demo_age_5_17", Kind: model.KindNumber},
		model.Column{Name: "enroll_ratio_5_17", Kind: model.KindNumber},
		model.Column{Name: "low_enroll_5_17", Kind: model.KindBool},
	)
	t.Append(model.Row{
		model.ColDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), model.ColState: "Tamil Nadu", model.ColDistrict: "Coimbatore, North",
		model.ColPincode: "041001", "demo_age_5_17": 100.0, "enroll_ratio_5_17": 0.19, "low_enroll_5_17": true,
	})
	t.Append(model.Row{
		model.ColDate: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), model.ColState: "Kerala", model.ColDistrict: "Idukki",
		model.ColPincode: "685501", "demo_age_5_17": 0.0, "enroll_ratio_5_17": 0.0, "low_enroll_5_17": false,
	})
	return t
}

func TestEncodeCSVFormatting(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeCSV(&buf, summaryTable()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,state,district,pincode,demo_age_5_17,enroll_ratio_5_17,low_enroll_5_17", lines[0])
	assert.Equal(t, `2025-03-01,Tamil Nadu,"Coimbatore, North",041001,100,0.19,True`, lines[1])
	assert.Equal(t, "2025-03-02,Kerala,Idukki,685501,0,0,False", lines[2])
}

func TestWriteCSVRoundTrip(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "analysis_results"), nil)
	require.NoError(t, err)

	original := summaryTable()
	path, err := w.WriteCSV("aadhaar_analysis_summary.csv", original)
	require.NoError(t, err)

	res, err := loader.Load(context.Background(), "summary", []loader.Source{loader.FileSource{Path: path}}, loader.Options{
		Keys:       model.DatedGeoKeys,
		DateColumn: model.ColDate,
	})
	require.NoError(t, err)

	got := res.Table
	assert.Equal(t, original.ColumnNames(), got.ColumnNames())
	require.Equal(t, original.Len(), got.Len())
	for i := range original.Rows {
		for _, c := range original.Columns {
			assert.Equal(t, original.Rows[i][c.Name], got.Rows[i][c.Name], "row %d column %s", i, c.Name)
		}
	}
}

func TestNewWriterRequiresDir(t *testing.T) {
	_, err := NewWriter("", nil)
	assert.Error(t, err)
}

func TestWriteWorkbook(t *testing.T) {
	w, err := NewWriter(t.TempDir(), nil)
	require.NoError(t, err)

	low := summaryTable().Filter("low_enroll_5_17_extract_with_a_very_long_name", func(r model.Row) bool { return r["low_enroll_5_17"] == true })
	path, err := w.WriteWorkbook("aadhaar_analysis.xlsx", []*model.Table{summaryTable(), low})
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	require.Len(t, sheets, 2)
	assert.Equal(t, "summary", sheets[0])
	assert.LessOrEqual(t, len(sheets[1]), maxSheetName)

	rows, err := f.GetRows("summary")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "pincode", rows[0][3])
	assert.Equal(t, "041001", rows[1][3])
	assert.Equal(t, "2025-03-01", rows[1][0])
}

func TestSheetNameDeduplicates(t *testing.T) {
	used := map[string]bool{}
	assert.Equal(t, "a", sheetName("a", 0, used))
	assert.Equal(t, "a_2", sheetName("a", 1, used))
	assert.Equal(t, "table_3", sheetName("", 2, used))
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	RenderTable(&buf, summaryTable(), []string{model.ColState, model.ColDistrict, "enroll_ratio_5_17"})

	out := buf.String()
	assert.Contains(t, out, "enroll_ratio_5_17")
	assert.Contains(t, out, "Tamil Nadu")
	assert.Contains(t, out, "0.19")
	assert.NotContains(t, out, "685501")
}

func TestWriteCSVFailsOnMissingDir(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, nil)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	_, err = w.WriteCSV("x.csv", summaryTable())
	assert.Error(t, err)
}
