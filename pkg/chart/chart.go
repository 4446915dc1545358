// pkg/chart/chart.go
package chart

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/David-Botos/aadhaar-coverage/pkg/coverage"
	"github.com/David-Botos/aadhaar-coverage/pkg/model"
)

// ErrNoRows is returned when a chart has nothing to draw
var ErrNoRows = errors.New("chart: no rows to plot")

// Renderer draws PNG charts from a final table into Dir
type Renderer struct {
	Dir    string
	logger *zap.Logger
}

// NewRenderer creates the chart directory if needed
func NewRenderer(dir string, logger *zap.Logger) (*Renderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create chart directory %s: %w", dir, err)
	}
	return &Renderer{Dir: dir, logger: logger}, nil
}

func (r *Renderer) save(p *plot.Plot, w, h vg.Length, file string) (string, error) {
	path := filepath.Join(r.Dir, file)
	if err := p.Save(w, h, path); err != nil {
		return "", fmt.Errorf("failed to save chart %s: %w", path, err)
	}
	r.logger.Info("Rendered chart", zap.String("path", path))
	return path, nil
}

// label names a row as "district (state)"
func label(row model.Row) string {
	return fmt.Sprintf("%s (%s)", model.FormatValue(row[model.ColDistrict]), model.FormatValue(row[model.ColState]))
}

func rotateX(p *plot.Plot) {
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
}

// TopBar draws the n rows with the largest column value as bars
func (r *Renderer) TopBar(t *model.Table, column string, n int, file string) (string, error) {
	top := coverage.TopK(t, "top", column, n)
	if top.Len() == 0 {
		return "", ErrNoRows
	}

	values := make(plotter.Values, top.Len())
	labels := make([]string, top.Len())
	for i, row := range top.Rows {
		values[i] = top.Float(row, column)
		labels[i] = label(row)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Top %d districts by %s", top.Len(), column)
	p.Y.Label.Text = column
	p.X.Label.Text = "District"

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return "", fmt.Errorf("bar chart: %w", err)
	}
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(labels...)
	rotateX(p)
	p.Y.Min = 0

	return r.save(p, 12*vg.Inch, 6*vg.Inch, file)
}

// Scatter plots y against x for every row
func (r *Renderer) Scatter(t *model.Table, x, y, file string) (string, error) {
	if t.Len() == 0 {
		return "", ErrNoRows
	}
	points := make(plotter.XYs, t.Len())
	for i, row := range t.Rows {
		points[i].X = t.Float(row, x)
		points[i].Y = t.Float(row, y)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s vs %s", y, x)
	p.X.Label.Text = x
	p.Y.Label.Text = y

	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return "", fmt.Errorf("scatter: %w", err)
	}
	scatter.GlyphStyle.Radius = vg.Points(3)
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Color = plotutil.Color(1)
	p.Add(scatter)
	p.Add(plotter.NewGrid())

	return r.save(p, 8*vg.Inch, 6*vg.Inch, file)
}

// StackedBar stacks the value columns for the n rows largest by sortBy
func (r *Renderer) StackedBar(t *model.Table, sortBy string, columns []string, n int, file string) (string, error) {
	top := coverage.TopK(t, "top", sortBy, n)
	if top.Len() == 0 {
		return "", ErrNoRows
	}

	labels := make([]string, top.Len())
	for i, row := range top.Rows {
		labels[i] = label(row)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Top %d districts by age group", top.Len())
	p.Y.Label.Text = "Count"

	var below *plotter.BarChart
	for ci, col := range columns {
		values := make(plotter.Values, top.Len())
		for i, row := range top.Rows {
			values[i] = top.Float(row, col)
		}
		bars, err := plotter.NewBarChart(values, vg.Points(20))
		if err != nil {
			return "", fmt.Errorf("stacked bar %s: %w", col, err)
		}
		bars.Color = plotutil.Color(ci)
		bars.LineStyle.Width = vg.Length(0)
		if below != nil {
			bars.StackOn(below)
		}
		p.Add(bars)
		p.Legend.Add(col, bars)
		below = bars
	}
	p.Legend.Top = true
	p.NominalX(labels...)
	rotateX(p)

	return r.save(p, 12*vg.Inch, 6*vg.Inch, file)
}

// corrGrid adapts a correlation table to plotter.GridXYZ
type corrGrid struct {
	names  []string
	values [][]float64
}

func (g corrGrid) Dims() (c, r int)   { return len(g.names), len(g.names) }
func (g corrGrid) Z(c, r int) float64 { return g.values[r][c] }
func (g corrGrid) X(c int) float64    { return float64(c) }
func (g corrGrid) Y(r int) float64    { return float64(r) }

// Heatmap draws a correlation table from coverage.Correlation
func (r *Renderer) Heatmap(corr *model.Table, file string) (string, error) {
	if corr == nil || corr.Len() == 0 {
		return "", ErrNoRows
	}
	grid := corrGrid{}
	for _, row := range corr.Rows {
		grid.names = append(grid.names, model.FormatValue(row["column"]))
	}
	for _, row := range corr.Rows {
		line := make([]float64, len(grid.names))
		for j, name := range grid.names {
			line[j] = math.NaN()
			if v, ok := row[name].(float64); ok {
				line[j] = v
			}
		}
		grid.values = append(grid.values, line)
	}

	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(-1)
	cmap.SetMax(1)
	heat := plotter.NewHeatMap(grid, cmap.Palette(255))
	heat.Min = -1
	heat.Max = 1

	p := plot.New()
	p.Title.Text = "Correlation of coverage metrics"
	p.Add(heat)
	p.NominalX(grid.names...)
	p.NominalY(grid.names...)
	rotateX(p)

	return r.save(p, 8*vg.Inch, 7*vg.Inch, file)
}
