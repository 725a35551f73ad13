// Package render draws top-down views of world-space clouds for quick
// inspection: a static PNG through gonum/plot and an interactive HTML page
// through go-echarts.
package render

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/golang/geo/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Series is one named cloud to draw.
type Series struct {
	Name   string
	Points []r3.Vector
}

// DefaultMaxPoints is the per-series cap callers use when none is configured.
const DefaultMaxPoints = 8000

var palette = []color.RGBA{
	{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
}

// stride returns the step that keeps n points within maxPoints.
func stride(n, maxPoints int) int {
	if maxPoints <= 0 || n <= maxPoints {
		return 1
	}
	return int(math.Ceil(float64(n) / float64(maxPoints)))
}

// NewPlot builds the top-down (X/Y) scatter plot for the series.
func NewPlot(title string, series ...Series) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"
	p.Add(plotter.NewGrid())

	for i, s := range series {
		if len(s.Points) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(s.Points))
		for j, pt := range s.Points {
			xys[j].X = pt.X
			xys[j].Y = pt.Y
		}
		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("series %s: %w", s.Name, err)
		}
		scatter.GlyphStyle.Color = palette[i%len(palette)]
		scatter.GlyphStyle.Radius = vg.Points(1)
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(scatter)
		p.Legend.Add(s.Name, scatter)
	}
	p.Legend.Top = true
	return p, nil
}

// SavePNG renders the series to a square image at path. The format follows
// the file extension (png, svg, pdf...).
func SavePNG(path, title string, series ...Series) error {
	p, err := NewPlot(title, series...)
	if err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}

// RenderHTML writes an interactive top-down scatter chart. Each series is
// downsampled by stride to at most maxPoints points; zero or negative
// maxPoints keeps every point. Axes are symmetric so the view is not
// distorted.
func RenderHTML(w io.Writer, title string, maxPoints int, series ...Series) error {
	maxAbs := 0.0
	total := 0
	data := make([][]opts.ScatterData, len(series))
	for i, s := range series {
		step := stride(len(s.Points), maxPoints)
		data[i] = make([]opts.ScatterData, 0, len(s.Points)/step+1)
		for j := 0; j < len(s.Points); j += step {
			pt := s.Points[j]
			maxAbs = math.Max(maxAbs, math.Max(math.Abs(pt.X), math.Abs(pt.Y)))
			data[i] = append(data[i], opts.ScatterData{Value: []interface{}{pt.X, pt.Y, pt.Z}})
		}
		total += len(data[i])
	}

	// Pad so points on the edges stay visible.
	pad := maxAbs * 1.05
	if pad == 0 || math.IsNaN(pad) || math.IsInf(pad, 0) {
		pad = 1.0
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("series=%d points=%d", len(series), total)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y", NameLocation: "middle", NameGap: 30}),
	)
	for i, s := range series {
		scatter.AddSeries(s.Name, data[i], charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	}

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
