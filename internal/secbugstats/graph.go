package secbugstats

import (
	"fmt"
	"image/color"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// palette matches the colors the weekly report has always used.
var palette = []color.RGBA{
	{0xff, 0xe8, 0x4c, 0xff},
	{0x76, 0x33, 0xbd, 0xff},
	{0x3d, 0x85, 0x3d, 0xff},
	{0xa2, 0x3c, 0x3c, 0xff},
	{0x8c, 0xac, 0xc6, 0xff},
	{0xbd, 0x9b, 0x33, 0xff},
	{0x94, 0x40, 0xed, 0xff},
	{0x4d, 0xa7, 0x4d, 0xff},
	{0xcb, 0x4b, 0x4b, 0xff},
	{0xaf, 0xd8, 0xf8, 0xff},
	{0xed, 0xc2, 0x40, 0xff},
}

// RenderRiskChart draws the team risk histories as a stacked area
// chart and writes teamgraph-YYYYMMDD.png into outDir, returning the
// file path. The input must be sorted smallest last-risk first, as
// RiskSeries returns it.
func RenderRiskChart(series []TeamSeries, outDir string, now time.Time) (string, error) {
	if len(series) == 0 {
		return "", fmt.Errorf("no team series to chart")
	}

	p := plot.New()
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	p.Y.Label.Text = "Risk index"
	p.Y.Min = 0
	p.Legend.Top = true
	p.Legend.Left = true

	// Stack by drawing the cumulative outline of each team, largest
	// total first, so every smaller band paints over the one below it.
	stacked := make([]plotter.XYs, len(series))
	for i, s := range series {
		stacked[i] = make(plotter.XYs, len(s.Points))
		for j, pt := range s.Points {
			stacked[i][j].X = float64(pt.Date.Unix())
			stacked[i][j].Y = float64(pt.Risk)
			if i > 0 {
				stacked[i][j].Y += stacked[i-1][j].Y
			}
		}
	}

	for i := len(series) - 1; i >= 0; i-- {
		line, err := plotter.NewLine(stacked[i])
		if err != nil {
			return "", fmt.Errorf("chart series %s: %w", series[i].Name, err)
		}
		c := palette[i%len(palette)]
		line.Color = c
		line.FillColor = c
		p.Add(line)
		p.Legend.Add(series[i].Name, line)
	}

	path := filepath.Join(outDir, "teamgraph-"+now.Format("20060102")+".png")
	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return "", fmt.Errorf("save chart: %w", err)
	}
	return path, nil
}
