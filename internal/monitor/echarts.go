package monitor

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderHTML writes an interactive chart of the trace: the path as a line,
// waypoints and blocked cells as scatter series.
func RenderHTML(w io.Writer, t Trace) error {
	if err := t.validate(); err != nil {
		return err
	}
	max := t.GridSize - 1

	path := make([]opts.LineData, 0, len(t.Path)+1)
	for i, p := range t.Poses() {
		path = append(path, opts.LineData{Name: stepName(i, p.Heading.Letter()), Value: []interface{}{p.X, p.Y}})
	}

	targets := make([]opts.ScatterData, 0, len(t.Waypoints))
	for _, wp := range t.Waypoints {
		targets = append(targets, opts.ScatterData{
			Name:  wp.String(),
			Value: []interface{}{wp.Position.X, wp.Position.Y, wp.ScanOrder},
		})
	}

	blocked := make([]opts.ScatterData, 0, len(t.Blocked))
	for _, p := range t.Blocked {
		blocked = append(blocked, opts.ScatterData{Name: p.String(), Value: []interface{}{p.X, p.Y}})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: t.Title, Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: t.Title, Subtitle: t.subtitle()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: 0, Max: max, Name: "x (cells)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Min: 0, Max: max, Name: "y (cells)", NameLocation: "middle", NameGap: 30}),
	)
	line.AddSeries("path", path, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))

	scatter := charts.NewScatter()
	scatter.AddSeries("waypoints", targets, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 14}))
	scatter.AddSeries("blocked", blocked, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))
	line.Overlap(scatter)

	return line.Render(w)
}

func stepName(i int, heading string) string {
	if i == 0 {
		return "start " + heading
	}
	return fmt.Sprintf("step %d %s", i, heading)
}
