package monitor

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// PNGSize is the edge length of rendered images.
const PNGSize = 6 * vg.Inch

var (
	pathColour     = color.RGBA{R: 0x31, G: 0x68, B: 0x8e, A: 0xff}
	waypointColour = color.RGBA{R: 0x35, G: 0xb7, B: 0x79, A: 0xff}
	blockedColour  = color.RGBA{R: 0xc0, G: 0x39, B: 0x2b, A: 0xff}
)

// RenderPNG draws the trace onto a square PNG.
func RenderPNG(w io.Writer, t Trace) error {
	return RenderImage(w, t, "png")
}

// RenderImage draws the trace in any format gonum/plot has registered
// (png, svg, pdf, ...).
func RenderImage(w io.Writer, t Trace, format string) error {
	wt, err := newPlot(t, format)
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

func newPlot(t Trace, format string) (io.WriterTo, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = t.Title
	p.X.Label.Text = "x (cells)"
	p.Y.Label.Text = "y (cells)"
	p.Add(plotter.NewGrid())

	poses := t.Poses()
	pts := make(plotter.XYs, len(poses))
	for i, pose := range poses {
		pts[i] = plotter.XY{X: float64(pose.X), Y: float64(pose.Y)}
	}
	line, scatter, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, fmt.Errorf("path line: %w", err)
	}
	line.Color = pathColour
	line.Width = vg.Points(1.5)
	scatter.Color = pathColour
	scatter.Radius = vg.Points(2)
	p.Add(line, scatter)
	p.Legend.Add("path", line)

	if len(t.Waypoints) > 0 {
		wps := make(plotter.XYs, len(t.Waypoints))
		for i, wp := range t.Waypoints {
			wps[i] = plotter.XY{X: float64(wp.Position.X), Y: float64(wp.Position.Y)}
		}
		s, err := plotter.NewScatter(wps)
		if err != nil {
			return nil, fmt.Errorf("waypoints: %w", err)
		}
		s.GlyphStyle = draw.GlyphStyle{Color: waypointColour, Radius: vg.Points(5), Shape: draw.BoxGlyph{}}
		p.Add(s)
		p.Legend.Add("waypoints", s)
	}

	if len(t.Blocked) > 0 {
		blocked := make(plotter.XYs, len(t.Blocked))
		for i, b := range t.Blocked {
			blocked[i] = plotter.XY{X: float64(b.X), Y: float64(b.Y)}
		}
		s, err := plotter.NewScatter(blocked)
		if err != nil {
			return nil, fmt.Errorf("blocked cells: %w", err)
		}
		s.GlyphStyle = draw.GlyphStyle{Color: blockedColour, Radius: vg.Points(4), Shape: draw.CrossGlyph{}}
		p.Add(s)
		p.Legend.Add("blocked", s)
	}

	// fixed axes so every run of the same arena lines up
	p.X.Min, p.X.Max = -0.5, float64(t.GridSize)-0.5
	p.Y.Min, p.Y.Max = -0.5, float64(t.GridSize)-0.5

	return p.WriterTo(PNGSize, PNGSize, format)
}
