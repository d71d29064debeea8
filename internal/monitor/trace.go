// Package monitor renders compiled paths for humans: an interactive
// go-echarts page and a static gonum/plot PNG.
package monitor

import (
	"fmt"
	"sort"

	"github.com/banshee-data/pathing/internal/compiler"
	"github.com/banshee-data/pathing/internal/grid"
	"github.com/banshee-data/pathing/internal/waypoint"
)

// Trace is everything a renderer needs to draw one run.
type Trace struct {
	Title     string
	GridSize  int
	Start     grid.Pose
	Path      []compiler.TraceEntry
	Waypoints []waypoint.Waypoint
	Blocked   []grid.Position
}

// NewTrace collects a compiled result into a Trace. Blocked cells are sorted
// so output is stable.
func NewTrace(title string, g grid.Geometry, start grid.Pose, wps []waypoint.Waypoint, res *compiler.Result) Trace {
	t := Trace{
		Title:     title,
		GridSize:  g.GridSize,
		Start:     start,
		Waypoints: wps,
	}
	if res != nil {
		t.Path = res.Path
	}
	for p, blocked := range g.Blocked {
		if blocked {
			t.Blocked = append(t.Blocked, p)
		}
	}
	sort.Slice(t.Blocked, func(i, j int) bool {
		if t.Blocked[i].X != t.Blocked[j].X {
			return t.Blocked[i].X < t.Blocked[j].X
		}
		return t.Blocked[i].Y < t.Blocked[j].Y
	})
	return t
}

// Poses returns the start pose followed by every traced pose.
func (t Trace) Poses() []grid.Pose {
	out := make([]grid.Pose, 0, len(t.Path)+1)
	out = append(out, t.Start)
	for _, e := range t.Path {
		out = append(out, e.Pose())
	}
	return out
}

func (t Trace) subtitle() string {
	return fmt.Sprintf("start=%s waypoints=%d steps=%d", t.Start, len(t.Waypoints), len(t.Path))
}

func (t Trace) validate() error {
	if t.GridSize <= 0 {
		return fmt.Errorf("invalid grid size %d", t.GridSize)
	}
	return nil
}
