// Package waypoint holds the obstacle waypoints the robot must visit, the
// parser for the textual record format sent by the robot controller, and the
// sequencer that fixes the visiting order.
package waypoint

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/banshee-data/pathing/internal/grid"
)

// Waypoint is a cell the robot must reach and scan while facing Heading.
// ScanOrder is the caller-assigned visiting priority.
type Waypoint struct {
	ObstacleID int           `json:"obstacle_id"`
	Position   grid.Position `json:"position"`
	Heading    grid.Heading  `json:"heading"`
	ScanOrder  int           `json:"scan_order"`
}

// Pose is the robot pose required to scan w.
func (w Waypoint) Pose() grid.Pose {
	return grid.Pose{Position: w.Position, Heading: w.Heading}
}

func (w Waypoint) String() string {
	return fmt.Sprintf("obstacle %d at %s facing %s (order %d)", w.ObstacleID, w.Position, w.Heading.Letter(), w.ScanOrder)
}

// SequencingError reports waypoints whose priority is ambiguous.
type SequencingError struct {
	Order       int
	ObstacleIDs []int
}

func (e *SequencingError) Error() string {
	ids := make([]string, len(e.ObstacleIDs))
	for i, id := range e.ObstacleIDs {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("ambiguous visiting order: scan order %d shared by obstacles %s", e.Order, strings.Join(ids, ", "))
}

// Sequence returns the waypoints in visiting order: ascending ScanOrder,
// obstacle id as a stable secondary key. Two waypoints sharing a ScanOrder
// are rejected with a *SequencingError. The input slice is not modified.
func Sequence(wps []Waypoint) ([]Waypoint, error) {
	out := slices.Clone(wps)
	slices.SortStableFunc(out, func(a, b Waypoint) int {
		if c := cmp.Compare(a.ScanOrder, b.ScanOrder); c != 0 {
			return c
		}
		return cmp.Compare(a.ObstacleID, b.ObstacleID)
	})

	for i := 1; i < len(out); i++ {
		if out[i].ScanOrder != out[i-1].ScanOrder {
			continue
		}
		err := &SequencingError{Order: out[i].ScanOrder}
		for j := i - 1; j < len(out) && out[j].ScanOrder == err.Order; j++ {
			err.ObstacleIDs = append(err.ObstacleIDs, out[j].ObstacleID)
		}
		return nil, err
	}
	if out == nil {
		out = []Waypoint{}
	}
	return out, nil
}
