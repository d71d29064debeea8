package compiler

import (
	"github.com/banshee-data/pathing/internal/command"
	"github.com/banshee-data/pathing/internal/grid"
	"github.com/banshee-data/pathing/internal/waypoint"
)

type state int

const (
	idle state = iota
	traveling
	scanning
	done
)

func (s state) String() string {
	switch s {
	case idle:
		return "idle"
	case traveling:
		return "traveling"
	case scanning:
		return "scanning"
	case done:
		return "done"
	}
	return "unknown"
}

// run is the state of one compilation. Nothing in it outlives Compile.
type run struct {
	state    state
	index    int
	pose     grid.Pose
	commands []command.Command
	path     []TraceEntry
	stats    Stats
}

func newRun(start grid.Pose, waypoints int) *run {
	return &run{
		state:    idle,
		pose:     start,
		commands: make([]command.Command, 0, waypoints*4+1),
		path:     make([]TraceEntry, 0, waypoints*4),
	}
}

// next moves to the following waypoint, or to done when none remain.
func (r *run) next(ordered []waypoint.Waypoint) {
	if r.index < len(ordered) {
		r.state = traveling
		return
	}
	r.state = done
}

func (r *run) emit(cmd command.Command, pose grid.Pose) {
	r.commands = append(r.commands, cmd)
	r.path = append(r.path, traceEntry(pose))
	r.pose = pose
}

func (r *run) count(p grid.Primitive) {
	if p.Direction == grid.Backward {
		r.stats.Backward++
	}
	switch p.Kind {
	case grid.Straight:
		r.stats.Straights++
		r.stats.StraightCM += p.DistanceCM
	case grid.Turn:
		r.stats.Turns++
	}
}
