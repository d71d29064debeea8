// Package compiler drives the waypoint pipeline: it orders waypoints, plans
// the motion between consecutive scan poses, encodes the plan as wire
// commands and records the pose after every command.
package compiler

import (
	"errors"
	"fmt"

	"github.com/banshee-data/pathing/internal/command"
	"github.com/banshee-data/pathing/internal/grid"
	"github.com/banshee-data/pathing/internal/motion"
	"github.com/banshee-data/pathing/internal/waypoint"
)

// TraceEntry is the robot pose after one emitted command. D is the numeric
// heading (North=0 clockwise to West=3).
type TraceEntry struct {
	X int `json:"x"`
	Y int `json:"y"`
	D int `json:"d"`
}

func traceEntry(p grid.Pose) TraceEntry {
	return TraceEntry{X: p.X, Y: p.Y, D: int(p.Heading)}
}

// Pose converts the entry back to a grid pose.
func (e TraceEntry) Pose() grid.Pose { return grid.NewPose(e.X, e.Y, grid.Heading(e.D)) }

// Stats summarises a compiled route.
type Stats struct {
	Waypoints  int `json:"waypoints"`
	Straights  int `json:"straights"`
	Turns      int `json:"turns"`
	Backward   int `json:"backward"`
	StraightCM int `json:"straight_cm"`
}

// Result is a compiled route. Path holds one entry per motion or scan
// command; the terminal token has none.
type Result struct {
	Commands      []command.Command `json:"commands"`
	Path          []TraceEntry      `json:"path"`
	TotalCommands int               `json:"total_commands"`
	Stats         Stats             `json:"-"`
}

// CompileError identifies the waypoint whose motion could not be planned.
type CompileError struct {
	Index    int
	Waypoint waypoint.Waypoint
	Err      error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("waypoint %d (obstacle %d at %s): %v", e.Index, e.Waypoint.ObstacleID, e.Waypoint.Pose(), e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Compiler is immutable after construction and safe for concurrent use.
type Compiler struct {
	geometry grid.Geometry
	synth    *motion.Synthesizer
	enc      *command.Encoder
}

// New returns a Compiler planning with s and encoding with enc.
func New(s *motion.Synthesizer, enc *command.Encoder) *Compiler {
	return &Compiler{geometry: s.Geometry, synth: s, enc: enc}
}

// Encoder returns the encoder used for emitted commands.
func (c *Compiler) Encoder() *command.Encoder { return c.enc }

// Geometry returns the arena and robot geometry used for planning.
func (c *Compiler) Geometry() grid.Geometry { return c.geometry }

// Compile plans a route from start through every waypoint in scan order.
// On failure no partial result is returned: sequencing problems are reported
// as *waypoint.SequencingError, planning problems as *CompileError.
func (c *Compiler) Compile(start grid.Pose, wps []waypoint.Waypoint) (*Result, error) {
	if !start.Heading.Valid() {
		return nil, fmt.Errorf("start pose %s: invalid heading", start)
	}
	if err := c.geometry.CheckBounds(start.Position); err != nil {
		return nil, fmt.Errorf("start pose %s: %w", start, err)
	}
	ordered, err := waypoint.Sequence(wps)
	if err != nil {
		return nil, err
	}

	r := newRun(start, len(ordered))
	for r.state != done {
		if err := c.step(r, ordered); err != nil {
			return nil, err
		}
	}
	r.commands = append(r.commands, c.enc.Finish())
	return &Result{
		Commands:      r.commands,
		Path:          r.path,
		TotalCommands: len(r.commands),
		Stats:         r.stats,
	}, nil
}

// step advances the run by one state transition.
func (c *Compiler) step(r *run, ordered []waypoint.Waypoint) error {
	switch r.state {
	case idle:
		r.next(ordered)
	case traveling:
		w := ordered[r.index]
		if !w.Heading.Valid() {
			return &CompileError{Index: r.index, Waypoint: w, Err: errors.New("invalid heading")}
		}
		plan, err := c.synth.Plan(r.pose, w.Position, w.Heading)
		if err != nil {
			return &CompileError{Index: r.index, Waypoint: w, Err: err}
		}
		for _, p := range plan {
			next, err := c.geometry.Apply(r.pose, p)
			if err != nil {
				return &CompileError{Index: r.index, Waypoint: w, Err: err}
			}
			r.emit(c.enc.Encode(p), next)
			r.count(p)
		}
		r.state = scanning
	case scanning:
		w := ordered[r.index]
		r.emit(c.enc.EncodeScan(w), w.Pose())
		r.stats.Waypoints++
		r.index++
		r.next(ordered)
	}
	return nil
}

// Replay re-derives the pose trace of a command list from start. A finish
// token ends the replay and must be the last command.
func (c *Compiler) Replay(start grid.Pose, cmds []command.Command) ([]TraceEntry, error) {
	pose := start
	path := make([]TraceEntry, 0, len(cmds))
	for i, cmd := range cmds {
		ins, err := c.enc.Decode(cmd)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		switch ins.Op {
		case command.OpFinish:
			if i != len(cmds)-1 {
				return nil, fmt.Errorf("command %d: %q before end of sequence", i, cmd)
			}
			return path, nil
		case command.OpMove:
			next, err := c.geometry.Apply(pose, ins.Primitive)
			if err != nil {
				return nil, fmt.Errorf("command %d %q: %w", i, cmd, err)
			}
			pose = next
		}
		path = append(path, traceEntry(pose))
	}
	return path, nil
}

// RescanCommands is the retry sequence issued when a scan was inconclusive:
// back off one cell, scan again, return. scanOrder is rendered by the same
// scan template Compile uses for a waypoint's scan order. The controller's
// NONE,<id> message sends the obstacle id, which is also the scan order in
// its four-field record form.
//
// The back-off is not checked against the grid; use RescanAt when the
// robot's pose is known.
func (c *Compiler) RescanCommands(scanOrder int) ([]command.Command, error) {
	if scanOrder < 0 {
		return nil, fmt.Errorf("scan order %d must be non-negative", scanOrder)
	}
	return []command.Command{
		c.enc.Encode(c.geometry.NewStraight(grid.Backward, 1)),
		c.enc.EncodeScanOrder(scanOrder),
		c.enc.Encode(c.geometry.NewStraight(grid.Forward, 1)),
	}, nil
}

// RescanAt is RescanCommands for a robot scanning from pose at. The error
// wraps a *grid.OutOfBoundsError or *grid.CollisionError when the back-off
// would leave the grid or enter a blocked cell.
func (c *Compiler) RescanAt(at grid.Pose, scanOrder int) ([]command.Command, error) {
	cmds, err := c.RescanCommands(scanOrder)
	if err != nil {
		return nil, err
	}
	if err := c.geometry.CheckBounds(at.Position); err != nil {
		return nil, err
	}
	back := c.geometry.NewStraight(grid.Backward, 1)
	if _, err := c.geometry.Apply(at, back); err != nil {
		return nil, fmt.Errorf("rescan back-off from %s: %w", at, err)
	}
	if err := c.geometry.CheckClear(at, back); err != nil {
		return nil, fmt.Errorf("rescan back-off from %s: %w", at, err)
	}
	return cmds, nil
}
