// Package motion turns a pose-to-pose request into a short sequence of
// straight runs and quarter-turn arcs the robot can execute.
//
// The robot cannot rotate in place, so every heading change moves it. The
// synthesizer enumerates turn sequences by length, closes the remaining
// displacement with at most one straight run per axis, and keeps the
// cheapest candidate that stays on the grid and clear of blocked cells.
package motion

import (
	"fmt"

	"github.com/banshee-data/pathing/internal/grid"
)

// DefaultMaxPrimitives bounds the length of a single pose-to-pose plan.
const DefaultMaxPrimitives = 4

// turnKinds is the enumeration order of quarter turns. It fixes which of two
// equally cheap plans wins.
var turnKinds = [...]struct {
	dir grid.Direction
	rot grid.Rotation
}{
	{grid.Forward, grid.Right},
	{grid.Backward, grid.Left},
	{grid.Forward, grid.Left},
	{grid.Backward, grid.Right},
}

// UnreachablePoseError reports that no plan within MaxPrimitives reconciles
// both position and heading.
type UnreachablePoseError struct {
	From          grid.Pose
	To            grid.Pose
	MaxPrimitives int
	// Cause is the last bounds or collision failure seen while validating
	// candidates, if any.
	Cause error
}

func (e *UnreachablePoseError) Error() string {
	msg := fmt.Sprintf("no plan from %s to %s within %d primitives", e.From, e.To, e.MaxPrimitives)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *UnreachablePoseError) Unwrap() error { return e.Cause }

// Synthesizer plans motions over a fixed geometry. It holds no mutable state
// and is safe for concurrent use.
type Synthesizer struct {
	Geometry      grid.Geometry
	MaxPrimitives int
}

// NewSynthesizer returns a Synthesizer for g. A non-positive maxPrimitives
// selects DefaultMaxPrimitives.
func NewSynthesizer(g grid.Geometry, maxPrimitives int) *Synthesizer {
	if maxPrimitives <= 0 {
		maxPrimitives = DefaultMaxPrimitives
	}
	return &Synthesizer{Geometry: g, MaxPrimitives: maxPrimitives}
}

// Plan returns the primitives that carry the robot from `from` to position
// `to` facing `heading`. The plan is empty when the robot is already there.
//
// Among all valid plans Plan prefers, in order: fewer primitives, fewer
// turns, fewer backward moves, turns rotating towards the target heading,
// less straight travel. Remaining ties go to the first plan enumerated, so
// the result is deterministic.
func (s *Synthesizer) Plan(from grid.Pose, to grid.Position, heading grid.Heading) ([]grid.Primitive, error) {
	target := grid.Pose{Position: to, Heading: heading}
	if err := s.Geometry.CheckBounds(from.Position); err != nil {
		return nil, err
	}
	if err := s.Geometry.CheckBounds(to); err != nil {
		return nil, err
	}
	if from == target {
		return []grid.Primitive{}, nil
	}

	delta := grid.HeadingDelta(from.Heading, heading)
	sense := 1
	if delta < 0 {
		sense = -1
	}

	var (
		best    []grid.Primitive
		bestKey planKey
		cause   error
		index   int
	)
	for k := 0; k <= s.MaxPrimitives; k++ {
		// Every k-turn plan has at least k primitives.
		if best != nil && len(best) <= k {
			break
		}
		forEachTurnSequence(k, func(turns []int) {
			if !rotatesBy(turns, delta) {
				return
			}
			for _, cand := range s.candidates(from, target, turns) {
				index++
				if len(cand) > s.MaxPrimitives {
					continue
				}
				if err := s.validate(from, target, cand); err != nil {
					cause = err
					continue
				}
				key := keyOf(cand, sense, index)
				if best == nil || key.less(bestKey) {
					best, bestKey = cand, key
				}
			}
		})
	}
	if best == nil {
		return nil, &UnreachablePoseError{From: from, To: target, MaxPrimitives: s.MaxPrimitives, Cause: cause}
	}
	return best, nil
}

// forEachTurnSequence calls fn with every sequence of k turn kind indices in
// lexicographic order. fn must not retain the slice.
func forEachTurnSequence(k int, fn func([]int)) {
	seq := make([]int, k)
	for {
		fn(seq)
		i := k - 1
		for i >= 0 && seq[i] == len(turnKinds)-1 {
			seq[i] = 0
			i--
		}
		if i < 0 {
			return
		}
		seq[i]++
	}
}

func rotatesBy(turns []int, delta int) bool {
	net := 0
	for _, t := range turns {
		net += turnChange(t)
	}
	return ((net-delta)%4+4)%4 == 0
}

func turnChange(t int) int {
	return grid.Primitive{Kind: grid.Turn, Direction: turnKinds[t].dir, Rotation: turnKinds[t].rot}.HeadingChange()
}

// candidates closes the displacement left after the given turns with at most
// one straight run per axis. Each straight goes into a segment whose heading
// lies on its axis; every such placement yields one candidate.
func (s *Synthesizer) candidates(from, target grid.Pose, turns []int) [][]grid.Primitive {
	g := s.Geometry
	headings := make([]grid.Heading, len(turns)+1)
	headings[0] = from.Heading
	rx, ry := target.X-from.X, target.Y-from.Y
	for i, t := range turns {
		dx, dy := g.TurnDisplacement(headings[i], turnKinds[t].dir, turnKinds[t].rot)
		rx -= dx
		ry -= dy
		headings[i+1] = headings[i].Rotate(turnChange(t))
	}

	xSlots := slotsFor(headings, rx, true)
	ySlots := slotsFor(headings, ry, false)

	var out [][]grid.Primitive
	for _, xs := range xSlots {
		for _, ys := range ySlots {
			plan := make([]grid.Primitive, 0, len(turns)+2)
			for seg, h := range headings {
				switch seg {
				case xs:
					plan = append(plan, s.straightAlong(h, rx, 0))
				case ys:
					plan = append(plan, s.straightAlong(h, 0, ry))
				}
				if seg < len(turns) {
					t := turnKinds[turns[seg]]
					plan = append(plan, g.NewTurn(t.dir, t.rot))
				}
			}
			out = append(out, plan)
		}
	}
	return out
}

// slotsFor lists the segments that can carry a straight run of length r on
// the horizontal or vertical axis. A zero run needs no slot and yields -1.
func slotsFor(headings []grid.Heading, r int, horizontal bool) []int {
	if r == 0 {
		return []int{-1}
	}
	var slots []int
	for i, h := range headings {
		if h.Horizontal() == horizontal {
			slots = append(slots, i)
		}
	}
	return slots
}

// straightAlong builds the straight run covering (dx, dy) while facing h.
// Exactly one of dx, dy is non-zero and lies on h's axis.
func (s *Synthesizer) straightAlong(h grid.Heading, dx, dy int) grid.Primitive {
	u := h.Unit()
	along := dx*int(u.X) + dy*int(u.Y)
	if along < 0 {
		return s.Geometry.NewStraight(grid.Backward, -along)
	}
	return s.Geometry.NewStraight(grid.Forward, along)
}

func (s *Synthesizer) validate(from, target grid.Pose, plan []grid.Primitive) error {
	pose := from
	for _, p := range plan {
		if err := s.Geometry.CheckClear(pose, p); err != nil {
			return err
		}
		next, err := s.Geometry.Apply(pose, p)
		if err != nil {
			return err
		}
		pose = next
	}
	if pose != target {
		return fmt.Errorf("plan ends at %s, want %s", pose, target)
	}
	return nil
}

type planKey struct {
	primitives int
	turns      int
	backward   int
	against    int
	travel     int
	index      int
}

func keyOf(plan []grid.Primitive, sense, index int) planKey {
	k := planKey{primitives: len(plan), index: index}
	for _, p := range plan {
		if p.Direction == grid.Backward {
			k.backward++
		}
		switch p.Kind {
		case grid.Turn:
			k.turns++
			if p.HeadingChange() != sense {
				k.against++
			}
		case grid.Straight:
			k.travel += p.DistanceCM
		}
	}
	return k
}

func (a planKey) less(b planKey) bool {
	switch {
	case a.primitives != b.primitives:
		return a.primitives < b.primitives
	case a.turns != b.turns:
		return a.turns < b.turns
	case a.backward != b.backward:
		return a.backward < b.backward
	case a.against != b.against:
		return a.against < b.against
	case a.travel != b.travel:
		return a.travel < b.travel
	}
	return a.index < b.index
}
