package grid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// TurnOffset is the displacement of one quarter-turn arc in the robot frame,
// measured in cells: Forward along the heading held before the turn and
// Right towards the robot's right-hand side.
type TurnOffset struct {
	Forward int `json:"forward" yaml:"forward"`
	Right   int `json:"right" yaml:"right"`
}

// Geometry describes the arena and the physical robot. It is read-only once
// built and may be shared between concurrent compilations.
type Geometry struct {
	GridSize     int
	CellCM       int
	TurnRadiusCM int

	ForwardLeft   TurnOffset
	ForwardRight  TurnOffset
	BackwardLeft  TurnOffset
	BackwardRight TurnOffset

	// Blocked holds obstacle cells no primitive may enter.
	Blocked map[Position]bool
}

// DefaultGeometry is a 20x20 arena of 10cm cells with the arc offsets
// measured on the reference robot.
func DefaultGeometry() Geometry {
	return Geometry{
		GridSize:      20,
		CellCM:        10,
		TurnRadiusCM:  30,
		ForwardLeft:   TurnOffset{Forward: 2, Right: -3},
		ForwardRight:  TurnOffset{Forward: 2, Right: 3},
		BackwardLeft:  TurnOffset{Forward: -3, Right: -2},
		BackwardRight: TurnOffset{Forward: -3, Right: 2},
	}
}

// OutOfBoundsError reports a pose that would leave the grid.
type OutOfBoundsError struct {
	Position Position
	GridSize int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("position %s outside %dx%d grid", e.Position, e.GridSize, e.GridSize)
}

// CollisionError reports a primitive that would drive through a blocked cell.
type CollisionError struct {
	Position Position
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("position %s is blocked by an obstacle", e.Position)
}

// InBounds reports whether p lies inside the grid.
func (g Geometry) InBounds(p Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < g.GridSize && p.Y < g.GridSize
}

// CheckBounds returns an *OutOfBoundsError when p is outside the grid.
func (g Geometry) CheckBounds(p Position) error {
	if !g.InBounds(p) {
		return &OutOfBoundsError{Position: p, GridSize: g.GridSize}
	}
	return nil
}

// NewStraight builds a straight primitive covering cells grid cells.
func (g Geometry) NewStraight(dir Direction, cells int) Primitive {
	return Primitive{Kind: Straight, Direction: dir, DistanceCM: cells * g.CellCM}
}

// NewTurn builds a quarter-turn primitive using the configured radius.
func (g Geometry) NewTurn(dir Direction, rot Rotation) Primitive {
	return Primitive{Kind: Turn, Direction: dir, Rotation: rot, RadiusCM: g.TurnRadiusCM}
}

// Offset returns the robot-frame displacement of a turn.
func (g Geometry) Offset(dir Direction, rot Rotation) TurnOffset {
	switch {
	case dir == Forward && rot == Left:
		return g.ForwardLeft
	case dir == Forward && rot == Right:
		return g.ForwardRight
	case dir == Backward && rot == Left:
		return g.BackwardLeft
	default:
		return g.BackwardRight
	}
}

// TurnDisplacement returns the world-frame cell displacement of a turn
// started while facing h.
func (g Geometry) TurnDisplacement(h Heading, dir Direction, rot Rotation) (dx, dy int) {
	off := g.Offset(dir, rot)
	v := r2.Add(
		r2.Scale(float64(off.Forward), h.Unit()),
		r2.Scale(float64(off.Right), h.Rotate(1).Unit()),
	)
	return int(math.Round(v.X)), int(math.Round(v.Y))
}

// Cells converts a straight primitive's distance to whole grid cells.
func (g Geometry) Cells(p Primitive) (int, error) {
	if g.CellCM <= 0 {
		return 0, fmt.Errorf("invalid cell size %dcm", g.CellCM)
	}
	if p.DistanceCM <= 0 || p.DistanceCM%g.CellCM != 0 {
		return 0, fmt.Errorf("straight distance %dcm is not a positive multiple of %dcm", p.DistanceCM, g.CellCM)
	}
	return p.DistanceCM / g.CellCM, nil
}

// Apply returns the pose reached by executing p from pose. It fails with an
// *OutOfBoundsError when the resulting position leaves the grid.
func (g Geometry) Apply(pose Pose, p Primitive) (Pose, error) {
	next := pose
	switch p.Kind {
	case Straight:
		cells, err := g.Cells(p)
		if err != nil {
			return pose, err
		}
		if p.Direction == Backward {
			cells = -cells
		}
		u := pose.Heading.Unit()
		next.X += cells * int(u.X)
		next.Y += cells * int(u.Y)
	case Turn:
		dx, dy := g.TurnDisplacement(pose.Heading, p.Direction, p.Rotation)
		next.X += dx
		next.Y += dy
		next.Heading = pose.Heading.Rotate(p.HeadingChange())
	default:
		return pose, fmt.Errorf("unknown primitive kind %d", p.Kind)
	}
	if err := g.CheckBounds(next.Position); err != nil {
		return pose, err
	}
	return next, nil
}

// Sweep lists the cells entered while executing p from pose, ending with the
// destination cell. Straight runs enter every cell along the way; arcs are
// checked at their destination only.
func (g Geometry) Sweep(pose Pose, p Primitive) ([]Position, error) {
	next, err := g.Apply(pose, p)
	if err != nil {
		return nil, err
	}
	if p.Kind != Straight {
		return []Position{next.Position}, nil
	}
	cells, _ := g.Cells(p)
	step := 1
	if p.Direction == Backward {
		step = -1
	}
	u := pose.Heading.Unit()
	out := make([]Position, 0, cells)
	for i := 1; i <= cells; i++ {
		out = append(out, Position{
			X: pose.X + i*step*int(u.X),
			Y: pose.Y + i*step*int(u.Y),
		})
	}
	return out, nil
}

// CheckClear fails with a *CollisionError if executing p from pose would
// enter a blocked cell.
func (g Geometry) CheckClear(pose Pose, p Primitive) error {
	if len(g.Blocked) == 0 {
		return nil
	}
	cells, err := g.Sweep(pose, p)
	if err != nil {
		return err
	}
	for _, c := range cells {
		if g.Blocked[c] {
			return &CollisionError{Position: c}
		}
	}
	return nil
}
