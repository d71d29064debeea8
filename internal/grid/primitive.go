package grid

import "fmt"

// Kind tags which variant a Primitive holds.
type Kind int

const (
	Straight Kind = iota
	Turn
)

// Direction is the drive direction of a primitive.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "Backward"
	}
	return "Forward"
}

// Rotation is the steering side of a turn.
type Rotation int

const (
	Left Rotation = iota
	Right
)

func (r Rotation) String() string {
	if r == Right {
		return "Right"
	}
	return "Left"
}

// Primitive is one atomic robot movement. Straight primitives carry a
// positive DistanceCM; Turn primitives carry the fixed arc RadiusCM and
// always change the heading by exactly one quarter turn.
type Primitive struct {
	Kind       Kind
	Direction  Direction
	Rotation   Rotation
	DistanceCM int
	RadiusCM   int
}

// HeadingChange is the clockwise quarter-turn count a primitive applies.
// Driving forward while steering right, or reversing while steering left,
// swings the nose clockwise.
func (p Primitive) HeadingChange() int {
	if p.Kind != Turn {
		return 0
	}
	if (p.Direction == Forward) == (p.Rotation == Right) {
		return 1
	}
	return -1
}

func (p Primitive) String() string {
	if p.Kind == Turn {
		return fmt.Sprintf("Turn{%s %s r=%dcm}", p.Direction, p.Rotation, p.RadiusCM)
	}
	return fmt.Sprintf("Straight{%s %dcm}", p.Direction, p.DistanceCM)
}
