// Package grid defines the discrete arena model used by the path compiler:
// cell positions, cardinal headings, robot poses and the two motion
// primitives the robot can execute (straight runs and quarter-turn arcs).
package grid

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
)

// Heading is a cardinal direction. Values increase clockwise and match the
// numeric "d" code used in path traces.
type Heading int

const (
	North Heading = iota
	East
	South
	West
)

var headingLetters = [...]string{"N", "E", "S", "W"}
var headingNames = [...]string{"North", "East", "South", "West"}

// HeadingFromLetter maps exactly one of the upper-case letters N, E, S, W to
// a Heading. It is the form the wire records use.
func HeadingFromLetter(s string) (Heading, error) {
	for i, l := range headingLetters {
		if s == l {
			return Heading(i), nil
		}
	}
	return 0, fmt.Errorf("unknown heading %q: expected N, E, S or W", s)
}

// ParseHeading is the lenient form of HeadingFromLetter for hand-written
// input such as config files, flags and JSON: surrounding space is ignored
// and lower-case letters are accepted.
func ParseHeading(s string) (Heading, error) {
	h, err := HeadingFromLetter(strings.ToUpper(strings.TrimSpace(s)))
	if err != nil {
		return 0, fmt.Errorf("unknown heading %q: expected N, E, S or W", s)
	}
	return h, nil
}

// Valid reports whether h is one of the four cardinal headings.
func (h Heading) Valid() bool { return h >= North && h <= West }

// Letter returns the single-letter wire form of h.
func (h Heading) Letter() string {
	if !h.Valid() {
		return "?"
	}
	return headingLetters[h]
}

func (h Heading) String() string {
	if !h.Valid() {
		return fmt.Sprintf("Heading(%d)", int(h))
	}
	return headingNames[h]
}

// Rotate returns the heading reached after n clockwise quarter turns
// (negative n turns counter-clockwise).
func (h Heading) Rotate(n int) Heading {
	return Heading(((int(h)+n)%4 + 4) % 4)
}

// Unit is the world-frame unit vector pointing along h. North is +Y and
// East is +X.
func (h Heading) Unit() r2.Vec {
	switch h {
	case North:
		return r2.Vec{X: 0, Y: 1}
	case East:
		return r2.Vec{X: 1, Y: 0}
	case South:
		return r2.Vec{X: 0, Y: -1}
	default:
		return r2.Vec{X: -1, Y: 0}
	}
}

// MarshalText renders h as its letter, so JSON carries "N" rather than 0.
func (h Heading) MarshalText() ([]byte, error) {
	if !h.Valid() {
		return nil, fmt.Errorf("invalid heading %d", int(h))
	}
	return []byte(h.Letter()), nil
}

// UnmarshalText accepts a heading letter.
func (h *Heading) UnmarshalText(b []byte) error {
	v, err := ParseHeading(string(b))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// UnmarshalJSON accepts either a heading letter ("E") or its numeric value (1).
func (h *Heading) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if strings.HasPrefix(s, `"`) {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		return h.UnmarshalText([]byte(unquoted))
	}
	n, err := strconv.Atoi(s)
	if err != nil || !Heading(n).Valid() {
		return fmt.Errorf("invalid heading %s: expected N, E, S, W or 0-3", s)
	}
	*h = Heading(n)
	return nil
}

// Horizontal reports whether h moves the robot along the X axis.
func (h Heading) Horizontal() bool { return h == East || h == West }

// HeadingDelta returns the signed shortest rotation from a to b in quarter
// turns, clockwise positive. A half turn is reported as 2.
func HeadingDelta(a, b Heading) int {
	d := ((int(b)-int(a))%4 + 4) % 4
	if d == 3 {
		return -1
	}
	return d
}

// Position is a grid cell coordinate.
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

func (p Position) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Pose is the robot state at an instant: the cell it occupies and the way it
// faces. Poses are values; applying a primitive yields a new Pose.
type Pose struct {
	Position
	Heading Heading `json:"heading" yaml:"heading"`
}

// NewPose is shorthand for building a Pose from its components.
func NewPose(x, y int, h Heading) Pose {
	return Pose{Position: Position{X: x, Y: y}, Heading: h}
}

func (p Pose) String() string {
	return fmt.Sprintf("(%d,%d,%s)", p.X, p.Y, p.Heading.Letter())
}
