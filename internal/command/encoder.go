package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/pathing/internal/grid"
	"github.com/banshee-data/pathing/internal/waypoint"
)

// Command is one wire token. Tokens are emitted in order and never reordered.
type Command string

// Op classifies a decoded command.
type Op int

const (
	OpMove Op = iota
	OpScan
	OpFinish
)

func (o Op) String() string {
	switch o {
	case OpMove:
		return "move"
	case OpScan:
		return "scan"
	case OpFinish:
		return "finish"
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Instruction is a decoded Command.
type Instruction struct {
	Op        Op
	Primitive grid.Primitive
	ScanOrder int
}

// Encoder maps primitives and scan events to tokens of one Table.
type Encoder struct {
	table        Table
	turnRadiusCM int
}

// NewEncoder validates t and returns an Encoder for it. turnRadiusCM is
// attached to decoded turns.
func NewEncoder(t Table, turnRadiusCM int) (*Encoder, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid encoding table %q: %w", t.Name, err)
	}
	return &Encoder{table: t, turnRadiusCM: turnRadiusCM}, nil
}

// Table returns the vocabulary in use.
func (e *Encoder) Table() Table { return e.table }

// Encode renders a motion primitive.
func (e *Encoder) Encode(p grid.Primitive) Command {
	if p.Kind == grid.Straight {
		if p.Direction == grid.Backward {
			return Command(fmt.Sprintf(e.table.StraightBackward, p.DistanceCM))
		}
		return Command(fmt.Sprintf(e.table.StraightForward, p.DistanceCM))
	}
	return Command(e.turnToken(p.Direction, p.Rotation))
}

// EncodeScan renders the scan event for w, keyed by its scan order.
func (e *Encoder) EncodeScan(w waypoint.Waypoint) Command {
	return e.EncodeScanOrder(w.ScanOrder)
}

// EncodeScanOrder renders a scan event for an explicit order value.
func (e *Encoder) EncodeScanOrder(order int) Command {
	return Command(fmt.Sprintf(e.table.Scan, order))
}

// Finish is the terminal token.
func (e *Encoder) Finish() Command { return Command(e.table.Finish) }

func (e *Encoder) turnToken(dir grid.Direction, rot grid.Rotation) string {
	switch {
	case dir == grid.Forward && rot == grid.Left:
		return e.table.ForwardLeft
	case dir == grid.Forward && rot == grid.Right:
		return e.table.ForwardRight
	case dir == grid.Backward && rot == grid.Left:
		return e.table.BackwardLeft
	default:
		return e.table.BackwardRight
	}
}

// Decode parses a token produced by this Encoder.
func (e *Encoder) Decode(c Command) (Instruction, error) {
	s := string(c)
	if s == e.table.Finish {
		return Instruction{Op: OpFinish}, nil
	}
	for _, dir := range []grid.Direction{grid.Forward, grid.Backward} {
		for _, rot := range []grid.Rotation{grid.Left, grid.Right} {
			if s == e.turnToken(dir, rot) {
				return Instruction{Op: OpMove, Primitive: grid.Primitive{
					Kind: grid.Turn, Direction: dir, Rotation: rot, RadiusCM: e.turnRadiusCM,
				}}, nil
			}
		}
	}
	if cm, ok := matchTemplate(e.table.StraightForward, s); ok {
		return Instruction{Op: OpMove, Primitive: grid.Primitive{Kind: grid.Straight, Direction: grid.Forward, DistanceCM: cm}}, nil
	}
	if cm, ok := matchTemplate(e.table.StraightBackward, s); ok {
		return Instruction{Op: OpMove, Primitive: grid.Primitive{Kind: grid.Straight, Direction: grid.Backward, DistanceCM: cm}}, nil
	}
	if order, ok := matchTemplate(e.table.Scan, s); ok {
		return Instruction{Op: OpScan, ScanOrder: order}, nil
	}
	return Instruction{}, fmt.Errorf("unrecognised command %q for encoding %q", s, e.table.Name)
}

func matchTemplate(tpl, s string) (int, bool) {
	prefix, suffix := split(tpl)
	if len(s) <= len(prefix)+len(suffix) || !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, suffix) {
		return 0, false
	}
	digits := s[len(prefix) : len(s)-len(suffix)]
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}
