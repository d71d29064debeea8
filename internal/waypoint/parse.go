package waypoint

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/pathing/internal/grid"
)

// MessagePrefix marks an obstacle message from the robot controller.
const MessagePrefix = "ALG:"

// ParseError names the record that could not be parsed.
type ParseError struct {
	Index  int
	Record string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("record %d %q: %s", e.Index, e.Record, e.Reason)
}

// ParseRecords parses a ';'-separated list of waypoint records.
//
// Two record shapes are accepted:
//
//	id,x,y,H,order   canonical form
//	x,y,H,id         controller form; the obstacle id doubles as the scan order
//
// H is exactly one of the upper-case letters N, E, S, W. Space around fields,
// an optional "ALG:" prefix and a trailing ';' are tolerated. Any malformed record fails the whole input with a *ParseError.
func ParseRecords(s string) ([]Waypoint, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, MessagePrefix)
	if strings.TrimSpace(s) == "" {
		return []Waypoint{}, nil
	}

	records := strings.Split(s, ";")
	if strings.TrimSpace(records[len(records)-1]) == "" {
		records = records[:len(records)-1]
	}

	out := make([]Waypoint, 0, len(records))
	for i, rec := range records {
		wp, err := parseRecord(rec)
		if err != nil {
			return nil, &ParseError{Index: i, Record: strings.TrimSpace(rec), Reason: err.Error()}
		}
		out = append(out, wp)
	}
	return out, nil
}

func parseRecord(rec string) (Waypoint, error) {
	fields := strings.Split(strings.TrimSpace(rec), ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	var idField, xField, yField, headingField, orderField int
	switch len(fields) {
	case 5:
		idField, xField, yField, headingField, orderField = 0, 1, 2, 3, 4
	case 4:
		xField, yField, headingField, idField, orderField = 0, 1, 2, 3, 3
	default:
		return Waypoint{}, fmt.Errorf("expected 4 or 5 fields, got %d", len(fields))
	}

	ints := map[int]int{}
	for _, f := range []int{idField, xField, yField, orderField} {
		v, err := strconv.Atoi(fields[f])
		if err != nil {
			return Waypoint{}, fmt.Errorf("field %d (%q) is not an integer", f, fields[f])
		}
		ints[f] = v
	}

	heading, err := grid.HeadingFromLetter(fields[headingField])
	if err != nil {
		return Waypoint{}, err
	}
	if ints[idField] < 0 {
		return Waypoint{}, fmt.Errorf("obstacle id %d must be non-negative", ints[idField])
	}
	if ints[orderField] < 0 {
		return Waypoint{}, fmt.Errorf("scan order %d must be non-negative", ints[orderField])
	}

	return Waypoint{
		ObstacleID: ints[idField],
		Position:   grid.Position{X: ints[xField], Y: ints[yField]},
		Heading:    heading,
		ScanOrder:  ints[orderField],
	}, nil
}

// FormatRecords renders waypoints in the canonical record form accepted by
// ParseRecords.
func FormatRecords(wps []Waypoint) string {
	var b strings.Builder
	for i, w := range wps {
		if i > 0 {
			b.WriteByte(';')
		}
		fmt.Fprintf(&b, "%d,%d,%d,%s,%d", w.ObstacleID, w.Position.X, w.Position.Y, w.Heading.Letter(), w.ScanOrder)
	}
	return b.String()
}
