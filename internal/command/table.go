// Package command renders motion primitives and scan events as the wire
// tokens understood by the robot, and parses them back.
package command

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Table spells the wire vocabulary. Straight and Scan entries are Go format
// templates taking one integer (distance in cm, scan order). Turn and Finish
// entries are literal tokens.
type Table struct {
	Name             string `json:"name" yaml:"name"`
	StraightForward  string `json:"straight_forward" yaml:"straight_forward"`
	StraightBackward string `json:"straight_backward" yaml:"straight_backward"`
	ForwardLeft      string `json:"forward_left" yaml:"forward_left"`
	ForwardRight     string `json:"forward_right" yaml:"forward_right"`
	BackwardLeft     string `json:"backward_left" yaml:"backward_left"`
	BackwardRight    string `json:"backward_right" yaml:"backward_right"`
	Scan             string `json:"scan" yaml:"scan"`
	Finish           string `json:"finish" yaml:"finish"`
}

// MaxStraightCM is the longest straight run a three-digit distance field
// carries.
const MaxStraightCM = 999

// Compact is the default vocabulary: FW050, BR090, SCAN03, FIN.
var Compact = Table{
	Name:             "compact",
	StraightForward:  "FW%03d",
	StraightBackward: "BW%03d",
	ForwardLeft:      "FL090",
	ForwardRight:     "FR090",
	BackwardLeft:     "BL090",
	BackwardRight:    "BR090",
	Scan:             "SCAN%02d",
	Finish:           "FIN",
}

// Classic is the vocabulary of the earlier STM32 firmware: SF050, RB090,
// SCAN_3, FIN.
var Classic = Table{
	Name:             "classic",
	StraightForward:  "SF%03d",
	StraightBackward: "SB%03d",
	ForwardLeft:      "LF090",
	ForwardRight:     "RF090",
	BackwardLeft:     "LB090",
	BackwardRight:    "RB090",
	Scan:             "SCAN_%d",
	Finish:           "FIN",
}

var builtinTables = map[string]Table{
	Compact.Name: Compact,
	Classic.Name: Classic,
}

// TableNames lists the built-in table names in sorted order.
func TableNames() []string {
	names := make([]string, 0, len(builtinTables))
	for name := range builtinTables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupTable returns the built-in table called name. The empty name
// selects Compact.
func LookupTable(name string) (Table, error) {
	if name == "" {
		return Compact, nil
	}
	t, ok := builtinTables[strings.ToLower(name)]
	if !ok {
		return Table{}, fmt.Errorf("unknown encoding %q (available: %s)", name, strings.Join(TableNames(), ", "))
	}
	return t, nil
}

// intVerb matches the integer verbs a template may use.
var intVerb = regexp.MustCompile(`%0?\d*d`)

// sampleValues are rendered through each template to look for tokens that
// another entry would also decode.
var sampleValues = []int{0, 1, 7, 10, 42, 99, 100, 500, MaxStraightCM}

// Validate checks that every template carries the verbs it is rendered with
// and that no token can be decoded as more than one entry.
func (t Table) Validate() error {
	templates := []struct{ field, value string }{
		{"straight_forward", t.StraightForward},
		{"straight_backward", t.StraightBackward},
		{"scan", t.Scan},
	}
	for _, tpl := range templates {
		if err := checkVerbs(tpl.value, 1); err != nil {
			return fmt.Errorf("%s: %w", tpl.field, err)
		}
	}

	literals := []struct{ field, value string }{
		{"forward_left", t.ForwardLeft},
		{"forward_right", t.ForwardRight},
		{"backward_left", t.BackwardLeft},
		{"backward_right", t.BackwardRight},
		{"finish", t.Finish},
	}
	seen := make(map[string]string, len(literals))
	for _, lit := range literals {
		if err := checkVerbs(lit.value, 0); err != nil {
			return fmt.Errorf("%s: %w", lit.field, err)
		}
		if other, dup := seen[lit.value]; dup {
			return fmt.Errorf("%s and %s share token %q", other, lit.field, lit.value)
		}
		seen[lit.value] = lit.field
		for _, tpl := range templates {
			if _, ok := matchTemplate(tpl.value, lit.value); ok {
				return fmt.Errorf("%s token %q matches the %s template %q", lit.field, lit.value, tpl.field, tpl.value)
			}
		}
	}

	for i, a := range templates {
		for j, b := range templates {
			if i == j {
				continue
			}
			for _, n := range sampleValues {
				tok := fmt.Sprintf(a.value, n)
				if _, ok := matchTemplate(b.value, tok); ok {
					return fmt.Errorf("%s template %q renders %q, which the %s template %q also matches",
						a.field, a.value, tok, b.field, b.value)
				}
			}
		}
	}
	return nil
}

func checkVerbs(tpl string, want int) error {
	if strings.TrimSpace(tpl) == "" {
		return fmt.Errorf("empty token")
	}
	plain := strings.ReplaceAll(tpl, "%%", "")
	got := len(intVerb.FindAllString(plain, -1))
	if strings.Count(plain, "%") != got {
		return fmt.Errorf("template %q uses a verb other than an integer", tpl)
	}
	if got != want {
		return fmt.Errorf("template %q has %d integer verbs, want %d", tpl, got, want)
	}
	return nil
}

// split returns the literal text either side of a template's integer verb.
func split(tpl string) (prefix, suffix string) {
	loc := intVerb.FindStringIndex(tpl)
	if loc == nil {
		return tpl, ""
	}
	unescape := func(s string) string { return strings.ReplaceAll(s, "%%", "%") }
	return unescape(tpl[:loc[0]]), unescape(tpl[loc[1]:])
}
