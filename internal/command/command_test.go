package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pathing/internal/grid"
	"github.com/banshee-data/pathing/internal/waypoint"
)

func newEncoder(t *testing.T, tbl Table) *Encoder {
	t.Helper()
	e, err := NewEncoder(tbl, 30)
	require.NoError(t, err)
	return e
}

func TestEncode(t *testing.T) {
	g := grid.DefaultGeometry()
	tests := []struct {
		name    string
		p       grid.Primitive
		compact Command
		classic Command
	}{
		{"forward", g.NewStraight(grid.Forward, 5), "FW050", "SF050"},
		{"backward", g.NewStraight(grid.Backward, 2), "BW020", "SB020"},
		{"long forward", g.NewStraight(grid.Forward, 19), "FW190", "SF190"},
		{"forward right", g.NewTurn(grid.Forward, grid.Right), "FR090", "RF090"},
		{"forward left", g.NewTurn(grid.Forward, grid.Left), "FL090", "LF090"},
		{"backward right", g.NewTurn(grid.Backward, grid.Right), "BR090", "RB090"},
		{"backward left", g.NewTurn(grid.Backward, grid.Left), "BL090", "LB090"},
	}

	compact := newEncoder(t, Compact)
	classic := newEncoder(t, Classic)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.compact, compact.Encode(tt.p))
			assert.Equal(t, tt.classic, classic.Encode(tt.p))

			for _, e := range []*Encoder{compact, classic} {
				ins, err := e.Decode(e.Encode(tt.p))
				require.NoError(t, err)
				assert.Equal(t, OpMove, ins.Op)
				assert.Equal(t, tt.p, ins.Primitive)
			}
		})
	}
}

func TestEncodeScanAndFinish(t *testing.T) {
	compact := newEncoder(t, Compact)
	classic := newEncoder(t, Classic)
	w := waypoint.Waypoint{ObstacleID: 21, ScanOrder: 3}

	assert.Equal(t, Command("SCAN03"), compact.EncodeScan(w))
	assert.Equal(t, Command("SCAN_3"), classic.EncodeScan(w))
	assert.Equal(t, Command("SCAN12"), compact.EncodeScanOrder(12))
	assert.Equal(t, Command("FIN"), compact.Finish())
	assert.Equal(t, Command("FIN"), classic.Finish())

	ins, err := compact.Decode("SCAN03")
	require.NoError(t, err)
	assert.Equal(t, Instruction{Op: OpScan, ScanOrder: 3}, ins)

	ins, err = classic.Decode("SCAN_11")
	require.NoError(t, err)
	assert.Equal(t, Instruction{Op: OpScan, ScanOrder: 11}, ins)

	ins, err = compact.Decode("FIN")
	require.NoError(t, err)
	assert.Equal(t, OpFinish, ins.Op)
}

func TestDecode_Unrecognised(t *testing.T) {
	e := newEncoder(t, Compact)
	for _, c := range []Command{"", "FW", "FWabc", "SF050", "FR045", "SCAN_3", "FW-10"} {
		t.Run(string(c), func(t *testing.T) {
			_, err := e.Decode(c)
			assert.Error(t, err)
		})
	}
}

func TestLookupTable(t *testing.T) {
	tbl, err := LookupTable("")
	require.NoError(t, err)
	assert.Equal(t, Compact, tbl)

	tbl, err = LookupTable("Classic")
	require.NoError(t, err)
	assert.Equal(t, Classic, tbl)

	_, err = LookupTable("morse")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classic, compact")
}

func TestTableValidate(t *testing.T) {
	require.NoError(t, Compact.Validate())
	require.NoError(t, Classic.Validate())

	tests := []struct {
		name   string
		mutate func(*Table)
	}{
		{"straight without verb", func(t *Table) { t.StraightForward = "FW" }},
		{"straight with two verbs", func(t *Table) { t.StraightBackward = "BW%d%d" }},
		{"string verb", func(t *Table) { t.Scan = "SCAN%s" }},
		{"turn with verb", func(t *Table) { t.ForwardLeft = "FL%03d" }},
		{"empty finish", func(t *Table) { t.Finish = " " }},
		{"duplicate turn", func(t *Table) { t.BackwardLeft = t.ForwardLeft }},
		{"finish looks like a straight", func(t *Table) { t.Finish = "FW000" }},
		{"turn looks like a scan", func(t *Table) { t.ForwardRight = "SCAN12" }},
		{"scan shares straight template", func(t *Table) { t.Scan = "FW%03d" }},
		{"scan overlaps straight", func(t *Table) { t.Scan = "FW%d" }},
		{"straights share template", func(t *Table) { t.StraightBackward = t.StraightForward }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := Compact
			tt.mutate(&tbl)
			assert.Error(t, tbl.Validate())
			_, err := NewEncoder(tbl, 30)
			assert.Error(t, err)
		})
	}
}

func TestTableValidate_DistinctTemplates(t *testing.T) {
	tbl := Compact
	tbl.Scan = "SC%d"
	tbl.Finish = "FWEND"
	require.NoError(t, tbl.Validate())

	e := newEncoder(t, tbl)
	for _, c := range []Command{"FW050", "SC3", "FWEND"} {
		_, err := e.Decode(c)
		assert.NoError(t, err, c)
	}
}

func TestTableValidate_EscapedPercent(t *testing.T) {
	tbl := Compact
	tbl.Scan = "SCAN%%%02d"
	require.NoError(t, tbl.Validate())

	e := newEncoder(t, tbl)
	assert.Equal(t, Command("SCAN%07"), e.EncodeScanOrder(7))

	ins, err := e.Decode("SCAN%07")
	require.NoError(t, err)
	assert.Equal(t, 7, ins.ScanOrder)
}
