package waypoint

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pathing/internal/grid"
)

func TestParseRecords(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Waypoint
	}{
		{
			name:  "canonical",
			input: "1,0,5,E,1;2,10,10,S,2",
			want: []Waypoint{
				{ObstacleID: 1, Position: grid.Position{X: 0, Y: 5}, Heading: grid.East, ScanOrder: 1},
				{ObstacleID: 2, Position: grid.Position{X: 10, Y: 10}, Heading: grid.South, ScanOrder: 2},
			},
		},
		{
			name:  "controller form with prefix and trailing separator",
			input: "ALG:10,17,S,0;16,17,W,1;",
			want: []Waypoint{
				{ObstacleID: 0, Position: grid.Position{X: 10, Y: 17}, Heading: grid.South, ScanOrder: 0},
				{ObstacleID: 1, Position: grid.Position{X: 16, Y: 17}, Heading: grid.West, ScanOrder: 1},
			},
		},
		{
			name:  "whitespace around fields",
			input: " 3, 4 ,5 , N ,7 ",
			want: []Waypoint{
				{ObstacleID: 3, Position: grid.Position{X: 4, Y: 5}, Heading: grid.North, ScanOrder: 7},
			},
		},
		{
			name:  "empty",
			input: "",
			want:  []Waypoint{},
		},
		{
			name:  "prefix only",
			input: "ALG:",
			want:  []Waypoint{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRecords(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRecords_Errors(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantIndex int
	}{
		{"too few fields", "1,2,N", 0},
		{"too many fields", "1,2,3,N,4,5", 0},
		{"bad heading", "1,2,3,Q,4", 0},
		{"lower-case heading", "1,2,3, n ,4", 0},
		{"heading word", "1,2,3,North,4", 0},
		{"lower-case controller heading", "ALG:5,10,N,1;12,6,e,2", 1},
		{"non integer", "1,two,3,N,4", 0},
		{"negative id", "-1,2,3,N,4", 0},
		{"negative order", "1,2,3,N,-4", 0},
		{"second record bad", "1,2,3,N,4;5,6,X,7", 1},
		{"empty record in middle", "1,2,3,N,4;;5,6,7,E,8", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRecords(tt.input)
			require.Error(t, err)
			assert.Nil(t, got)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.wantIndex, perr.Index)
			assert.NotEmpty(t, perr.Reason)
		})
	}
}

func TestFormatRecords_RoundTrip(t *testing.T) {
	wps := []Waypoint{
		{ObstacleID: 4, Position: grid.Position{X: 1, Y: 18}, Heading: grid.West, ScanOrder: 2},
		{ObstacleID: 9, Position: grid.Position{X: 12, Y: 3}, Heading: grid.North, ScanOrder: 0},
	}
	s := FormatRecords(wps)
	assert.Equal(t, "4,1,18,W,2;9,12,3,N,0", s)

	got, err := ParseRecords(s)
	require.NoError(t, err)
	assert.Equal(t, wps, got)
}

func TestSequence(t *testing.T) {
	wps := []Waypoint{
		{ObstacleID: 7, ScanOrder: 3},
		{ObstacleID: 2, ScanOrder: 1},
		{ObstacleID: 5, ScanOrder: 2},
	}
	got, err := Sequence(wps)
	require.NoError(t, err)

	ids := make([]int, len(got))
	for i, w := range got {
		ids[i] = w.ObstacleID
	}
	assert.Equal(t, []int{2, 5, 7}, ids)
	// input untouched
	assert.Equal(t, 7, wps[0].ObstacleID)
}

func TestSequence_Empty(t *testing.T) {
	got, err := Sequence(nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSequence_DuplicateOrder(t *testing.T) {
	wps := []Waypoint{
		{ObstacleID: 8, ScanOrder: 1},
		{ObstacleID: 3, ScanOrder: 2},
		{ObstacleID: 1, ScanOrder: 2},
	}
	_, err := Sequence(wps)
	require.Error(t, err)

	var serr *SequencingError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 2, serr.Order)
	assert.Equal(t, []int{1, 3}, serr.ObstacleIDs)
	assert.Contains(t, err.Error(), "scan order 2")
}

func TestWaypointPose(t *testing.T) {
	w := Waypoint{ObstacleID: 1, Position: grid.Position{X: 3, Y: 4}, Heading: grid.South}
	assert.Equal(t, grid.NewPose(3, 4, grid.South), w.Pose())
}
