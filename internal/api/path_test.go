package api

import (
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pathing/internal/command"
	"github.com/banshee-data/pathing/internal/compiler"
	"github.com/banshee-data/pathing/internal/grid"
	"github.com/banshee-data/pathing/internal/httputil"
	"github.com/banshee-data/pathing/internal/monitoring"
	"github.com/banshee-data/pathing/internal/testutil"
	"github.com/banshee-data/pathing/internal/waypoint"
)

func textRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/path", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/plain")
	return req
}

func TestHandlePath_JSON(t *testing.T) {
	env := newTestEnv(t)
	origin := grid.NewPose(0, 0, grid.North)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/path", PathRequest{
		Obstacles: []waypoint.Waypoint{{ObstacleID: 21, Position: grid.Position{X: 0, Y: 5}, Heading: grid.East}},
		Start:     &origin,
		Label:     "single",
	})
	rec := env.do(req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp PathResponse
	testutil.DecodeJSON(t, rec, &resp)
	require.NotNil(t, resp.Result)
	want := []command.Command{"FW030", "FR090", "BW030", "SCAN00", "FIN"}
	if diff := cmp.Diff(want, resp.Commands); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 5, resp.TotalCommands)
	assert.Len(t, resp.Path, 4)
	assert.Equal(t, compiler.Stats{Waypoints: 1, Straights: 2, Turns: 1, Backward: 1, StraightCM: 60}, resp.Stats)
	require.NotEmpty(t, resp.RunID)

	run, err := env.runs.GetRun(req.Context(), resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, "single", run.Label)
	assert.Equal(t, origin, run.Start)
	assert.Equal(t, "compact", run.Encoding)
	assert.Equal(t, testEpoch, run.CreatedAt)
	assert.Equal(t, want, run.Result.Commands)
}

func TestHandlePath_LogsCompileTime(t *testing.T) {
	env := newTestEnv(t)

	var (
		mu    sync.Mutex
		lines []string
	)
	monitoring.SetLogger(func(format string, v ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		if line := fmt.Sprintf(format, v...); strings.Contains(line, "compile of") {
			lines = append(lines, line)
		}
	})
	monitoring.SetVerbose(true)
	t.Cleanup(func() {
		monitoring.SetVerbose(false)
		monitoring.SetLogger(log.Printf)
	})

	rec := env.do(textRequest(testutil.CourseRecords))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "[debug] compile of 4 waypoints took "), lines[0])
}

func TestHandlePath_ControllerMessage(t *testing.T) {
	env := newTestEnv(t)

	// controller form x,y,H,id with the ALG: prefix and trailing separator
	rec := env.do(textRequest("ALG:5,10,N,1;12,6,E,2;15,15,S,3;6,15,W,4;"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp PathResponse
	testutil.DecodeJSON(t, rec, &resp)
	require.NotNil(t, resp.Result)
	assert.Equal(t, command.Command("FIN"), resp.Commands[len(resp.Commands)-1])
	assert.Contains(t, resp.Commands, command.Command("SCAN01"))
	assert.Contains(t, resp.Commands, command.Command("SCAN04"))

	// the trace ends where the last waypoint is scanned
	last := resp.Path[len(resp.Path)-1]
	assert.Equal(t, compiler.TraceEntry{X: 6, Y: 15, D: int(grid.West)}, last)
}

func TestHandlePath_CourseRecords(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(testutil.NewJSONRequest(t, http.MethodPost, "/api/path", PathRequest{Records: testutil.CourseRecords}))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp PathResponse
	testutil.DecodeJSON(t, rec, &resp)
	var scans []command.Command
	for _, c := range resp.Commands {
		if strings.HasPrefix(string(c), "SCAN") {
			scans = append(scans, c)
		}
	}
	assert.Equal(t, []command.Command{"SCAN01", "SCAN02", "SCAN03", "SCAN04"}, scans)
	assert.Equal(t, 4, resp.Stats.Waypoints)
}

func TestHandlePath_RescanMessage(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(textRequest("NONE,3"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var resp CommandsResponse
	testutil.DecodeJSON(t, rec, &resp)
	assert.Equal(t, []command.Command{"BW010", "SCAN03", "FW010"}, resp.Commands)

	rec = env.do(textRequest("NONE,-3"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestHandlePath_Empty(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(testutil.NewJSONRequest(t, http.MethodPost, "/api/path", PathRequest{}))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp PathResponse
	testutil.DecodeJSON(t, rec, &resp)
	assert.Equal(t, []command.Command{"FIN"}, resp.Commands)
	assert.NotNil(t, resp.Path)
	assert.Empty(t, resp.Path)
	assert.Equal(t, 1, resp.TotalCommands)
}

func TestHandlePath_Errors(t *testing.T) {
	env := newTestEnv(t)
	intp := func(v int) *int { return &v }

	tests := []struct {
		name   string
		req    *http.Request
		status int
		want   httputil.ErrorResponse
	}{
		{
			name:   "malformed record",
			req:    textRequest("1,2,3,N,4;5,6,Q,7"),
			status: http.StatusBadRequest,
			want:   httputil.ErrorResponse{Kind: "parse", Index: intp(1)},
		},
		{
			name:   "duplicate scan order",
			req:    textRequest("1,5,5,N,3;2,10,10,E,3"),
			status: http.StatusBadRequest,
			want:   httputil.ErrorResponse{Kind: "sequencing"},
		},
		{
			name: "start off grid",
			req: testutil.NewJSONRequest(t, http.MethodPost, "/api/path",
				`{"obstacles": [], "start": {"x": 25, "y": 0, "heading": "N"}}`),
			status: http.StatusBadRequest,
			want:   httputil.ErrorResponse{Kind: "start"},
		},
		{
			name:   "waypoint off grid",
			req:    textRequest("1,5,10,N,0;7,20,5,E,1"),
			status: http.StatusUnprocessableEntity,
			want:   httputil.ErrorResponse{Kind: "planning", Index: intp(1), ObstacleID: intp(7)},
		},
		{
			name:   "invalid json",
			req:    testutil.NewJSONRequest(t, http.MethodPost, "/api/path", `{"obstacles": [`),
			status: http.StatusBadRequest,
		},
		{
			name: "invalid heading",
			req: testutil.NewJSONRequest(t, http.MethodPost, "/api/path",
				`{"obstacles": [{"obstacle_id": 1, "position": {"x": 1, "y": 2}, "heading": "Q", "scan_order": 1}]}`),
			status: http.StatusBadRequest,
		},
		{
			name: "both obstacles and records",
			req: testutil.NewJSONRequest(t, http.MethodPost, "/api/path",
				`{"records": "1,5,5,N,1", "obstacles": [{"obstacle_id": 1, "position": {"x": 1, "y": 2}, "heading": "N", "scan_order": 1}]}`),
			status: http.StatusBadRequest,
		},
		{
			name:   "wrong method",
			req:    httptest.NewRequest(http.MethodGet, "/api/path", nil),
			status: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt.req)
			testutil.AssertStatusCode(t, rec.Code, tt.status)

			var got httputil.ErrorResponse
			testutil.DecodeJSON(t, rec, &got)
			assert.NotEmpty(t, got.Error)
			if tt.want.Kind != "" {
				assert.Equal(t, tt.want.Kind, got.Kind)
				assert.Equal(t, tt.want.Index, got.Index)
				assert.Equal(t, tt.want.ObstacleID, got.ObstacleID)
			}
		})
	}

	runs, err := env.runs.ListRuns(t.Context(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs, "failed compilations must not be stored")
}

func TestHandlePath_WithoutRunStore(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.Runs = nil })

	rec := env.do(textRequest(testutil.CourseRecords))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.NotContains(t, rec.Body.String(), "run_id")
}

func TestHandleReplay(t *testing.T) {
	env := newTestEnv(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/replay",
		`{"start": {"x": 0, "y": 0, "heading": "N"}, "commands": ["FW030", "FR090", "BW030", "SCAN00", "FIN"]}`)
	rec := env.do(req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var body struct {
		Path []compiler.TraceEntry `json:"path"`
	}
	testutil.DecodeJSON(t, rec, &body)
	assert.Equal(t, []compiler.TraceEntry{
		{X: 0, Y: 3, D: 0},
		{X: 3, Y: 5, D: 1},
		{X: 0, Y: 5, D: 1},
		{X: 0, Y: 5, D: 1},
	}, body.Path)

	rec = env.do(testutil.NewJSONRequest(t, http.MethodPost, "/api/replay", `{"commands": ["JUMP"]}`))
	testutil.AssertStatusCode(t, rec.Code, http.StatusUnprocessableEntity)

	rec = env.do(testutil.NewJSONRequest(t, http.MethodPost, "/api/replay", `{"start": {"x": 0, "y": 0, "heading": 7}, "commands": []}`))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestHandleRescan(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/rescan?obstacle_id=12", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var resp CommandsResponse
	testutil.DecodeJSON(t, rec, &resp)
	assert.Equal(t, []command.Command{"BW010", "SCAN12", "FW010"}, resp.Commands)

	for _, target := range []string{
		"/api/rescan",
		"/api/rescan?obstacle_id=x",
		"/api/rescan?obstacle_id=-1",
		"/api/rescan?obstacle_id=1&x=3",
		"/api/rescan?obstacle_id=1&x=3&y=4&heading=Q",
	} {
		rec = env.do(httptest.NewRequest(http.MethodPost, target, nil))
		testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
	}
	rec = env.do(httptest.NewRequest(http.MethodDelete, "/api/rescan?obstacle_id=1", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestHandleRescan_FromPose(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/rescan?obstacle_id=4&x=5&y=5&heading=E", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var resp CommandsResponse
	testutil.DecodeJSON(t, rec, &resp)
	assert.Equal(t, []command.Command{"BW010", "SCAN04", "FW010"}, resp.Commands)

	// backing off from the south edge leaves the grid
	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/rescan?obstacle_id=4&x=5&y=0&heading=N", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusUnprocessableEntity)
	var errResp httputil.ErrorResponse
	testutil.DecodeJSON(t, rec, &errResp)
	assert.Equal(t, "rescan", errResp.Kind)
	assert.Contains(t, errResp.Error, "outside")
}
