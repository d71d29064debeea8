package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/banshee-data/pathing/internal/command"
	"github.com/banshee-data/pathing/internal/compiler"
	"github.com/banshee-data/pathing/internal/db"
	"github.com/banshee-data/pathing/internal/grid"
	"github.com/banshee-data/pathing/internal/httputil"
	"github.com/banshee-data/pathing/internal/monitoring"
	"github.com/banshee-data/pathing/internal/waypoint"
)

// PathRequest is the JSON body of POST /api/path. Obstacles and Records are
// alternatives; Records takes the same ';'-separated text a plain-text body
// would.
type PathRequest struct {
	Obstacles []waypoint.Waypoint `json:"obstacles"`
	Records   string              `json:"records,omitempty"`
	Start     *grid.Pose          `json:"start,omitempty"`
	Label     string              `json:"label,omitempty"`
}

// PathResponse is a compiled route plus its run id when runs are stored.
type PathResponse struct {
	RunID string `json:"run_id,omitempty"`
	*compiler.Result
	Stats compiler.Stats `json:"stats"`
}

// CommandsResponse carries a bare command list.
type CommandsResponse struct {
	Commands []command.Command `json:"commands"`
}

// rescanMessage is the controller's retry request: NONE,<obstacle id>.
var rescanMessage = regexp.MustCompile(`^(?i:NONE),\s*(-?\d+)\s*$`)

// handlePath compiles a waypoint set. It accepts a JSON PathRequest or the
// controller's plain-text message (ALG:... records, or NONE,<id> for a
// rescan sequence).
func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("reading request body: %v", err))
		return
	}

	var req PathRequest
	if isJSON(r) {
		if err := json.Unmarshal(body, &req); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	} else {
		text := strings.TrimSpace(string(body))
		if m := rescanMessage.FindStringSubmatch(text); m != nil {
			id, _ := strconv.Atoi(m[1])
			cmds, err := s.compiler.RescanCommands(id)
			if err != nil {
				httputil.BadRequest(w, err.Error())
				return
			}
			httputil.WriteJSONOK(w, CommandsResponse{Commands: cmds})
			return
		}
		req.Records = text
	}

	wps := req.Obstacles
	if req.Records != "" {
		if len(wps) > 0 {
			httputil.BadRequest(w, "obstacles and records are mutually exclusive")
			return
		}
		wps, err = waypoint.ParseRecords(req.Records)
		if err != nil {
			writePlanError(w, err)
			return
		}
	}

	start := s.start
	if req.Start != nil {
		start = *req.Start
	}
	if err := s.checkStart(start); err != nil {
		writePlanError(w, err)
		return
	}

	done := monitoring.Timed(fmt.Sprintf("compile of %d waypoints", len(wps)))
	res, err := s.compiler.Compile(start, wps)
	done()
	if err != nil {
		writePlanError(w, err)
		return
	}

	resp := PathResponse{Result: res, Stats: res.Stats}
	if s.runs != nil {
		run := &db.Run{
			Label:     req.Label,
			Encoding:  s.compiler.Encoder().Table().Name,
			Start:     start,
			Waypoints: wps,
			Result:    res,
		}
		if err := s.runs.InsertRun(r.Context(), run); err != nil {
			monitoring.Logf("store run: %v", err)
			httputil.InternalServerError(w, "failed to store run")
			return
		}
		resp.RunID = run.ID
	}
	httputil.WriteJSONOK(w, resp)
}

// ReplayRequest is the body of POST /api/replay.
type ReplayRequest struct {
	Start    *grid.Pose        `json:"start,omitempty"`
	Commands []command.Command `json:"commands"`
}

// handleReplay re-derives the pose trace of a command list.
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req ReplayRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	start := s.start
	if req.Start != nil {
		start = *req.Start
	}
	if err := s.checkStart(start); err != nil {
		writePlanError(w, err)
		return
	}
	path, err := s.compiler.Replay(start, req.Commands)
	if err != nil {
		httputil.WriteError(w, http.StatusUnprocessableEntity, httputil.ErrorResponse{Error: err.Error(), Kind: "replay"})
		return
	}
	httputil.WriteJSONOK(w, map[string]any{"path": path})
}

// handleRescan returns the retry sequence for one obstacle. When x, y and
// heading are given the back-off is checked against the grid from that pose.
func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	id, err := obstacleIDParam(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	at, err := poseParams(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if at == nil {
		cmds, err := s.compiler.RescanCommands(id)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, CommandsResponse{Commands: cmds})
		return
	}
	cmds, err := s.compiler.RescanAt(*at, id)
	if err != nil {
		httputil.WriteError(w, http.StatusUnprocessableEntity, httputil.ErrorResponse{Error: err.Error(), Kind: "rescan"})
		return
	}
	httputil.WriteJSONOK(w, CommandsResponse{Commands: cmds})
}

// startError reports a start pose the compiler cannot begin from.
type startError struct {
	pose grid.Pose
	err  error
}

func (e *startError) Error() string { return fmt.Sprintf("start pose %s: %v", e.pose, e.err) }
func (e *startError) Unwrap() error { return e.err }

func (s *Server) checkStart(p grid.Pose) error {
	if !p.Heading.Valid() {
		return &startError{pose: p, err: errors.New("invalid heading")}
	}
	if err := s.compiler.Geometry().CheckBounds(p.Position); err != nil {
		return &startError{pose: p, err: err}
	}
	return nil
}

// writePlanError maps compile-pipeline errors onto HTTP statuses: input
// problems are 400, waypoints that cannot be reached are 422.
func writePlanError(w http.ResponseWriter, err error) {
	var (
		parseErr *waypoint.ParseError
		seqErr   *waypoint.SequencingError
		startErr *startError
		compErr  *compiler.CompileError
	)
	switch {
	case errors.As(err, &parseErr):
		idx := parseErr.Index
		httputil.WriteError(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error(), Kind: "parse", Index: &idx})
	case errors.As(err, &seqErr):
		httputil.WriteError(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error(), Kind: "sequencing"})
	case errors.As(err, &startErr):
		httputil.WriteError(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error(), Kind: "start"})
	case errors.As(err, &compErr):
		idx, id := compErr.Index, compErr.Waypoint.ObstacleID
		httputil.WriteError(w, http.StatusUnprocessableEntity, httputil.ErrorResponse{
			Error: err.Error(), Kind: "planning", Index: &idx, ObstacleID: &id,
		})
	default:
		monitoring.Logf("compile failed: %v", err)
		httputil.InternalServerError(w, err.Error())
	}
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func obstacleIDParam(r *http.Request) (int, error) {
	v := r.FormValue("obstacle_id")
	if v == "" {
		return 0, errors.New("missing obstacle_id")
	}
	id, err := strconv.Atoi(v)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid obstacle_id %q", v)
	}
	return id, nil
}

// poseParams reads an optional x, y, heading triple. It returns nil when none
// of the three is set.
func poseParams(r *http.Request) (*grid.Pose, error) {
	xs, ys, hs := r.FormValue("x"), r.FormValue("y"), r.FormValue("heading")
	if xs == "" && ys == "" && hs == "" {
		return nil, nil
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return nil, fmt.Errorf("invalid x %q", xs)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return nil, fmt.Errorf("invalid y %q", ys)
	}
	h, err := grid.ParseHeading(hs)
	if err != nil {
		return nil, err
	}
	p := grid.NewPose(x, y, h)
	return &p, nil
}
