package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/banshee-data/pathing/internal/db"
	"github.com/banshee-data/pathing/internal/httputil"
	"github.com/banshee-data/pathing/internal/monitor"
	"github.com/banshee-data/pathing/internal/monitoring"
	"github.com/banshee-data/pathing/internal/serialmux"
)

// handleRuns handles GET /api/runs?limit=N.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.runs == nil {
		httputil.ServiceUnavailable(w, "run history is not enabled")
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		monitoring.Logf("Error listing runs: %v", err)
		httputil.InternalServerError(w, "failed to list runs")
		return
	}
	httputil.WriteJSONOK(w, runs)
}

// handleRunByID handles /api/runs/:id and its sub-resources:
//
//	GET  /api/runs/:id
//	GET  /api/runs/:id/chart
//	GET  /api/runs/:id/plot.png
//	GET  /api/runs/:id/dispatches
//	POST /api/runs/:id/dispatch
func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		httputil.ServiceUnavailable(w, "run history is not enabled")
		return
	}

	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/runs/"), "/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		httputil.BadRequest(w, "missing run id")
		return
	}
	id := pathParts[0]
	sub := ""
	if len(pathParts) > 1 {
		sub = strings.Join(pathParts[1:], "/")
	}

	method := http.MethodGet
	if sub == "dispatch" {
		method = http.MethodPost
	}
	if r.Method != method {
		httputil.MethodNotAllowed(w)
		return
	}

	switch sub {
	case "", "chart", "plot.png", "dispatch", "dispatches":
	default:
		httputil.NotFound(w, fmt.Sprintf("unknown run resource %q", sub))
		return
	}

	run, err := s.runs.GetRun(r.Context(), id)
	if errors.Is(err, db.ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		monitoring.Logf("Error fetching run %s: %v", id, err)
		httputil.InternalServerError(w, "failed to fetch run")
		return
	}

	switch sub {
	case "":
		httputil.WriteJSONOK(w, run)
	case "chart":
		s.serveChart(w, run)
	case "plot.png":
		s.servePlot(w, run)
	case "dispatches":
		ds, err := s.runs.Dispatches(r.Context(), run.ID)
		if err != nil {
			monitoring.Logf("Error listing dispatches for %s: %v", run.ID, err)
			httputil.InternalServerError(w, "failed to list dispatches")
			return
		}
		httputil.WriteJSONOK(w, ds)
	case "dispatch":
		s.dispatchRun(w, r, run)
	}
}

func (s *Server) trace(run *db.Run) monitor.Trace {
	title := run.Label
	if title == "" {
		title = "run " + run.ID
	}
	return monitor.NewTrace(title, s.compiler.Geometry(), run.Start, run.Waypoints, run.Result)
}

func (s *Server) serveChart(w http.ResponseWriter, run *db.Run) {
	var buf bytes.Buffer
	if err := monitor.RenderHTML(&buf, s.trace(run)); err != nil {
		monitoring.Logf("render chart for %s: %v", run.ID, err)
		httputil.InternalServerError(w, "failed to render chart")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) servePlot(w http.ResponseWriter, run *db.Run) {
	var buf bytes.Buffer
	if err := monitor.RenderPNG(&buf, s.trace(run)); err != nil {
		monitoring.Logf("render plot for %s: %v", run.ID, err)
		httputil.InternalServerError(w, "failed to render plot")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

// dispatchRun streams a stored run to the robot and records the attempt.
// Only one dispatch runs at a time.
func (s *Server) dispatchRun(w http.ResponseWriter, r *http.Request, run *db.Run) {
	if s.link == nil {
		httputil.ServiceUnavailable(w, serialmux.ErrDisabled.Error())
		return
	}
	if !s.dispatchMu.TryLock() {
		httputil.WriteJSONError(w, http.StatusConflict, "a dispatch is already in progress")
		return
	}
	defer s.dispatchMu.Unlock()

	d := &db.Dispatch{RunID: run.ID, StartedAt: s.clock.Now()}
	n, err := serialmux.Dispatch(r.Context(), s.link, run.Result.Commands, s.dispatch)
	d.FinishedAt = s.clock.Now()
	d.CommandsSent = n

	status := http.StatusOK
	switch {
	case err == nil:
		d.Status = db.DispatchCompleted
	case errors.Is(err, context.Canceled):
		d.Status, d.Error = db.DispatchCancelled, err.Error()
		status = http.StatusServiceUnavailable
	case errors.Is(err, serialmux.ErrDisabled):
		d.Status, d.Error = db.DispatchFailed, err.Error()
		status = http.StatusServiceUnavailable
	case errors.Is(err, serialmux.ErrAckTimeout):
		d.Status, d.Error = db.DispatchFailed, err.Error()
		status = http.StatusGatewayTimeout
	default:
		d.Status, d.Error = db.DispatchFailed, err.Error()
		status = http.StatusBadGateway
	}

	// record even when the request was cancelled
	if rerr := s.runs.RecordDispatch(context.WithoutCancel(r.Context()), d); rerr != nil {
		monitoring.Logf("record dispatch for %s: %v", run.ID, rerr)
	}
	monitoring.Logf("dispatch %s: %s (%d/%d commands)", run.ID, d.Status, n, len(run.Result.Commands))
	httputil.WriteJSON(w, status, d)
}
