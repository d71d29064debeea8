// Package api is the HTTP surface of the path compiler: compile requests,
// stored runs, robot dispatch and the image-recognition relay.
package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/pathing/internal/command"
	"github.com/banshee-data/pathing/internal/compiler"
	"github.com/banshee-data/pathing/internal/db"
	"github.com/banshee-data/pathing/internal/detect"
	"github.com/banshee-data/pathing/internal/grid"
	"github.com/banshee-data/pathing/internal/httputil"
	"github.com/banshee-data/pathing/internal/monitoring"
	"github.com/banshee-data/pathing/internal/serialmux"
	"github.com/banshee-data/pathing/internal/timeutil"
	"github.com/banshee-data/pathing/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxBodyBytes caps compile and replay request bodies.
const maxBodyBytes = 1 << 20

// maxImageBytes caps uploads to /api/image.
const maxImageBytes = 10 << 20

// Options wires a Server's collaborators. Runs, Link and Classifier are
// optional; the routes needing them answer 503 when they are nil.
type Options struct {
	Compiler   *compiler.Compiler
	Start      grid.Pose
	Runs       *db.RunStore
	Link       serialmux.SerialMuxInterface
	Classifier detect.Classifier
	Dispatch   serialmux.DispatchOptions
	Clock      timeutil.Clock
}

type Server struct {
	compiler   *compiler.Compiler
	start      grid.Pose
	runs       *db.RunStore
	link       serialmux.SerialMuxInterface
	classifier detect.Classifier
	dispatch   serialmux.DispatchOptions
	clock      timeutil.Clock

	// dispatchMu admits one dispatch at a time; the robot has one queue.
	dispatchMu sync.Mutex
}

func NewServer(opts Options) *Server {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	d := opts.Dispatch
	if d.Clock == nil {
		d.Clock = clock
	}
	return &Server{
		compiler:   opts.Compiler,
		start:      opts.Start,
		runs:       opts.Runs,
		link:       opts.Link,
		classifier: opts.Classifier,
		dispatch:   d,
		clock:      clock,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/test", s.handleTest)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/path", s.handlePath)
	mux.HandleFunc("/api/replay", s.handleReplay)
	mux.HandleFunc("/api/rescan", s.handleRescan)
	mux.HandleFunc("/api/image", s.handleImage)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/", s.handleRunByID)
	return mux
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"status":  "Server Connected!",
		"version": version.String(),
	})
}

// configResponse describes the planner the server compiles with.
type configResponse struct {
	GridSize      int       `json:"grid_size"`
	CellCM        int       `json:"cell_cm"`
	TurnRadiusCM  int       `json:"turn_radius_cm"`
	Start         grid.Pose `json:"start"`
	Encoding      string    `json:"encoding"`
	Tables        []string  `json:"tables"`
	RobotLink     bool      `json:"robot_link"`
	Classifier    bool      `json:"classifier"`
	RunsPersisted bool      `json:"runs_persisted"`
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	g := s.compiler.Geometry()
	_, disabled := s.link.(*serialmux.DisabledSerialMux)
	httputil.WriteJSONOK(w, configResponse{
		GridSize:      g.GridSize,
		CellCM:        g.CellCM,
		TurnRadiusCM:  g.TurnRadiusCM,
		Start:         s.start,
		Encoding:      s.compiler.Encoder().Table().Name,
		Tables:        command.TableNames(),
		RobotLink:     s.link != nil && !disabled,
		Classifier:    s.classifier != nil,
		RunsPersisted: s.runs != nil,
	})
}
