package api

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pathing/internal/config"
	"github.com/banshee-data/pathing/internal/db"
	"github.com/banshee-data/pathing/internal/detect"
	"github.com/banshee-data/pathing/internal/httputil"
	"github.com/banshee-data/pathing/internal/monitoring"
	"github.com/banshee-data/pathing/internal/serialmux"
	"github.com/banshee-data/pathing/internal/testutil"
	"github.com/banshee-data/pathing/internal/timeutil"
)

var testEpoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// testEnv is a Server wired to a cloned sqlite DB, a simulated robot that
// acknowledges every command, and a mocked detector.
type testEnv struct {
	server   *Server
	handler  http.Handler
	runs     *db.RunStore
	port     *serialmux.TestableSerialPort
	detector *httputil.MockHTTPClient
	clock    *timeutil.MockClock
}

func newTestEnv(t *testing.T, tweak ...func(*Options)) *testEnv {
	t.Helper()

	database, err := db.NewDB(cloneAPITestDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	c, err := config.DefaultPlannerConfig().NewCompiler()
	require.NoError(t, err)

	clock := timeutil.NewMockClock(testEpoch)
	port := serialmux.NewSimulatedRobotPort("ACK")
	link := serialmux.NewSerialMux(port)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		link.Monitor(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		link.Close()
		<-done
	})

	detector := httputil.NewMockHTTPClient()
	opts := Options{
		Compiler:   c,
		Start:      testutil.StartPose,
		Runs:       db.NewRunStore(database, clock),
		Link:       link,
		Classifier: detect.NewHTTPClassifier("http://detector/image", detector),
		Dispatch:   serialmux.DispatchOptions{Ack: "ACK", Timeout: 5 * time.Second, Clock: timeutil.RealClock{}},
		Clock:      clock,
	}
	for _, f := range tweak {
		f(&opts)
	}
	srv := NewServer(opts)
	return &testEnv{
		server:   srv,
		handler:  srv.ServeMux(),
		runs:     opts.Runs,
		port:     port,
		detector: detector,
		clock:    clock,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleTest(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/test", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var body map[string]string
	testutil.DecodeJSON(t, rec, &body)
	assert.Equal(t, "Server Connected!", body["status"])
	assert.True(t, strings.HasPrefix(body["version"], "pathing "))

	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/test", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestShowConfig(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/config", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var cfg configResponse
	testutil.DecodeJSON(t, rec, &cfg)
	assert.Equal(t, 20, cfg.GridSize)
	assert.Equal(t, "compact", cfg.Encoding)
	assert.Equal(t, testutil.StartPose, cfg.Start)
	assert.Contains(t, cfg.Tables, "classic")
	assert.True(t, cfg.RobotLink)
	assert.True(t, cfg.Classifier)
	assert.True(t, cfg.RunsPersisted)

	bare := newTestEnv(t, func(o *Options) {
		o.Link = serialmux.NewDisabledSerialMux()
		o.Classifier = nil
		o.Runs = nil
	})
	rec = bare.do(httptest.NewRequest(http.MethodGet, "/api/config", nil))
	testutil.DecodeJSON(t, rec, &cfg)
	assert.False(t, cfg.RobotLink)
	assert.False(t, cfg.Classifier)
	assert.False(t, cfg.RunsPersisted)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	monitoring.SetLogger(func(format string, v ...interface{}) {
		buf.WriteString(strings.TrimSpace(fmt.Sprintf(format, v...)) + "\n")
	})
	t.Cleanup(func() { monitoring.SetLogger(log.Printf) })

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/test?x=1", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), "418")
	assert.Contains(t, buf.String(), "/api/test?x=1")
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"304"+colorReset, statusCodeColor(304))
	assert.Equal(t, colorBoldRed+"422"+colorReset, statusCodeColor(422))
	assert.Equal(t, colorBoldRed+"502"+colorReset, statusCodeColor(502))
	assert.Equal(t, "101", statusCodeColor(101))
}
