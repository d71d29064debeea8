package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pathing/internal/compiler"
	"github.com/banshee-data/pathing/internal/grid"
	"github.com/banshee-data/pathing/internal/timeutil"
	"github.com/banshee-data/pathing/internal/waypoint"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

// Run is one stored compilation: its inputs and the compiled result.
type Run struct {
	ID        string              `json:"run_id"`
	CreatedAt time.Time           `json:"created_at"`
	Label     string              `json:"label,omitempty"`
	Encoding  string              `json:"encoding"`
	Start     grid.Pose           `json:"start"`
	Waypoints []waypoint.Waypoint `json:"waypoints"`
	Result    *compiler.Result    `json:"result"`
}

// RunSummary is the listing form of a Run.
type RunSummary struct {
	ID            string    `json:"run_id"`
	CreatedAt     time.Time `json:"created_at"`
	Label         string    `json:"label,omitempty"`
	Encoding      string    `json:"encoding"`
	Waypoints     int       `json:"waypoints"`
	TotalCommands int       `json:"total_commands"`
	StraightCM    int       `json:"straight_cm"`
	Turns         int       `json:"turns"`
}

// Dispatch records one attempt to stream a run's commands to the robot.
type Dispatch struct {
	ID           int64     `json:"dispatch_id"`
	RunID        string    `json:"run_id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	CommandsSent int       `json:"commands_sent"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
}

// Dispatch statuses.
const (
	DispatchCompleted = "completed"
	DispatchFailed    = "failed"
	DispatchCancelled = "cancelled"
)

// RunStore provides persistence for compiled runs.
type RunStore struct {
	db    *DB
	clock timeutil.Clock
}

// NewRunStore creates a RunStore. A nil clock uses the wall clock.
func NewRunStore(db *DB, clock timeutil.Clock) *RunStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RunStore{db: db, clock: clock}
}

// InsertRun persists run. An empty ID is filled with a new UUID and a zero
// CreatedAt with the current time.
func (s *RunStore) InsertRun(ctx context.Context, run *Run) error {
	if run.Result == nil {
		return errors.New("insert run: missing result")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.clock.Now()
	}
	wps := run.Waypoints
	if wps == nil {
		wps = []waypoint.Waypoint{}
	}
	wpsJSON, err := json.Marshal(wps)
	if err != nil {
		return fmt.Errorf("encode waypoints: %w", err)
	}
	resultJSON, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	statsJSON, err := json.Marshal(run.Result.Stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO path_runs (
			run_id, created_unix, label, encoding,
			start_x, start_y, start_heading,
			waypoints_json, result_json, stats_json,
			total_commands, straight_cm, turns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UnixNano(), run.Label, run.Encoding,
		run.Start.X, run.Start.Y, int(run.Start.Heading),
		string(wpsJSON), string(resultJSON), string(statsJSON),
		run.Result.TotalCommands, run.Result.Stats.StraightCM, run.Result.Stats.Turns,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun returns the run with the given id, or ErrRunNotFound.
func (s *RunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var (
		run                            Run
		createdUnix                    int64
		heading                        int
		wpsJSON, resultJSON, statsJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, created_unix, label, encoding,
		       start_x, start_y, start_heading,
		       waypoints_json, result_json, stats_json
		FROM path_runs
		WHERE run_id = ?`, id).Scan(
		&run.ID, &createdUnix, &run.Label, &run.Encoding,
		&run.Start.X, &run.Start.Y, &heading,
		&wpsJSON, &resultJSON, &statsJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	run.CreatedAt = time.Unix(0, createdUnix).UTC()
	run.Start.Heading = grid.Heading(heading)
	if err := json.Unmarshal([]byte(wpsJSON), &run.Waypoints); err != nil {
		return nil, fmt.Errorf("decode waypoints of run %s: %w", id, err)
	}
	run.Result = &compiler.Result{}
	if err := json.Unmarshal([]byte(resultJSON), run.Result); err != nil {
		return nil, fmt.Errorf("decode result of run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(statsJSON), &run.Result.Stats); err != nil {
		return nil, fmt.Errorf("decode stats of run %s: %w", id, err)
	}
	return &run, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, created_unix, label, encoding,
		       json_array_length(waypoints_json), total_commands, straight_cm, turns
		FROM path_runs
		ORDER BY created_unix DESC, run_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		var createdUnix int64
		if err := rows.Scan(&r.ID, &createdUnix, &r.Label, &r.Encoding,
			&r.Waypoints, &r.TotalCommands, &r.StraightCM, &r.Turns); err != nil {
			return nil, fmt.Errorf("scan run summary: %w", err)
		}
		r.CreatedAt = time.Unix(0, createdUnix).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RecordDispatch stores the outcome of a dispatch and sets d.ID.
func (s *RunStore) RecordDispatch(ctx context.Context, d *Dispatch) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO run_dispatches (
			run_id, started_unix, finished_unix, commands_sent, status, error
		) VALUES (?, ?, ?, ?, ?, ?)`,
		d.RunID, d.StartedAt.UnixNano(), d.FinishedAt.UnixNano(), d.CommandsSent, d.Status, d.Error,
	)
	if err != nil {
		return fmt.Errorf("insert dispatch for run %s: %w", d.RunID, err)
	}
	d.ID, err = res.LastInsertId()
	return err
}

// Dispatches lists the dispatch attempts of a run, oldest first.
func (s *RunStore) Dispatches(ctx context.Context, runID string) ([]Dispatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dispatch_id, run_id, started_unix, finished_unix, commands_sent, status, error
		FROM run_dispatches
		WHERE run_id = ?
		ORDER BY started_unix, dispatch_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	out := []Dispatch{}
	for rows.Next() {
		var d Dispatch
		var started, finished int64
		if err := rows.Scan(&d.ID, &d.RunID, &started, &finished, &d.CommandsSent, &d.Status, &d.Error); err != nil {
			return nil, fmt.Errorf("scan dispatch: %w", err)
		}
		d.StartedAt = time.Unix(0, started).UTC()
		d.FinishedAt = time.Unix(0, finished).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}
