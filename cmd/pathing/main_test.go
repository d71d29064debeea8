package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pathing/internal/grid"
	"github.com/banshee-data/pathing/internal/serialmux"
)

func TestLoadPlannerConfig(t *testing.T) {
	cfg, err := loadPlannerConfig("")
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.GetGridSize())

	path := filepath.Join(t.TempDir(), "arena.yaml")
	require.NoError(t, os.WriteFile(path, []byte("grid_size: 30\nstart: {x: 2, y: 3, heading: E}\nack_timeout: 5s\n"), 0o644))
	cfg, err = loadPlannerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.GetGridSize())

	opts, err := serverOptions(cfg)
	require.NoError(t, err)
	assert.Equal(t, grid.NewPose(2, 3, grid.East), opts.Start)
	assert.Equal(t, 5*time.Second, opts.Dispatch.Timeout)
	assert.Equal(t, "ACK", opts.Dispatch.Ack)
	assert.Equal(t, 30, opts.Compiler.Geometry().GridSize)

	_, err = loadPlannerConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestOpenRobotLink(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		link, err := openRobotLink("", serialmux.DefaultBaudRate, false, "ACK")
		require.NoError(t, err)
		assert.IsType(t, &serialmux.DisabledSerialMux{}, link)
	})

	t.Run("simulated", func(t *testing.T) {
		link, err := openRobotLink("", serialmux.DefaultBaudRate, true, "ok")
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			link.Monitor(ctx)
		}()
		defer func() {
			cancel()
			link.Close()
			<-done
		}()

		id, lines := link.Subscribe()
		defer link.Unsubscribe(id)
		require.NoError(t, link.SendCommand("FW010"))
		select {
		case line := <-lines:
			assert.Equal(t, "ok", line)
		case <-time.After(2 * time.Second):
			t.Fatal("simulated robot did not acknowledge")
		}
	})

	t.Run("missing port", func(t *testing.T) {
		_, err := openRobotLink(filepath.Join(t.TempDir(), "ttyNONE"), serialmux.DefaultBaudRate, false, "ACK")
		assert.Error(t, err)
	})
}
