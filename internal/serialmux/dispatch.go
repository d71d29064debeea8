package serialmux

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/pathing/internal/command"
	"github.com/banshee-data/pathing/internal/monitoring"
	"github.com/banshee-data/pathing/internal/timeutil"
)

var (
	// ErrAckTimeout is returned when the controller does not acknowledge a
	// command within DispatchOptions.Timeout.
	ErrAckTimeout = errors.New("timed out waiting for acknowledgement")
	// ErrLinkClosed is returned when the link closes mid-dispatch.
	ErrLinkClosed = errors.New("robot link closed")
)

const (
	DefaultAck        = "ACK"
	DefaultAckTimeout = 30 * time.Second
)

// DispatchOptions controls how Dispatch paces commands.
type DispatchOptions struct {
	// Ack is the line the controller prints once a command has completed.
	// Matching ignores case and surrounding whitespace.
	Ack     string
	Timeout time.Duration
	Clock   timeutil.Clock
	// OnAck, if set, is called after command i is acknowledged.
	OnAck func(i int, cmd command.Command)
}

func (o DispatchOptions) withDefaults() DispatchOptions {
	if o.Ack == "" {
		o.Ack = DefaultAck
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultAckTimeout
	}
	if o.Clock == nil {
		o.Clock = timeutil.RealClock{}
	}
	return o
}

// Dispatch writes cmds to the link one at a time, waiting for the ack line
// after each. It returns the number of acknowledged commands; on error that
// is the index of the command that failed.
func Dispatch(ctx context.Context, m SerialMuxInterface, cmds []command.Command, opts DispatchOptions) (int, error) {
	opts = opts.withDefaults()

	// subscribe before the first write so a fast ack is not missed
	id, lines := m.Subscribe()
	defer m.Unsubscribe(id)

	for i, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := m.SendCommand(string(cmd)); err != nil {
			return i, fmt.Errorf("send %s: %w", cmd, err)
		}
		if err := awaitAck(ctx, lines, opts); err != nil {
			return i, fmt.Errorf("command %d (%s): %w", i, cmd, err)
		}
		if opts.OnAck != nil {
			opts.OnAck(i, cmd)
		}
	}
	monitoring.Logf("dispatched %d commands", len(cmds))
	return len(cmds), nil
}

func awaitAck(ctx context.Context, lines <-chan string, opts DispatchOptions) error {
	timeout := opts.Clock.After(opts.Timeout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("%w after %s", ErrAckTimeout, opts.Timeout)
		case line, ok := <-lines:
			if !ok {
				return ErrLinkClosed
			}
			if strings.EqualFold(strings.TrimSpace(line), opts.Ack) {
				return nil
			}
			monitoring.Debugf("ignoring controller line %q", line)
		}
	}
}
