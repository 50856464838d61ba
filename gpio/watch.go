package gpio

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultPollInterval is how often polled lines are sampled while a watch is armed.
const DefaultPollInterval = 2 * time.Millisecond

// LevelFunc reads the current level of a line; true means high.
type LevelFunc func(ctx context.Context) (bool, error)

// PollRisingEdge samples read every interval on its own goroutine and calls fn
// once when the line goes from low to high. The first sample is taken before
// returning so that a broken line is reported to the caller. Read errors while
// armed are logged and polling goes on until ctx is done.
func PollRisingEdge(ctx context.Context, name string, interval time.Duration, read LevelFunc, fn func()) error {
	last, err := read(ctx)
	if err != nil {
		return fmt.Errorf("could not read pin %s: %w", name, err)
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			level, err := read(ctx)
			if err != nil {
				slog.WarnContext(ctx, "pin poll failed", "pin", name, "error", err)
				continue
			}
			if level && !last {
				if ctx.Err() != nil {
					return
				}
				fn()
				return
			}
			last = level
		}
	}()
	return nil
}
