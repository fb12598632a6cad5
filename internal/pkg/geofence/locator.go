package geofence

import (
	"context"
	"log/slog"
	"time"
)

// DefaultAcquireTimeout bounds how long a client waits for a position fix.
const DefaultAcquireTimeout = 10 * time.Second

// Locator yields the device's current position.
type Locator interface {
	Locate(ctx context.Context) (Point, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (Point, error)

func (f LocatorFunc) Locate(ctx context.Context) (Point, error) {
	return f(ctx)
}

// Acquire asks l for a position and gives up after timeout. Timeouts, denials
// and invalid fixes all yield nil so the mark is judged as having no location.
func Acquire(ctx context.Context, l Locator, timeout time.Duration) *Point {
	if l == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type fix struct {
		p   Point
		err error
	}
	ch := make(chan fix, 1)
	go func() {
		p, err := l.Locate(ctx)
		ch <- fix{p: p, err: err}
	}()

	select {
	case <-ctx.Done():
		slog.Warn("Location acquisition timed out", "timeout", timeout)
		return nil
	case f := <-ch:
		if f.err != nil {
			slog.Warn("Location acquisition failed", "error", f.err)
			return nil
		}
		if err := f.p.Validate(); err != nil {
			slog.Warn("Location acquisition returned an invalid fix", "error", err)
			return nil
		}
		return &f.p
	}
}
