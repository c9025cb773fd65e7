// Package poll runs the status loop used to wait for server-side tasks.
//
// The loop is written once and parametrized over its suspension primitive:
// Block sleeps the calling goroutine for the whole interval, Suspend parks it
// on a timer and wakes up as soon as the context is cancelled.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidConfig = errors.New("poll: invalid config")
	ErrFailed        = errors.New("poll: task failed")
	ErrTimeout       = errors.New("poll: timed out")
)

// State is a snapshot of a polled task.
type State interface {
	Succeeded() bool
	Failed() bool
}

// Config controls a single wait. The zero value performs one fetch and returns.
type Config struct {
	Wait     bool
	Interval time.Duration
	Timeout  time.Duration
}

func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %s", ErrInvalidConfig, c.Interval)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative, got %s", ErrInvalidConfig, c.Timeout)
	}
	return nil
}

// Sleeper pauses the loop between two fetches.
type Sleeper func(ctx context.Context, d time.Duration) error

// Block sleeps for the full duration. The context is only looked at before
// and after the sleep.
func Block(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	time.Sleep(d)
	return ctx.Err()
}

// Suspend waits for d or until ctx is done, whichever comes first.
func Suspend(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Loop holds the primitives a wait depends on. Nil fields fall back to Block
// and time.Now.
type Loop struct {
	Sleep Sleeper
	Now   func() time.Time
}

// Result describes how a wait ended.
type Result[T State] struct {
	Last    T
	Polls   int
	Elapsed time.Duration
}

// Until fetches the task status until it reaches a terminal state or the
// timeout elapses.
//
// With cfg.Wait unset it fetches exactly once and returns whatever it saw.
// Otherwise a failed task ends the loop with ErrFailed and a task that is
// still running once cfg.Timeout has passed ends it with ErrTimeout. Errors
// returned by fetch end the loop unchanged.
func Until[T State](ctx context.Context, loop Loop, cfg Config, fetch func(ctx context.Context) (T, error)) (Result[T], error) {
	var res Result[T]

	if cfg.Wait {
		if err := cfg.Validate(); err != nil {
			return res, err
		}
	}

	sleep := loop.Sleep
	if sleep == nil {
		sleep = Block
	}
	now := loop.Now
	if now == nil {
		now = time.Now
	}

	start := now()
	for {
		status, err := fetch(ctx)
		res.Polls++
		res.Elapsed = now().Sub(start)
		if err != nil {
			return res, err
		}
		res.Last = status

		if !cfg.Wait {
			return res, nil
		}
		if status.Failed() {
			return res, ErrFailed
		}
		if status.Succeeded() {
			return res, nil
		}

		remaining := cfg.Timeout - res.Elapsed
		if remaining <= 0 {
			return res, ErrTimeout
		}

		d := cfg.Interval
		if remaining < d {
			d = remaining
		}
		if err := sleep(ctx, d); err != nil {
			return res, err
		}
	}
}
