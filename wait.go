package ulroy

import (
	"context"
	"errors"
	"time"

	"github.com/ulroy-ai/ulroy-go/internal/poll"
)

const (
	DefaultPollInterval = time.Second
	DefaultWaitTimeout  = 300 * time.Second
	DefaultTopK         = 10
)

// WaitOptions controls whether a call blocks until its task finishes.
// Timeout zero means the task status is checked once without waiting.
type WaitOptions struct {
	Wait         bool
	PollInterval time.Duration
	Timeout      time.Duration
}

func DefaultWaitOptions() WaitOptions {
	return WaitOptions{
		Wait:         false,
		PollInterval: DefaultPollInterval,
		Timeout:      DefaultWaitTimeout,
	}
}

// WaitOption overlays a single field on top of DefaultWaitOptions.
type WaitOption func(*WaitOptions)

func WithWait(wait bool) WaitOption {
	return func(o *WaitOptions) { o.Wait = wait }
}

func WithPollInterval(d time.Duration) WaitOption {
	return func(o *WaitOptions) { o.PollInterval = d }
}

func WithWaitTimeout(d time.Duration) WaitOption {
	return func(o *WaitOptions) { o.Timeout = d }
}

// WithWaitOptions replaces all fields at once.
func WithWaitOptions(opts WaitOptions) WaitOption {
	return func(o *WaitOptions) { *o = opts }
}

func resolveWait(opts []WaitOption) WaitOptions {
	o := DefaultWaitOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o WaitOptions) pollConfig() poll.Config {
	return poll.Config{
		Wait:     o.Wait,
		Interval: o.PollInterval,
		Timeout:  o.Timeout,
	}
}

// await polls a task through GET /tasks/{id} and maps the loop outcome onto
// the package error types.
func (c *Client) await(ctx context.Context, taskID string, o WaitOptions) (*TaskStatus, error) {
	res, err := poll.Until(ctx, c.loop, o.pollConfig(), func(ctx context.Context) (TaskStatus, error) {
		return c.Tasks.fetch(ctx, taskID)
	})

	switch {
	case errors.Is(err, poll.ErrFailed):
		last := res.Last
		c.logger.DebugContext(ctx, "Task failed", "task_id", taskID, "polls", res.Polls)
		return nil, &TaskFailedError{TaskID: taskID, Detail: last.ErrorDetail(), Status: &last}
	case errors.Is(err, poll.ErrTimeout):
		last := res.Last
		c.logger.DebugContext(ctx, "Task wait timed out", "task_id", taskID, "polls", res.Polls, "elapsed", res.Elapsed)
		return nil, &TaskTimeoutError{TaskID: taskID, Timeout: o.Timeout, Polls: res.Polls, Last: &last}
	case err != nil:
		return nil, err
	}

	last := res.Last
	return &last, nil
}

// afterMutation returns the task handle of a mutating call, waiting for it
// when asked to. Options are validated before the mutation is sent.
func (c *Client) afterMutation(ctx context.Context, o WaitOptions, mutate func(ctx context.Context) (*TaskStatus, error)) (*TaskStatus, error) {
	if o.Wait {
		if err := o.pollConfig().Validate(); err != nil {
			return nil, err
		}
	}

	task, err := mutate(ctx)
	if err != nil {
		return nil, err
	}
	if !o.Wait {
		return task, nil
	}
	if task.ID == "" {
		return nil, errors.New("ulroy: response did not include a task id")
	}
	return c.await(ctx, task.ID, o)
}
