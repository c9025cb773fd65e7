package ulroy

import (
	"context"
	"errors"
	"net/http"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentWaits bounds the goroutines started by WaitAll.
const maxConcurrentWaits = 8

type TaskService struct {
	c *Client
}

func (s *TaskService) List(ctx context.Context, opts ListOptions) (*TaskList, error) {
	var out TaskList
	err := s.c.do(ctx, request{
		op:     "tasks.list",
		method: http.MethodGet,
		path:   []string{"tasks"},
		query:  pageQuery(ListOptions{Page: opts.Page, PerPage: opts.PerPage}),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *TaskService) fetch(ctx context.Context, taskID string) (TaskStatus, error) {
	var out TaskStatus
	err := s.c.do(ctx, request{
		op:     "tasks.get",
		method: http.MethodGet,
		path:   []string{"tasks", taskID},
	}, &out)
	return out, err
}

// Get returns the status of a task. Without WithWait(true) it fetches the
// status exactly once and returns it whatever it is, failed included.
func (s *TaskService) Get(ctx context.Context, taskID string, opts ...WaitOption) (*TaskStatus, error) {
	if taskID == "" {
		return nil, errors.New("ulroy: task id is required")
	}
	return s.c.await(ctx, taskID, resolveWait(opts))
}

// WaitAll waits for several tasks at once. Every task gets its own timer; a
// failure or timeout of one task does not stop the others. The returned
// slice is index-aligned with taskIDs and holds nil where a wait failed, and
// the error aggregates every failure.
func (s *TaskService) WaitAll(ctx context.Context, taskIDs []string, opts ...WaitOption) ([]*TaskStatus, error) {
	o := resolveWait(opts)
	o.Wait = true
	if err := o.pollConfig().Validate(); err != nil {
		return nil, err
	}

	results := make([]*TaskStatus, len(taskIDs))
	errs := make([]error, len(taskIDs))

	var g errgroup.Group
	g.SetLimit(maxConcurrentWaits)
	for i, id := range taskIDs {
		g.Go(func() error {
			results[i], errs[i] = s.c.await(ctx, id, o)
			return nil
		})
	}
	_ = g.Wait()

	var merr *multierror.Error
	for _, err := range errs {
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return results, merr.ErrorOrNil()
}
