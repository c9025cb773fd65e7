package ulroy

import (
	"context"

	"github.com/ulroy-ai/ulroy-go/internal/poll"
)

// Future is the pending result of a call started by AsyncClient.
type Future[T any] struct {
	done   chan struct{}
	val    T
	err    error
	cancel context.CancelFunc
}

func goFuture[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	ctx, cancel := context.WithCancel(ctx)
	f := &Future[T]{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer close(f.done)
		defer cancel()
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Done is closed once the call has finished.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Await blocks until the call finishes or ctx is done. Giving up on ctx does
// not cancel the call; use Cancel for that.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Cancel stops the call. A wait in progress returns context.Canceled; the
// task itself keeps running on the server.
func (f *Future[T]) Cancel() { f.cancel() }

// AsyncClient mirrors Client but returns futures. Its waits suspend on a
// timer and return as soon as their context is cancelled.
type AsyncClient struct {
	c *Client

	Indexes   *AsyncIndexService
	Documents *AsyncDocumentService
	Tasks     *AsyncTaskService
}

// Async returns the asynchronous view of c. Both share the same transport.
func (c *Client) Async() *AsyncClient {
	loop := c.loop
	loop.Sleep = poll.Suspend
	sc := c.clone(loop)
	return &AsyncClient{
		c:         sc,
		Indexes:   &AsyncIndexService{s: sc.Indexes},
		Documents: &AsyncDocumentService{s: sc.Documents},
		Tasks:     &AsyncTaskService{s: sc.Tasks},
	}
}

// NewAsync is a shortcut for New followed by Async.
func NewAsync(apiKey string, opts ...Option) (*AsyncClient, error) {
	c, err := New(apiKey, opts...)
	if err != nil {
		return nil, err
	}
	return c.Async(), nil
}

func (a *AsyncClient) Close() error { return a.c.Close() }

type AsyncIndexService struct {
	s *IndexService
}

func (a *AsyncIndexService) List(ctx context.Context, opts ListOptions) *Future[*IndexList] {
	return goFuture(ctx, func(ctx context.Context) (*IndexList, error) { return a.s.List(ctx, opts) })
}

func (a *AsyncIndexService) Get(ctx context.Context, indexID string) *Future[*Index] {
	return goFuture(ctx, func(ctx context.Context) (*Index, error) { return a.s.Get(ctx, indexID) })
}

func (a *AsyncIndexService) Create(ctx context.Context, req CreateIndexRequest) *Future[*Index] {
	return goFuture(ctx, func(ctx context.Context) (*Index, error) { return a.s.Create(ctx, req) })
}

func (a *AsyncIndexService) Delete(ctx context.Context, indexID string) *Future[*DeleteResponse] {
	return goFuture(ctx, func(ctx context.Context) (*DeleteResponse, error) { return a.s.Delete(ctx, indexID) })
}

func (a *AsyncIndexService) Query(ctx context.Context, indexID, text string, topK int) *Future[[]QueryResult] {
	return goFuture(ctx, func(ctx context.Context) ([]QueryResult, error) { return a.s.Query(ctx, indexID, text, topK) })
}

func (a *AsyncIndexService) HybridSearch(ctx context.Context, indexID string, req HybridSearchRequest) *Future[[]QueryResult] {
	return goFuture(ctx, func(ctx context.Context) ([]QueryResult, error) { return a.s.HybridSearch(ctx, indexID, req) })
}

func (a *AsyncIndexService) UpdateMetadata(ctx context.Context, indexID, primaryID string, metadata map[string]any) *Future[*IndexEntry] {
	return goFuture(ctx, func(ctx context.Context) (*IndexEntry, error) {
		return a.s.UpdateMetadata(ctx, indexID, primaryID, metadata)
	})
}

func (a *AsyncIndexService) ListEntries(ctx context.Context, indexID string, opts ListOptions, includeDeleted bool) *Future[*EntryList] {
	return goFuture(ctx, func(ctx context.Context) (*EntryList, error) {
		return a.s.ListEntries(ctx, indexID, opts, includeDeleted)
	})
}

func (a *AsyncIndexService) DeleteEntries(ctx context.Context, indexID string, ids []string, opts ...WaitOption) *Future[*TaskStatus] {
	return goFuture(ctx, func(ctx context.Context) (*TaskStatus, error) { return a.s.DeleteEntries(ctx, indexID, ids, opts...) })
}

func (a *AsyncIndexService) Purge(ctx context.Context, indexID string, opts ...WaitOption) *Future[*TaskStatus] {
	return goFuture(ctx, func(ctx context.Context) (*TaskStatus, error) { return a.s.Purge(ctx, indexID, opts...) })
}

type AsyncDocumentService struct {
	s *DocumentService
}

func (a *AsyncDocumentService) List(ctx context.Context, indexID string, opts ListOptions) *Future[*DocumentList] {
	return goFuture(ctx, func(ctx context.Context) (*DocumentList, error) { return a.s.List(ctx, indexID, opts) })
}

func (a *AsyncDocumentService) Get(ctx context.Context, indexID, docID string) *Future[*Document] {
	return goFuture(ctx, func(ctx context.Context) (*Document, error) { return a.s.Get(ctx, indexID, docID) })
}

func (a *AsyncDocumentService) Index(ctx context.Context, indexID string, doc Document, opts ...WaitOption) *Future[*TaskStatus] {
	return goFuture(ctx, func(ctx context.Context) (*TaskStatus, error) { return a.s.Index(ctx, indexID, doc, opts...) })
}

func (a *AsyncDocumentService) Update(ctx context.Context, indexID string, doc Document, opts ...WaitOption) *Future[*TaskStatus] {
	return goFuture(ctx, func(ctx context.Context) (*TaskStatus, error) { return a.s.Update(ctx, indexID, doc, opts...) })
}

func (a *AsyncDocumentService) Search(ctx context.Context, indexID, query string, topK int) *Future[[]QueryResult] {
	return goFuture(ctx, func(ctx context.Context) ([]QueryResult, error) { return a.s.Search(ctx, indexID, query, topK) })
}

func (a *AsyncDocumentService) Query(ctx context.Context, docID, query string, topK int) *Future[[]QueryResult] {
	return goFuture(ctx, func(ctx context.Context) ([]QueryResult, error) { return a.s.Query(ctx, docID, query, topK) })
}

func (a *AsyncDocumentService) Research(ctx context.Context, docID, query string, topK int, opts ...WaitOption) *Future[*TaskStatus] {
	return goFuture(ctx, func(ctx context.Context) (*TaskStatus, error) { return a.s.Research(ctx, docID, query, topK, opts...) })
}

func (a *AsyncDocumentService) QueryResearch(ctx context.Context, docID, researchID, query string, topK int) *Future[[]QueryResult] {
	return goFuture(ctx, func(ctx context.Context) ([]QueryResult, error) {
		return a.s.QueryResearch(ctx, docID, researchID, query, topK)
	})
}

func (a *AsyncDocumentService) Delete(ctx context.Context, indexID, docID string, opts ...WaitOption) *Future[*TaskStatus] {
	return goFuture(ctx, func(ctx context.Context) (*TaskStatus, error) { return a.s.Delete(ctx, indexID, docID, opts...) })
}

type AsyncTaskService struct {
	s *TaskService
}

func (a *AsyncTaskService) List(ctx context.Context, opts ListOptions) *Future[*TaskList] {
	return goFuture(ctx, func(ctx context.Context) (*TaskList, error) { return a.s.List(ctx, opts) })
}

func (a *AsyncTaskService) Get(ctx context.Context, taskID string, opts ...WaitOption) *Future[*TaskStatus] {
	return goFuture(ctx, func(ctx context.Context) (*TaskStatus, error) { return a.s.Get(ctx, taskID, opts...) })
}

func (a *AsyncTaskService) WaitAll(ctx context.Context, taskIDs []string, opts ...WaitOption) *Future[[]*TaskStatus] {
	return goFuture(ctx, func(ctx context.Context) ([]*TaskStatus, error) { return a.s.WaitAll(ctx, taskIDs, opts...) })
}
