// Package ulroy is a client for the Ulroy document indexing and search API.
//
// # Client Creation
//
// Create a [Client] with an API key and optional settings:
//
//	c, err := ulroy.New(apiKey,
//		ulroy.WithBaseURL("https://www.ulroy.com/api/v1"),
//		ulroy.WithTimeout(10*time.Second),
//	)
//	defer c.Close()
//
// Operations are grouped by resource: [Client.Indexes], [Client.Documents]
// and [Client.Tasks].
//
// # Waiting for Tasks
//
// Mutating calls (indexing a document, deleting a document, deleting index
// entries, purging an index) return a [TaskStatus] handle. Pass [WithWait] to
// block until the task reaches a terminal state:
//
//	task, err := c.Documents.Index(ctx, "products", doc,
//		ulroy.WithWait(true),
//		ulroy.WithPollInterval(500*time.Millisecond),
//		ulroy.WithWaitTimeout(time.Minute),
//	)
//
// A task reported as failed yields a [*TaskFailedError]; a task still running
// when the timeout elapses yields a [*TaskTimeoutError]. Use errors.Is with
// [ErrTaskFailed] and [ErrTaskTimeout] to check for them.
//
// # Asynchronous Calls
//
// [Client.Async] returns an [AsyncClient] whose methods start the call on
// their own goroutine and return a [Future]. Waits started this way stop as
// soon as their context is cancelled.
//
//	f := c.Async().Tasks.Get(ctx, taskID, ulroy.WithWait(true))
//	// ... do other work ...
//	task, err := f.Await(ctx)
//
// # Errors
//
// Non-2xx responses are returned as [*APIError]. [ErrNotFound],
// [ErrUnauthorized] and [ErrRateLimited] match through errors.Is. Transport
// errors are returned wrapped and are never retried.
//
// # Thread Safety
//
// [Client] and [AsyncClient] are safe for concurrent use.
package ulroy
