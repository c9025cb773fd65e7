package ulroy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ulroy-ai/ulroy-go/internal/poll"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://api.ulroy.test/v1"

// fakeLoop advances its clock only when the poller sleeps.
func fakeLoop() poll.Loop {
	var mu sync.Mutex
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return poll.Loop{
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		},
		Sleep: func(ctx context.Context, d time.Duration) error {
			mu.Lock()
			defer mu.Unlock()
			now = now.Add(d)
			return nil
		},
	}
}

func newTestClient(t *testing.T, opts ...Option) (*Client, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	base := []Option{
		WithBaseURL(testBaseURL),
		WithHTTPClient(&http.Client{Transport: transport}),
		withLoop(fakeLoop()),
	}
	c, err := New("test-key", append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, transport
}

// taskSequence answers GET /tasks/{id} with the given states in order and
// repeats the last one.
func taskSequence(taskID string, states ...TaskState) httpmock.Responder {
	var mu sync.Mutex
	i := 0
	return func(req *http.Request) (*http.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		st := states[min(i, len(states)-1)]
		i++
		body := map[string]any{"id": taskID, "status": st}
		if st == TaskFailed {
			body["error"] = "embedding model unavailable"
		}
		return httpmock.NewJsonResponse(http.StatusOK, body)
	}
}

func calls(transport *httpmock.MockTransport, method, url string) int {
	return transport.GetCallCountInfo()[method+" "+url]
}

func TestNew_Validation(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)

	_, err = New("key", WithBaseURL("not a url"))
	assert.Error(t, err)

	_, err = New("key", WithTimeout(0))
	assert.Error(t, err)

	c, err := New("key")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.baseURL.String())
	assert.Equal(t, DefaultRequestTimeout, c.HTTPClient().Timeout)
}

func TestNew_TimeoutIgnoresOptionOrder(t *testing.T) {
	mine := &http.Client{Timeout: 5 * time.Second}

	before, err := New("key", WithTimeout(2*time.Second), WithHTTPClient(mine))
	require.NoError(t, err)
	after, err := New("key", WithHTTPClient(mine), WithTimeout(3*time.Second))
	require.NoError(t, err)
	untouched, err := New("key", WithHTTPClient(mine))
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, before.HTTPClient().Timeout)
	assert.Equal(t, 3*time.Second, after.HTTPClient().Timeout)
	assert.Same(t, mine, untouched.HTTPClient())
	assert.Equal(t, 5*time.Second, mine.Timeout, "the caller's client must not be modified")
}

func TestRequest_Headers(t *testing.T) {
	c, transport := newTestClient(t, WithUserAgent("ulroy-test/1.0"))

	var got *http.Request
	var body map[string]any
	transport.RegisterResponder(http.MethodPost, testBaseURL+"/indexes", func(req *http.Request) (*http.Response, error) {
		got = req
		raw, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(raw, &body)
		return httpmock.NewJsonResponse(http.StatusCreated, map[string]any{"id": "idx-1", "name": "products"})
	})

	idx, err := c.Indexes.Create(context.Background(), CreateIndexRequest{
		Name:     "products",
		Settings: map[string]any{"similarity": "cosine"},
	})

	require.NoError(t, err)
	assert.Equal(t, "idx-1", idx.ID)
	require.NotNil(t, got)
	assert.Equal(t, "Bearer test-key", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	assert.Equal(t, "ulroy-test/1.0", got.Header.Get("User-Agent"))
	assert.NotEmpty(t, got.Header.Get("X-Request-ID"))
	assert.Equal(t, "products", body["name"])
	assert.Equal(t, map[string]any{"similarity": "cosine"}, body["settings"])
}

func TestRequest_APIErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
		is      error
	}{
		{"json message", http.StatusNotFound, `{"message":"index not found"}`, "index not found", ErrNotFound},
		{"json detail", http.StatusUnauthorized, `{"detail":"bad api key"}`, "bad api key", ErrUnauthorized},
		{"plain text", http.StatusTooManyRequests, "slow down", "slow down", ErrRateLimited},
		{"empty body", http.StatusInternalServerError, "", "Unknown error", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, transport := newTestClient(t)
			transport.RegisterResponder(http.MethodGet, testBaseURL+"/indexes/idx-1",
				httpmock.NewStringResponder(tt.status, tt.body))

			_, err := c.Indexes.Get(context.Background(), "idx-1")

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.NotEmpty(t, apiErr.RequestID)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			assert.Equal(t, 1, transport.GetTotalCallCount(), "API errors must not be retried")
		})
	}
}

func TestRequest_TransportErrorIsPropagated(t *testing.T) {
	c, transport := newTestClient(t)
	boom := errors.New("connection refused")
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/tasks/task-1", httpmock.NewErrorResponder(boom))

	_, err := c.Tasks.Get(context.Background(), "task-1", WithWait(true))

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestRequest_ClosedClient(t *testing.T) {
	c, transport := newTestClient(t)
	require.NoError(t, c.Close())

	_, err := c.Indexes.List(context.Background(), ListOptions{})

	assert.ErrorIs(t, err, ErrClientClosed)
	assert.Zero(t, transport.GetTotalCallCount())
}

func TestIndexes_ListQuery(t *testing.T) {
	c, transport := newTestClient(t)
	transport.RegisterResponderWithQuery(http.MethodGet, testBaseURL+"/indexes",
		map[string]string{"page": "2", "per_page": "25", "search": "prod"},
		httpmock.NewStringResponder(http.StatusOK, `{"total":26,"page":2,"per_page":25,"indexes":[{"id":"idx-26","name":"products"}]}`))

	list, err := c.Indexes.List(context.Background(), ListOptions{Page: 2, PerPage: 25, Search: "prod"})

	require.NoError(t, err)
	assert.Equal(t, 26, list.Total)
	assert.Equal(t, 2, list.Page)
	require.Len(t, list.Indexes, 1)
	assert.Equal(t, "idx-26", list.Indexes[0].ID)
}

func TestIndexes_ListDefaults(t *testing.T) {
	c, transport := newTestClient(t)
	transport.RegisterResponderWithQuery(http.MethodGet, testBaseURL+"/indexes",
		map[string]string{"page": "1", "per_page": "10"},
		httpmock.NewStringResponder(http.StatusOK, `{"total":0,"page":1,"per_page":10,"indexes":[]}`))

	_, err := c.Indexes.List(context.Background(), ListOptions{})

	require.NoError(t, err)
}

func TestIndexes_Query(t *testing.T) {
	for name, payload := range map[string]string{
		"bare array": `[{"id":"doc1","score":0.92,"content":"test document"}]`,
		"wrapped":    `{"results":[{"id":"doc1","score":0.92,"content":"test document"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			c, transport := newTestClient(t)

			var req QueryRequest
			transport.RegisterResponder(http.MethodPost, testBaseURL+"/indexes/idx-1/query", func(r *http.Request) (*http.Response, error) {
				raw, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(raw, &req)
				return httpmock.NewStringResponse(http.StatusOK, payload), nil
			})

			results, err := c.Indexes.Query(context.Background(), "idx-1", "test document", 0)

			require.NoError(t, err)
			assert.Equal(t, QueryRequest{Text: "test document", K: DefaultTopK}, req)
			require.Len(t, results, 1)
			assert.Equal(t, "doc1", results[0].ID)
			assert.InDelta(t, 0.92, results[0].Score, 1e-9)
		})
	}
}

func TestIndexes_PathEscaping(t *testing.T) {
	c, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/indexes/my%20index",
		httpmock.NewStringResponder(http.StatusOK, `{"id":"my index"}`))

	idx, err := c.Indexes.Get(context.Background(), "my index")

	require.NoError(t, err)
	assert.Equal(t, "my index", idx.ID)
}

func TestTasks_GetWithoutWait_FetchesOnce(t *testing.T) {
	for _, st := range []TaskState{TaskPending, TaskRunning, TaskCompleted, TaskFailed} {
		t.Run(string(st), func(t *testing.T) {
			c, transport := newTestClient(t)
			url := testBaseURL + "/tasks/task-1"
			transport.RegisterResponder(http.MethodGet, url, taskSequence("task-1", st))

			task, err := c.Tasks.Get(context.Background(), "task-1")

			require.NoError(t, err)
			assert.Equal(t, st, task.Status)
			assert.Equal(t, 1, calls(transport, http.MethodGet, url))
		})
	}
}

func TestTasks_WaitSucceedsOnThirdFetch(t *testing.T) {
	c, transport := newTestClient(t)
	url := testBaseURL + "/tasks/task-1"
	transport.RegisterResponder(http.MethodGet, url, taskSequence("task-1", TaskPending, TaskRunning, TaskCompleted))

	task, err := c.Tasks.Get(context.Background(), "task-1", WithWait(true), WithPollInterval(100*time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, TaskCompleted, task.Status)
	assert.Equal(t, 3, calls(transport, http.MethodGet, url))
}

func TestTasks_WaitAcceptsSucceededSynonym(t *testing.T) {
	c, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/tasks/task-1", taskSequence("task-1", TaskRunning, TaskSucceeded))

	task, err := c.Tasks.Get(context.Background(), "task-1", WithWait(true))

	require.NoError(t, err)
	assert.True(t, task.Succeeded())
}

func TestTasks_WaitFailed(t *testing.T) {
	c, transport := newTestClient(t)
	url := testBaseURL + "/tasks/task-1"
	transport.RegisterResponder(http.MethodGet, url, taskSequence("task-1", TaskRunning, TaskFailed, TaskCompleted))

	_, err := c.Tasks.Get(context.Background(), "task-1", WithWait(true))

	var failed *TaskFailedError
	require.ErrorAs(t, err, &failed)
	assert.ErrorIs(t, err, ErrTaskFailed)
	assert.Equal(t, "task-1", failed.TaskID)
	assert.Equal(t, "embedding model unavailable", failed.Detail)
	assert.Equal(t, 2, calls(transport, http.MethodGet, url), "polling must stop on failure")
}

func TestTasks_WaitTimeout(t *testing.T) {
	c, transport := newTestClient(t)
	url := testBaseURL + "/tasks/task-1"
	transport.RegisterResponder(http.MethodGet, url, taskSequence("task-1", TaskRunning))

	_, err := c.Tasks.Get(context.Background(), "task-1",
		WithWait(true), WithPollInterval(100*time.Millisecond), WithWaitTimeout(500*time.Millisecond))

	var timeout *TaskTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.ErrorIs(t, err, ErrTaskTimeout)
	assert.Equal(t, 500*time.Millisecond, timeout.Timeout)
	assert.Equal(t, TaskRunning, timeout.Last.Status)
	assert.LessOrEqual(t, calls(transport, http.MethodGet, url), 6)
	assert.Equal(t, calls(transport, http.MethodGet, url), timeout.Polls)
}

func TestTasks_ZeroTimeoutChecksOnce(t *testing.T) {
	c, transport := newTestClient(t)
	url := testBaseURL + "/tasks/task-1"
	transport.RegisterResponder(http.MethodGet, url, taskSequence("task-1", TaskPending))

	_, err := c.Tasks.Get(context.Background(), "task-1", WithWait(true), WithWaitTimeout(0))

	assert.ErrorIs(t, err, ErrTaskTimeout)
	assert.Equal(t, 1, calls(transport, http.MethodGet, url))
}

func TestDocuments_IndexWithoutWait(t *testing.T) {
	c, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodPost, testBaseURL+"/indexes/idx-1/documents",
		httpmock.NewStringResponder(http.StatusAccepted, `{"task_id":"task-9","status":"pending"}`))

	task, err := c.Documents.Index(context.Background(), "idx-1", Document{ID: "doc1", Content: "This is a test document"})

	require.NoError(t, err)
	assert.Equal(t, "task-9", task.ID)
	assert.Equal(t, TaskPending, task.Status)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestDocuments_IndexWithWait(t *testing.T) {
	c, transport := newTestClient(t)

	var sent Document
	transport.RegisterResponder(http.MethodPost, testBaseURL+"/indexes/idx-1/documents", func(r *http.Request) (*http.Response, error) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &sent)
		return httpmock.NewStringResponse(http.StatusAccepted, `{"id":"task-9","status":"pending"}`), nil
	})
	tasksURL := testBaseURL + "/tasks/task-9"
	transport.RegisterResponder(http.MethodGet, tasksURL, taskSequence("task-9", TaskRunning, TaskCompleted))

	doc := Document{
		ID:       "doc1",
		Content:  "This is a test document",
		Metadata: map[string]any{"source": "test", "timestamp": "2024-05-01"},
	}
	task, err := c.Documents.Index(context.Background(), "idx-1", doc, WithWait(true))

	require.NoError(t, err)
	assert.Equal(t, TaskCompleted, task.Status)
	assert.Equal(t, doc, sent)
	assert.Equal(t, 2, calls(transport, http.MethodGet, tasksURL))
}

func TestDocuments_DeleteWithWaitFailed(t *testing.T) {
	c, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodDelete, testBaseURL+"/indexes/idx-1/documents/doc1",
		httpmock.NewStringResponder(http.StatusAccepted, `{"id":"task-3","status":"pending"}`))
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/tasks/task-3", taskSequence("task-3", TaskFailed))

	_, err := c.Documents.Delete(context.Background(), "idx-1", "doc1", WithWait(true))

	assert.ErrorIs(t, err, ErrTaskFailed)
}

func TestDocuments_UpdateWithWait(t *testing.T) {
	c, transport := newTestClient(t)

	var sent Document
	putURL := testBaseURL + "/indexes/idx-1/documents/doc1"
	transport.RegisterResponder(http.MethodPut, putURL, func(r *http.Request) (*http.Response, error) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &sent)
		return httpmock.NewStringResponse(http.StatusAccepted, `{"id":"task-6","status":"pending"}`), nil
	})
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/tasks/task-6", taskSequence("task-6", TaskRunning, TaskCompleted))

	doc := Document{ID: "doc1", Content: "Updated content", Metadata: map[string]any{"updated": true}}
	task, err := c.Documents.Update(context.Background(), "idx-1", doc, WithWait(true))

	require.NoError(t, err)
	assert.Equal(t, TaskCompleted, task.Status)
	assert.Equal(t, doc, sent)
	assert.Equal(t, 1, calls(transport, http.MethodPut, putURL))
}

func TestDocuments_UpdateRequiresID(t *testing.T) {
	c, transport := newTestClient(t)

	_, err := c.Documents.Update(context.Background(), "idx-1", Document{Content: "no id"})

	assert.Error(t, err)
	assert.Zero(t, transport.GetTotalCallCount())
}

func TestDocuments_QueryCalls(t *testing.T) {
	tests := []struct {
		name string
		url  string
		call func(c *Client) ([]QueryResult, error)
	}{
		{
			name: "search index",
			url:  testBaseURL + "/indexes/idx-1/search",
			call: func(c *Client) ([]QueryResult, error) {
				return c.Documents.Search(context.Background(), "idx-1", "test document", 0)
			},
		},
		{
			name: "query document",
			url:  testBaseURL + "/document/doc1/index/query",
			call: func(c *Client) ([]QueryResult, error) {
				return c.Documents.Query(context.Background(), "doc1", "test document", 0)
			},
		},
		{
			name: "query research",
			url:  testBaseURL + "/document/doc1/research/res-1/query",
			call: func(c *Client) ([]QueryResult, error) {
				return c.Documents.QueryResearch(context.Background(), "doc1", "res-1", "test document", 0)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, transport := newTestClient(t)

			var body DocumentQuery
			transport.RegisterResponder(http.MethodPost, tt.url, func(r *http.Request) (*http.Response, error) {
				raw, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(raw, &body)
				return httpmock.NewStringResponse(http.StatusOK, `{"results":[{"id":"doc1","score":0.8}]}`), nil
			})

			results, err := tt.call(c)

			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "doc1", results[0].ID)
			assert.Equal(t, DocumentQuery{Query: "test document", K: DefaultTopK}, body)
		})
	}
}

func TestDocuments_ResearchWaits(t *testing.T) {
	c, transport := newTestClient(t)

	var body DocumentQuery
	transport.RegisterResponder(http.MethodPost, testBaseURL+"/document/doc1/research/index", func(r *http.Request) (*http.Response, error) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		return httpmock.NewStringResponse(http.StatusAccepted, `{"id":"task-r","status":"pending"}`), nil
	})
	tasksURL := testBaseURL + "/tasks/task-r"
	transport.RegisterResponder(http.MethodGet, tasksURL, taskSequence("task-r", TaskPending, TaskRunning, TaskCompleted))

	task, err := c.Documents.Research(context.Background(), "doc1", "summarise", 5, WithWait(true))

	require.NoError(t, err)
	assert.Equal(t, TaskCompleted, task.Status)
	assert.Equal(t, DocumentQuery{Query: "summarise", K: 5}, body)
	assert.Equal(t, 3, calls(transport, http.MethodGet, tasksURL))
}

func TestDocuments_ResearchWithoutWait(t *testing.T) {
	c, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodPost, testBaseURL+"/document/doc1/research/index",
		httpmock.NewStringResponder(http.StatusAccepted, `{"id":"task-r","status":"pending"}`))

	task, err := c.Documents.Research(context.Background(), "doc1", "summarise", 0)

	require.NoError(t, err)
	assert.Equal(t, TaskPending, task.Status)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestMutation_InvalidWaitOptionsSendsNothing(t *testing.T) {
	c, transport := newTestClient(t)

	_, err := c.Indexes.DeleteEntries(context.Background(), "idx-1", []string{"doc1"},
		WithWait(true), WithPollInterval(0))

	assert.ErrorIs(t, err, ErrInvalidWaitOptions)
	assert.Zero(t, transport.GetTotalCallCount())
}

func TestIndexes_DeleteEntries(t *testing.T) {
	c, transport := newTestClient(t)

	var body map[string][]string
	transport.RegisterResponder(http.MethodPost, testBaseURL+"/indexes/idx-1/delete", func(r *http.Request) (*http.Response, error) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		return httpmock.NewStringResponse(http.StatusAccepted, `{"id":"task-4","status":"pending"}`), nil
	})
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/tasks/task-4", taskSequence("task-4", TaskCompleted))

	task, err := c.Indexes.DeleteEntries(context.Background(), "idx-1", []string{"doc1", "doc2"}, WithWait(true))

	require.NoError(t, err)
	assert.Equal(t, TaskCompleted, task.Status)
	assert.Equal(t, []string{"doc1", "doc2"}, body["ids"])
}

func TestIndexes_PurgeSendsNoBody(t *testing.T) {
	c, transport := newTestClient(t)

	var contentType string
	var raw []byte
	transport.RegisterResponder(http.MethodPost, testBaseURL+"/indexes/idx-1/delete-complete", func(r *http.Request) (*http.Response, error) {
		contentType = r.Header.Get("Content-Type")
		if r.Body != nil {
			raw, _ = io.ReadAll(r.Body)
		}
		return httpmock.NewStringResponse(http.StatusAccepted, `{"id":"task-5","status":"pending"}`), nil
	})

	task, err := c.Indexes.Purge(context.Background(), "idx-1")

	require.NoError(t, err)
	assert.Equal(t, "task-5", task.ID)
	assert.Empty(t, contentType)
	assert.Empty(t, raw)
}

func TestTasks_WaitAll(t *testing.T) {
	c, transport := newTestClient(t, withLoop(poll.Loop{Sleep: poll.Suspend}))
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/tasks/task-1", taskSequence("task-1", TaskRunning, TaskCompleted))
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/tasks/task-2", taskSequence("task-2", TaskPending, TaskRunning, TaskFailed))
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/tasks/task-3", taskSequence("task-3", TaskCompleted))

	results, err := c.Tasks.WaitAll(context.Background(), []string{"task-1", "task-2", "task-3"},
		WithPollInterval(10*time.Millisecond))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaskFailed)
	require.Len(t, results, 3)
	assert.Equal(t, TaskCompleted, results[0].Status)
	assert.Nil(t, results[1])
	assert.Equal(t, TaskCompleted, results[2].Status)
	assert.Equal(t, 2, calls(transport, http.MethodGet, testBaseURL+"/tasks/task-1"))
	assert.Equal(t, 3, calls(transport, http.MethodGet, testBaseURL+"/tasks/task-2"))
	assert.Equal(t, 1, calls(transport, http.MethodGet, testBaseURL+"/tasks/task-3"))
}

func TestTaskStatus_ErrorDetail(t *testing.T) {
	assert.Equal(t, "Unknown error", TaskStatus{}.ErrorDetail())
	assert.Equal(t, "boom", TaskStatus{Error: "boom"}.ErrorDetail())
	assert.Equal(t, "quota exceeded", TaskStatus{Error: map[string]any{"message": "quota exceeded"}}.ErrorDetail())
	assert.Equal(t, `{"code":42}`, TaskStatus{Error: map[string]any{"code": 42}}.ErrorDetail())
}
