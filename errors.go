package ulroy

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ulroy-ai/ulroy-go/internal/json"
	"github.com/ulroy-ai/ulroy-go/internal/poll"
)

var (
	ErrNotFound     = errors.New("ulroy: not found")
	ErrUnauthorized = errors.New("ulroy: unauthorized")
	ErrRateLimited  = errors.New("ulroy: rate limited")
	ErrTaskFailed   = errors.New("ulroy: task failed")
	ErrTaskTimeout  = errors.New("ulroy: task timed out")
	ErrClientClosed = errors.New("ulroy: client is closed")

	// ErrInvalidWaitOptions is returned before any request is sent when the
	// poll interval is not positive or the timeout is negative.
	ErrInvalidWaitOptions = poll.ErrInvalidConfig
)

// APIError is returned for every response with a status code of 400 or above.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API Error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// newAPIError pulls a message out of an error body. The service usually
// answers with {"message": "..."}, older endpoints with "detail" or "error".
func newAPIError(status int, body []byte, requestID string) *APIError {
	message := ""

	var payload map[string]any
	if err := json.Decode(bytes.NewReader(body), &payload); err == nil {
		for _, key := range []string{"message", "detail", "error"} {
			if s, ok := payload[key].(string); ok && s != "" {
				message = s
				break
			}
		}
	}
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	if message == "" {
		message = "Unknown error"
	}

	return &APIError{StatusCode: status, Message: message, RequestID: requestID}
}

// TaskFailedError reports a task that reached the failed state while waiting.
type TaskFailedError struct {
	TaskID string
	Detail string
	Status *TaskStatus
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task %s failed: %s", e.TaskID, e.Detail)
}

func (e *TaskFailedError) Unwrap() error { return ErrTaskFailed }

// TaskTimeoutError reports a task that was still pending or running when the
// wait timeout elapsed. Last is the final status observed.
type TaskTimeoutError struct {
	TaskID  string
	Timeout time.Duration
	Polls   int
	Last    *TaskStatus
}

func (e *TaskTimeoutError) Error() string {
	state := TaskState("unknown")
	if e.Last != nil {
		state = e.Last.Status
	}
	return fmt.Sprintf("task %s did not complete within %s (last status %q after %d polls)", e.TaskID, e.Timeout, state, e.Polls)
}

func (e *TaskTimeoutError) Unwrap() error { return ErrTaskTimeout }
