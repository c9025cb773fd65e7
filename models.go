package ulroy

import (
	"encoding/json"
	"fmt"
	"time"
)

type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskSucceeded TaskState = "succeeded" // synonym of TaskCompleted sent by newer endpoints
	TaskFailed    TaskState = "failed"
)

// TaskStatus is a snapshot of a server-side task.
type TaskStatus struct {
	ID       string         `json:"id"`
	Status   TaskState      `json:"status"`
	Progress *float64       `json:"progress,omitempty"`
	Result   map[string]any `json:"result,omitempty"`
	Error    any            `json:"error,omitempty"`
}

func (t TaskStatus) Succeeded() bool {
	return t.Status == TaskCompleted || t.Status == TaskSucceeded
}

func (t TaskStatus) Failed() bool { return t.Status == TaskFailed }

// Terminal reports whether no further transitions can happen.
func (t TaskStatus) Terminal() bool { return t.Succeeded() || t.Failed() }

// ErrorDetail renders the service-reported error of a failed task.
func (t TaskStatus) ErrorDetail() string {
	switch v := t.Error.(type) {
	case nil:
		return "Unknown error"
	case string:
		if v == "" {
			return "Unknown error"
		}
		return v
	case map[string]any:
		if msg, ok := v["message"].(string); ok && msg != "" {
			return msg
		}
	}
	b, err := json.Marshal(t.Error)
	if err != nil {
		return fmt.Sprint(t.Error)
	}
	return string(b)
}

// UnmarshalJSON accepts the "task_id" key that some mutating endpoints use
// instead of "id".
func (t *TaskStatus) UnmarshalJSON(data []byte) error {
	type plain TaskStatus
	var aux struct {
		plain
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*t = TaskStatus(aux.plain)
	if t.ID == "" {
		t.ID = aux.TaskID
	}
	return nil
}

type Pagination struct {
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// ListOptions selects a page of a listing. Zero values mean page 1 with 10
// items per page.
type ListOptions struct {
	Page    int
	PerPage int
	Search  string
}

type Index struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Settings    map[string]any `json:"settings,omitempty"`
	CreatedAt   *time.Time     `json:"created_at,omitempty"`
}

type CreateIndexRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Settings    map[string]any `json:"settings,omitempty"`
}

type IndexList struct {
	Pagination
	Indexes []Index `json:"indexes"`
}

type DeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
	Message string `json:"message,omitempty"`
}

type Document struct {
	ID          string         `json:"id"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Content     string         `json:"content,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type DocumentList struct {
	Pagination
	Documents []Document `json:"documents"`
}

type IndexEntry struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Deleted  bool           `json:"deleted"`
}

type EntryList struct {
	Pagination
	Entries []IndexEntry `json:"entries"`
}

type TaskList struct {
	Pagination
	Tasks []TaskStatus `json:"tasks"`
}

type QueryRequest struct {
	Text string `json:"text"`
	K    int    `json:"k"`
}

// DocumentQuery is the body of document search and research calls.
type DocumentQuery struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type HybridSearchRequest struct {
	Text         string  `json:"text"`
	K            int     `json:"k"`
	VectorWeight float64 `json:"vector_weight"`
	TextWeight   float64 `json:"text_weight"`
	MinTextScore float64 `json:"min_text_score"`
}

// DefaultHybridSearch weighs vector and text similarity equally.
func DefaultHybridSearch(text string) HybridSearchRequest {
	return HybridSearchRequest{
		Text:         text,
		K:            DefaultTopK,
		VectorWeight: 0.5,
		TextWeight:   0.5,
	}
}

type QueryResult struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Content  string         `json:"content,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// queryResults decodes either a bare array or {"results": [...]}.
type queryResults []QueryResult

func (q *queryResults) UnmarshalJSON(data []byte) error {
	var list []QueryResult
	if err := json.Unmarshal(data, &list); err == nil {
		*q = list
		return nil
	}
	var wrapped struct {
		Results []QueryResult `json:"results"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*q = wrapped.Results
	return nil
}

type UpdateMetadataRequest struct {
	PrimaryID string         `json:"primary_id"`
	Metadata  map[string]any `json:"metadata"`
}
