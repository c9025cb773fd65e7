package events

// IndexDocumentEvent asks the worker to push the current version of a stored
// document into its index.
type IndexDocumentEvent struct {
	IndexID    string `json:"index_id"`
	DocumentID string `json:"document_id"` // database id of the document row
	TraceID    string `json:"trace_id"`
}

type DeleteDocumentEvent struct {
	IndexID    string `json:"index_id"`
	DocumentID string `json:"document_id"`
	TraceID    string `json:"trace_id"`
}

// DocumentIndexedEvent is published once the remote task of an index or
// delete request has reached a terminal state.
type DocumentIndexedEvent struct {
	IndexID    string `json:"index_id"`
	DocumentID string `json:"document_id"`
	TaskID     string `json:"task_id"`
	Operation  string `json:"operation"` // "index" | "delete"
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// EventConfig holds the subjects of the worker. An empty DocumentIndexed
// subject disables publishing.
type EventConfig struct {
	IndexDocument   string
	DeleteDocument  string
	DocumentIndexed string
}
