package indexing

import (
	"context"
	"errors"
)

// ErrInFlight is returned when another delivery of the same event is
// submitting its task right now.
var ErrInFlight = errors.New("indexing: task submission already in progress")

// Document is the search-side view of a stored document.
type Document struct {
	ID          string         `json:"id"`
	IndexID     string         `json:"index_id"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Outcome describes the remote work behind an Upsert or Delete. Backends
// that apply writes synchronously leave TaskID empty.
type Outcome struct {
	TaskID string
	Status string
}

// Indexer is a search backend documents are pushed to.
type Indexer interface {
	// Upsert adds or replaces the document and returns once the backend has
	// applied it.
	Upsert(ctx context.Context, doc Document) (Outcome, error)

	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, indexID, documentID string) (Outcome, error)

	HealthCheck(ctx context.Context) error

	Close() error
}
