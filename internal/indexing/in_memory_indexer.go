package indexing

import (
	"context"
	"sync"
)

var _ Indexer = (*InMemoryIndexer)(nil)

// InMemoryIndexer is a thread-safe fake keyed by index id and document id.
type InMemoryIndexer struct {
	mu    sync.RWMutex
	store map[string]map[string]Document

	// UpsertErr and DeleteErr, when set, are returned instead of applying
	// the write.
	UpsertErr error
	DeleteErr error
}

func NewInMemoryIndexer() *InMemoryIndexer {
	return &InMemoryIndexer{
		store: make(map[string]map[string]Document),
	}
}

func (i *InMemoryIndexer) Upsert(_ context.Context, doc Document) (Outcome, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.UpsertErr != nil {
		return Outcome{}, i.UpsertErr
	}
	if i.store[doc.IndexID] == nil {
		i.store[doc.IndexID] = make(map[string]Document)
	}
	i.store[doc.IndexID][doc.ID] = doc
	return Outcome{Status: "completed"}, nil
}

func (i *InMemoryIndexer) Delete(_ context.Context, indexID, documentID string) (Outcome, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.DeleteErr != nil {
		return Outcome{}, i.DeleteErr
	}
	if bucket, ok := i.store[indexID]; ok {
		delete(bucket, documentID)
	}
	return Outcome{Status: "completed"}, nil
}

func (i *InMemoryIndexer) HealthCheck(context.Context) error { return nil }

func (i *InMemoryIndexer) Close() error { return nil }

// Get lets tests inspect the stored state.
func (i *InMemoryIndexer) Get(indexID, documentID string) (Document, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	doc, ok := i.store[indexID][documentID]
	return doc, ok
}

func (i *InMemoryIndexer) Count(indexID string) int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.store[indexID])
}
