package ulroy

import (
	"context"
	"errors"
	"net/http"
)

type DocumentService struct {
	c *Client
}

func (s *DocumentService) List(ctx context.Context, indexID string, opts ListOptions) (*DocumentList, error) {
	var out DocumentList
	err := s.c.do(ctx, request{
		op:     "documents.list",
		method: http.MethodGet,
		path:   []string{"indexes", indexID, "documents"},
		query:  pageQuery(opts),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *DocumentService) Get(ctx context.Context, indexID, docID string) (*Document, error) {
	if docID == "" {
		return nil, errors.New("ulroy: document id is required")
	}
	var out Document
	err := s.c.do(ctx, request{
		op:     "documents.get",
		method: http.MethodGet,
		path:   []string{"indexes", indexID, "documents", docID},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Index adds or replaces a document. The returned task tracks the indexing
// work on the server.
func (s *DocumentService) Index(ctx context.Context, indexID string, doc Document, opts ...WaitOption) (*TaskStatus, error) {
	if doc.ID == "" {
		return nil, errors.New("ulroy: document id is required")
	}
	return s.c.afterMutation(ctx, resolveWait(opts), func(ctx context.Context) (*TaskStatus, error) {
		var task TaskStatus
		err := s.c.do(ctx, request{
			op:     "documents.index",
			method: http.MethodPost,
			path:   []string{"indexes", indexID, "documents"},
			body:   doc,
		}, &task)
		return &task, err
	})
}

// Update replaces a stored document. doc.ID selects the document.
func (s *DocumentService) Update(ctx context.Context, indexID string, doc Document, opts ...WaitOption) (*TaskStatus, error) {
	if doc.ID == "" {
		return nil, errors.New("ulroy: document id is required")
	}
	return s.c.afterMutation(ctx, resolveWait(opts), func(ctx context.Context) (*TaskStatus, error) {
		var task TaskStatus
		err := s.c.do(ctx, request{
			op:     "documents.update",
			method: http.MethodPut,
			path:   []string{"indexes", indexID, "documents", doc.ID},
			body:   doc,
		}, &task)
		return &task, err
	})
}

func (s *DocumentService) Delete(ctx context.Context, indexID, docID string, opts ...WaitOption) (*TaskStatus, error) {
	if docID == "" {
		return nil, errors.New("ulroy: document id is required")
	}
	return s.c.afterMutation(ctx, resolveWait(opts), func(ctx context.Context) (*TaskStatus, error) {
		var task TaskStatus
		err := s.c.do(ctx, request{
			op:     "documents.delete",
			method: http.MethodDelete,
			path:   []string{"indexes", indexID, "documents", docID},
		}, &task)
		return &task, err
	})
}

// Search runs a text search over the documents of an index.
func (s *DocumentService) Search(ctx context.Context, indexID, query string, topK int) ([]QueryResult, error) {
	return s.query(ctx, "documents.search", []string{"indexes", indexID, "search"}, query, topK)
}

// Query searches within a single document.
func (s *DocumentService) Query(ctx context.Context, docID, query string, topK int) ([]QueryResult, error) {
	if docID == "" {
		return nil, errors.New("ulroy: document id is required")
	}
	return s.query(ctx, "documents.query", []string{"document", docID, "index", "query"}, query, topK)
}

// Research starts a research task over a document. Its results are read
// with QueryResearch once the task has completed.
func (s *DocumentService) Research(ctx context.Context, docID, query string, topK int, opts ...WaitOption) (*TaskStatus, error) {
	if docID == "" {
		return nil, errors.New("ulroy: document id is required")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return s.c.afterMutation(ctx, resolveWait(opts), func(ctx context.Context) (*TaskStatus, error) {
		var task TaskStatus
		err := s.c.do(ctx, request{
			op:     "documents.research",
			method: http.MethodPost,
			path:   []string{"document", docID, "research", "index"},
			body:   DocumentQuery{Query: query, K: topK},
		}, &task)
		return &task, err
	})
}

func (s *DocumentService) QueryResearch(ctx context.Context, docID, researchID, query string, topK int) ([]QueryResult, error) {
	if docID == "" || researchID == "" {
		return nil, errors.New("ulroy: document id and research id are required")
	}
	return s.query(ctx, "documents.query_research", []string{"document", docID, "research", researchID, "query"}, query, topK)
}

func (s *DocumentService) query(ctx context.Context, op string, path []string, query string, topK int) ([]QueryResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	var out queryResults
	err := s.c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   path,
		body:   DocumentQuery{Query: query, K: topK},
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}
