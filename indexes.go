package ulroy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type IndexService struct {
	c *Client
}

func (s *IndexService) List(ctx context.Context, opts ListOptions) (*IndexList, error) {
	var out IndexList
	err := s.c.do(ctx, request{
		op:     "indexes.list",
		method: http.MethodGet,
		path:   []string{"indexes"},
		query:  pageQuery(opts),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *IndexService) Get(ctx context.Context, indexID string) (*Index, error) {
	if indexID == "" {
		return nil, errors.New("ulroy: index id is required")
	}
	var out Index
	err := s.c.do(ctx, request{
		op:     "indexes.get",
		method: http.MethodGet,
		path:   []string{"indexes", indexID},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *IndexService) Create(ctx context.Context, req CreateIndexRequest) (*Index, error) {
	if req.Name == "" {
		return nil, errors.New("ulroy: index name is required")
	}
	var out Index
	err := s.c.do(ctx, request{
		op:     "indexes.create",
		method: http.MethodPost,
		path:   []string{"indexes"},
		body:   req,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *IndexService) Delete(ctx context.Context, indexID string) (*DeleteResponse, error) {
	if indexID == "" {
		return nil, errors.New("ulroy: index id is required")
	}
	var out DeleteResponse
	err := s.c.do(ctx, request{
		op:     "indexes.delete",
		method: http.MethodDelete,
		path:   []string{"indexes", indexID},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Query runs a text query and returns the topK best matches. topK <= 0 uses
// DefaultTopK.
func (s *IndexService) Query(ctx context.Context, indexID, text string, topK int) ([]QueryResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	var out queryResults
	err := s.c.do(ctx, request{
		op:     "indexes.query",
		method: http.MethodPost,
		path:   []string{"indexes", indexID, "query"},
		body:   QueryRequest{Text: text, K: topK},
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *IndexService) HybridSearch(ctx context.Context, indexID string, req HybridSearchRequest) ([]QueryResult, error) {
	if req.K <= 0 {
		req.K = DefaultTopK
	}
	var out queryResults
	err := s.c.do(ctx, request{
		op:     "indexes.hybrid_search",
		method: http.MethodPost,
		path:   []string{"indexes", indexID, "hybrid-search"},
		body:   req,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateMetadata replaces the metadata of a single entry of the index.
func (s *IndexService) UpdateMetadata(ctx context.Context, indexID, primaryID string, metadata map[string]any) (*IndexEntry, error) {
	var out IndexEntry
	err := s.c.do(ctx, request{
		op:     "indexes.update_metadata",
		method: http.MethodPost,
		path:   []string{"indexes", indexID, "update"},
		body:   UpdateMetadataRequest{PrimaryID: primaryID, Metadata: metadata},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *IndexService) ListEntries(ctx context.Context, indexID string, opts ListOptions, includeDeleted bool) (*EntryList, error) {
	q := pageQuery(ListOptions{Page: opts.Page, PerPage: opts.PerPage})
	q.Set("include_deleted", fmt.Sprint(includeDeleted))

	var out EntryList
	err := s.c.do(ctx, request{
		op:     "indexes.list_entries",
		method: http.MethodGet,
		path:   []string{"indexes", indexID, "entries"},
		query:  q,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteEntries removes the given document ids from the index.
func (s *IndexService) DeleteEntries(ctx context.Context, indexID string, ids []string, opts ...WaitOption) (*TaskStatus, error) {
	if len(ids) == 0 {
		return nil, errors.New("ulroy: at least one entry id is required")
	}
	return s.c.afterMutation(ctx, resolveWait(opts), func(ctx context.Context) (*TaskStatus, error) {
		var task TaskStatus
		err := s.c.do(ctx, request{
			op:     "indexes.delete_entries",
			method: http.MethodPost,
			path:   []string{"indexes", indexID, "delete"},
			body:   map[string][]string{"ids": ids},
		}, &task)
		return &task, err
	})
}

// Purge deletes the index together with all of its data and metadata.
func (s *IndexService) Purge(ctx context.Context, indexID string, opts ...WaitOption) (*TaskStatus, error) {
	return s.c.afterMutation(ctx, resolveWait(opts), func(ctx context.Context) (*TaskStatus, error) {
		var task TaskStatus
		err := s.c.do(ctx, request{
			op:     "indexes.purge",
			method: http.MethodPost,
			path:   []string{"indexes", indexID, "delete-complete"},
		}, &task)
		return &task, err
	})
}
