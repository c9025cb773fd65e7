package indexing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/typesense/typesense-go/typesense"
	"github.com/typesense/typesense-go/typesense/api"
	"github.com/typesense/typesense-go/typesense/api/pointer"
)

var _ Indexer = (*TypesenseIndexer)(nil)

// TypesenseIndexer mirrors documents into a Typesense collection per index.
// Collections are created on first use.
type TypesenseIndexer struct {
	client *typesense.Client
	prefix string
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	ensured map[string]bool
}

func NewTypesenseIndexer(apiKey, url, prefix string, logger *slog.Logger) *TypesenseIndexer {
	client := typesense.NewClient(
		typesense.WithServer(url),
		typesense.WithAPIKey(apiKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)
	return &TypesenseIndexer{
		client:  client,
		prefix:  prefix,
		logger:  logger,
		now:     time.Now,
		ensured: make(map[string]bool),
	}
}

// CollectionName maps an index id onto its mirror collection.
func (t *TypesenseIndexer) CollectionName(indexID string) string {
	return t.prefix + indexID
}

func collectionSchema(name string) *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: name,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "index_id", Type: "string", Facet: pointer.True()},
			{Name: "name", Type: "string", Optional: pointer.True()},
			{Name: "description", Type: "string", Optional: pointer.True()},
			{Name: "content", Type: "string"},
			{Name: "metadata_json", Type: "string", Optional: pointer.True(), Index: pointer.False()},
			{Name: "indexed_at", Type: "int64", Sort: pointer.True()},
		},
		DefaultSortingField: pointer.String("indexed_at"),
	}
}

// EnsureCollection creates the collection or, when it exists, adds fields
// missing from it. Existing field types are never changed.
func (t *TypesenseIndexer) EnsureCollection(ctx context.Context, indexID string) error {
	name := t.CollectionName(indexID)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ensured[name] {
		return nil
	}

	schema := collectionSchema(name)
	existing, err := t.client.Collection(name).Retrieve(ctx)
	switch {
	case isNotFound(err):
		t.logger.InfoContext(ctx, "Creating typesense collection", "collection", name)
		if _, err := t.client.Collections().Create(ctx, schema); err != nil {
			return fmt.Errorf("typesense create collection %s failed: %w", name, err)
		}
	case err != nil:
		return fmt.Errorf("typesense retrieve collection %s failed: %w", name, err)
	default:
		missing := missingFields(existing.Fields, schema.Fields)
		if len(missing) > 0 {
			t.logger.InfoContext(ctx, "Adding fields to typesense collection", "collection", name, "fields", len(missing))
			if _, err := t.client.Collection(name).Update(ctx, &api.CollectionUpdateSchema{Fields: missing}); err != nil {
				return fmt.Errorf("typesense update collection %s failed: %w", name, err)
			}
		}
	}

	t.ensured[name] = true
	return nil
}

func missingFields(have, want []api.Field) []api.Field {
	known := make(map[string]bool, len(have))
	for _, f := range have {
		known[f.Name] = true
	}
	var out []api.Field
	for _, f := range want {
		if !known[f.Name] {
			out = append(out, f)
		}
	}
	return out
}

func (t *TypesenseIndexer) Upsert(ctx context.Context, doc Document) (Outcome, error) {
	if err := t.EnsureCollection(ctx, doc.IndexID); err != nil {
		return Outcome{}, err
	}

	record := map[string]any{
		"id":          doc.ID,
		"index_id":    doc.IndexID,
		"name":        doc.Name,
		"description": doc.Description,
		"content":     doc.Content,
		"indexed_at":  t.now().Unix(),
	}
	if len(doc.Metadata) > 0 {
		raw, err := json.Marshal(doc.Metadata)
		if err != nil {
			return Outcome{}, fmt.Errorf("encode metadata: %w", err)
		}
		record["metadata_json"] = string(raw)
	}

	if _, err := t.client.Collection(t.CollectionName(doc.IndexID)).Documents().Upsert(ctx, record); err != nil {
		return Outcome{}, fmt.Errorf("typesense upsert failed: %w", err)
	}
	return Outcome{Status: "completed"}, nil
}

func (t *TypesenseIndexer) Delete(ctx context.Context, indexID, documentID string) (Outcome, error) {
	_, err := t.client.Collection(t.CollectionName(indexID)).Document(documentID).Delete(ctx)
	if err != nil && !isNotFound(err) {
		return Outcome{}, fmt.Errorf("typesense delete failed: %w", err)
	}
	return Outcome{Status: "completed"}, nil
}

func (t *TypesenseIndexer) HealthCheck(ctx context.Context) error {
	isHealthy, err := t.client.Health(ctx, 5*time.Second)
	if err != nil {
		return fmt.Errorf("typesense health check failed: %w", err)
	}
	if !isHealthy {
		return errors.New("typesense is unhealthy")
	}
	return nil
}

func (t *TypesenseIndexer) Close() error {
	return nil
}

func isNotFound(err error) bool {
	var httpErr *typesense.HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound
}
