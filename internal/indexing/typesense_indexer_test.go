package indexing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ulroy-ai/ulroy-go/internal/testutil"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/typesense/typesense-go/typesense/api"
)

// fakeTypesense implements the handful of Typesense endpoints the mirror uses.
type fakeTypesense struct {
	mu          sync.Mutex
	collections map[string][]api.Field
	docs        map[string]map[string]map[string]any
	calls       map[string]int
}

func newFakeTypesense(t *testing.T) (*fakeTypesense, *httptest.Server) {
	f := &fakeTypesense{
		collections: make(map[string][]api.Field),
		docs:        make(map[string]map[string]map[string]any),
		calls:       make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			f.mu.Lock()
			f.calls[req.Method+" "+req.URL.Path]++
			f.mu.Unlock()
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Post("/collections", func(w http.ResponseWriter, req *http.Request) {
		var schema api.CollectionSchema
		_ = json.NewDecoder(req.Body).Decode(&schema)
		f.mu.Lock()
		f.collections[schema.Name] = schema.Fields
		f.docs[schema.Name] = make(map[string]map[string]any)
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, collectionResponse(schema.Name, schema.Fields))
	})
	r.Get("/collections/{name}", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		f.mu.Lock()
		fields, ok := f.collections[name]
		f.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
			return
		}
		writeJSON(w, http.StatusOK, collectionResponse(name, fields))
	})
	r.Patch("/collections/{name}", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		var update api.CollectionUpdateSchema
		_ = json.NewDecoder(req.Body).Decode(&update)
		f.mu.Lock()
		f.collections[name] = append(f.collections[name], update.Fields...)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"fields": update.Fields})
	})
	r.Post("/collections/{name}/documents", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		raw, _ := io.ReadAll(req.Body)
		var doc map[string]any
		_ = json.Unmarshal(raw, &doc)
		f.mu.Lock()
		f.docs[name][doc["id"].(string)] = doc
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, doc)
	})
	r.Delete("/collections/{name}/documents/{id}", func(w http.ResponseWriter, req *http.Request) {
		name, id := chi.URLParam(req, "name"), chi.URLParam(req, "id")
		f.mu.Lock()
		doc, ok := f.docs[name][id]
		delete(f.docs[name], id)
		f.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "Could not find a document with id: " + id})
			return
		}
		writeJSON(w, http.StatusOK, doc)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return f, srv
}

func collectionResponse(name string, fields []api.Field) map[string]any {
	return map[string]any{
		"name":          name,
		"fields":        fields,
		"num_documents": 0,
		"created_at":    time.Now().Unix(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestTypesenseIndexer_CreatesCollectionOnce(t *testing.T) {
	fake, srv := newFakeTypesense(t)
	ts := NewTypesenseIndexer("xyz", srv.URL, "ulroy_", testutil.NewTestLogger())
	ctx := context.Background()

	for _, id := range []string{"doc-1", "doc-2"} {
		_, err := ts.Upsert(ctx, Document{ID: id, IndexID: "idx-1", Content: "hello", Metadata: map[string]any{"lang": "en"}})
		require.NoError(t, err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, 1, fake.calls["POST /collections"])
	assert.Equal(t, 1, fake.calls["GET /collections/ulroy_idx-1"])
	require.Len(t, fake.docs["ulroy_idx-1"], 2)
	assert.Equal(t, `{"lang":"en"}`, fake.docs["ulroy_idx-1"]["doc-1"]["metadata_json"])
	assert.Equal(t, "idx-1", fake.docs["ulroy_idx-1"]["doc-1"]["index_id"])
}

func TestTypesenseIndexer_AddsMissingFields(t *testing.T) {
	fake, srv := newFakeTypesense(t)
	fake.collections["ulroy_idx-1"] = []api.Field{{Name: "id", Type: "string"}, {Name: "content", Type: "string"}}
	fake.docs["ulroy_idx-1"] = make(map[string]map[string]any)
	ts := NewTypesenseIndexer("xyz", srv.URL, "ulroy_", testutil.NewTestLogger())

	require.NoError(t, ts.EnsureCollection(context.Background(), "idx-1"))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, 1, fake.calls["PATCH /collections/ulroy_idx-1"])
	assert.Zero(t, fake.calls["POST /collections"])
	assert.Len(t, fake.collections["ulroy_idx-1"], len(collectionSchema("x").Fields))
}

func TestTypesenseIndexer_DeleteMissingIsNotAnError(t *testing.T) {
	_, srv := newFakeTypesense(t)
	ts := NewTypesenseIndexer("xyz", srv.URL, "ulroy_", testutil.NewTestLogger())

	_, err := ts.Delete(context.Background(), "idx-1", "never-indexed")

	assert.NoError(t, err)
}

func TestTypesenseIndexer_HealthCheck(t *testing.T) {
	_, srv := newFakeTypesense(t)
	ts := NewTypesenseIndexer("xyz", srv.URL, "ulroy_", testutil.NewTestLogger())

	assert.NoError(t, ts.HealthCheck(context.Background()))
}

func TestMissingFields(t *testing.T) {
	have := []api.Field{{Name: "id"}, {Name: "content"}}
	want := []api.Field{{Name: "id"}, {Name: "content"}, {Name: "name"}}

	assert.Equal(t, []api.Field{{Name: "name"}}, missingFields(have, want))
	assert.Empty(t, missingFields(want, want))
}
