package indexing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ulroy-ai/ulroy-go"
	"github.com/ulroy-ai/ulroy-go/internal/database/postgresql"
	"github.com/ulroy-ai/ulroy-go/internal/events"
	"github.com/ulroy-ai/ulroy-go/internal/storage"
	"github.com/ulroy-ai/ulroy-go/internal/telemetry"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	opIndex  = "index"
	opDelete = "delete"

	DefaultMaxContentBytes = 8 << 20
)

var errNoBlobStore = errors.New("indexing: document body is in object storage but none is configured")

type EventPublisher interface {
	PublishDocumentIndexed(ctx context.Context, evt events.DocumentIndexedEvent) error
}

// Service turns document events into index writes. Its handlers return nil
// for outcomes a redelivery cannot change and an error for everything worth
// retrying.
type Service struct {
	primary   Indexer
	mirror    Indexer
	repo      postgresql.Querier
	blobs     storage.Provider
	bucket    storage.Bucket
	maxBytes  int64
	publisher EventPublisher
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

type ServiceOption func(*Service)

// WithMirror adds a secondary index that receives every successful write.
// Mirror failures are logged and counted but never fail the event.
func WithMirror(mirror Indexer) ServiceOption {
	return func(s *Service) { s.mirror = mirror }
}

// WithBlobStore enables reading document bodies referenced by content_key.
func WithBlobStore(p storage.Provider, bucket storage.Bucket, maxBytes int64) ServiceOption {
	return func(s *Service) {
		s.blobs = p
		s.bucket = bucket
		if maxBytes > 0 {
			s.maxBytes = maxBytes
		}
	}
}

func NewService(primary Indexer, repo postgresql.Querier, publisher EventPublisher, metrics *telemetry.Metrics, logger *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		primary:   primary,
		repo:      repo,
		bucket:    storage.BucketDocuments,
		maxBytes:  DefaultMaxContentBytes,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) IndexDocument(ctx context.Context, evt events.IndexDocumentEvent) error {
	start := time.Now()
	log := s.logger.With("index_id", evt.IndexID, "document_id", evt.DocumentID, "trace_id", evt.TraceID)
	log.InfoContext(ctx, "Indexing document")

	var id pgtype.UUID
	if err := id.Scan(evt.DocumentID); err != nil {
		log.ErrorContext(ctx, "Invalid UUID format, discarding")
		s.metrics.ObserveTask(opIndex, telemetry.OutcomeDropped, time.Since(start))
		return nil
	}

	row, err := s.repo.GetDocumentByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.WarnContext(ctx, "Document not found in DB (might be deleted), skipping index")
			s.metrics.ObserveTask(opIndex, telemetry.OutcomeDropped, time.Since(start))
			return nil
		}
		log.ErrorContext(ctx, "Failed to fetch document from DB", "error", err)
		return fmt.Errorf("load document %s: %w", evt.DocumentID, err)
	}

	indexID := row.IndexID
	if indexID == "" {
		indexID = evt.IndexID
	}

	content, err := s.content(ctx, row)
	if err != nil {
		return s.fail(ctx, log, opIndex, id, indexID, evt.DocumentID, Outcome{}, err, start)
	}

	doc := Document{
		ID:          evt.DocumentID,
		IndexID:     indexID,
		Name:        row.Name,
		Description: row.Description.String,
		Content:     content,
	}
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &doc.Metadata); err != nil {
			log.WarnContext(ctx, "Ignoring unreadable document metadata", "error", err)
		}
	}

	out, err := s.primary.Upsert(ctx, doc)
	if err != nil {
		return s.fail(ctx, log, opIndex, id, indexID, evt.DocumentID, out, err, start)
	}

	if s.mirror != nil {
		if _, err := s.mirror.Upsert(ctx, doc); err != nil {
			log.WarnContext(ctx, "Mirror upsert failed", "error", err)
			s.metrics.MirrorError()
		}
	}

	if err := s.repo.MarkDocumentIndexed(ctx, postgresql.MarkDocumentIndexedParams{
		ID:     id,
		TaskID: text(out.TaskID),
	}); err != nil {
		log.ErrorContext(ctx, "Failed to mark document as indexed", "error", err)
		return fmt.Errorf("mark document %s indexed: %w", evt.DocumentID, err)
	}

	s.publish(ctx, log, events.DocumentIndexedEvent{
		IndexID:    indexID,
		DocumentID: evt.DocumentID,
		TaskID:     out.TaskID,
		Operation:  opIndex,
		Status:     out.Status,
	})
	s.metrics.ObserveTask(opIndex, telemetry.OutcomeIndexed, time.Since(start))
	log.InfoContext(ctx, "Document indexed", "task_id", out.TaskID, "duration", time.Since(start))
	return nil
}

func (s *Service) DeleteDocument(ctx context.Context, evt events.DeleteDocumentEvent) error {
	start := time.Now()
	log := s.logger.With("index_id", evt.IndexID, "document_id", evt.DocumentID, "trace_id", evt.TraceID)
	log.InfoContext(ctx, "Deleting document from index")

	// Deletions may reference rows that are already gone, so the id is only
	// needed for bookkeeping.
	var id pgtype.UUID
	_ = id.Scan(evt.DocumentID)

	out, err := s.primary.Delete(ctx, evt.IndexID, evt.DocumentID)
	if err != nil {
		return s.fail(ctx, log, opDelete, id, evt.IndexID, evt.DocumentID, out, err, start)
	}

	if s.mirror != nil {
		if _, err := s.mirror.Delete(ctx, evt.IndexID, evt.DocumentID); err != nil {
			log.WarnContext(ctx, "Mirror delete failed", "error", err)
			s.metrics.MirrorError()
		}
	}

	if id.Valid {
		if err := s.repo.MarkDocumentDeleted(ctx, postgresql.MarkDocumentDeletedParams{
			ID:     id,
			TaskID: text(out.TaskID),
		}); err != nil {
			log.ErrorContext(ctx, "Failed to mark document as deleted", "error", err)
			return fmt.Errorf("mark document %s deleted: %w", evt.DocumentID, err)
		}
	}

	s.publish(ctx, log, events.DocumentIndexedEvent{
		IndexID:    evt.IndexID,
		DocumentID: evt.DocumentID,
		TaskID:     out.TaskID,
		Operation:  opDelete,
		Status:     out.Status,
	})
	s.metrics.ObserveTask(opDelete, telemetry.OutcomeDeleted, time.Since(start))
	return nil
}

// HealthCheck reports the primary backend only; a broken mirror does not
// stop the worker from doing its job.
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.primary.HealthCheck(ctx)
}

func (s *Service) content(ctx context.Context, row postgresql.Document) (string, error) {
	if !row.ContentKey.Valid || row.ContentKey.String == "" {
		return row.Content.String, nil
	}
	if s.blobs == nil {
		return "", errNoBlobStore
	}
	data, err := storage.ReadAll(ctx, s.blobs, s.bucket, row.ContentKey.String, s.maxBytes)
	if err != nil {
		return "", fmt.Errorf("read document body %s: %w", row.ContentKey.String, err)
	}
	return string(data), nil
}

// fail acks permanent failures after recording them and returns transient
// ones for redelivery.
func (s *Service) fail(ctx context.Context, log *slog.Logger, op string, id pgtype.UUID, indexID, documentID string, out Outcome, err error, start time.Time) error {
	if !IsPermanent(err) {
		outcome := telemetry.OutcomeRetry
		if errors.Is(err, ulroy.ErrTaskTimeout) {
			outcome = telemetry.OutcomeTimeout
		}
		log.WarnContext(ctx, "Indexing attempt failed, will retry", "operation", op, "task_id", out.TaskID, "error", err)
		s.metrics.ObserveTask(op, outcome, time.Since(start))
		return err
	}

	detail := failureDetail(err)
	log.ErrorContext(ctx, "Indexing failed permanently", "operation", op, "task_id", out.TaskID, "error", err)

	if id.Valid {
		if mErr := s.repo.MarkDocumentIndexFailed(ctx, postgresql.MarkDocumentIndexFailedParams{
			ID:     id,
			TaskID: text(out.TaskID),
			Error:  text(detail),
		}); mErr != nil {
			return fmt.Errorf("mark document %s failed: %w", documentID, mErr)
		}
	}

	s.publish(ctx, log, events.DocumentIndexedEvent{
		IndexID:    indexID,
		DocumentID: documentID,
		TaskID:     out.TaskID,
		Operation:  op,
		Status:     string(ulroy.TaskFailed),
		Error:      detail,
	})
	s.metrics.ObserveTask(op, telemetry.OutcomeFailed, time.Since(start))
	return nil
}

func (s *Service) publish(ctx context.Context, log *slog.Logger, evt events.DocumentIndexedEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishDocumentIndexed(ctx, evt); err != nil {
		log.WarnContext(ctx, "Failed to publish DocumentIndexed event", "error", err)
	}
}

// IsPermanent reports whether retrying err can never succeed. Auth errors,
// rate limiting and timeouts stay transient.
func IsPermanent(err error) bool {
	switch {
	case errors.Is(err, ulroy.ErrTaskFailed),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrTooLarge),
		errors.Is(err, errNoBlobStore):
		return true
	}

	var apiErr *ulroy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusRequestTimeout, http.StatusTooManyRequests:
			return false
		}
		return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
	}
	return false
}

func failureDetail(err error) string {
	var failed *ulroy.TaskFailedError
	if errors.As(err, &failed) {
		return failed.Detail
	}
	var apiErr *ulroy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func text(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
