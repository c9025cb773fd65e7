package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
)

const queue = "indexer-worker"

type EventReader struct {
	bus    Bus
	config *EventConfig
	logger *slog.Logger
}

func NewEventReader(bus Bus, config *EventConfig, logger *slog.Logger) *EventReader {
	return &EventReader{
		bus:    bus,
		config: config,
		logger: logger,
	}
}

func (r *EventReader) SubscribeToIndexDocumentEvents(handler func(ctx context.Context, evt IndexDocumentEvent) error) error {
	return subscribe(r, r.config.IndexDocument, "IndexDocument", func(evt IndexDocumentEvent) error {
		if evt.IndexID == "" || evt.DocumentID == "" {
			return errors.New("index_id and document_id are required")
		}
		return nil
	}, handler)
}

func (r *EventReader) SubscribeToDeleteDocumentEvents(handler func(ctx context.Context, evt DeleteDocumentEvent) error) error {
	return subscribe(r, r.config.DeleteDocument, "DeleteDocument", func(evt DeleteDocumentEvent) error {
		if evt.IndexID == "" || evt.DocumentID == "" {
			return errors.New("index_id and document_id are required")
		}
		return nil
	}, handler)
}

func subscribe[T any](r *EventReader, subject, name string, validate func(T) error, handler func(ctx context.Context, evt T) error) error {
	r.logger.Info("Subscribing to events", "event", name, "subject", subject)

	_, err := r.bus.Subscribe(subject, queue, func(ctx context.Context, payload []byte) error {
		var evt T
		if err := json.Unmarshal(payload, &evt); err != nil {
			// Acked: redelivering a malformed payload can never succeed.
			r.logger.ErrorContext(ctx, "Discarding malformed JSON event", "subject", subject, "error", err)
			return nil
		}
		if err := validate(evt); err != nil {
			r.logger.ErrorContext(ctx, "Discarding invalid event", "subject", subject, "error", err)
			return nil
		}
		return handler(ctx, evt)
	})

	return err
}
