package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

type Publisher struct {
	bus    Bus
	config *EventConfig
	logger *slog.Logger
}

func NewPublisher(bus Bus, config *EventConfig, logger *slog.Logger) *Publisher {
	return &Publisher{
		bus:    bus,
		config: config,
		logger: logger,
	}
}

// PublishDocumentIndexed announces the outcome of a task. The message id makes
// JetStream drop duplicates when the same task outcome is published twice.
func (p *Publisher) PublishDocumentIndexed(ctx context.Context, evt DocumentIndexedEvent) error {
	if p.config.DocumentIndexed == "" {
		return nil
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal DocumentIndexedEvent: %w", err)
	}

	p.logger.InfoContext(ctx, "Raising DocumentIndexed event",
		"index_id", evt.IndexID,
		"document_id", evt.DocumentID,
		"task_id", evt.TaskID,
		"status", evt.Status,
	)

	msgID := fmt.Sprintf("indexed.%s.%s.%s", evt.IndexID, evt.DocumentID, evt.TaskID)
	if err := p.bus.Publish(ctx, p.config.DocumentIndexed, data, msgID); err != nil {
		return fmt.Errorf("publish DocumentIndexedEvent: %w", err)
	}
	return nil
}
