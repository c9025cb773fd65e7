package events

import "context"

// Handler processes one message. Returning nil acks it; an error naks it so
// JetStream redelivers it later.
type Handler func(ctx context.Context, payload []byte) error

type Subscription struct {
	Unsubscribe func() error
}

type Bus interface {
	Subscribe(subject string, group string, handler Handler) (Subscription, error)
	Publish(ctx context.Context, subject string, data []byte, msgID string) error
	Close() error
}
