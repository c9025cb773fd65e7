package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var _ Bus = (*NATSBus)(nil)

type NATSBus struct {
	nats           *nats.Conn
	js             nats.JetStreamContext
	log            *slog.Logger
	handlerTimeout time.Duration
	closing        atomic.Bool

	drain     func() error
	closed    chan struct{}
	closeOnce sync.Once
}

// NewNATSBus connects to NATS and binds a JetStream context. handlerTimeout
// bounds a single handler run and must cover the longest task wait.
func NewNATSBus(addr, name string, handlerTimeout time.Duration, logger *slog.Logger) (*NATSBus, error) {
	b := &NATSBus{log: logger, handlerTimeout: handlerTimeout, closed: make(chan struct{})}

	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(3 * time.Second),
		// Draining waits for running handlers, which may sit in a task wait.
		nats.DrainTimeout(handlerTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected! Buffering messages...", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected successfully!", "url", nc.ConnectedUrl())
		}),
		// A permanently closed connection (auth failure, drain timeout) leaves the
		// worker useless; exit so the orchestrator restarts it.
		nats.ClosedHandler(func(nc *nats.Conn) {
			if b.closing.Load() {
				b.markClosed()
				return
			}
			logger.Error("NATS connection closed permanently. Exiting process.")
			os.Exit(1)
		}),
	}
	nc, err := nats.Connect(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("create nats client: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("bind jetstream: %w", err)
	}

	b.nats = nc
	b.js = js
	b.drain = nc.Drain
	return b, nil
}

func (b *NATSBus) Subscribe(subject string, group string, handler Handler) (Subscription, error) {
	b.log.Info("Subscribing to subject", "subject", subject, "queue", group)

	opts := []nats.SubOpt{
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.DeliverAll(),
		nats.MaxAckPending(10),
		nats.AckWait(b.handlerTimeout + 30*time.Second),
	}

	sub, err := b.js.QueueSubscribe(subject, group, func(msg *nats.Msg) {
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), propagation.HeaderCarrier(http.Header(msg.Header)))
		ctx, cancel := context.WithTimeout(ctx, b.handlerTimeout)
		defer cancel()

		if err := handler(ctx, msg.Data); err != nil {
			b.log.ErrorContext(ctx, "Handler failed, Nacking message", "subject", subject, "error", err)
			if err := msg.Nak(); err != nil {
				b.log.ErrorContext(ctx, "Failed to Nak message", "subject", subject, "error", err)
			}
			return
		}

		if err := msg.Ack(); err != nil {
			b.log.ErrorContext(ctx, "Failed to Ack message", "subject", subject, "error", err)
		}
	}, opts...)
	if err != nil {
		return Subscription{}, fmt.Errorf("subscribe to subject %s: %w", subject, err)
	}

	return Subscription{
		Unsubscribe: func() error {
			return sub.Unsubscribe()
		},
	}, nil
}

func (b *NATSBus) Publish(ctx context.Context, subject string, data []byte, msgID string) error {
	b.log.DebugContext(ctx, "Publishing event", "subject", subject, "data_size", len(data))

	msg := nats.NewMsg(subject)
	msg.Data = data
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(http.Header(msg.Header)))

	_, err := b.js.PublishMsg(msg, nats.MsgId(msgID), nats.Context(ctx))
	return err
}

// Connected reports whether the connection is currently usable.
func (b *NATSBus) Connected() bool { return b.nats.IsConnected() }

// Close drains the connection and blocks until it is closed, so handlers
// still running have acked or nacked their messages when it returns. The
// drain is bounded by the handler timeout.
func (b *NATSBus) Close() error {
	b.log.Info("Draining NATS connection")
	b.closing.Store(true)
	if err := b.drain(); err != nil {
		return fmt.Errorf("drain nats: %w", err)
	}

	timer := time.NewTimer(b.handlerTimeout + 5*time.Second)
	defer timer.Stop()
	select {
	case <-b.closed:
		return nil
	case <-timer.C:
		return errors.New("nats drain did not finish in time")
	}
}

func (b *NATSBus) markClosed() {
	b.closeOnce.Do(func() { close(b.closed) })
}
