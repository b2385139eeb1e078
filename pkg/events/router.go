package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/ghuser/secondchance/pkg/logger"
)

// HandlerFunc processes one message. ctx carries the publisher's trace.
type HandlerFunc func(ctx context.Context, msg *message.Message) error

// newRouter builds a router whose handlers run inside, outermost first:
// trace extraction, the poison queue, retry with backoff, panic recovery.
func newRouter(sub message.Subscriber, poisonPub message.Publisher, opts Options, log logger.Logger) (*message.Router, error) {
	wlog := newLogAdapter(log)

	closeTimeout := opts.CloseTimeout
	if closeTimeout <= 0 {
		closeTimeout = 30 * time.Second
	}
	r, err := message.NewRouter(message.RouterConfig{CloseTimeout: closeTimeout}, wlog)
	if err != nil {
		return nil, fmt.Errorf("events: new router: %w", err)
	}

	poison, err := middleware.PoisonQueue(poisonPub, opts.PoisonTopic)
	if err != nil {
		return nil, fmt.Errorf("events: poison queue: %w", err)
	}
	r.AddMiddleware(
		traceContext,
		poison,
		middleware.Retry{
			MaxRetries:      opts.MaxRetries,
			InitialInterval: opts.RetryDelay,
			Multiplier:      2,
			Logger:          wlog,
		}.Middleware,
		middleware.Recoverer,
	)
	return r, nil
}

func addHandler(r *message.Router, sub message.Subscriber, topic string, handler HandlerFunc) {
	r.AddNoPublisherHandler(topic+"-handler", topic, sub, func(msg *message.Message) error {
		return handler(msg.Context(), msg)
	})
}

// traceContext restores the publisher's OTel trace from message metadata.
func traceContext(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		carrier := propagation.MapCarrier{}
		for k, v := range msg.Metadata {
			carrier[k] = v
		}
		msg.SetContext(otel.GetTextMapPropagator().Extract(msg.Context(), carrier))
		return h(msg)
	}
}
