// Package events is the item lifecycle event bus: Watermill over a
// PostgreSQL database that is separate from the item store, so it works with
// every document backend.
//
// The API opens the bus in ModePublisher. Publish writes to a durable
// forwarder queue and a background forwarder moves envelopes to their target
// topics, so an event accepted by Publish survives a crash.
//
// The worker opens the bus in ModeSubscriber. Handlers run on a Watermill
// router inside a consumer group: each message is handled by one worker
// instance. Failed handlers are retried with exponential backoff; a message
// that still fails is moved to the poison topic and acknowledged.
package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	watermillsql "github.com/ThreeDotsLabs/watermill-sql/v3/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/ghuser/secondchance/pkg/config"
	"github.com/ghuser/secondchance/pkg/logger"
)

// Mode selects which side of the bus a process opens.
type Mode int

const (
	// ModePublisher publishes through the forwarder queue.
	ModePublisher Mode = iota + 1
	// ModeSubscriber consumes topics through a router.
	ModeSubscriber
)

const forwarderTopic = "_forwarder_queue"

// Options configures Open.
type Options struct {
	DatabaseURL   string
	Mode          Mode
	ConsumerGroup string
	// PoisonTopic receives messages whose handler kept failing.
	PoisonTopic string
	// MaxRetries is the number of retries after the first failed attempt.
	MaxRetries   int
	RetryDelay   time.Duration
	CloseTimeout time.Duration
}

// OptionsFromConfig derives bus options from cfg.
func OptionsFromConfig(cfg *config.Config, mode Mode) Options {
	return Options{
		DatabaseURL:   cfg.EventsDatabaseURL,
		Mode:          mode,
		ConsumerGroup: cfg.ServiceName + "-consumer",
		PoisonTopic:   cfg.ServiceName + ".poison",
		MaxRetries:    3,
		RetryDelay:    time.Second,
		CloseTimeout:  30 * time.Second,
	}
}

// Publisher is the publishing side of the bus, as used by application services.
type Publisher interface {
	Publish(ctx context.Context, topic string, msgs ...*message.Message) error
}

// EventBus is a Watermill SQL bus opened in one Mode.
type EventBus struct {
	opts Options
	db   *sql.DB
	log  logger.Logger

	sqlPub    *watermillsql.Publisher
	publisher message.Publisher

	subscriber message.Subscriber
	router     *message.Router

	fwd *forwarder.Forwarder
	wg  sync.WaitGroup
}

// Open connects to opts.DatabaseURL. Watermill creates its tables on first use.
func Open(opts Options, log logger.Logger) (*EventBus, error) {
	if opts.DatabaseURL == "" {
		return nil, errors.New("events: database url is empty")
	}
	if opts.Mode != ModePublisher && opts.Mode != ModeSubscriber {
		return nil, fmt.Errorf("events: unknown mode %d", opts.Mode)
	}

	db, err := sql.Open("pgx", opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("events: open db: %w", err)
	}
	wlog := newLogAdapter(log)

	sqlPub, err := newSQLPublisher(db, wlog)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	b := &EventBus{opts: opts, db: db, log: log, sqlPub: sqlPub, publisher: sqlPub}

	switch opts.Mode {
	case ModePublisher:
		b.publisher = forwarder.NewPublisher(sqlPub, forwarder.PublisherConfig{ForwarderTopic: forwarderTopic})
	case ModeSubscriber:
		sub, err := newSQLSubscriber(db, opts.ConsumerGroup, wlog)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.subscriber = sub
		router, err := newRouter(sub, sqlPub, opts, log)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.router = router
	}
	return b, nil
}

func newSQLPublisher(db *sql.DB, wlog *logAdapter) (*watermillsql.Publisher, error) {
	pub, err := watermillsql.NewPublisher(db, watermillsql.PublisherConfig{
		SchemaAdapter:        watermillsql.DefaultPostgreSQLSchema{},
		AutoInitializeSchema: true,
	}, wlog)
	if err != nil {
		return nil, fmt.Errorf("events: new publisher: %w", err)
	}
	return pub, nil
}

func newSQLSubscriber(db *sql.DB, group string, wlog *logAdapter) (*watermillsql.Subscriber, error) {
	sub, err := watermillsql.NewSubscriber(db, watermillsql.SubscriberConfig{
		SchemaAdapter:    watermillsql.DefaultPostgreSQLSchema{},
		OffsetsAdapter:   watermillsql.DefaultPostgreSQLOffsetsAdapter{},
		InitializeSchema: true,
		ConsumerGroup:    group,
	}, wlog)
	if err != nil {
		return nil, fmt.Errorf("events: new subscriber: %w", err)
	}
	return sub, nil
}

// Publish sends msgs to topic with the trace context of ctx in their metadata.
func (b *EventBus) Publish(ctx context.Context, topic string, msgs ...*message.Message) error {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for _, msg := range msgs {
		for k, v := range carrier {
			msg.Metadata.Set(k, v)
		}
	}
	if err := b.publisher.Publish(topic, msgs...); err != nil { //nolint:contextcheck
		return fmt.Errorf("events: publish to %s: %w", topic, err)
	}
	return nil
}

// StartForwarder runs the forwarder that drains the durable queue into the
// target topics, and returns once it is running. ModePublisher only.
func (b *EventBus) StartForwarder(ctx context.Context) error {
	if b.opts.Mode != ModePublisher {
		return errors.New("events: forwarder requires ModePublisher")
	}
	if b.fwd != nil {
		return errors.New("events: forwarder already started")
	}

	wlog := newLogAdapter(b.log)
	sub, err := newSQLSubscriber(b.db, "forwarder-consumer", wlog)
	if err != nil {
		return err
	}
	fwd, err := forwarder.NewForwarder(sub, b.sqlPub, wlog, forwarder.Config{ForwarderTopic: forwarderTopic})
	if err != nil {
		_ = sub.Close()
		return fmt.Errorf("events: create forwarder: %w", err)
	}
	b.fwd = fwd

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := fwd.Run(ctx); err != nil {
			b.log.ErrorContext(ctx, "events: forwarder stopped", "error", err)
		}
	}()

	select {
	case <-fwd.Running():
		b.log.InfoContext(ctx, "events: forwarder running")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("events: waiting for forwarder: %w", ctx.Err())
	}
}

// Subscribe registers handler for topic. Handlers must be registered before
// Run and should be idempotent. ModeSubscriber only.
func (b *EventBus) Subscribe(topic string, handler HandlerFunc) error {
	if b.router == nil {
		return errors.New("events: subscribe requires ModeSubscriber")
	}
	addHandler(b.router, b.subscriber, topic, handler)
	return nil
}

// Run processes subscribed topics until ctx is cancelled. ModeSubscriber only.
func (b *EventBus) Run(ctx context.Context) error {
	if b.router == nil {
		return errors.New("events: run requires ModeSubscriber")
	}
	return b.router.Run(ctx)
}

// Ping checks the bus database.
func (b *EventBus) Ping(ctx context.Context) error {
	if err := b.db.PingContext(ctx); err != nil {
		return fmt.Errorf("events: ping db: %w", err)
	}
	return nil
}

// Close stops the router (waiting for in-flight handlers up to
// CloseTimeout) and the forwarder, then releases the publisher and database.
func (b *EventBus) Close() error {
	var errs []error
	if b.router != nil {
		errs = append(errs, b.router.Close())
	}
	if b.subscriber != nil {
		errs = append(errs, b.subscriber.Close())
	}
	if b.fwd != nil {
		errs = append(errs, b.fwd.Close())
	}
	b.wg.Wait()
	if b.sqlPub != nil {
		errs = append(errs, b.sqlPub.Close())
	}
	errs = append(errs, b.db.Close())
	return errors.Join(errs...)
}
