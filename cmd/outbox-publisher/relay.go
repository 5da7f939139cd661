package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxIdleBackoff     = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRows interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// sendFunc publishes one message to topic and waits for the server id.
type sendFunc func(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error)

// RelayParams wire the order event relay.
type RelayParams struct {
	Outbox config.OutboxConfig
	Logger *logger.Logger
	DB     txRunner
	Topics topicSource
	Rows   outboxRows
	Events eventResolver
	Send   sendFunc
}

// Relay moves committed order events from outbox_events to Pub/Sub. Rows are
// claimed inside a transaction so concurrent relays never send the same row.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	topics      topicSource
	rows        outboxRows
	events      eventResolver
	send        sendFunc
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

type delivery int

const (
	delivered delivery = iota
	deferred
	parked
)

// batchSummary is logged once per non-empty batch.
type batchSummary struct {
	published int
	retried   int
	parked    int
}

func (b batchSummary) total() int { return b.published + b.retried + b.parked }

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Topics == nil:
		return nil, errors.New("pubsub client is required")
	case params.Rows == nil:
		return nil, errors.New("outbox repository is required")
	case params.Events == nil:
		return nil, errors.New("event registry is required")
	}

	relay := &Relay{
		logg:        params.Logger,
		db:          params.DB,
		topics:      params.Topics,
		rows:        params.Rows,
		events:      params.Events,
		send:        params.Send,
		batchSize:   params.Outbox.BatchSize,
		maxAttempts: params.Outbox.MaxAttempts,
		poll:        time.Duration(params.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if relay.send == nil {
		relay.send = relay.sendViaPubSub
	}
	if relay.batchSize <= 0 {
		relay.batchSize = defaultBatchSize
	}
	if relay.maxAttempts <= 0 {
		relay.maxAttempts = defaultMaxAttempts
	}
	if relay.poll <= 0 {
		relay.poll = defaultPoll
	}
	return relay, nil
}

// Run drains the outbox until ctx is cancelled. Empty polls wait one poll
// interval; failed batches back off exponentially up to maxIdleBackoff.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := r.topics.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	wait := r.poll
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		summary, err := r.drainBatch(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox batch failed", err)
			wait = nextBackoff(wait, r.poll, maxIdleBackoff)
		case summary.total() > 0:
			wait = r.poll
			continue
		default:
			wait = r.poll
		}
		if err := sleep(ctx, withJitter(wait)); err != nil {
			return err
		}
	}
}

// drainBatch claims up to batchSize rows and settles each one. A single bad
// row never aborts the batch; only bookkeeping failures do.
func (r *Relay) drainBatch(ctx context.Context) (batchSummary, error) {
	var summary batchSummary
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.rows.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox rows: %w", err)
		}
		for _, row := range rows {
			outcome, err := r.settle(ctx, tx, row)
			if err != nil {
				return err
			}
			switch outcome {
			case delivered:
				summary.published++
			case deferred:
				summary.retried++
			case parked:
				summary.parked++
			}
		}
		return nil
	})
	if err == nil && summary.total() > 0 {
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"published": summary.published,
			"retried":   summary.retried,
			"parked":    summary.parked,
		}), "outbox batch settled")
	}
	return summary, err
}

func (r *Relay) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) (delivery, error) {
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    row.EventType,
		"order_id":      row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
	})

	resolved, err := r.events.Resolve(row)
	if err == nil {
		logCtx = r.logg.WithField(logCtx, "topic", resolved.Descriptor.Topic)
		err = r.publish(ctx, row, resolved)
	}
	if err == nil {
		if markErr := r.rows.MarkPublishedTx(tx, row.ID); markErr != nil {
			return 0, fmt.Errorf("mark published %s: %w", row.ID, markErr)
		}
		return delivered, nil
	}

	var nonRetryable registry.NonRetryableError
	exhausted := row.AttemptCount+1 >= r.maxAttempts
	if errors.As(err, &nonRetryable) || exhausted {
		if exhausted && !errors.As(err, &nonRetryable) {
			err = fmt.Errorf("gave up after %d attempts: %w", r.maxAttempts, err)
		}
		r.logg.Warn(r.logg.WithField(logCtx, "error", err.Error()), "outbox event parked")
		if markErr := r.rows.MarkTerminalTx(tx, row.ID, err, r.maxAttempts); markErr != nil {
			return 0, fmt.Errorf("mark terminal %s: %w", row.ID, markErr)
		}
		return parked, nil
	}

	r.logg.Warn(r.logg.WithField(logCtx, "error", err.Error()), "outbox publish failed, will retry")
	if markErr := r.rows.MarkFailedTx(tx, row.ID, err); markErr != nil {
		return 0, fmt.Errorf("mark failure %s: %w", row.ID, markErr)
	}
	return deferred, nil
}

// publish sends the stored envelope unchanged; subscribers read the routing
// data from the attributes without decoding the body.
func (r *Relay) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	msg := &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if resolved.Envelope.Version > 0 {
		msg.Attributes["version"] = strconv.Itoa(resolved.Envelope.Version)
	}

	sendCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	_, err := r.send(sendCtx, resolved.Descriptor.Topic, msg)
	return err
}

func (r *Relay) sendViaPubSub(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error) {
	publisher := r.topics.Publisher(topic)
	if publisher == nil {
		return "", registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}
	return publisher.Publish(ctx, msg).Get(ctx)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, ceiling)
}

func withJitter(d time.Duration) time.Duration {
	return d + rand.N(jitterWindow)
}
