package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	appinventory "github.com/reseller/backend/internal/application/inventory"
	"github.com/reseller/backend/internal/domain/inventory"
	"github.com/reseller/backend/internal/infrastructure/logger"
	"github.com/reseller/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Message is one queued input row. Producers LPUSH it as JSON.
type Message struct {
	Source string `json:"source,omitempty"`
	Row    int    `json:"row"`
	Record Record `json:"record"`
}

// Rejection is what the consumer pushes to the dead-letter queue
type Rejection struct {
	Message    json.RawMessage   `json:"message"`
	Errors     []*IngestionError `json:"errors,omitempty"`
	LedgerCode string            `json:"ledger_code,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	RejectedAt time.Time         `json:"rejected_at"`
	TraceID    string            `json:"trace_id,omitempty"`
}

// BatchApplier applies decoded events; *appinventory.LedgerService
// implements it
type BatchApplier interface {
	ApplyBatch(ctx context.Context, events []inventory.Event) *appinventory.BatchReport
}

type listClient interface {
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	RPop(ctx context.Context, key string) *redis.StringCmd
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
}

// BatchResult summarizes one processed batch
type BatchResult struct {
	Received int
	Rejected int
	Requeued int
	Report   *appinventory.BatchReport
}

// Consumer drains a Redis list of Messages, decodes them and applies the
// valid ones to the ledger as one batch. Rejected rows, whether by decoding
// or by the ledger, go to the dead-letter list.
type Consumer struct {
	client      listClient
	decoder     *Decoder
	applier     BatchApplier
	queue       string
	deadLetter  string
	pollTimeout time.Duration
	maxBatch    int
	logger      *zap.Logger
}

// ConsumerOption configures a Consumer
type ConsumerOption func(*Consumer)

// WithQueues sets the input and dead-letter list keys
func WithQueues(queue, deadLetter string) ConsumerOption {
	return func(c *Consumer) {
		c.queue = queue
		c.deadLetter = deadLetter
	}
}

// WithPollTimeout sets how long one blocking pop waits
func WithPollTimeout(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.pollTimeout = d
	}
}

// WithMaxBatch caps how many messages are applied together
func WithMaxBatch(n int) ConsumerOption {
	return func(c *Consumer) {
		if n > 0 {
			c.maxBatch = n
		}
	}
}

// WithConsumerLogger sets the logger
func WithConsumerLogger(l *zap.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = l
	}
}

// NewConsumer creates a consumer on client
func NewConsumer(client *redis.Client, decoder *Decoder, applier BatchApplier, opts ...ConsumerOption) *Consumer {
	return newConsumer(client, decoder, applier, opts...)
}

func newConsumer(client listClient, decoder *Decoder, applier BatchApplier, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		client:      client,
		decoder:     decoder,
		applier:     applier,
		queue:       "pricing:ingest",
		deadLetter:  "pricing:ingest:rejected",
		pollTimeout: 5 * time.Second,
		maxBatch:    100,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run consumes until ctx is cancelled
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Ingest consumer started",
		zap.String("queue", c.queue),
		zap.Int("max_batch", c.maxBatch))
	for {
		if ctx.Err() != nil {
			c.logger.Info("Ingest consumer stopped")
			return ctx.Err()
		}
		payloads, err := c.next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Ingest consumer stopped")
				return ctx.Err()
			}
			c.logger.Error("Failed to read ingest queue", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.pollTimeout):
			}
			continue
		}
		if len(payloads) == 0 {
			continue
		}
		c.Process(ctx, payloads)
	}
}

// next blocks for one message and then takes up to maxBatch-1 more without
// waiting
func (c *Consumer) next(ctx context.Context) ([]string, error) {
	res, err := c.client.BRPop(ctx, c.pollTimeout, c.queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BRPOP replies with [key, value]
	payloads := []string{res[1]}
	for len(payloads) < c.maxBatch {
		p, err := c.client.RPop(ctx, c.queue).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return payloads, nil
		}
		payloads = append(payloads, p)
	}
	return payloads, nil
}

// Process decodes and applies one batch of raw messages
func (c *Consumer) Process(ctx context.Context, payloads []string) BatchResult {
	batchID := uuid.NewString()
	ctx, span := telemetry.StartSpan(ctx, "ingest.process",
		telemetry.WithSpanKind(trace.SpanKindConsumer),
		telemetry.WithAttribute(telemetry.SpanAttrBatchID, batchID),
		telemetry.WithAttribute(telemetry.SpanAttrBatchSize, len(payloads)),
	)
	defer span.End()
	ctx, log := logger.WithBatchID(ctx, c.logger, batchID)
	result := BatchResult{Received: len(payloads)}

	events := make([]inventory.Event, 0, len(payloads))
	sources := make([]string, 0, len(payloads))
	for _, payload := range payloads {
		var msg Message
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			c.reject(ctx, log, payload, Rejection{
				Errors: []*IngestionError{newIngestionError(0, "", ErrCodeIngestMalformed, "message is not valid JSON", "")},
			})
			result.Rejected++
			continue
		}
		ev, err := c.decoder.Decode(msg.Row, msg.Record)
		if err != nil {
			c.reject(ctx, log, payload, Rejection{Errors: AsIngestionErrors(msg.Row, err)})
			result.Rejected++
			continue
		}
		events = append(events, ev)
		sources = append(sources, payload)
	}

	if len(events) > 0 {
		result.Report = c.applier.ApplyBatch(ctx, events)
		var unapplied []string
		for _, item := range result.Report.Results {
			if item.Err == nil {
				continue
			}
			if ctx.Err() != nil && errors.Is(item.Err, ctx.Err()) {
				unapplied = append(unapplied, sources[item.Index])
				continue
			}
			c.reject(ctx, log, sources[item.Index], Rejection{
				LedgerCode: item.Code,
				Reason:     item.Err.Error(),
			})
			result.Rejected++
		}
		result.Requeued = c.requeue(ctx, log, unapplied)
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrBatchRejected, result.Rejected,
		telemetry.SpanAttrBatchRequeued, result.Requeued,
	)
	telemetry.SetOK(span)
	log.Info("Ingest batch processed",
		zap.Int("received", result.Received),
		zap.Int("rejected", result.Rejected),
		zap.Int("requeued", result.Requeued))
	return result
}

// requeue puts rows the batch never reached back on the consuming end of
// the queue, first row last so it is popped first again
func (c *Consumer) requeue(ctx context.Context, log *zap.Logger, payloads []string) int {
	if len(payloads) == 0 {
		return 0
	}
	values := make([]any, 0, len(payloads))
	for i := len(payloads) - 1; i >= 0; i-- {
		values = append(values, payloads[i])
	}
	if err := c.client.RPush(context.WithoutCancel(ctx), c.queue, values...).Err(); err != nil {
		log.Error("Failed to requeue unapplied ingest messages",
			zap.Strings("payloads", payloads), zap.Error(err))
		return 0
	}
	log.Info("Requeued unapplied ingest messages", zap.Int("count", len(payloads)))
	return len(payloads)
}

func (c *Consumer) reject(ctx context.Context, log *zap.Logger, payload string, r Rejection) {
	r.Message = rawMessage(payload)
	r.RejectedAt = time.Now().UTC()
	r.TraceID = telemetry.GetTraceID(ctx)
	data, err := json.Marshal(r)
	if err == nil {
		err = c.client.LPush(context.WithoutCancel(ctx), c.deadLetter, data).Err()
	}
	if err != nil {
		log.Error("Failed to dead-letter ingest message", zap.String("payload", payload), zap.Error(err))
		return
	}
	log.Warn("Ingest message rejected",
		zap.String("ledger_code", r.LedgerCode),
		zap.Int("errors", len(r.Errors)))
}

// rawMessage keeps valid JSON as is and quotes anything else
func rawMessage(payload string) json.RawMessage {
	if json.Valid([]byte(payload)) {
		return json.RawMessage(payload)
	}
	quoted, _ := json.Marshal(payload)
	return quoted
}
