package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/inventory"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/infrastructure/logger"
	"github.com/reseller/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Metrics receives ledger measurements
type Metrics interface {
	RecordLedgerEvent(ctx context.Context, kind, outcome string, elapsed time.Duration)
	RecordLedgerRetry(ctx context.Context, kind string)
	RecordDrift(ctx context.Context, warehouse string)
}

type noopMetrics struct{}

func (noopMetrics) RecordLedgerEvent(context.Context, string, string, time.Duration) {}
func (noopMetrics) RecordLedgerRetry(context.Context, string) {}
func (noopMetrics) RecordDrift(context.Context, string) {}

// LedgerService applies inventory events to the ledger, retrying lock
// contention, persisting marketplace snapshots and publishing domain events
type LedgerService struct {
	ledger         *inventory.Ledger
	journal        inventory.Journal
	snapshots      inventory.SnapshotRepository
	eventPublisher shared.EventPublisher
	metrics        Metrics
	logger         *zap.Logger
	retry          RetryConfig
	parallelism    int
}

// Option configures a LedgerService
type Option func(*LedgerService)

// WithJournal sets the journal Restore replays from
func WithJournal(j inventory.Journal) Option {
	return func(s *LedgerService) {
		s.journal = j
	}
}

// WithSnapshotRepository stores marketplace snapshots and their drift
func WithSnapshotRepository(r inventory.SnapshotRepository) Option {
	return func(s *LedgerService) {
		s.snapshots = r
	}
}

// WithEventPublisher publishes the domain events of applied events
func WithEventPublisher(p shared.EventPublisher) Option {
	return func(s *LedgerService) {
		s.eventPublisher = p
	}
}

// WithMetrics records ledger metrics
func WithMetrics(m Metrics) Option {
	return func(s *LedgerService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithRetry overrides the retry policy for retryable errors
func WithRetry(cfg RetryConfig) Option {
	return func(s *LedgerService) {
		s.retry = cfg
	}
}

// WithParallelism bounds how many independent event groups a batch runs at once
func WithParallelism(n int) Option {
	return func(s *LedgerService) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(ledger *inventory.Ledger, logger *zap.Logger, opts ...Option) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &LedgerService{
		ledger:      ledger,
		metrics:     noopMetrics{},
		logger:      logger,
		retry:       DefaultRetryConfig(),
		parallelism: 8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ledger returns the underlying ledger
func (s *LedgerService) Ledger() *inventory.Ledger {
	return s.ledger
}

// Restore rebuilds the ledger from the journal and reloads the last listed
// prices. It must run before any event is applied.
func (s *LedgerService) Restore(ctx context.Context) error {
	if s.journal != nil {
		entries, err := s.journal.LoadAll(ctx)
		if err != nil {
			return fmt.Errorf("load ledger journal: %w", err)
		}
		if err := s.ledger.Replay(entries); err != nil {
			return fmt.Errorf("replay ledger journal: %w", err)
		}
		s.logger.Info("Ledger restored from journal", zap.Int("entries", len(entries)))
	}
	if s.snapshots != nil {
		snaps, err := s.snapshots.LatestPerSku(ctx)
		if err != nil {
			return fmt.Errorf("load marketplace snapshots: %w", err)
		}
		s.ledger.RestoreListedPrices(snaps)
	}
	return nil
}

// Apply applies one event. Lock timeouts and in-flight duplicates are
// retried with exponential backoff; every other error is returned at once.
// The event ID travels in ctx, so journal writes are logged with it.
func (s *LedgerService) Apply(ctx context.Context, ev inventory.Event) (*inventory.LedgerResult, error) {
	start := time.Now()
	kind := eventKind(ev)

	ctx = logger.WithContext(ctx, s.logger)
	if ev != nil && ev.Meta().EventID != uuid.Nil {
		ctx, _ = logger.WithEventID(ctx, s.logger, ev.Meta().EventID.String())
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "apply",
		telemetry.WithLedgerEvent(kind, logger.GetEventID(ctx)),
	)
	defer span.End()
	log := logger.L(ctx)

	var result *inventory.LedgerResult
	operation := func() error {
		res, err := s.ledger.Apply(ctx, ev)
		if err != nil {
			if shared.IsRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = res
		return nil
	}
	notify := func(err error, wait time.Duration) {
		s.metrics.RecordLedgerRetry(ctx, kind)
		telemetry.AddEvent(span, "ledger.retry", "wait_ms", wait.Milliseconds())
		log.Warn("Retrying ledger event",
			zap.String("kind", kind),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(operation, s.backOff(ctx), notify); err != nil {
		s.metrics.RecordLedgerEvent(ctx, kind, outcomeOf(err), time.Since(start))
		telemetry.RecordError(span, err)
		log.Debug("Ledger event rejected",
			zap.String("kind", kind),
			zap.String("code", shared.CodeOf(err)),
			zap.Error(err),
		)
		return nil, err
	}

	outcome := "applied"
	if result.Duplicate {
		outcome = "duplicate"
	}
	s.metrics.RecordLedgerEvent(ctx, kind, outcome, time.Since(start))
	telemetry.SetAttribute(span, telemetry.SpanAttrLedgerOutcome, outcome)
	telemetry.SetOK(span)

	if !result.Duplicate {
		s.afterApply(ctx, log, ev, result)
	}
	return result, nil
}

func (s *LedgerService) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.retry.InitialInterval
	exp.MaxInterval = s.retry.MaxInterval
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, s.retry.MaxRetries), ctx)
}

// afterApply stores snapshots and publishes events. The ledger change is
// already committed, so failures here are logged and not returned.
func (s *LedgerService) afterApply(ctx context.Context, log *zap.Logger, ev inventory.Event, result *inventory.LedgerResult) {
	if snap, ok := ev.(inventory.AfnSnapshot); ok && s.snapshots != nil {
		if err := s.snapshots.Save(context.WithoutCancel(ctx), snap, result.Drift); err != nil {
			log.Error("Failed to store marketplace snapshot",
				zap.String("sku", snap.Sku),
				zap.Error(err),
			)
		}
	}

	if result.Drift != nil {
		s.metrics.RecordDrift(ctx, result.Drift.Warehouse)
		log.Warn("Stock drift detected",
			zap.String("sku", result.Drift.Sku),
			zap.String("warehouse", result.Drift.Warehouse),
			zap.Int("reported", result.Drift.Reported),
			zap.Int("computed", result.Drift.Computed),
		)
	}

	if s.eventPublisher != nil && len(result.Events) > 0 {
		if err := s.eventPublisher.Publish(ctx, result.Events...); err != nil {
			log.Error("Failed to publish ledger events",
				zap.String("event_id", result.EventID.String()),
				zap.Error(err),
			)
		}
	}
}

// Snapshot returns a consistent copy of the ledger's stock
func (s *LedgerService) Snapshot(ctx context.Context) (*inventory.StockSnapshot, error) {
	return s.ledger.Snapshot(ctx)
}

func eventKind(ev inventory.Event) string {
	if ev == nil {
		return "unknown"
	}
	return ev.Kind().String()
}

func outcomeOf(err error) string {
	if code := shared.CodeOf(err); code != "" {
		return code
	}
	return "error"
}
