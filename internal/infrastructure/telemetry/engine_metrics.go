package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when metrics are built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// EngineMetrics records ledger and repricing measurements. It satisfies the
// Metrics interfaces of both application services.
type EngineMetrics struct {
	ledgerEvents   *Counter
	ledgerRetries  *Counter
	ledgerDuration *Histogram
	drifts         *Counter
	pricings       *Counter
	pricingTime    *Histogram
	sweepPriced    *Gauge
	sweepFailed    *Gauge
	sweepDuration  *Histogram
	lockTimeouts   metric.Int64ObservableCounter
	registration   metric.Registration
}

// NewEngineMetrics creates the engine instruments on meter. lockTimeouts, if
// not nil, is observed on every collection.
func NewEngineMetrics(meter metric.Meter, lockTimeouts func() int64) (*EngineMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	m := &EngineMetrics{}
	var err error

	if m.ledgerEvents, err = NewCounter(meter, "ledger_events_total", "Inventory events applied by outcome", "{events}"); err != nil {
		return nil, err
	}
	if m.ledgerRetries, err = NewCounter(meter, "ledger_retries_total", "Inventory events retried after a lock timeout", "{retries}"); err != nil {
		return nil, err
	}
	if m.ledgerDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_apply_duration_seconds",
		Description: "Time to apply one inventory event including lock waits",
		Unit:        "s",
		Boundaries:  LedgerDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.drifts, err = NewCounter(meter, "ledger_drift_total", "AFN snapshots that disagreed with computed stock", "{snapshots}"); err != nil {
		return nil, err
	}
	if m.pricings, err = NewCounter(meter, "pricing_computations_total", "Minimum price computations by outcome", "{computations}"); err != nil {
		return nil, err
	}
	if m.pricingTime, err = NewHistogram(meter, HistogramOpts{
		Name:        "pricing_compute_duration_seconds",
		Description: "Time to compute one minimum price",
		Unit:        "s",
		Boundaries:  PricingDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.sweepPriced, err = NewGauge(meter, "pricing_sweep_priced", "SKUs priced by the last sweep", "{skus}"); err != nil {
		return nil, err
	}
	if m.sweepFailed, err = NewGauge(meter, "pricing_sweep_failed", "SKUs the last sweep could not price", "{skus}"); err != nil {
		return nil, err
	}
	if m.sweepDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "pricing_sweep_duration_seconds",
		Description: "Duration of repricing sweeps",
		Unit:        "s",
		Boundaries:  SweepDurationBuckets,
	}); err != nil {
		return nil, err
	}

	if lockTimeouts != nil {
		m.lockTimeouts, err = meter.Int64ObservableCounter("ledger_lock_timeouts_total",
			metric.WithDescription("Lock acquisitions that timed out"),
			metric.WithUnit("{timeouts}"),
		)
		if err != nil {
			return nil, err
		}
		m.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			o.ObserveInt64(m.lockTimeouts, lockTimeouts())
			return nil
		}, m.lockTimeouts)
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordLedgerEvent records one applied or rejected inventory event
func (m *EngineMetrics) RecordLedgerEvent(ctx context.Context, kind, outcome string, elapsed time.Duration) {
	m.ledgerEvents.Inc(ctx, AttrEventKind.String(kind), AttrOutcome.String(outcome))
	m.ledgerDuration.RecordDuration(ctx, elapsed, AttrEventKind.String(kind))
}

// RecordLedgerRetry records one retry of an inventory event
func (m *EngineMetrics) RecordLedgerRetry(ctx context.Context, kind string) {
	m.ledgerRetries.Inc(ctx, AttrEventKind.String(kind))
}

// RecordDrift records one drifting AFN snapshot
func (m *EngineMetrics) RecordDrift(ctx context.Context, warehouse string) {
	m.drifts.Inc(ctx, AttrWarehouse.String(warehouse))
}

// RecordPricing records one minimum-price computation
func (m *EngineMetrics) RecordPricing(ctx context.Context, country, outcome string, elapsed time.Duration) {
	m.pricings.Inc(ctx, AttrCountry.String(country), AttrOutcome.String(outcome))
	m.pricingTime.RecordDuration(ctx, elapsed, AttrCountry.String(country))
}

// RecordSweep records the result of one repricing sweep
func (m *EngineMetrics) RecordSweep(ctx context.Context, priced, failed int, elapsed time.Duration) {
	m.sweepPriced.Record(ctx, int64(priced))
	m.sweepFailed.Record(ctx, int64(failed))
	m.sweepDuration.RecordDuration(ctx, elapsed)
}

// Close unregisters the lock timeout callback
func (m *EngineMetrics) Close() error {
	if m.registration == nil {
		return nil
	}
	return m.registration.Unregister()
}
