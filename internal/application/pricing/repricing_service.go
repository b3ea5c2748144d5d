// Package pricing runs minimum-price computations against the current
// reference data, identity graph and stock, and stores their results.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reseller/backend/internal/domain/catalog"
	"github.com/reseller/backend/internal/domain/fx"
	"github.com/reseller/backend/internal/domain/inventory"
	"github.com/reseller/backend/internal/domain/pricing"
	"github.com/reseller/backend/internal/domain/reference"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/domain/shared/valueobject"
	"github.com/reseller/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ReferenceSource provides the reference data and identity graph of one
// consistent load
type ReferenceSource interface {
	Current(ctx context.Context) (*reference.Snapshot, *catalog.Graph, error)
}

// StockSource provides consistent stock snapshots
type StockSource interface {
	Snapshot(ctx context.Context) (*inventory.StockSnapshot, error)
}

// Metrics receives repricing measurements
type Metrics interface {
	RecordPricing(ctx context.Context, country, outcome string, elapsed time.Duration)
	RecordSweep(ctx context.Context, priced, failed int, elapsed time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordPricing(context.Context, string, string, time.Duration) {}
func (noopMetrics) RecordSweep(context.Context, int, int, time.Duration) {}

// Config configures the repricing service
type Config struct {
	Options        pricing.Options
	FallbackPolicy fx.FallbackPolicy
	DefaultRuleID  string
}

// RepricingService computes and stores minimum prices
type RepricingService struct {
	calc           *pricing.Calculator
	policy         fx.FallbackPolicy
	defaultRuleID  string
	refs           ReferenceSource
	stock          StockSource
	offers         pricing.OfferRepository
	eventPublisher shared.EventPublisher
	metrics        Metrics
	logger         *zap.Logger
}

// NewRepricingService creates a new RepricingService. stock and offers may be nil.
func NewRepricingService(
	cfg Config,
	refs ReferenceSource,
	stock StockSource,
	offers pricing.OfferRepository,
	logger *zap.Logger,
) *RepricingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FallbackPolicy == "" {
		cfg.FallbackPolicy = fx.ExactOnly
	}
	return &RepricingService{
		calc:          pricing.NewCalculator(cfg.Options),
		policy:        cfg.FallbackPolicy,
		defaultRuleID: cfg.DefaultRuleID,
		refs:          refs,
		stock:         stock,
		offers:        offers,
		metrics:       noopMetrics{},
		logger:        logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *RepricingService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the metrics recorder
func (s *RepricingService) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// inputs loads one consistent set of calculator inputs
func (s *RepricingService) inputs(ctx context.Context) (pricing.Inputs, error) {
	ref, graph, err := s.refs.Current(ctx)
	if err != nil {
		return pricing.Inputs{}, fmt.Errorf("load reference data: %w", err)
	}
	in := pricing.Inputs{
		Reference: ref,
		Graph:     graph,
		Rates:     fx.NewResolver(ref.ExchangeRates(), s.policy),
	}
	if s.stock != nil {
		snap, err := s.stock.Snapshot(ctx)
		if err != nil {
			return pricing.Inputs{}, fmt.Errorf("snapshot stock: %w", err)
		}
		in.Stock = snap
	}
	return in, nil
}

// Compute prices one SKU, stores the offer and publishes its events. In
// strict mode an offer listed below its minimum is stored and returned
// together with ErrBelowMinimumThreshold.
func (s *RepricingService) Compute(ctx context.Context, req pricing.PriceRequest) (*pricing.PricedOffer, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "repricing", "compute",
		telemetry.WithOffer(req.Sku, req.Country))
	defer span.End()

	in, err := s.inputs(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	offer, err := s.price(ctx, in, s.withDefaults(req))
	if err != nil {
		telemetry.RecordError(span, err)
		return offer, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOfferPrice, offer.MinimumGrossPrice,
		telemetry.SpanAttrOfferBelowMinimum, offer.BelowMinimum,
	)
	telemetry.SetOK(span)
	return offer, nil
}

func (s *RepricingService) withDefaults(req pricing.PriceRequest) pricing.PriceRequest {
	if req.PricingRuleID == "" {
		req.PricingRuleID = s.defaultRuleID
	}
	if req.AsOfDate.IsZero() {
		req.AsOfDate = time.Now()
	}
	return req
}

// price computes, stores and publishes one offer
func (s *RepricingService) price(ctx context.Context, in pricing.Inputs, req pricing.PriceRequest) (*pricing.PricedOffer, error) {
	start := time.Now()
	offer, err := s.calc.ComputeMinimumPrice(in, req)

	outcome := "priced"
	if err != nil {
		outcome = shared.CodeOf(err)
		if outcome == "" {
			outcome = "error"
		}
	}
	s.metrics.RecordPricing(ctx, req.Country, outcome, time.Since(start))

	if offer == nil {
		s.logger.Debug("Pricing failed",
			zap.String("sku", req.Sku),
			zap.String("country", req.Country),
			zap.Error(err),
		)
		return nil, err
	}

	// a started SKU is committed whole even if the caller gives up
	persistCtx := context.WithoutCancel(ctx)
	if s.offers != nil {
		if saveErr := s.offers.Save(persistCtx, offer); saveErr != nil {
			saveErr = fmt.Errorf("save offer %s/%s: %w: %w", offer.Sku, offer.Country, shared.ErrOfferNotSaved, saveErr)
			return offer, errors.Join(saveErr, err)
		}
	}
	s.publish(persistCtx, offer)
	return offer, err
}

func (s *RepricingService) publish(ctx context.Context, offer *pricing.PricedOffer) {
	if s.eventPublisher == nil {
		return
	}
	events := []shared.DomainEvent{pricing.NewOfferPricedEvent(*offer)}
	if offer.BelowMinimum {
		events = append(events, pricing.NewOfferBelowMinimumEvent(*offer))
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Error("Failed to publish pricing events",
			zap.String("sku", offer.Sku),
			zap.Error(err),
		)
	}
}

// SweepRequest selects the SKUs of a sweep. An empty Country prices every
// SKU in its own country.
type SweepRequest struct {
	Country       string
	AsOfDate      time.Time
	PricingRuleID string
}

// SkuFailure is a SKU a sweep could not price
type SkuFailure struct {
	Sku     string `json:"sku"`
	Country string `json:"country"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

// SweepReport summarizes a sweep
type SweepReport struct {
	Priced       int          `json:"priced"`
	BelowMinimum int          `json:"below_minimum"`
	Failures     []SkuFailure `json:"failures,omitempty"`
	Cancelled    bool         `json:"cancelled"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
}

// Sweep prices every selected SKU against one snapshot of the inputs. The
// context is checked between SKUs; on cancellation the report so far is
// returned with the context's error. Pricing failures are collected, not
// returned.
func (s *RepricingService) Sweep(ctx context.Context, req SweepRequest) (*SweepReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "repricing", "sweep")
	defer span.End()

	report := &SweepReport{StartedAt: time.Now()}
	in, err := s.inputs(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	skus := in.Graph.Skus()
	for _, sku := range skus {
		if req.Country != "" && sku.Country != req.Country {
			continue
		}
		if err := ctx.Err(); err != nil {
			report.Cancelled = true
			break
		}
		s.sweepOne(ctx, in, sku, req, report)
	}

	report.FinishedAt = time.Now()
	s.metrics.RecordSweep(ctx, report.Priced, len(report.Failures), report.FinishedAt.Sub(report.StartedAt))
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSweepPriced, report.Priced,
		telemetry.SpanAttrSweepFailed, len(report.Failures),
		telemetry.SpanAttrSweepCancelled, report.Cancelled,
	)
	s.logger.Info("Repricing sweep finished",
		zap.Int("priced", report.Priced),
		zap.Int("below_minimum", report.BelowMinimum),
		zap.Int("failed", len(report.Failures)),
		zap.Bool("cancelled", report.Cancelled),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)

	if report.Cancelled {
		telemetry.RecordError(span, ctx.Err())
		return report, ctx.Err()
	}
	telemetry.SetOK(span)
	return report, nil
}

func (s *RepricingService) sweepOne(ctx context.Context, in pricing.Inputs, sku catalog.Sku, req SweepRequest, report *SweepReport) {
	country := sku.Country
	if country == "" {
		country = req.Country
	}
	if country == "" {
		report.Failures = append(report.Failures, SkuFailure{
			Sku:   sku.Code,
			Code:  shared.ErrInvalidReferenceData.Code,
			Error: "sku has no country",
		})
		return
	}

	offer, err := s.price(ctx, in, s.withDefaults(pricing.PriceRequest{
		Sku:           sku.Code,
		Country:       country,
		AsOfDate:      req.AsOfDate,
		PricingRuleID: req.PricingRuleID,
	}))
	saved := offer != nil && !errors.Is(err, shared.ErrOfferNotSaved)
	if saved {
		report.Priced++
		if offer.BelowMinimum {
			report.BelowMinimum++
		}
	}
	if err != nil && (!saved || !errors.Is(err, shared.ErrBelowMinimumThreshold)) {
		report.Failures = append(report.Failures, SkuFailure{
			Sku:     sku.Code,
			Country: country,
			Code:    shared.CodeOf(err),
			Error:   err.Error(),
		})
	}
}

// RepriceAffected prices the SKUs whose bundles contain any of the EANs
func (s *RepricingService) RepriceAffected(ctx context.Context, eans []valueobject.EAN, asOf time.Time) (*SweepReport, error) {
	report := &SweepReport{StartedAt: time.Now()}
	in, err := s.inputs(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, ean := range eans {
		for _, asin := range in.Graph.AsinsContaining(ean) {
			for _, code := range in.Graph.SkusForAsin(asin) {
				if seen[code] {
					continue
				}
				seen[code] = true
				if err := ctx.Err(); err != nil {
					report.Cancelled = true
					report.FinishedAt = time.Now()
					return report, err
				}
				sku, err := in.Graph.Sku(code)
				if err != nil {
					report.Failures = append(report.Failures, SkuFailure{Sku: code, Code: shared.CodeOf(err), Error: err.Error()})
					continue
				}
				s.sweepOne(ctx, in, sku, SweepRequest{AsOfDate: asOf}, report)
			}
		}
	}
	report.FinishedAt = time.Now()
	return report, nil
}
