package scheduler

import (
	"context"
	"fmt"

	apppricing "github.com/reseller/backend/internal/application/pricing"
	"go.uber.org/zap"
)

// Repricer is the part of the repricing service the executor drives
type Repricer interface {
	Sweep(ctx context.Context, req apppricing.SweepRequest) (*apppricing.SweepReport, error)
	RepriceDirty(ctx context.Context, h *apppricing.StockChangedHandler) (*apppricing.SweepReport, error)
}

// RepricingExecutor runs sweep and dirty-SKU jobs. SKU-level pricing
// failures are part of the report and do not fail the job; only errors that
// stopped the run do.
type RepricingExecutor struct {
	repricer Repricer
	dirty    *apppricing.StockChangedHandler
	logger   *zap.Logger
}

// NewRepricingExecutor creates an executor. dirty may be nil when stock
// changes are not tracked.
func NewRepricingExecutor(repricer Repricer, dirty *apppricing.StockChangedHandler, logger *zap.Logger) *RepricingExecutor {
	return &RepricingExecutor{repricer: repricer, dirty: dirty, logger: logger}
}

// Execute implements JobExecutor
func (e *RepricingExecutor) Execute(ctx context.Context, job *Job) error {
	var (
		report *apppricing.SweepReport
		err    error
	)
	switch job.Type {
	case JobTypeSweep:
		report, err = e.repricer.Sweep(ctx, apppricing.SweepRequest{AsOfDate: job.AsOfDate})
	case JobTypeDirty:
		if e.dirty == nil {
			return nil
		}
		report, err = e.repricer.RepriceDirty(ctx, e.dirty)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownJobType, job.Type)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", job.Type, err)
	}

	if report.Priced > 0 || len(report.Failures) > 0 {
		e.logger.Info("Repricing job finished",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
			zap.Int("priced", report.Priced),
			zap.Int("below_minimum", report.BelowMinimum),
			zap.Int("failed", len(report.Failures)),
			zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
		)
	}
	return nil
}

var _ JobExecutor = (*RepricingExecutor)(nil)
