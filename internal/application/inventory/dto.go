package inventory

import (
	"time"

	"github.com/reseller/backend/internal/domain/inventory"
	"github.com/reseller/backend/internal/domain/shared"
)

// BatchItemResult is the outcome of one event of a batch
type BatchItemResult struct {
	Index  int                     `json:"index"`
	Result *inventory.LedgerResult `json:"result,omitempty"`
	Err    error                   `json:"-"`
	Code   string                  `json:"code,omitempty"`
}

// BatchReport summarizes a batch apply. Results are in input order.
type BatchReport struct {
	Results    []BatchItemResult `json:"results"`
	Applied    int               `json:"applied"`
	Duplicates int               `json:"duplicates"`
	Failed     int               `json:"failed"`
	Drifts     int               `json:"drifts"`
	Groups     int               `json:"groups"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

func (r *BatchReport) tally() {
	for i := range r.Results {
		item := &r.Results[i]
		switch {
		case item.Err != nil:
			r.Failed++
			item.Code = shared.CodeOf(item.Err)
		case item.Result.Duplicate:
			r.Duplicates++
		default:
			r.Applied++
			if item.Result.Drift != nil {
				r.Drifts++
			}
		}
	}
}

// RetryConfig bounds the retry of events that failed with a retryable error
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns three retries starting at 50ms
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
	}
}
