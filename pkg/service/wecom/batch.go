package wecom

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/minato-lab/leavesync/pkg/domain/model"
	"github.com/minato-lab/leavesync/pkg/utils/logging"
)

// batchTuning holds the delay schedule of the bulk fetch modes. Tests
// shrink the durations; production keeps the defaults.
type batchTuning struct {
	bulkConcurrency   int
	bulkBaseDelay     time.Duration
	bulkMaxDelay      time.Duration
	bulkMinDelay      time.Duration
	statusConcurrency int
	statusDelay       time.Duration
	retryBackoffs     []time.Duration
}

func defaultBatchTuning() batchTuning {
	return batchTuning{
		bulkConcurrency:   3,
		bulkBaseDelay:     100 * time.Millisecond,
		bulkMaxDelay:      500 * time.Millisecond,
		bulkMinDelay:      50 * time.Millisecond,
		statusConcurrency: 5,
		statusDelay:       50 * time.Millisecond,
		retryBackoffs:     []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second},
	}
}

// WithBatchTuning overrides the bulk-fetch delay schedule (used by tests)
func WithBatchTuning(bulkBase, bulkMax, bulkMin, statusDelay time.Duration, retryBackoffs []time.Duration) Option {
	return func(c *client) {
		c.batchTuning.bulkBaseDelay = bulkBase
		c.batchTuning.bulkMaxDelay = bulkMax
		c.batchTuning.bulkMinDelay = bulkMin
		c.batchTuning.statusDelay = statusDelay
		c.batchTuning.retryBackoffs = retryBackoffs
	}
}

// FetchDetails fetches approval details in bounded-parallel batches.
//
// Bulk mode starts three-wide with a 100 ms inter-batch delay. Items hitting
// the upstream rate limit retry with 2s/4s/8s backoff; a batch that saw any
// rate limit doubles the delay up to 500 ms, a clean batch decays it
// geometrically toward 50 ms. Status mode runs five-wide with a fixed 50 ms
// delay and no adaptation. Items that keep failing are logged and dropped.
func (c *client) FetchDetails(ctx context.Context, spNos []string, mode BatchMode) ([]*model.ApprovalDetail, error) {
	t := c.batchTuning

	concurrency := t.bulkConcurrency
	delay := t.bulkBaseDelay
	adaptive := true
	if mode == BatchStatusCheck {
		concurrency = t.statusConcurrency
		delay = t.statusDelay
		adaptive = false
	}

	var details []*model.ApprovalDetail
	for start := 0; start < len(spNos); start += concurrency {
		end := start + concurrency
		if end > len(spNos) {
			end = len(spNos)
		}
		batch := spNos[start:end]

		var mu sync.Mutex
		rateLimited := false

		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(concurrency)
		for _, spNo := range batch {
			eg.Go(func() error {
				detail, limited := c.fetchWithRetry(egCtx, spNo, adaptive)
				mu.Lock()
				defer mu.Unlock()
				if limited {
					rateLimited = true
				}
				if detail != nil {
					details = append(details, detail)
				}
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return details, err
		}
		if err := ctx.Err(); err != nil {
			return details, err
		}

		if adaptive {
			if rateLimited {
				delay *= 2
				if delay > t.bulkMaxDelay {
					delay = t.bulkMaxDelay
				}
			} else if delay > t.bulkMinDelay {
				delay = delay * 3 / 4
				if delay < t.bulkMinDelay {
					delay = t.bulkMinDelay
				}
			}
		}

		if end < len(spNos) {
			select {
			case <-ctx.Done():
				return details, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return details, nil
}

// fetchWithRetry fetches one detail, retrying rate limits with exponential
// backoff when retry is enabled. A nil detail means the item was dropped;
// limited reports whether any attempt hit the rate limit.
func (c *client) fetchWithRetry(ctx context.Context, spNo string, retry bool) (detail *model.ApprovalDetail, limited bool) {
	logger := logging.From(ctx)

	detail, err := c.ApprovalDetail(ctx, spNo)
	if err == nil {
		return detail, false
	}
	if !IsRateLimited(err) {
		logger.Warn("dropping approval detail", "sp_no", spNo, "error", err)
		return nil, false
	}
	if !retry {
		logger.Warn("rate limited, dropping approval detail", "sp_no", spNo)
		return nil, true
	}

	for _, backoff := range c.batchTuning.retryBackoffs {
		select {
		case <-ctx.Done():
			return nil, true
		case <-time.After(backoff):
		}

		detail, err = c.ApprovalDetail(ctx, spNo)
		if err == nil {
			return detail, true
		}
		if !IsRateLimited(err) {
			logger.Warn("dropping approval detail after retry", "sp_no", spNo, "error", err)
			return nil, true
		}
	}

	logger.Warn("rate-limit retries exhausted, dropping approval detail", "sp_no", spNo)
	return nil, true
}
