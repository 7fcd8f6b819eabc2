package worker

import (
	"context"
	"time"

	"github.com/minato-lab/leavesync/pkg/usecase"
	"github.com/minato-lab/leavesync/pkg/utils/errutil"
	"github.com/minato-lab/leavesync/pkg/utils/logging"
)

// DefaultDrainInterval is how often the queue drainer checks for
// callback events deferred while the sync lock was held.
const DefaultDrainInterval = 2 * time.Second

// QueueDrainWorker flushes callback events that arrived while a sync run
// held the lock. It is only started when callback credentials are
// configured; without callbacks the queue never fills.
type QueueDrainWorker struct {
	uc       *usecase.UseCase
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewQueueDrainWorker creates the drain worker
func NewQueueDrainWorker(uc *usecase.UseCase, interval time.Duration) *QueueDrainWorker {
	if interval <= 0 {
		interval = DefaultDrainInterval
	}
	return &QueueDrainWorker{
		uc:       uc,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background drain loop. Does not block server startup.
func (w *QueueDrainWorker) Start(ctx context.Context) error {
	logging.Default().Info("callback queue drain worker starting",
		"interval", w.interval.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *QueueDrainWorker) Stop() {
	logging.Default().Info("callback queue drain worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("callback queue drain worker stopped")
}

func (w *QueueDrainWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.uc.DrainQueue(ctx); err != nil {
				_ = errutil.Handle(ctx, err, "callback queue drain failed (will retry next tick)")
			}

		case <-w.stopCh:
			return

		case <-ctx.Done():
			logging.Default().Info("callback queue drain worker context cancelled")
			return
		}
	}
}
