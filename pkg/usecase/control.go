package usecase

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"

	"github.com/minato-lab/leavesync/pkg/domain/model"
	"github.com/minato-lab/leavesync/pkg/domain/types"
	"github.com/minato-lab/leavesync/pkg/utils/logging"
)

// SyncStatus is the control-plane status document
type SyncStatus struct {
	Cursor          *model.SyncCursor `json:"cursor"`
	SyncRunning     bool              `json:"syncRunning"`
	ActiveApprovals int               `json:"activeApprovals"`
	QueuedEvents    int               `json:"queuedEvents"`
	CutoffTimestamp int64             `json:"cutoffTimestamp"`
}

// Status aggregates cursor, lock, and index state for the control plane
func (u *UseCase) Status(ctx context.Context) (*SyncStatus, error) {
	cursor, err := u.repo.Cursor().Load(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := u.repo.ActiveIndex().Load(ctx)
	if err != nil {
		return nil, err
	}
	return &SyncStatus{
		Cursor:          cursor,
		SyncRunning:     u.lock.IsHeld(),
		ActiveApprovals: len(idx.Approvals),
		QueuedEvents:    u.queue.length(),
		CutoffTimestamp: u.cutoff,
	}, nil
}

// ResetCursor rewinds the incremental cursor to the configured baseline.
// The next cycle re-syncs the full window from the baseline; idempotent
// merging makes the replay harmless.
func (u *UseCase) ResetCursor(ctx context.Context) (*model.SyncCursor, error) {
	if !u.lock.TryAcquire() {
		return nil, errLockBusy()
	}
	defer u.lock.Release()

	cursor := model.NewSyncCursor(u.baseline)
	if err := u.repo.Cursor().Save(ctx, cursor); err != nil {
		return nil, err
	}
	logging.From(ctx).Info("sync cursor reset", "baseline", u.baseline)
	return cursor, nil
}

// TriggerSync runs one manual incremental cycle. Triggers within ten
// seconds of the last are throttled.
func (u *UseCase) TriggerSync(ctx context.Context) (*SyncReport, error) {
	if !u.trigger.Allow() {
		return nil, goerr.New("manual sync throttled, try again shortly",
			goerr.T(types.ErrTagRateLimit))
	}
	return u.RunIncremental(ctx)
}

// TriggerStatusCheck runs one manual status-check cycle
func (u *UseCase) TriggerStatusCheck(ctx context.Context) (*CheckReport, error) {
	return u.RunStatusCheck(ctx)
}

// ActiveApprovals lists the tracked pending approvals ordered by number
func (u *UseCase) ActiveApprovals(ctx context.Context) ([]*model.ApprovalRecord, error) {
	idx, err := u.repo.ActiveIndex().Load(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]*model.ApprovalRecord, 0, len(idx.Approvals))
	for _, rec := range idx.Approvals {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].SpNo < records[j].SpNo })
	return records, nil
}

// Leave returns the materialized leave document
func (u *UseCase) Leave(ctx context.Context) (*model.LeaveDocument, error) {
	return u.repo.Leave().Load(ctx)
}
