package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/minato-lab/leavesync/pkg/domain/model"
	"github.com/minato-lab/leavesync/pkg/domain/types"
	"github.com/minato-lab/leavesync/pkg/service/wecom"
	"github.com/minato-lab/leavesync/pkg/utils/logging"
)

// SyncReport summarizes one incremental cycle
type SyncReport struct {
	Start     int64             `json:"start"`
	End       int64             `json:"end"`
	Approvals int               `json:"approvals"`
	Merged    model.MergeResult `json:"-"`
	Tracked   int               `json:"tracked"`
	Skipped   bool              `json:"skipped"`
}

// RunIncremental executes one incremental poll cycle: advance the time
// window from the cursor, list and fetch approvals, merge, track the still
// pending ones, and move the cursor. A failing cycle bumps the failure
// counter and leaves the cursor untouched so the window is retried.
func (u *UseCase) RunIncremental(ctx context.Context) (*SyncReport, error) {
	if !u.lock.TryAcquire() {
		return nil, errLockBusy()
	}
	defer u.lock.Release()

	ctx = logging.With(ctx, logging.From(ctx).With("run_id", uuid.NewString(), "cycle", "incremental"))
	logger := logging.From(ctx)

	cursor, err := u.repo.Cursor().Load(ctx)
	if err != nil {
		return nil, err
	}

	start := cursor.LastSyncEndTimestamp
	end := u.now().Unix()
	if end <= start {
		logger.Info("sync window empty, skipping", "start", start, "end", end)
		return &SyncReport{Start: start, End: end, Skipped: true}, nil
	}

	report, err := u.syncWindow(ctx, start, end)
	if err != nil {
		cursor.RecordFailure()
		if saveErr := u.repo.Cursor().Save(ctx, cursor); saveErr != nil {
			logger.Error("failed to record sync failure", "error", saveErr)
		}
		return nil, err
	}

	cursor.Advance(end, report.Approvals, u.now())
	if err := u.repo.Cursor().Save(ctx, cursor); err != nil {
		return nil, err
	}

	logger.Info("incremental sync completed",
		"start", start, "end", end,
		"approvals", report.Approvals,
		"new_employees", report.Merged.NewEmployees,
		"updated_employees", report.Merged.UpdatedEmployees,
		"tracked", report.Tracked)
	return report, nil
}

// syncWindow performs the fetch-merge-track half of a cycle; the caller
// owns the cursor bookkeeping.
func (u *UseCase) syncWindow(ctx context.Context, start, end int64) (*SyncReport, error) {
	logger := logging.From(ctx)
	report := &SyncReport{Start: start, End: end}

	var spNos []string
	seen := make(map[string]bool)
	windows := wecom.SplitWindow(start, end)
	for i, w := range windows {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, goerr.Wrap(ctx.Err(), "sync cancelled")
			case <-time.After(u.chunkPause):
			}
		}
		chunk, err := u.client.ListApprovals(ctx, w.Start, w.End)
		if err != nil {
			return nil, goerr.Wrap(err, "approval listing failed",
				goerr.V("chunk_start", w.Start), goerr.V("chunk_end", w.End))
		}
		for _, spNo := range chunk {
			if !seen[spNo] {
				seen[spNo] = true
				spNos = append(spNos, spNo)
			}
		}
	}
	if len(spNos) == 0 {
		return report, nil
	}

	details, err := u.client.FetchDetails(ctx, spNos, wecom.BatchBulk)
	if err != nil {
		return nil, goerr.Wrap(err, "bulk detail fetch failed")
	}

	// Only leave approvals that are pending or approved contribute to the
	// materialized view; terminal non-approved states reach us through the
	// status checker and callbacks instead.
	var relevant []*model.ApprovalDetail
	for _, d := range details {
		if !u.leaveForms[d.SpName] {
			continue
		}
		status, ok := d.Status()
		if !ok {
			continue
		}
		if status == types.StatusPending || status == types.StatusApproved {
			relevant = append(relevant, d)
		}
	}
	report.Approvals = len(relevant)
	if len(relevant) == 0 {
		return report, nil
	}

	incoming, slotsBySpNo := u.buildIncoming(ctx, relevant)

	current, err := u.repo.Leave().Load(ctx)
	if err != nil {
		return nil, err
	}
	merged, result := model.Merge(current, incoming, u.now())
	if err := u.repo.Leave().Save(ctx, merged); err != nil {
		return nil, err
	}
	report.Merged = result

	idx, err := u.repo.ActiveIndex().Load(ctx)
	if err != nil {
		return nil, err
	}
	inserted := 0
	for _, d := range relevant {
		status, _ := d.Status()
		if status != types.StatusPending || d.ApplyTime < u.cutoff || idx.Has(d.SpNo) {
			continue
		}
		slots := slotsBySpNo[d.SpNo]
		if len(slots) == 0 {
			continue
		}
		emp := merged.EmployeeInfo[d.ApplierUserID()]
		rec := model.NewApprovalRecord(d, emp, slots, u.now())
		if err := idx.Insert(rec); err != nil {
			logger.Warn("failed to track pending approval", "sp_no", d.SpNo, "error", err)
			continue
		}
		inserted++
	}
	if inserted > 0 {
		if err := u.repo.ActiveIndex().Save(ctx, idx); err != nil {
			return nil, err
		}
	}
	report.Tracked = inserted

	return report, nil
}
