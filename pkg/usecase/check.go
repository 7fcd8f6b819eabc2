package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/minato-lab/leavesync/pkg/service/wecom"
	"github.com/minato-lab/leavesync/pkg/utils/logging"
)

// CheckReport summarizes one status-check cycle
type CheckReport struct {
	Checked int  `json:"checked"`
	Updated int  `json:"updated"`
	Removed int  `json:"removed"`
	Skipped bool `json:"skipped"`
}

// RunStatusCheck re-fetches every approval in the active index and applies
// status transitions. Terminal transitions rewrite the stored date slots
// and drop the index entry atomically under the sync lock. Individual fetch
// failures leave their entries for the next tick.
func (u *UseCase) RunStatusCheck(ctx context.Context) (*CheckReport, error) {
	// Cheap pre-check without the lock: an empty index is the common case
	peek, err := u.repo.ActiveIndex().Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(peek.Approvals) == 0 {
		return &CheckReport{Skipped: true}, nil
	}

	if !u.lock.TryAcquire() {
		return nil, errLockBusy()
	}
	defer u.lock.Release()

	ctx = logging.With(ctx, logging.From(ctx).With("run_id", uuid.NewString(), "cycle", "status_check"))
	logger := logging.From(ctx)

	// Reload under the lock; the pre-check snapshot may be stale
	idx, err := u.repo.ActiveIndex().Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(idx.Approvals) == 0 {
		return &CheckReport{Skipped: true}, nil
	}

	spNos := make([]string, 0, len(idx.Approvals))
	for spNo := range idx.Approvals {
		spNos = append(spNos, spNo)
	}

	details, err := u.client.FetchDetails(ctx, spNos, wecom.BatchStatusCheck)
	if err != nil {
		return nil, err
	}

	report := &CheckReport{}
	doc, err := u.repo.Leave().Load(ctx)
	if err != nil {
		return nil, err
	}
	docChanged := false

	for _, d := range details {
		rec := idx.Get(d.SpNo)
		if rec == nil {
			continue
		}
		report.Checked++

		now := u.now()
		if d.SpStatus == rec.CurrentStatus {
			rec.LastChecked = now.Unix()
			rec.LastCheckedTime = now.Format(time.RFC3339)
			continue
		}

		status, ok := d.Status()
		if !ok {
			logger.Warn("unknown status on re-check, leaving entry",
				"sp_no", d.SpNo, "sp_status", d.SpStatus)
			continue
		}

		text := status.Text()
		for _, slot := range rec.LeaveDates {
			doc.SetSlot(rec.UserID, slot, text)
		}
		docChanged = true
		report.Updated++

		if status.IsTerminal() {
			idx.Delete(d.SpNo)
			report.Removed++
			logger.Info("approval finalized",
				"sp_no", d.SpNo, "status", status.String(), "slots", len(rec.LeaveDates))
		} else {
			rec.CurrentStatus = d.SpStatus
			rec.StatusText = text
			rec.LastChecked = now.Unix()
			rec.LastCheckedTime = now.Format(time.RFC3339)
		}
	}

	if docChanged {
		doc.Touch(u.now())
		if err := u.repo.Leave().Save(ctx, doc); err != nil {
			return nil, err
		}
	}
	if err := u.repo.ActiveIndex().Save(ctx, idx); err != nil {
		return nil, err
	}

	logger.Info("status check completed",
		"checked", report.Checked, "updated", report.Updated, "removed", report.Removed)
	return report, nil
}
