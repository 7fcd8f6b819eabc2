package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"

	"github.com/minato-lab/leavesync/pkg/domain/model"
	"github.com/minato-lab/leavesync/pkg/domain/types"
	"github.com/minato-lab/leavesync/pkg/utils/logging"
)

// VerifyURL handles the upstream URL-verification handshake: check the
// signature over the encrypted echo string, decrypt it, and return the
// plaintext to echo back.
func (u *UseCase) VerifyURL(ctx context.Context, signature, timestamp, nonce, echostr string) (string, error) {
	if u.codec == nil {
		return "", goerr.New("callback credentials not configured", goerr.T(types.ErrTagCrypto))
	}
	if !u.codec.Verify(signature, timestamp, nonce, echostr) {
		return "", goerr.New("echo signature mismatch", goerr.T(types.ErrTagCrypto))
	}
	plain, err := u.codec.Decrypt(echostr)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// HandleEvent processes one pushed approval event. The raw body is the XML
// envelope of a POST callback; signature parameters come from the URL.
//
// The reported status is only a hint used for filtering and queueing; the
// dispatch always re-fetches the authoritative detail. When a writer holds
// the sync lock the event is parked on the in-memory queue for the drain
// timer. Errors returned here are for logging only; the HTTP layer answers
// `success` regardless.
func (u *UseCase) HandleEvent(ctx context.Context, signature, timestamp, nonce, body string) error {
	if u.codec == nil {
		return goerr.New("callback credentials not configured", goerr.T(types.ErrTagCrypto))
	}

	encrypted := model.ExtractXMLField(body, "Encrypt")
	if encrypted == "" {
		return goerr.New("callback envelope has no Encrypt block",
			goerr.T(types.ErrTagCrypto))
	}
	if !u.codec.Verify(signature, timestamp, nonce, encrypted) {
		return goerr.New("callback signature mismatch", goerr.T(types.ErrTagCrypto))
	}
	plain, err := u.codec.Decrypt(encrypted)
	if err != nil {
		return err
	}

	ev, err := model.ParseApprovalInfo(string(plain))
	if err != nil {
		return err
	}

	logger := logging.From(ctx)

	if !u.isLeaveName(ev.SpName) {
		logger.Debug("ignoring non-leave approval event", "sp_no", ev.SpNo, "sp_name", ev.SpName)
		return nil
	}
	if ev.IsComment() {
		logger.Debug("ignoring comment event", "sp_no", ev.SpNo)
		return nil
	}
	if ev.SpStatus == int(types.StatusPending) {
		idx, err := u.repo.ActiveIndex().Load(ctx)
		if err != nil {
			return err
		}
		if idx.Has(ev.SpNo) {
			// An intermediate step inside an already-tracked flow
			logger.Debug("ignoring pending event for tracked approval", "sp_no", ev.SpNo)
			return nil
		}
	}

	if !u.lock.TryAcquire() {
		u.queue.push(ev.SpNo, ev.SpStatus, u.now())
		logger.Info("sync in progress, queued callback event",
			"sp_no", ev.SpNo, "sp_status", ev.SpStatus, "queue_len", u.queue.length())
		return nil
	}
	defer u.lock.Release()

	return u.dispatch(ctx, ev.SpNo)
}

// DrainQueue flushes parked callback events when the lock is free. Events
// are deduplicated by approval number, keeping only the latest status.
// Called by the drain worker every two seconds.
func (u *UseCase) DrainQueue(ctx context.Context) error {
	if u.queue.empty() {
		return nil
	}
	if !u.lock.TryAcquire() {
		return nil
	}
	defer u.lock.Release()

	logger := logging.From(ctx)
	events := u.queue.drain()
	logger.Info("draining callback queue", "events", len(events))

	for _, ev := range events {
		if err := u.dispatch(ctx, ev.spNo); err != nil {
			logger.Error("queued event dispatch failed", "sp_no", ev.spNo, "error", err)
		}
	}
	return nil
}

// QueueLength reports the number of parked callback events
func (u *UseCase) QueueLength() int {
	return u.queue.length()
}

// dispatch applies one approval event. The caller holds the sync lock.
// The freshly fetched detail is authoritative; the callback status is
// discarded.
func (u *UseCase) dispatch(ctx context.Context, spNo string) error {
	logger := logging.From(ctx)

	detail, err := u.client.ApprovalDetail(ctx, spNo)
	if err != nil {
		return goerr.Wrap(err, "failed to fetch authoritative detail",
			goerr.V(types.SpNoKey, spNo))
	}

	if detail.SpName != "" && !u.leaveForms[detail.SpName] {
		logger.Debug("dispatch skipping non-leave approval", "sp_no", spNo, "sp_name", detail.SpName)
		return nil
	}

	status, ok := detail.Status()
	if !ok {
		logger.Warn("dispatch skipping unknown status", "sp_no", spNo, "sp_status", detail.SpStatus)
		return nil
	}

	switch status {
	case types.StatusPending:
		return u.dispatchPending(ctx, detail)
	case types.StatusApproved:
		return u.dispatchApproved(ctx, detail)
	default:
		return u.dispatchTerminal(ctx, detail, status)
	}
}

// dispatchPending merges the new approval and starts tracking it
func (u *UseCase) dispatchPending(ctx context.Context, detail *model.ApprovalDetail) error {
	merged, slots, err := u.mergeDetail(ctx, detail)
	if err != nil || len(slots) == 0 {
		return err
	}
	if detail.ApplyTime < u.cutoff {
		return nil
	}

	idx, err := u.repo.ActiveIndex().Load(ctx)
	if err != nil {
		return err
	}
	if idx.Has(detail.SpNo) {
		return nil
	}
	emp := merged.EmployeeInfo[detail.ApplierUserID()]
	if err := idx.Insert(model.NewApprovalRecord(detail, emp, slots, u.now())); err != nil {
		return err
	}
	return u.repo.ActiveIndex().Save(ctx, idx)
}

// dispatchApproved finalizes a tracked approval cheaply via its stored
// slots, or falls back to a normal merge for untracked ones.
func (u *UseCase) dispatchApproved(ctx context.Context, detail *model.ApprovalDetail) error {
	idx, err := u.repo.ActiveIndex().Load(ctx)
	if err != nil {
		return err
	}

	rec := idx.Get(detail.SpNo)
	if rec == nil {
		_, _, err := u.mergeDetail(ctx, detail)
		return err
	}

	doc, err := u.repo.Leave().Load(ctx)
	if err != nil {
		return err
	}
	text := types.StatusApproved.Text()
	for _, slot := range rec.LeaveDates {
		doc.SetSlot(rec.UserID, slot, text)
	}
	doc.Touch(u.now())
	if err := u.repo.Leave().Save(ctx, doc); err != nil {
		return err
	}

	idx.Delete(detail.SpNo)
	return u.repo.ActiveIndex().Save(ctx, idx)
}

// dispatchTerminal applies a non-approved terminal status. Tracked
// approvals use their stored slots; untracked ones re-parse the fresh
// detail and only touch employees already present in the leave store.
func (u *UseCase) dispatchTerminal(ctx context.Context, detail *model.ApprovalDetail, status types.ApprovalStatus) error {
	logger := logging.From(ctx)

	idx, err := u.repo.ActiveIndex().Load(ctx)
	if err != nil {
		return err
	}
	text := status.Text()

	if rec := idx.Get(detail.SpNo); rec != nil {
		doc, err := u.repo.Leave().Load(ctx)
		if err != nil {
			return err
		}
		for _, slot := range rec.LeaveDates {
			doc.SetSlot(rec.UserID, slot, text)
		}
		doc.Touch(u.now())
		if err := u.repo.Leave().Save(ctx, doc); err != nil {
			return err
		}
		idx.Delete(detail.SpNo)
		return u.repo.ActiveIndex().Save(ctx, idx)
	}

	slots := model.DateSlots(detail)
	userID := detail.ApplierUserID()
	if len(slots) == 0 || userID == "" {
		logger.Warn("terminal event without parsable dates, skipping", "sp_no", detail.SpNo)
		return nil
	}

	doc, err := u.repo.Leave().Load(ctx)
	if err != nil {
		return err
	}
	if !doc.HasEmployee(userID) {
		logger.Debug("terminal event for unknown employee, skipping",
			"sp_no", detail.SpNo, "userid", userID)
		return nil
	}
	for _, slot := range slots {
		doc.SetSlot(userID, slot, text)
	}
	doc.Touch(u.now())
	return u.repo.Leave().Save(ctx, doc)
}

// mergeDetail merges a single approval detail into the leave store and
// returns the merged document plus the parsed slots.
func (u *UseCase) mergeDetail(ctx context.Context, detail *model.ApprovalDetail) (*model.LeaveDocument, []string, error) {
	incoming, slotsBySpNo := u.buildIncoming(ctx, []*model.ApprovalDetail{detail})
	slots := slotsBySpNo[detail.SpNo]
	if len(slots) == 0 {
		return nil, nil, nil
	}

	current, err := u.repo.Leave().Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	merged, _ := model.Merge(current, incoming, u.now())
	if err := u.repo.Leave().Save(ctx, merged); err != nil {
		return nil, nil, err
	}
	return merged, slots, nil
}
