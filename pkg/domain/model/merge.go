package model

import (
	"time"

	"github.com/minato-lab/leavesync/pkg/domain/types"
)

// MergeResult carries counters for logging
type MergeResult struct {
	NewEmployees     int
	UpdatedEmployees int
}

// Merge combines an incoming batch into the current document and returns the
// merged copy. Neither input is mutated.
//
// The merge rule is idempotent: incoming employee info always wins; for each
// (employee, slot) an incoming Approved always wins, an incoming Pending never
// demotes an existing Approved, and every other incoming status overwrites.
func Merge(current, incoming *LeaveDocument, now time.Time) (*LeaveDocument, MergeResult) {
	merged := current.Clone()
	var result MergeResult

	for userID, emp := range incoming.EmployeeInfo {
		if _, ok := merged.EmployeeInfo[userID]; ok {
			result.UpdatedEmployees++
		} else {
			result.NewEmployees++
		}
		merged.EmployeeInfo[userID] = emp
	}

	approvedText := types.StatusApproved.Text()
	pendingText := types.StatusPending.Text()

	for userID, slots := range incoming.LeaveData {
		for slot, text := range slots {
			existing, ok := merged.Slot(userID, slot)
			if ok && text == pendingText && existing == approvedText {
				// Approved is sticky against a later Pending from another approval
				continue
			}
			merged.SetSlot(userID, slot, text)
		}
	}

	merged.Touch(now)
	return merged, result
}
