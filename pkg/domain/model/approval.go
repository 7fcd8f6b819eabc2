package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/minato-lab/leavesync/pkg/domain/types"
)

// ApprovalRecord is one entry of the active index. It carries enough to
// perform a terminal transition without another detail fetch.
type ApprovalRecord struct {
	SpNo            string   `json:"sp_no"`
	UserID          string   `json:"userid"`
	Name            string   `json:"name"`
	Department      string   `json:"department"`
	ApplyTime       int64    `json:"apply_time"`
	SubmitTime      string   `json:"submit_time"`
	CurrentStatus   int      `json:"current_status"`
	StatusText      string   `json:"status_text"`
	LeaveDates      []string `json:"leave_dates"`
	LastChecked     int64    `json:"last_checked"`
	LastCheckedTime string   `json:"last_checked_time"`
}

// Clone returns a deep copy of the record
func (r *ApprovalRecord) Clone() *ApprovalRecord {
	copied := *r
	if r.LeaveDates != nil {
		copied.LeaveDates = make([]string, len(r.LeaveDates))
		copy(copied.LeaveDates, r.LeaveDates)
	}
	return &copied
}

// ActiveIndexMetadata pins the tracking cutoff of the index
type ActiveIndexMetadata struct {
	CutoffTimestamp int64  `json:"cutoffTimestamp"`
	CutoffDate      string `json:"cutoffDate"`
}

// ActiveIndex is the shadow map of currently-pending approvals keyed by
// approval number. Terminal transitions delete the entry.
type ActiveIndex struct {
	Metadata  ActiveIndexMetadata        `json:"metadata"`
	Approvals map[string]*ApprovalRecord `json:"approvals"`
}

// NewActiveIndex creates an empty index with the given cutoff
func NewActiveIndex(cutoff int64) *ActiveIndex {
	return &ActiveIndex{
		Metadata: ActiveIndexMetadata{
			CutoffTimestamp: cutoff,
			CutoffDate:      time.Unix(cutoff, 0).Format(time.RFC3339),
		},
		Approvals: make(map[string]*ApprovalRecord),
	}
}

// Clone returns a deep copy of the index
func (x *ActiveIndex) Clone() *ActiveIndex {
	copied := &ActiveIndex{
		Metadata:  x.Metadata,
		Approvals: make(map[string]*ApprovalRecord, len(x.Approvals)),
	}
	for spNo, rec := range x.Approvals {
		copied.Approvals[spNo] = rec.Clone()
	}
	return copied
}

// Has reports whether the approval number is tracked
func (x *ActiveIndex) Has(spNo string) bool {
	_, ok := x.Approvals[spNo]
	return ok
}

// Get returns the tracked record, or nil
func (x *ActiveIndex) Get(spNo string) *ApprovalRecord {
	return x.Approvals[spNo]
}

// Insert adds a pending approval to the index. Only pending approvals
// submitted at or after the cutoff may enter.
func (x *ActiveIndex) Insert(rec *ApprovalRecord) error {
	if types.ApprovalStatus(rec.CurrentStatus) != types.StatusPending {
		return goerr.New("active index only tracks pending approvals",
			goerr.V(types.SpNoKey, rec.SpNo),
			goerr.V(types.UserIDKey, rec.UserID),
			goerr.V("status", rec.CurrentStatus))
	}
	if rec.ApplyTime < x.Metadata.CutoffTimestamp {
		return goerr.New("approval predates tracking cutoff",
			goerr.V(types.SpNoKey, rec.SpNo),
			goerr.V(types.UserIDKey, rec.UserID),
			goerr.V("apply_time", rec.ApplyTime),
			goerr.V("cutoff", x.Metadata.CutoffTimestamp))
	}
	if x.Approvals == nil {
		x.Approvals = make(map[string]*ApprovalRecord)
	}
	x.Approvals[rec.SpNo] = rec
	return nil
}

// Delete removes the approval from the index
func (x *ActiveIndex) Delete(spNo string) {
	delete(x.Approvals, spNo)
}

// NewApprovalRecord builds an index entry from a fresh approval detail
func NewApprovalRecord(d *ApprovalDetail, emp Employee, slots []string, now time.Time) *ApprovalRecord {
	return &ApprovalRecord{
		SpNo:            d.SpNo,
		UserID:          d.ApplierUserID(),
		Name:            emp.Name,
		Department:      emp.Department,
		ApplyTime:       d.ApplyTime,
		SubmitTime:      time.Unix(d.ApplyTime, 0).Format(time.RFC3339),
		CurrentStatus:   d.SpStatus,
		StatusText:      types.ApprovalStatus(d.SpStatus).Text(),
		LeaveDates:      slots,
		LastChecked:     now.Unix(),
		LastCheckedTime: now.Format(time.RFC3339),
	}
}
