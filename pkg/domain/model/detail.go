package model

import (
	"github.com/minato-lab/leavesync/pkg/domain/types"
)

// LeaveFormName is the sp_name of the vacation approval template
const LeaveFormName = "请假"

// ApprovalDetail is the upstream `info` object of one approval, reduced to
// the fields this system parses.
type ApprovalDetail struct {
	SpNo      string    `json:"sp_no"`
	SpName    string    `json:"sp_name"`
	SpStatus  int       `json:"sp_status"`
	ApplyTime int64     `json:"apply_time"`
	Applier   *Applier  `json:"applier,omitempty"`
	Applyer   *Applier  `json:"applyer,omitempty"`
	ApplyData ApplyData `json:"apply_data"`
}

// Applier identifies the employee who submitted the approval
type Applier struct {
	UserID  string `json:"userid"`
	PartyID string `json:"partyid"`
}

// ApplyData holds the form contents of an approval
type ApplyData struct {
	Contents []Content `json:"contents"`
}

// Content is one form control entry
type Content struct {
	Control string       `json:"control"`
	Value   ContentValue `json:"value"`
}

// ContentValue carries the vacation block when the control is a leave field
type ContentValue struct {
	Vacation *Vacation `json:"vacation,omitempty"`
}

// Vacation is the leave-specific value of a form control
type Vacation struct {
	Attendance Attendance `json:"attendance"`
}

// Attendance holds the requested leave period
type Attendance struct {
	DateRange DateRange  `json:"date_range"`
	SliceInfo *SliceInfo `json:"slice_info,omitempty"`
}

// DateRange is the begin/end of the leave period. Type is "halfday" or
// "hour" or empty for whole days.
type DateRange struct {
	Type     string `json:"type"`
	NewBegin int64  `json:"new_begin"`
	NewEnd   int64  `json:"new_end"`
}

// SliceInfo carries per-day breakdown when the upstream provides one
type SliceInfo struct {
	DayItems []DayItem `json:"day_items"`
}

// DayItem is one calendar day of a sliced leave period. Duration is in
// seconds; 43200 marks a half day.
type DayItem struct {
	Daytime  int64 `json:"daytime"`
	Duration int64 `json:"duration"`
}

// ApplierUserID returns the applicant userid, accepting both the `applier`
// and the legacy `applyer` spelling seen in upstream responses.
func (d *ApprovalDetail) ApplierUserID() string {
	if d.Applier != nil && d.Applier.UserID != "" {
		return d.Applier.UserID
	}
	if d.Applyer != nil {
		return d.Applyer.UserID
	}
	return ""
}

// Status returns the mapped approval status; ok is false for unknown codes
func (d *ApprovalDetail) Status() (types.ApprovalStatus, bool) {
	return types.ApprovalStatusFromCode(d.SpStatus)
}

// Vacation returns the first vacation block of the form, or nil
func (d *ApprovalDetail) Vacation() *Vacation {
	for _, c := range d.ApplyData.Contents {
		if c.Value.Vacation != nil {
			return c.Value.Vacation
		}
	}
	return nil
}
