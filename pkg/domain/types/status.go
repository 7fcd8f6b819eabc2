package types

// ApprovalStatus is the upstream sp_status code attached to an approval
type ApprovalStatus int

const (
	StatusPending   ApprovalStatus = 1
	StatusApproved  ApprovalStatus = 2
	StatusRejected  ApprovalStatus = 3
	StatusWithdrawn ApprovalStatus = 4
	StatusRevoked   ApprovalStatus = 6
	StatusDeleted   ApprovalStatus = 7
	StatusPaid      ApprovalStatus = 10
)

// AllApprovalStatuses returns all statuses the upstream is known to emit
func AllApprovalStatuses() []ApprovalStatus {
	return []ApprovalStatus{
		StatusPending,
		StatusApproved,
		StatusRejected,
		StatusWithdrawn,
		StatusRevoked,
		StatusDeleted,
		StatusPaid,
	}
}

// ApprovalStatusFromCode maps an upstream status code to an ApprovalStatus.
// Unknown codes return false and the approval is skipped by callers.
func ApprovalStatusFromCode(code int) (ApprovalStatus, bool) {
	s := ApprovalStatus(code)
	if !s.IsValid() {
		return 0, false
	}
	return s, true
}

// IsValid checks if the status is one the upstream is known to emit
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case StatusPending,
		StatusApproved,
		StatusRejected,
		StatusWithdrawn,
		StatusRevoked,
		StatusDeleted,
		StatusPaid:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status ends tracking of an approval.
// Every valid status except Pending is terminal.
func (s ApprovalStatus) IsTerminal() bool {
	return s.IsValid() && s != StatusPending
}

// Text returns the display text persisted into the leave document
func (s ApprovalStatus) Text() string {
	switch s {
	case StatusPending:
		return "待审批"
	case StatusApproved:
		return "已通过"
	case StatusRejected:
		return "已驳回"
	case StatusWithdrawn:
		return "已撤销"
	case StatusRevoked:
		return "通过后撤销"
	case StatusDeleted:
		return "已删除"
	case StatusPaid:
		return "已支付"
	default:
		return "未知"
	}
}

// String returns the English name used in logs
func (s ApprovalStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusApproved:
		return "approved"
	case StatusRejected:
		return "rejected"
	case StatusWithdrawn:
		return "withdrawn"
	case StatusRevoked:
		return "revoked"
	case StatusDeleted:
		return "deleted"
	case StatusPaid:
		return "paid"
	default:
		return "unknown"
	}
}
