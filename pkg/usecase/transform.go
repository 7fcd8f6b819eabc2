package usecase

import (
	"context"

	"github.com/minato-lab/leavesync/pkg/domain/model"
	"github.com/minato-lab/leavesync/pkg/utils/logging"
)

// unknownText is the fallback for failed user/department lookups
const unknownText = "未知"

// employeeFor resolves the applicant identity through the upstream
// directory caches, falling back to "未知" on lookup failure.
func (u *UseCase) employeeFor(ctx context.Context, userID string) model.Employee {
	emp := model.Employee{Name: unknownText, Department: unknownText}

	info, err := u.client.User(ctx, userID)
	if err != nil || info == nil {
		return emp
	}
	if info.Name != "" {
		emp.Name = info.Name
	}

	deptID := info.MainDepartment
	if deptID == 0 && len(info.DepartmentIDs) > 0 {
		deptID = info.DepartmentIDs[0]
	}
	if deptID != 0 {
		if name, err := u.client.Department(ctx, deptID); err == nil && name != "" {
			emp.Department = name
		}
	}
	return emp
}

// buildIncoming reshapes approval details into a leave-document fragment
// ready for merging, plus the parsed slot list per approval number.
// Details without a parsable vacation block or with an unknown status code
// are logged and skipped.
func (u *UseCase) buildIncoming(ctx context.Context, details []*model.ApprovalDetail) (*model.LeaveDocument, map[string][]string) {
	logger := logging.From(ctx)

	incoming := model.NewLeaveDocument()
	slotsBySpNo := make(map[string][]string, len(details))

	for _, d := range details {
		status, ok := d.Status()
		if !ok {
			logger.Warn("skipping approval with unknown status",
				"sp_no", d.SpNo, "sp_status", d.SpStatus)
			continue
		}

		userID := d.ApplierUserID()
		if userID == "" {
			logger.Warn("skipping approval without applicant", "sp_no", d.SpNo)
			continue
		}

		slots := model.DateSlots(d)
		if len(slots) == 0 {
			logger.Warn("skipping approval without vacation dates", "sp_no", d.SpNo)
			continue
		}

		text := status.Text()
		for _, slot := range slots {
			incoming.SetSlot(userID, slot, text)
		}
		incoming.EmployeeInfo[userID] = u.employeeFor(ctx, userID)
		slotsBySpNo[d.SpNo] = slots
	}

	return incoming, slotsBySpNo
}
