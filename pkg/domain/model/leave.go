package model

import "time"

// Employee holds the upstream identity attached to a leave applicant
type Employee struct {
	Name       string `json:"name"`
	Department string `json:"department"`
}

// LeaveDocument is the single JSON document materializing upstream leave
// approvals. LeaveData maps userid -> date slot -> status text.
type LeaveDocument struct {
	LeaveData    map[string]map[string]string `json:"leaveData"`
	EmployeeInfo map[string]Employee          `json:"employeeInfo"`
	UpdatedAt    string                       `json:"updatedAt"`
}

// NewLeaveDocument creates an empty leave document
func NewLeaveDocument() *LeaveDocument {
	return &LeaveDocument{
		LeaveData:    make(map[string]map[string]string),
		EmployeeInfo: make(map[string]Employee),
	}
}

// Clone returns a deep copy of the document
func (d *LeaveDocument) Clone() *LeaveDocument {
	copied := &LeaveDocument{
		LeaveData:    make(map[string]map[string]string, len(d.LeaveData)),
		EmployeeInfo: make(map[string]Employee, len(d.EmployeeInfo)),
		UpdatedAt:    d.UpdatedAt,
	}
	for userID, slots := range d.LeaveData {
		dst := make(map[string]string, len(slots))
		for slot, text := range slots {
			dst[slot] = text
		}
		copied.LeaveData[userID] = dst
	}
	for userID, emp := range d.EmployeeInfo {
		copied.EmployeeInfo[userID] = emp
	}
	return copied
}

// SetSlot sets the status text of one date slot for one employee
func (d *LeaveDocument) SetSlot(userID, slot, text string) {
	if d.LeaveData == nil {
		d.LeaveData = make(map[string]map[string]string)
	}
	if _, ok := d.LeaveData[userID]; !ok {
		d.LeaveData[userID] = make(map[string]string)
	}
	d.LeaveData[userID][slot] = text
}

// Slot returns the status text of one date slot, with an existence flag
func (d *LeaveDocument) Slot(userID, slot string) (string, bool) {
	slots, ok := d.LeaveData[userID]
	if !ok {
		return "", false
	}
	text, ok := slots[slot]
	return text, ok
}

// HasEmployee reports whether the employee appears in the document
func (d *LeaveDocument) HasEmployee(userID string) bool {
	_, ok := d.EmployeeInfo[userID]
	return ok
}

// Touch refreshes the UpdatedAt timestamp
func (d *LeaveDocument) Touch(now time.Time) {
	d.UpdatedAt = now.Format(time.RFC3339)
}
