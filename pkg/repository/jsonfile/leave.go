package jsonfile

import (
	"context"

	"github.com/minato-lab/leavesync/pkg/domain/model"
)

type leaveRepository struct {
	path string
}

func (r *leaveRepository) Load(ctx context.Context) (*model.LeaveDocument, error) {
	doc := model.NewLeaveDocument()
	ok, err := readJSON(r.path, doc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return model.NewLeaveDocument(), nil
	}
	if doc.LeaveData == nil {
		doc.LeaveData = make(map[string]map[string]string)
	}
	if doc.EmployeeInfo == nil {
		doc.EmployeeInfo = make(map[string]model.Employee)
	}
	return doc, nil
}

func (r *leaveRepository) Save(ctx context.Context, doc *model.LeaveDocument) error {
	return writeJSON(r.path, doc)
}
