package jsonfile

import (
	"context"

	"github.com/minato-lab/leavesync/pkg/domain/model"
)

type cursorRepository struct {
	path     string
	baseline int64
}

func (r *cursorRepository) Load(ctx context.Context) (*model.SyncCursor, error) {
	var cursor model.SyncCursor
	ok, err := readJSON(r.path, &cursor)
	if err != nil {
		return nil, err
	}
	if !ok || cursor.LastSyncEndTimestamp == 0 {
		return model.NewSyncCursor(r.baseline), nil
	}
	return &cursor, nil
}

func (r *cursorRepository) Save(ctx context.Context, cursor *model.SyncCursor) error {
	return writeJSON(r.path, cursor)
}
