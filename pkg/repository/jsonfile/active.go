package jsonfile

import (
	"context"

	"github.com/minato-lab/leavesync/pkg/domain/model"
)

type activeIndexRepository struct {
	path   string
	cutoff int64
}

func (r *activeIndexRepository) Load(ctx context.Context) (*model.ActiveIndex, error) {
	var idx model.ActiveIndex
	ok, err := readJSON(r.path, &idx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return model.NewActiveIndex(r.cutoff), nil
	}
	if idx.Approvals == nil {
		idx.Approvals = make(map[string]*model.ApprovalRecord)
	}
	// The configured cutoff is authoritative; an index persisted by an
	// earlier deploy must not keep enforcing a stale one
	if idx.Metadata.CutoffTimestamp != r.cutoff {
		idx.Metadata = model.NewActiveIndex(r.cutoff).Metadata
	}
	// Load hands out a copy so callers never mutate a shared document
	return idx.Clone(), nil
}

func (r *activeIndexRepository) Save(ctx context.Context, idx *model.ActiveIndex) error {
	return writeJSON(r.path, idx)
}
