package interfaces

import (
	"context"

	"github.com/minato-lab/leavesync/pkg/domain/model"
)

// LeaveRepository owns the leave document. Save replaces the whole document.
type LeaveRepository interface {
	Load(ctx context.Context) (*model.LeaveDocument, error)
	Save(ctx context.Context, doc *model.LeaveDocument) error
}

// ActiveIndexRepository owns the shadow index of pending approvals.
// Load returns a deep copy; Save replaces the whole index.
type ActiveIndexRepository interface {
	Load(ctx context.Context) (*model.ActiveIndex, error)
	Save(ctx context.Context, idx *model.ActiveIndex) error
}

// CursorRepository owns the singleton incremental sync cursor
type CursorRepository interface {
	Load(ctx context.Context) (*model.SyncCursor, error)
	Save(ctx context.Context, cursor *model.SyncCursor) error
}

// Repository aggregates the persisted stores. All writers must hold the
// sync lock; readers may go through directly.
type Repository interface {
	Leave() LeaveRepository
	ActiveIndex() ActiveIndexRepository
	Cursor() CursorRepository
	Close() error
}
