package memory

import (
	"context"
	"sync"

	"github.com/minato-lab/leavesync/pkg/domain/interfaces"
	"github.com/minato-lab/leavesync/pkg/domain/model"
)

// Repository is an in-memory implementation used by tests and development mode
type Repository struct {
	leave  *leaveRepository
	active *activeIndexRepository
	cursor *cursorRepository
}

var _ interfaces.Repository = &Repository{}

// New creates an in-memory repository seeded with the cutoff and baseline
func New(cutoff, baseline int64) *Repository {
	return &Repository{
		leave:  &leaveRepository{doc: model.NewLeaveDocument()},
		active: &activeIndexRepository{idx: model.NewActiveIndex(cutoff)},
		cursor: &cursorRepository{cursor: model.NewSyncCursor(baseline)},
	}
}

func (m *Repository) Leave() interfaces.LeaveRepository {
	return m.leave
}

func (m *Repository) ActiveIndex() interfaces.ActiveIndexRepository {
	return m.active
}

func (m *Repository) Cursor() interfaces.CursorRepository {
	return m.cursor
}

func (m *Repository) Close() error {
	return nil
}

type leaveRepository struct {
	mu  sync.RWMutex
	doc *model.LeaveDocument
}

func (r *leaveRepository) Load(ctx context.Context) (*model.LeaveDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.doc.Clone(), nil
}

func (r *leaveRepository) Save(ctx context.Context, doc *model.LeaveDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doc = doc.Clone()
	return nil
}

type activeIndexRepository struct {
	mu  sync.RWMutex
	idx *model.ActiveIndex
}

func (r *activeIndexRepository) Load(ctx context.Context) (*model.ActiveIndex, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.idx.Clone(), nil
}

func (r *activeIndexRepository) Save(ctx context.Context, idx *model.ActiveIndex) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.idx = idx.Clone()
	return nil
}

type cursorRepository struct {
	mu     sync.RWMutex
	cursor *model.SyncCursor
}

func (r *cursorRepository) Load(ctx context.Context) (*model.SyncCursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	copied := *r.cursor
	return &copied, nil
}

func (r *cursorRepository) Save(ctx context.Context, cursor *model.SyncCursor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *cursor
	r.cursor = &copied
	return nil
}
