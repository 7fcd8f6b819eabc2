package jsonfile

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/minato-lab/leavesync/pkg/domain/interfaces"
	"github.com/minato-lab/leavesync/pkg/domain/types"
)

const (
	leaveFileName  = "leave.json"
	activeFileName = "active_approvals.json"
	cursorFileName = "sync_cursor.json"
)

// Repository persists the leave document, the active index, and the sync
// cursor as pretty-printed JSON files under one data directory.
type Repository struct {
	leave  *leaveRepository
	active *activeIndexRepository
	cursor *cursorRepository
}

var _ interfaces.Repository = &Repository{}

// New creates a file-backed repository. Missing files materialize as empty
// documents seeded with the given cutoff and baseline on first load.
func New(dataDir string, cutoff, baseline int64) (*Repository, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, goerr.Wrap(err, "failed to create data directory",
			goerr.T(types.ErrTagStore), goerr.V("dir", dataDir))
	}

	return &Repository{
		leave:  &leaveRepository{path: filepath.Join(dataDir, leaveFileName)},
		active: &activeIndexRepository{path: filepath.Join(dataDir, activeFileName), cutoff: cutoff},
		cursor: &cursorRepository{path: filepath.Join(dataDir, cursorFileName), baseline: baseline},
	}, nil
}

func (r *Repository) Leave() interfaces.LeaveRepository {
	return r.leave
}

func (r *Repository) ActiveIndex() interfaces.ActiveIndexRepository {
	return r.active
}

func (r *Repository) Cursor() interfaces.CursorRepository {
	return r.cursor
}

func (r *Repository) Close() error {
	return nil
}

// writeJSON writes v atomically: marshal, write a temp file in the same
// directory, then rename over the target. A crash mid-write never leaves a
// torn document behind.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal document",
			goerr.T(types.ErrTagStore), goerr.V("path", path))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return goerr.Wrap(err, "failed to create temp file",
			goerr.T(types.ErrTagStore), goerr.V("path", path))
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return goerr.Wrap(err, "failed to write temp file",
			goerr.T(types.ErrTagStore), goerr.V("path", path))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return goerr.Wrap(err, "failed to close temp file",
			goerr.T(types.ErrTagStore), goerr.V("path", path))
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return goerr.Wrap(err, "failed to replace document",
			goerr.T(types.ErrTagStore), goerr.V("path", path))
	}
	return nil
}

// readJSON reads the file into v. ok is false when the file does not exist.
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is built from the configured data dir
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to read document",
			goerr.T(types.ErrTagStore), goerr.V("path", path))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, goerr.Wrap(err, "failed to parse document",
			goerr.T(types.ErrTagStore), goerr.V("path", path))
	}
	return true, nil
}
