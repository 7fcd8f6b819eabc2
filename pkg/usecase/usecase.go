package usecase

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/time/rate"

	"github.com/minato-lab/leavesync/pkg/domain/interfaces"
	"github.com/minato-lab/leavesync/pkg/domain/model"
	"github.com/minato-lab/leavesync/pkg/domain/types"
	"github.com/minato-lab/leavesync/pkg/service/wecom"
)

// Default tracking baseline: 2026-01-01 UTC+8. Deployments override it via
// configuration; the constant only seeds the default flag value.
const DefaultBaseline = 1767196800

// manualTriggerInterval is the minimum spacing of manual sync triggers
const manualTriggerInterval = 10 * time.Second

// UseCase wires the approval-sync engine: the three update sources, the
// single sync lock, and the persisted stores.
type UseCase struct {
	repo   interfaces.Repository
	client wecom.Client
	codec  *wecom.Codec

	lock  *SyncLock
	queue *callbackQueue

	baseline   int64
	cutoff     int64
	chunkPause time.Duration
	trigger    *rate.Limiter
	now        func() time.Time
	leaveForms map[string]bool
}

// Option is a functional option for UseCase configuration
type Option func(*UseCase)

// WithCodec enables callback processing with the given crypto codec
func WithCodec(codec *wecom.Codec) Option {
	return func(u *UseCase) { u.codec = codec }
}

// WithBaseline sets the incremental-poll baseline timestamp
func WithBaseline(ts int64) Option {
	return func(u *UseCase) { u.baseline = ts }
}

// WithCutoff sets the active-index tracking cutoff timestamp
func WithCutoff(ts int64) Option {
	return func(u *UseCase) { u.cutoff = ts }
}

// WithClock replaces the time source (used by tests)
func WithClock(now func() time.Time) Option {
	return func(u *UseCase) { u.now = now }
}

// WithChunkPause overrides the pause between query-window chunks
func WithChunkPause(d time.Duration) Option {
	return func(u *UseCase) { u.chunkPause = d }
}

// WithLeaveForms adds extra approval template names recognized as leave
// requests, on top of the built-in one.
func WithLeaveForms(names []string) Option {
	return func(u *UseCase) {
		for _, name := range names {
			if name != "" {
				u.leaveForms[name] = true
			}
		}
	}
}

// New creates the engine
func New(repo interfaces.Repository, client wecom.Client, opts ...Option) *UseCase {
	u := &UseCase{
		repo:       repo,
		client:     client,
		lock:       &SyncLock{},
		queue:      &callbackQueue{},
		baseline:   DefaultBaseline,
		cutoff:     DefaultBaseline,
		chunkPause: 500 * time.Millisecond,
		trigger:    rate.NewLimiter(rate.Every(manualTriggerInterval), 1),
		now:        time.Now,
		leaveForms: map[string]bool{model.LeaveFormName: true},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// isLeaveName reports whether a template name counts as a leave request.
// Callback events may omit the name; those pass and get filtered after
// the authoritative detail fetch.
func (u *UseCase) isLeaveName(name string) bool {
	if name == "" {
		return true
	}
	return u.leaveForms[name]
}

// Lock exposes the sync lock for status reporting
func (u *UseCase) Lock() *SyncLock {
	return u.lock
}

// CallbackConfigured reports whether callback credentials are present
func (u *UseCase) CallbackConfigured() bool {
	return u.codec != nil
}

func errLockBusy() error {
	return goerr.New("sync already in progress", goerr.T(types.ErrTagLockBusy))
}
