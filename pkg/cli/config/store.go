package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/minato-lab/leavesync/pkg/domain/interfaces"
	"github.com/minato-lab/leavesync/pkg/repository/jsonfile"
	"github.com/minato-lab/leavesync/pkg/repository/memory"
	"github.com/minato-lab/leavesync/pkg/usecase"
)

type Store struct {
	backend  string
	dataDir  string
	baseline int64
	cutoff   int64
}

func (x *Store) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "store-backend",
			Usage:       "Storage backend [jsonfile, memory]",
			Category:    "Storage",
			Value:       "jsonfile",
			Sources:     cli.EnvVars("LEAVESYNC_STORE_BACKEND"),
			Destination: &x.backend,
		},
		&cli.StringFlag{
			Name:        "data-dir",
			Usage:       "Directory of the persisted JSON stores",
			Category:    "Storage",
			Value:       "./data",
			Sources:     cli.EnvVars("LEAVESYNC_DATA_DIR"),
			Destination: &x.dataDir,
		},
		&cli.Int64Flag{
			Name:        "sync-baseline",
			Usage:       "Unix timestamp the first incremental poll starts from",
			Category:    "Storage",
			Value:       usecase.DefaultBaseline,
			Sources:     cli.EnvVars("SYNC_BASELINE"),
			Destination: &x.baseline,
		},
		&cli.Int64Flag{
			Name:        "tracking-cutoff",
			Usage:       "Unix timestamp; approvals applied before it are not tracked (defaults to the sync baseline)",
			Category:    "Storage",
			Sources:     cli.EnvVars("LEAVESYNC_TRACKING_CUTOFF"),
			Destination: &x.cutoff,
		},
	}
}

func (x Store) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", x.backend),
		slog.String("data-dir", x.dataDir),
		slog.Int64("baseline", x.baseline),
		slog.Int64("cutoff", x.Cutoff()),
	)
}

// Baseline returns the incremental-poll baseline timestamp
func (x *Store) Baseline() int64 {
	return x.baseline
}

// Cutoff returns the tracking cutoff, falling back to the baseline
func (x *Store) Cutoff() int64 {
	if x.cutoff != 0 {
		return x.cutoff
	}
	return x.baseline
}

// Configure initializes the repository for the selected backend
func (x *Store) Configure() (interfaces.Repository, error) {
	switch x.backend {
	case "jsonfile":
		return jsonfile.New(x.dataDir, x.Cutoff(), x.baseline)
	case "memory":
		return memory.New(x.Cutoff(), x.baseline), nil
	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "unknown storage backend",
			goerr.V("backend", x.backend))
	}
}
