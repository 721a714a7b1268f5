// Package job sequences one load from object storage into the warehouse:
// the repair-and-load path for delimited files and the query path.
package job

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/stanstork/stratum-loader/internal/objectstore"
	"github.com/stanstork/stratum-loader/internal/warehouse"
)

type Settings struct {
	AssetsBucket  string // schemas and queries live here
	TempDir       string
	ArchivePrefix string
	FixedPrefix   string
}

// Runner runs jobs against process-wide clients. A Runner holds no state
// between runs and is safe for concurrent use.
type Runner struct {
	store     objectstore.Store
	warehouse warehouse.Warehouse
	settings  Settings
	logger    zerolog.Logger
}

func NewRunner(store objectstore.Store, wh warehouse.Warehouse, settings Settings, logger zerolog.Logger) *Runner {
	if settings.TempDir == "" {
		settings.TempDir = os.TempDir()
	}
	if settings.ArchivePrefix == "" {
		settings.ArchivePrefix = "ARCHIVED/"
	}
	if settings.FixedPrefix == "" {
		settings.FixedPrefix = "FIXED_"
	}
	return &Runner{
		store:     store,
		warehouse: wh,
		settings:  settings,
		logger:    logger.With().Str("component", "job").Logger(),
	}
}

// scratch creates the per-run working directory.
func (r *Runner) scratch(runID string) (string, error) {
	dir := filepath.Join(r.settings.TempDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create scratch directory")
	}
	return dir, nil
}

func newRunID() string { return uuid.NewString() }
