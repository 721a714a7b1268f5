// Package cli wires the one-shot commands the same way the server is wired.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/stanstork/stratum-loader/internal/config"
	"github.com/stanstork/stratum-loader/internal/failure"
	"github.com/stanstork/stratum-loader/internal/job"
	"github.com/stanstork/stratum-loader/internal/objectstore"
	"github.com/stanstork/stratum-loader/internal/warehouse"
)

type Env struct {
	Config *config.Config
	Runner *job.Runner

	closers []io.Closer
}

// Setup reads the configuration and opens the store and warehouse.
func Setup(ctx context.Context, logger zerolog.Logger) (*Env, error) {
	cfg, err := config.Read(config.New())
	if err != nil {
		return nil, err
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	env := &Env{Config: cfg}
	store, err := objectstore.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	if c, ok := store.(io.Closer); ok {
		env.closers = append(env.closers, c)
	}

	wh, err := warehouse.Open(ctx, cfg.Warehouse.Driver, cfg.Warehouse.ProjectID, cfg.Warehouse.DSN)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.closers = append(env.closers, wh)

	env.Runner = job.NewRunner(store, wh, job.Settings{
		AssetsBucket:  cfg.AssetsBucket,
		TempDir:       cfg.TempDir,
		ArchivePrefix: cfg.ArchivePrefix,
		FixedPrefix:   cfg.FixedPrefix,
	}, logger)
	return env, nil
}

func (e *Env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i].Close()
	}
	e.closers = nil
}

// Fail prints the failure description and exits with status 1.
func Fail(err error) {
	fmt.Fprintln(os.Stderr, Describe(err))
	os.Exit(1)
}

// Describe returns the line printed for a failed job.
func Describe(err error) string {
	kind := failure.From(err)
	return fmt.Sprintf("%s (%d)", kind.Description(), kind.Status())
}
