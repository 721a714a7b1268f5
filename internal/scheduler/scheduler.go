// Package scheduler triggers configured load jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/stanstork/stratum-loader/internal/config"
	"github.com/stanstork/stratum-loader/internal/failure"
	"github.com/stanstork/stratum-loader/internal/job"
)

type Jobs interface {
	RunCSV(ctx context.Context, p job.CSVParams) (*job.CSVResult, error)
	RunQuery(ctx context.Context, p job.QueryParams) error
}

// Scheduler runs each schedule's job in cron's goroutine. A schedule whose
// previous run is still going skips its tick.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
}

func New(jobs Jobs, schedules []config.ScheduleConfig, logger zerolog.Logger) (*Scheduler, error) {
	logger = logger.With().Str("component", "scheduler").Logger()
	adapter := newCronAdapter(logger)
	c := cron.New(
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)

	for i, s := range schedules {
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("schedule-%d", i)
		}
		run, err := jobFunc(jobs, name, s, logger)
		if err != nil {
			return nil, err
		}
		if _, err := c.AddFunc(s.Cron, run); err != nil {
			return nil, errors.Wrapf(err, "schedule %s", name)
		}
	}
	return &Scheduler{cron: c, logger: logger}, nil
}

// Len returns the number of registered schedules.
func (s *Scheduler) Len() int { return len(s.cron.Entries()) }

func (s *Scheduler) Start() {
	s.logger.Info().Int("schedules", s.Len()).Msg("Scheduler started")
	s.cron.Start()
}

// Stop stops triggering and waits for running jobs, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info().Msg("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func jobFunc(jobs Jobs, name string, s config.ScheduleConfig, logger zerolog.Logger) (func(), error) {
	logger = logger.With().Str("schedule", name).Logger()
	report := func(err error) {
		if err != nil {
			logger.Error().Err(err).Str("kind", failure.From(err).String()).Msg("Scheduled job failed")
			return
		}
		logger.Info().Msg("Scheduled job finished")
	}

	switch {
	case s.CSV != nil:
		p := CSVParams(*s.CSV)
		return func() {
			_, err := jobs.RunCSV(context.Background(), p)
			report(err)
		}, nil
	case s.Query != nil:
		p := QueryParams(*s.Query)
		return func() { report(jobs.RunQuery(context.Background(), p)) }, nil
	}
	return nil, errors.Errorf("schedule %s has no job", name)
}

// CSVParams converts a configured csv job, defaulting archiving and header
// skipping to on.
func CSVParams(c config.CSVJobConfig) job.CSVParams {
	p := job.NewCSVParams(c.Bucket, c.Prefix, c.Schema, c.DestinationTable)
	if c.ArchiveFiles != nil {
		p.ArchiveFiles = *c.ArchiveFiles
	}
	if c.SkipHeaders != nil {
		p.SkipHeaders = *c.SkipHeaders
	}
	return p
}

func QueryParams(c config.QueryJobConfig) job.QueryParams {
	return job.QueryParams{
		Query:            c.Query,
		DestinationTable: c.DestinationTable,
		UseLegacySQL:     c.UseLegacySQL,
		Append:           c.Append,
	}
}
