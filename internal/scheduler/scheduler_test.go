package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanstork/stratum-loader/internal/config"
	"github.com/stanstork/stratum-loader/internal/failure"
	"github.com/stanstork/stratum-loader/internal/job"
)

type recordingJobs struct {
	csv   []job.CSVParams
	query []job.QueryParams
	err   error
}

func (r *recordingJobs) RunCSV(_ context.Context, p job.CSVParams) (*job.CSVResult, error) {
	r.csv = append(r.csv, p)
	return &job.CSVResult{}, r.err
}

func (r *recordingJobs) RunQuery(_ context.Context, p job.QueryParams) error {
	r.query = append(r.query, p)
	return r.err
}

func runAll(s *Scheduler) {
	for _, e := range s.cron.Entries() {
		e.Job.Run()
	}
}

func TestSchedulerRunsConfiguredJobs(t *testing.T) {
	off := false
	jobs := &recordingJobs{}
	s, err := New(jobs, []config.ScheduleConfig{
		{Name: "nightly", Cron: "0 3 * * *", CSV: &config.CSVJobConfig{
			Bucket: "landing", Prefix: "a_", Schema: "s.yaml", DestinationTable: "t", ArchiveFiles: &off,
		}},
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	runAll(s)
	require.Len(t, jobs.csv, 1)
	assert.Equal(t, "landing", jobs.csv[0].Bucket)
	assert.False(t, jobs.csv[0].ArchiveFiles)
	assert.True(t, jobs.csv[0].SkipHeaders)
}

func TestSchedulerQueryJobFailureIsLogged(t *testing.T) {
	jobs := &recordingJobs{err: failure.New(failure.CreationFailed, errors.New("boom"))}
	s, err := New(jobs, []config.ScheduleConfig{
		{Cron: "@hourly", Query: &config.QueryJobConfig{Query: "q.sql", DestinationTable: "t", Append: true}},
	}, zerolog.Nop())
	require.NoError(t, err)

	assert.NotPanics(t, func() { runAll(s) })
	require.Len(t, jobs.query, 1)
	assert.True(t, jobs.query[0].Append)
}

func TestSchedulerRejectsBadSchedules(t *testing.T) {
	_, err := New(&recordingJobs{}, []config.ScheduleConfig{
		{Name: "bad", Cron: "every tuesday", Query: &config.QueryJobConfig{Query: "q.sql"}},
	}, zerolog.Nop())
	assert.Error(t, err)

	_, err = New(&recordingJobs{}, []config.ScheduleConfig{{Name: "empty", Cron: "@daily"}}, zerolog.Nop())
	assert.Error(t, err)
}

func TestSchedulerStartStop(t *testing.T) {
	s, err := New(&recordingJobs{}, nil, zerolog.Nop())
	require.NoError(t, err)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
