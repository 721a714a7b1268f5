package cli

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanstork/stratum-loader/internal/failure"
	"github.com/stanstork/stratum-loader/internal/job"
)

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Query file not found (404)", Describe(failure.New(failure.QueryNotFound, errors.New("x"))))
	assert.Equal(t, "Unknown error (500)", Describe(errors.New("disk full")))
}

func TestSetupFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("STRATUM_ASSETS_BUCKET", "assets")
	t.Setenv("STRATUM_STORAGE_LOCAL_ROOT", filepath.Join(dir, "buckets"))
	t.Setenv("STRATUM_WAREHOUSE_DSN", filepath.Join(dir, "warehouse.db"))
	t.Setenv("STRATUM_TEMP_DIR", filepath.Join(dir, "tmp"))

	env, err := Setup(context.Background(), zerolog.Nop())
	require.NoError(t, err)
	defer env.Close()

	assert.Equal(t, "assets", env.Config.AssetsBucket)
	err = env.Runner.RunQuery(context.Background(), job.QueryParams{Query: "missing.sql", DestinationTable: "t"})
	assert.Equal(t, failure.QueryNotFound, failure.From(err))
}
