package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestReadFile(t *testing.T) {
	p := writeConfig(t, `
server_port: "9090"
assets_bucket: my-assets-bucket
rate_limit: 2.5
storage:
  driver: gcs
warehouse:
  driver: BigQuery
  project_id: analytics
schedules:
  - name: nightly-sales
    cron: "0 3 * * *"
    csv:
      bucket: landing
      prefix: sales_
      schema: sales.yaml
      destination_table: ds.sales_{6:14}
      archive_files: false
  - name: rollup
    cron: "@hourly"
    query:
      query: rollup.sql
      destination_table: ds.rollup
      append: true
`)
	v := New()
	v.SetConfigFile(p)
	cfg, err := Read(v)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, "my-assets-bucket", cfg.AssetsBucket)
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, 1, cfg.RateBurst)
	assert.Equal(t, "gcs", cfg.Storage.Driver)
	assert.Equal(t, "bigquery", cfg.Warehouse.Driver)
	assert.Equal(t, "analytics", cfg.Warehouse.ProjectID)
	assert.Equal(t, "ARCHIVED/", cfg.ArchivePrefix)
	assert.Equal(t, "FIXED_", cfg.FixedPrefix)

	require.Len(t, cfg.Schedules, 2)
	csv := cfg.Schedules[0].CSV
	require.NotNil(t, csv)
	assert.Equal(t, "ds.sales_{6:14}", csv.DestinationTable)
	require.NotNil(t, csv.ArchiveFiles)
	assert.False(t, *csv.ArchiveFiles)
	assert.Nil(t, csv.SkipHeaders)

	q := cfg.Schedules[1].Query
	require.NotNil(t, q)
	assert.True(t, q.Append)
	assert.False(t, q.UseLegacySQL)
}

func TestReadEnvOverrides(t *testing.T) {
	t.Setenv("STRATUM_ASSETS_BUCKET", "assets")
	t.Setenv("STRATUM_WAREHOUSE_DSN", "file:test.db")
	t.Setenv("STRATUM_STORAGE_LOCAL_ROOT", "/srv/buckets")

	v := New()
	v.SetConfigFile(writeConfig(t, "log_level: debug\n"))
	cfg, err := Read(v)
	require.NoError(t, err)

	assert.Equal(t, "assets", cfg.AssetsBucket)
	assert.Equal(t, "sqlite", cfg.Warehouse.Driver)
	assert.Equal(t, "file:test.db", cfg.Warehouse.DSN)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, "/srv/buckets", cfg.Storage.Local.Root)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "8080", cfg.ServerPort)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			AssetsBucket: "assets",
			Storage:      StorageConfig{Driver: "local", Local: LocalStorageConfig{Root: "/data"}},
			Warehouse:    WarehouseConfig{Driver: "postgres", DSN: "postgres://localhost/db"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing assets bucket", func(c *Config) { c.AssetsBucket = "" }},
		{"unknown storage", func(c *Config) { c.Storage.Driver = "ftp" }},
		{"local without root", func(c *Config) { c.Storage.Local.Root = "" }},
		{"unknown warehouse", func(c *Config) { c.Warehouse.Driver = "oracle" }},
		{"sql without dsn", func(c *Config) { c.Warehouse.DSN = "" }},
		{"bigquery without gcs", func(c *Config) { c.Warehouse.Driver = "bigquery" }},
		{"schedule without cron", func(c *Config) {
			c.Schedules = []ScheduleConfig{{Name: "x", Query: &QueryJobConfig{Query: "q.sql"}}}
		}},
		{"schedule with both jobs", func(c *Config) {
			c.Schedules = []ScheduleConfig{{Cron: "@daily", CSV: &CSVJobConfig{}, Query: &QueryJobConfig{}}}
		}},
		{"schedule with no job", func(c *Config) {
			c.Schedules = []ScheduleConfig{{Cron: "@daily"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
