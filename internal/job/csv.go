package job

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/stanstork/stratum-loader/internal/failure"
	"github.com/stanstork/stratum-loader/internal/objectstore"
	"github.com/stanstork/stratum-loader/internal/schema"
	"github.com/stanstork/stratum-loader/internal/tablename"
	"github.com/stanstork/stratum-loader/internal/transform"
	"github.com/stanstork/stratum-loader/internal/warehouse"
)

// CSVParams is the trigger input of the repair-and-load path.
type CSVParams struct {
	Bucket           string `json:"bucket"`
	Prefix           string `json:"prefix"`
	Schema           string `json:"schema"`
	DestinationTable string `json:"destinationTable"`
	ArchiveFiles     bool   `json:"archiveFiles"`
	SkipHeaders      bool   `json:"skipHeaders"`
}

// NewCSVParams returns params with archiving and header skipping on.
func NewCSVParams(bucket, prefix, schemaName, destinationTable string) CSVParams {
	return CSVParams{
		Bucket:           bucket,
		Prefix:           prefix,
		Schema:           schemaName,
		DestinationTable: destinationTable,
		ArchiveFiles:     true,
		SkipHeaders:      true,
	}
}

// UnmarshalJSON defaults archiveFiles and skipHeaders to true when absent.
func (p *CSVParams) UnmarshalJSON(data []byte) error {
	type plain CSVParams
	v := plain{ArchiveFiles: true, SkipHeaders: true}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = CSVParams(v)
	return nil
}

func (p CSVParams) Validate() error {
	switch {
	case p.Bucket == "":
		return errors.New("bucket is required")
	case p.Prefix == "":
		return errors.New("prefix is required")
	case p.Schema == "":
		return errors.New("schema is required")
	case p.DestinationTable == "":
		return errors.New("destinationTable is required")
	}
	return nil
}

type CSVResult struct {
	RunID    string
	Source   string
	Fixed    string
	Table    string
	Rows     transform.Result
	Archived []string
}

// Summary is a one-line report of the run. The checksum identifies the
// fixed file that was loaded.
func (r *CSVResult) Summary() string {
	return fmt.Sprintf("%d rows loaded into %s from %s (%d dropped, checksum %016x)",
		r.Rows.RowsWritten, r.Table, r.Fixed, r.Rows.RowsDropped, r.Rows.Checksum)
}

// RunCSV loads the newest file under bucket/prefix into the destination
// table. Steps run in order and the first failure aborts the run; nothing
// done by earlier steps is undone.
func (r *Runner) RunCSV(ctx context.Context, p CSVParams) (*CSVResult, error) {
	if err := p.Validate(); err != nil {
		return nil, failure.New(failure.InvalidRequest, err)
	}

	res := &CSVResult{RunID: newRunID()}
	logger := r.logger.With().Str("run_id", res.RunID).Str("bucket", p.Bucket).Str("prefix", p.Prefix).Logger()
	logger.Info().Str("schema", p.Schema).Str("destination", p.DestinationTable).Msg("csv load started")
	start := time.Now()

	dir, err := r.scratch(res.RunID)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	// Locate and download the source.
	objects, err := r.store.List(ctx, p.Bucket, p.Prefix)
	if err != nil {
		return nil, errors.Wrap(err, "list source files")
	}
	src, err := transform.SelectNewest(objects)
	switch {
	case errors.Is(err, transform.ErrSourceNotFound):
		logger.Error().Msg("no csv file found for prefix")
		return nil, failure.New(failure.SourceNotFound, err)
	case errors.Is(err, transform.ErrSourceInvalid):
		logger.Error().Err(err).Msg("csv file has invalid extension (.csv or .csv.gz needed)")
		return nil, failure.New(failure.SourceInvalid, err)
	case err != nil:
		return nil, err
	}
	res.Source = src.Name
	sourceBase := path.Base(src.Name)
	sourcePath := filepath.Join(dir, sourceBase)
	if err := r.store.Download(ctx, p.Bucket, src.Name, sourcePath); err != nil {
		return nil, errors.Wrap(err, "download source file")
	}

	// The schema is settled before any row is read.
	sch, err := r.loadSchema(ctx, dir, p.Schema)
	if err != nil {
		logger.Error().Err(err).Str("schema", p.Schema).Msg("schema unusable")
		return nil, err
	}

	res.Table = tablename.Resolve(p.DestinationTable, sourceBase)
	res.Fixed = transform.OutputName(r.settings.FixedPrefix, src.Name)
	fixedPath := filepath.Join(dir, res.Fixed)

	rows, err := transform.Run(ctx, transform.Options{
		InputPath:  sourcePath,
		OutputPath: fixedPath,
		Schema:     sch,
		SkipHeader: p.SkipHeaders,
	})
	if errors.Is(err, transform.ErrMissingHeader) {
		logger.Error().Str("source", src.Name).Msg("csv file has no header record")
		return nil, failure.New(failure.SourceInvalid, err)
	}
	if err != nil {
		return nil, errors.Wrap(err, "transform source file")
	}
	res.Rows = *rows
	logger.Info().
		Str("source", src.Name).
		Int("rows_read", rows.RowsRead).
		Int("rows_written", rows.RowsWritten).
		Int("rows_dropped", rows.RowsDropped).
		Str("checksum", fmt.Sprintf("%016x", rows.Checksum)).
		Msg("source file repaired")
	if rows.RowsWritten == 0 {
		logger.Warn().Str("table", res.Table).Msg("no rows survived repair; the load leaves the table empty")
	}

	if err := r.store.Upload(ctx, p.Bucket, fixedPath, res.Fixed); err != nil {
		return nil, errors.Wrap(err, "upload fixed file")
	}

	err = r.warehouse.LoadCSV(ctx, warehouse.LoadRequest{
		Table:     res.Table,
		Schema:    sch,
		URI:       r.store.URI(p.Bucket, res.Fixed),
		LocalPath: fixedPath,
	})
	if err != nil {
		var je *warehouse.JobError
		if errors.As(err, &je) {
			logger.Error().Str("table", res.Table).Strs("errors", je.Errors).Msg("load job failed")
		} else {
			logger.Error().Err(err).Str("table", res.Table).Msg("load job failed")
		}
		return nil, failure.New(failure.LoadJobError, err)
	}

	if p.ArchiveFiles {
		res.Archived = r.archive(ctx, logger, p.Bucket, p.Prefix, res.Fixed)
	}

	logger.Info().Str("table", res.Table).Dur("took", time.Since(start)).Msg("csv load finished")
	return res, nil
}

// loadSchema fetches and parses a schema document from the assets bucket.
func (r *Runner) loadSchema(ctx context.Context, dir, name string) (*schema.Schema, error) {
	bucket := r.settings.AssetsBucket
	if _, err := r.store.Stat(ctx, bucket, name); err != nil {
		if errors.Is(err, objectstore.ErrNotExist) {
			return nil, failure.New(failure.SchemaNotFound, err)
		}
		return nil, errors.Wrap(err, "stat schema")
	}

	format, err := schema.FormatFromName(name)
	if err != nil {
		return nil, failure.New(failure.SchemaInvalid, err)
	}

	local := filepath.Join(dir, "schema-"+path.Base(name))
	if err := r.store.Download(ctx, bucket, name, local); err != nil {
		return nil, errors.Wrap(err, "download schema")
	}
	data, err := os.ReadFile(local)
	if err != nil {
		return nil, errors.Wrap(err, "read schema")
	}
	sch, err := schema.Parse(data, format)
	if err != nil {
		return nil, failure.New(failure.SchemaInvalid, err)
	}
	return sch, nil
}

// archive moves the processed source objects and fixed files under the
// archive prefix. Fixed files are matched on the fixed prefix joined with the
// last segment of the source prefix, since fixed files sit at the bucket
// root. Failures are logged and skipped.
func (r *Runner) archive(ctx context.Context, logger zerolog.Logger, bucket, prefix, fixed string) []string {
	names := map[string]struct{}{fixed: {}}

	collect := func(p string) {
		objects, err := r.store.List(ctx, bucket, p)
		if err != nil {
			logger.Warn().Err(err).Str("prefix", p).Msg("archive listing failed")
			return
		}
		for _, o := range objects {
			names[o.Name] = struct{}{}
		}
	}
	collect(prefix)
	if seg := prefix[strings.LastIndex(prefix, "/")+1:]; seg != "" {
		collect(r.settings.FixedPrefix + seg)
	}

	sorted := make([]string, 0, len(names))
	for n := range names {
		if !strings.HasPrefix(n, r.settings.ArchivePrefix) {
			sorted = append(sorted, n)
		}
	}
	sort.Strings(sorted)

	var archived []string
	for _, n := range sorted {
		to := r.settings.ArchivePrefix + n
		if err := r.store.Rename(ctx, bucket, n, to); err != nil {
			logger.Warn().Err(err).Str("object", n).Msg("archive rename failed")
			continue
		}
		archived = append(archived, to)
	}
	logger.Info().Int("archived", len(archived)).Msg("bucket cleaned")
	return archived
}
