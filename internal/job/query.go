package job

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/stanstork/stratum-loader/internal/failure"
	"github.com/stanstork/stratum-loader/internal/objectstore"
	"github.com/stanstork/stratum-loader/internal/warehouse"
)

// QueryParams is the trigger input of the query path.
type QueryParams struct {
	Query            string `json:"query"`
	DestinationTable string `json:"destinationTable"`
	UseLegacySQL     bool   `json:"useLegacySql"`
	Append           bool   `json:"append"`
}

func (p QueryParams) Validate() error {
	switch {
	case p.Query == "":
		return errors.New("query is required")
	case p.DestinationTable == "":
		return errors.New("destinationTable is required")
	}
	return nil
}

// RunQuery reads a .sql object from the assets bucket and materializes its
// result into the destination table.
func (r *Runner) RunQuery(ctx context.Context, p QueryParams) error {
	if err := p.Validate(); err != nil {
		return failure.New(failure.InvalidRequest, err)
	}

	runID := newRunID()
	logger := r.logger.With().Str("run_id", runID).Str("query", p.Query).Str("destination", p.DestinationTable).Logger()
	logger.Info().Bool("legacy_sql", p.UseLegacySQL).Bool("append", p.Append).Msg("query load started")
	start := time.Now()

	bucket := r.settings.AssetsBucket
	if _, err := r.store.Stat(ctx, bucket, p.Query); err != nil {
		if errors.Is(err, objectstore.ErrNotExist) {
			logger.Error().Str("bucket", bucket).Msg("no query file found")
			return failure.New(failure.QueryNotFound, err)
		}
		return errors.Wrap(err, "stat query")
	}
	if !strings.HasSuffix(p.Query, ".sql") {
		logger.Error().Msg("query file has invalid extension (.sql needed)")
		return failure.New(failure.QueryInvalid, errors.Errorf("%q is not a .sql file", p.Query))
	}

	dir, err := r.scratch(runID)
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	local := filepath.Join(dir, path.Base(p.Query))
	if err := r.store.Download(ctx, bucket, p.Query, local); err != nil {
		return errors.Wrap(err, "download query")
	}
	text, err := os.ReadFile(local)
	if err != nil {
		return errors.Wrap(err, "read query")
	}

	err = r.warehouse.RunQuery(ctx, warehouse.QueryRequest{
		Query:     string(text),
		Table:     p.DestinationTable,
		LegacySQL: p.UseLegacySQL,
		Append:    p.Append,
	})
	if err != nil {
		var je *warehouse.JobError
		if errors.As(err, &je) {
			logger.Error().Strs("errors", je.Errors).Msg("query job failed")
		} else {
			logger.Error().Err(err).Msg("query job failed")
		}
		return failure.New(failure.CreationFailed, err)
	}

	logger.Info().Dur("took", time.Since(start)).Msg("query load finished")
	return nil
}
