// Package warehouse loads corrected files into tables and materializes query
// results, on BigQuery or on a SQL database.
package warehouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/stanstork/stratum-loader/internal/schema"
)

// Delimiter separates fields in every file handed to LoadCSV.
const Delimiter = ";"

// LoadRequest describes one load. Every load truncates the destination,
// creates it when absent, ignores trailing values beyond the schema and
// treats no character as a quote.
type LoadRequest struct {
	Table  string
	Schema *schema.Schema
	// URI of the uploaded file, for engines that read from object storage.
	URI string
	// LocalPath of the same file, for engines loaded through a connection.
	LocalPath string
}

type QueryRequest struct {
	Query     string
	Table     string
	LegacySQL bool
	Append    bool // WRITE_APPEND instead of WRITE_TRUNCATE
}

// Warehouse is shared by all jobs of a process.
type Warehouse interface {
	LoadCSV(ctx context.Context, req LoadRequest) error
	RunQuery(ctx context.Context, req QueryRequest) error
	Close() error
}

// JobError carries the error payload an engine reported for a submitted
// load or query.
type JobError struct {
	Op     string
	Table  string
	Errors []string
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s into %s failed: %s", e.Op, e.Table, strings.Join(e.Errors, "; "))
}

func jobError(op, table string, errs ...error) *JobError {
	je := &JobError{Op: op, Table: table}
	for _, err := range errs {
		if err != nil {
			je.Errors = append(je.Errors, err.Error())
		}
	}
	return je
}

// Open connects to the warehouse named by driver.
func Open(ctx context.Context, driver, projectID, dsn string) (Warehouse, error) {
	var d *dialect
	switch driver {
	case "bigquery":
		bq, err := NewBigQuery(ctx, projectID)
		if err != nil {
			return nil, err
		}
		return bq, nil
	case "postgres":
		d = postgresDialect
	case "mysql":
		d = mysqlDialect
	case "sqlite":
		d = sqliteDialect
	default:
		return nil, errors.Errorf("unknown warehouse driver %q", driver)
	}
	w, err := openSQL(d, dsn)
	if err != nil {
		return nil, err
	}
	return w, nil
}
