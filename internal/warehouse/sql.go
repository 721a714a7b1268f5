package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/stanstork/stratum-loader/internal/dsv"
	"github.com/stanstork/stratum-loader/internal/schema"
)

// dialect holds what differs between the SQL engines a file can be loaded
// into.
type dialect struct {
	name       string
	driverName string
	quoteIdent func(string) string
	// quoteTable turns a destination id such as "schema.table" into a
	// quoted table reference.
	quoteTable  func(string) string
	columnTypes map[string]string
	clearTable  string // fmt verb: quoted table
	createAs    string // fmt verbs: quoted table, query
	newInserter func(ctx context.Context, tx *sql.Tx, d *dialect, table string, cols []string) (inserter, error)
	singleConn  bool
}

// inserter receives the rows of one load inside its transaction.
type inserter interface {
	Insert(ctx context.Context, values []any) error
	Close(ctx context.Context) error
}

var postgresDialect = &dialect{
	name:       "postgres",
	driverName: "postgres",
	quoteIdent: pq.QuoteIdentifier,
	quoteTable: func(id string) string { return quoteParts(id, pq.QuoteIdentifier) },
	columnTypes: map[string]string{
		schema.TypeInteger:   "BIGINT",
		schema.TypeFloat:     "DOUBLE PRECISION",
		schema.TypeTimestamp: "TIMESTAMP",
	},
	clearTable:  "TRUNCATE TABLE %s",
	createAs:    "CREATE TABLE IF NOT EXISTS %s AS SELECT * FROM (%s) AS src WITH NO DATA",
	newInserter: newCopyInserter,
}

var mysqlDialect = &dialect{
	name:       "mysql",
	driverName: "mysql",
	quoteIdent: quoteBacktick,
	quoteTable: func(id string) string { return quoteParts(id, quoteBacktick) },
	columnTypes: map[string]string{
		schema.TypeInteger:   "BIGINT",
		schema.TypeFloat:     "DOUBLE",
		schema.TypeTimestamp: "DATETIME",
	},
	// TRUNCATE commits implicitly in MySQL.
	clearTable:  "DELETE FROM %s",
	createAs:    "CREATE TABLE IF NOT EXISTS %s AS SELECT * FROM (%s) AS src WHERE 1=0",
	newInserter: newStmtInserter,
}

// SQLite has no schemas: a dotted destination is one table name.
var sqliteDialect = &dialect{
	name:       "sqlite",
	driverName: "sqlite",
	quoteIdent: quoteDouble,
	quoteTable: quoteDouble,
	columnTypes: map[string]string{
		schema.TypeInteger:   "INTEGER",
		schema.TypeFloat:     "REAL",
		schema.TypeTimestamp: "TEXT",
	},
	clearTable:  "DELETE FROM %s",
	createAs:    "CREATE TABLE IF NOT EXISTS %s AS SELECT * FROM (%s) AS src WHERE 1=0",
	newInserter: newStmtInserter,
	singleConn:  true,
}

func quoteParts(id string, quote func(string) string) string {
	parts := strings.Split(id, ".")
	for i, p := range parts {
		parts[i] = quote(p)
	}
	return strings.Join(parts, ".")
}

func quoteBacktick(s string) string { return "`" + strings.ReplaceAll(s, "`", "``") + "`" }

func quoteDouble(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }

func (d *dialect) columnType(c schema.Column) string {
	t, ok := d.columnTypes[c.Kind()]
	if !ok {
		t = "TEXT"
	}
	if c.Required() {
		t += " NOT NULL"
	}
	return t
}

// SQL loads into a database reachable through database/sql. The corrected
// file is streamed from local disk over the connection.
type SQL struct {
	db      *sql.DB
	dialect *dialect
}

func openSQL(d *dialect, dsn string) (*SQL, error) {
	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", d.name)
	}
	if d.singleConn {
		db.SetMaxOpenConns(1)
	}
	return &SQL{db: db, dialect: d}, nil
}

func (w *SQL) Close() error { return w.db.Close() }

// Ping checks that the database is reachable.
func (w *SQL) Ping(ctx context.Context) error {
	return errors.Wrapf(w.db.PingContext(ctx), "ping %s", w.dialect.name)
}

func (w *SQL) LoadCSV(ctx context.Context, req LoadRequest) error {
	if req.Schema == nil || req.Schema.Len() == 0 {
		return jobError("load", req.Table, errors.New("schema has no fields"))
	}
	if err := w.load(ctx, req); err != nil {
		return jobError("load", req.Table, err)
	}
	return nil
}

func (w *SQL) load(ctx context.Context, req LoadRequest) error {
	d := w.dialect
	table := d.quoteTable(req.Table)

	cols := make([]string, req.Schema.Len())
	defs := make([]string, req.Schema.Len())
	for i, c := range req.Schema.Fields {
		cols[i] = c.Name
		defs[i] = d.quoteIdent(c.Name) + " " + d.columnType(c)
	}

	f, err := os.Open(req.LocalPath)
	if err != nil {
		return errors.Wrapf(err, "open %s", req.LocalPath)
	}
	defer f.Close()

	if _, err := w.db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))); err != nil {
		return errors.Wrap(err, "create table")
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(d.clearTable, table)); err != nil {
		return errors.Wrap(err, "truncate")
	}

	ins, err := d.newInserter(ctx, tx, d, req.Table, cols)
	if err != nil {
		return err
	}
	if err := copyRows(ctx, dsv.NewReader(f), ins, len(cols)); err != nil {
		ins.Close(ctx)
		return err
	}
	if err := ins.Close(ctx); err != nil {
		return errors.Wrap(err, "flush rows")
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// copyRows feeds every record to ins. Values beyond the schema are ignored
// and empty values load as NULL.
func copyRows(ctx context.Context, r *dsv.Reader, ins inserter, width int) error {
	values := make([]any, width)
	for {
		line := r.Line()
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if len(rec) == 0 {
			if width != 1 {
				continue
			}
			rec = []string{""}
		}
		if len(rec) < width {
			return errors.Errorf("line %d: expected %d fields, got %d", line, width, len(rec))
		}
		for i := range values {
			if rec[i] == "" {
				values[i] = nil
			} else {
				values[i] = rec[i]
			}
		}
		if err := ins.Insert(ctx, values); err != nil {
			return errors.Wrapf(err, "line %d", line)
		}
	}
}

func (w *SQL) RunQuery(ctx context.Context, req QueryRequest) error {
	if req.LegacySQL {
		return jobError("query", req.Table, errors.Errorf("legacy SQL is not supported by %s", w.dialect.name))
	}
	if err := w.runQuery(ctx, req); err != nil {
		return jobError("query", req.Table, err)
	}
	return nil
}

func (w *SQL) runQuery(ctx context.Context, req QueryRequest) error {
	d := w.dialect
	table := d.quoteTable(req.Table)
	query := strings.TrimRight(strings.TrimSpace(req.Query), ";")

	if _, err := w.db.ExecContext(ctx, fmt.Sprintf(d.createAs, table, query)); err != nil {
		return errors.Wrap(err, "create table")
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	if !req.Append {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(d.clearTable, table)); err != nil {
			return errors.Wrap(err, "truncate")
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s SELECT * FROM (%s) AS src", table, query)); err != nil {
		return errors.Wrap(err, "insert results")
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// stmtInserter inserts one row per prepared statement execution.
type stmtInserter struct {
	stmt *sql.Stmt
}

func newStmtInserter(ctx context.Context, tx *sql.Tx, d *dialect, table string, cols []string) (inserter, error) {
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.quoteIdent(c)
		marks[i] = "?"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.quoteTable(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "prepare insert")
	}
	return &stmtInserter{stmt: stmt}, nil
}

func (s *stmtInserter) Insert(ctx context.Context, values []any) error {
	_, err := s.stmt.ExecContext(ctx, values...)
	return err
}

func (s *stmtInserter) Close(context.Context) error { return s.stmt.Close() }

// copyInserter streams rows with the COPY protocol.
type copyInserter struct {
	stmt *sql.Stmt
}

func newCopyInserter(ctx context.Context, tx *sql.Tx, _ *dialect, table string, cols []string) (inserter, error) {
	var query string
	if i := strings.LastIndex(table, "."); i >= 0 {
		query = pq.CopyInSchema(table[:i], table[i+1:], cols...)
	} else {
		query = pq.CopyIn(table, cols...)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "prepare copy")
	}
	return &copyInserter{stmt: stmt}, nil
}

func (c *copyInserter) Insert(ctx context.Context, values []any) error {
	_, err := c.stmt.ExecContext(ctx, values...)
	return err
}

func (c *copyInserter) Close(ctx context.Context) error {
	if _, err := c.stmt.ExecContext(ctx); err != nil {
		c.stmt.Close()
		return err
	}
	return c.stmt.Close()
}
