package warehouse

import (
	"context"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/pkg/errors"

	"github.com/stanstork/stratum-loader/internal/schema"
)

type BigQuery struct {
	client *bigquery.Client
}

func NewBigQuery(ctx context.Context, projectID string) (*BigQuery, error) {
	if projectID == "" {
		projectID = bigquery.DetectProjectID
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "create bigquery client")
	}
	return &BigQuery{client: client}, nil
}

func (b *BigQuery) Close() error { return b.client.Close() }

// table resolves "dataset.table", "project.dataset.table" or the legacy
// "project:dataset.table".
func (b *BigQuery) table(id string) (*bigquery.Table, error) {
	parts := strings.Split(strings.Replace(id, ":", ".", 1), ".")
	for _, p := range parts {
		if p == "" {
			return nil, errors.Errorf("invalid table id %q", id)
		}
	}
	switch len(parts) {
	case 2:
		return b.client.Dataset(parts[0]).Table(parts[1]), nil
	case 3:
		return b.client.DatasetInProject(parts[0], parts[1]).Table(parts[2]), nil
	}
	return nil, errors.Errorf("invalid table id %q", id)
}

func (b *BigQuery) LoadCSV(ctx context.Context, req LoadRequest) error {
	t, err := b.table(req.Table)
	if err != nil {
		return jobError("load", req.Table, err)
	}

	ref := bigquery.NewGCSReference(req.URI)
	ref.SourceFormat = bigquery.CSV
	ref.FieldDelimiter = Delimiter
	ref.Quote = ""
	ref.ForceZeroQuote = true
	ref.IgnoreUnknownValues = true
	ref.Schema = bigQuerySchema(req.Schema)

	loader := t.LoaderFrom(ref)
	loader.WriteDisposition = bigquery.WriteTruncate
	loader.CreateDisposition = bigquery.CreateIfNeeded

	job, err := loader.Run(ctx)
	if err != nil {
		return jobError("load", req.Table, err)
	}
	return wait(ctx, job, "load", req.Table)
}

func (b *BigQuery) RunQuery(ctx context.Context, req QueryRequest) error {
	t, err := b.table(req.Table)
	if err != nil {
		return jobError("query", req.Table, err)
	}

	q := b.client.Query(req.Query)
	q.UseLegacySQL = req.LegacySQL
	q.Dst = t
	q.CreateDisposition = bigquery.CreateIfNeeded
	q.WriteDisposition = bigquery.WriteTruncate
	if req.Append {
		q.WriteDisposition = bigquery.WriteAppend
	}

	job, err := q.Run(ctx)
	if err != nil {
		return jobError("query", req.Table, err)
	}
	return wait(ctx, job, "query", req.Table)
}

func wait(ctx context.Context, job *bigquery.Job, op, table string) error {
	status, err := job.Wait(ctx)
	if err != nil {
		return jobError(op, table, err)
	}
	if status.Err() == nil {
		return nil
	}
	je := jobError(op, table, status.Err())
	for _, e := range status.Errors {
		if e != nil {
			je.Errors = append(je.Errors, e.Error())
		}
	}
	return je
}

func bigQuerySchema(s *schema.Schema) bigquery.Schema {
	out := make(bigquery.Schema, 0, s.Len())
	for _, c := range s.Fields {
		out = append(out, &bigquery.FieldSchema{
			Name:     c.Name,
			Type:     bigquery.FieldType(c.Type),
			Required: c.Mode == schema.ModeRequired,
			Repeated: c.Mode == schema.ModeRepeated,
		})
	}
	return out
}
