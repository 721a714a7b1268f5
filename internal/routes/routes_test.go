package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/stanstork/stratum-loader/internal/handlers"
	"github.com/stanstork/stratum-loader/internal/job"
)

type okJobs struct{ calls int }

func (j *okJobs) RunCSV(context.Context, job.CSVParams) (*job.CSVResult, error) {
	j.calls++
	return &job.CSVResult{}, nil
}

func (j *okJobs) RunQuery(context.Context, job.QueryParams) error {
	j.calls++
	return nil
}

func newRouter(jobs handlers.Jobs, opts Options) http.Handler {
	return NewRouter(handlers.NewLoadHandler(jobs, zerolog.Nop()), handlers.NewHealthHandler(nil), opts)
}

func do(h http.Handler, method, path, body string) int {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec.Code
}

func TestRoutes(t *testing.T) {
	jobs := &okJobs{}
	r := newRouter(jobs, Options{})

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", ""))
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/load/csv", `{"bucket":"b","prefix":"p","schema":"s.yaml","destinationTable":"t"}`))
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/load/query", `{"query":"q.sql","destinationTable":"t"}`))
	assert.Equal(t, http.StatusMethodNotAllowed, do(r, http.MethodGet, "/load/csv", ""))
	assert.Equal(t, http.StatusMethodNotAllowed, do(r, http.MethodPut, "/load/query", "{}"))
	assert.Equal(t, http.StatusMethodNotAllowed, do(r, http.MethodPost, "/health", ""))
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/load/parquet", "{}"))
	assert.Equal(t, 2, jobs.calls)
}

func TestRoutesRequireTokenWhenConfigured(t *testing.T) {
	jobs := &okJobs{}
	r := newRouter(jobs, Options{JWTSecret: "secret"})

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", ""))
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/load/query", `{"query":"q.sql","destinationTable":"t"}`))
	assert.Zero(t, jobs.calls)
}

func TestRoutesRateLimit(t *testing.T) {
	r := newRouter(&okJobs{}, Options{RateLimit: 0.001, RateBurst: 1})

	body := `{"query":"q.sql","destinationTable":"t"}`
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/load/query", body))
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/load/query", body))
	// both trigger routes draw on the same bucket
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/load/csv", `{"bucket":"b","prefix":"p","schema":"s.yaml","destinationTable":"t"}`))
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", ""))
}
