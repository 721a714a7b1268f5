package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/stanstork/stratum-loader/internal/authz"
	"github.com/stanstork/stratum-loader/internal/failure"
	"github.com/stanstork/stratum-loader/internal/job"
)

// Jobs runs the two load paths.
type Jobs interface {
	RunCSV(ctx context.Context, p job.CSVParams) (*job.CSVResult, error)
	RunQuery(ctx context.Context, p job.QueryParams) error
}

type LoadHandler struct {
	jobs   Jobs
	logger zerolog.Logger
}

func NewLoadHandler(jobs Jobs, logger zerolog.Logger) *LoadHandler {
	return &LoadHandler{
		jobs:   jobs,
		logger: logger.With().Str("component", "load_handler").Logger(),
	}
}

type response struct {
	Description string `json:"description"`
}

// LoadCSV runs the repair-and-load path to completion before responding.
func (h *LoadHandler) LoadCSV(w http.ResponseWriter, r *http.Request) {
	var payload job.CSVParams
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.respond(w, r, failure.New(failure.InvalidRequest, err))
		return
	}
	h.caller(r).Info().Interface("params", payload).Msg("New CSV load")

	// A disconnecting caller does not stop the job.
	_, err := h.jobs.RunCSV(context.WithoutCancel(r.Context()), payload)
	h.respond(w, r, err)
}

// LoadQuery runs the query path to completion before responding.
func (h *LoadHandler) LoadQuery(w http.ResponseWriter, r *http.Request) {
	var payload job.QueryParams
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.respond(w, r, failure.New(failure.InvalidRequest, err))
		return
	}
	h.caller(r).Info().Interface("params", payload).Msg("New query load")

	err := h.jobs.RunQuery(context.WithoutCancel(r.Context()), payload)
	h.respond(w, r, err)
}

func (h *LoadHandler) caller(r *http.Request) *zerolog.Logger {
	logger := h.logger
	if sub, ok := authz.CallerFromRequest(r); ok {
		logger = logger.With().Str("caller", sub).Logger()
	}
	return &logger
}

// respond writes the outcome. Only the failure description leaves the
// process; untagged errors are logged in full and reported as unknown.
func (h *LoadHandler) respond(w http.ResponseWriter, r *http.Request, err error) {
	status, description := http.StatusOK, "Success"
	if err != nil {
		kind := failure.From(err)
		switch kind {
		case failure.Unknown:
			h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("job failed with an unexpected error")
		case failure.SourceNotFound, failure.SourceInvalid,
			failure.SchemaNotFound, failure.SchemaInvalid,
			failure.LoadJobError, failure.QueryNotFound, failure.QueryInvalid,
			failure.CreationFailed, failure.InvalidRequest:
			h.logger.Warn().Err(err).Str("kind", kind.String()).Str("path", r.URL.Path).Msg("job failed")
		}
		status, description = kind.Status(), kind.Description()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response{Description: description})
}
