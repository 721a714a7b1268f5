// Package failure defines the closed set of job failures that can cross a
// trigger boundary. Every kind carries a fixed status code and a description
// that is safe to show to callers.
package failure

import (
	"errors"
	"net/http"
)

type Kind int

const (
	Unknown Kind = iota
	SourceNotFound
	SourceInvalid
	SchemaNotFound
	SchemaInvalid
	LoadJobError
	QueryNotFound
	QueryInvalid
	CreationFailed
	InvalidRequest
)

// Status returns the HTTP status code reported for the kind.
func (k Kind) Status() int {
	switch k {
	case SourceNotFound, SchemaNotFound, QueryNotFound:
		return http.StatusNotFound
	case SourceInvalid, SchemaInvalid, QueryInvalid, InvalidRequest:
		return http.StatusBadRequest
	case LoadJobError, CreationFailed, Unknown:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// Description returns the caller-facing message for the kind.
func (k Kind) Description() string {
	switch k {
	case SourceNotFound:
		return "CSV file not found"
	case SourceInvalid:
		return "CSV file invalid"
	case SchemaNotFound:
		return "Schema file not found"
	case SchemaInvalid:
		return "Schema file invalid"
	case LoadJobError:
		return "Error during load job"
	case QueryNotFound:
		return "Query file not found"
	case QueryInvalid:
		return "Query file invalid"
	case CreationFailed:
		return "Error during table creation"
	case InvalidRequest:
		return "Invalid request"
	case Unknown:
		return "Unknown error"
	}
	return "Unknown error"
}

func (k Kind) String() string {
	switch k {
	case SourceNotFound:
		return "source_not_found"
	case SourceInvalid:
		return "source_invalid"
	case SchemaNotFound:
		return "schema_not_found"
	case SchemaInvalid:
		return "schema_invalid"
	case LoadJobError:
		return "load_job_error"
	case QueryNotFound:
		return "query_not_found"
	case QueryInvalid:
		return "query_invalid"
	case CreationFailed:
		return "creation_failed"
	case InvalidRequest:
		return "invalid_request"
	}
	return "unknown"
}

// Error tags an underlying cause with a failure kind.
type Error struct {
	Kind Kind
	Err  error
}

func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Description()
	}
	return e.Kind.Description() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// From returns the kind carried by err, or Unknown for errors that were
// never tagged.
func From(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}
