package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline failures.
var (
	ErrMissingHeadword     = errors.New("row has no headword")
	ErrDimensionMismatch   = errors.New("embedding dimension mismatch")
	ErrCollectionLifecycle = errors.New("collection lifecycle failure")
	// ErrStoreUnavailable marks a vector store that cannot be reached at
	// all. Unlike a per-record rejection it is fatal to a whole run: every
	// subsequent write would fail the same way.
	ErrStoreUnavailable = errors.New("vector store unavailable")
)

// Service names used in ServiceError.
const (
	ServiceEmbedding  = "embedding"
	ServiceGeneration = "generation"
)

// ServiceError wraps a failure from an external model service. Status is the
// HTTP status reported by the service, 0 for transport-level failures.
// Retryable is true for rate limits and server-side errors; auth and other
// client errors are fatal.
type ServiceError struct {
	Service   string
	Status    int
	Retryable bool
	Err       error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s service: status %d: %s", e.Service, e.Status, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// NewServiceError classifies a service failure by HTTP status. Status 429
// and 5xx are retryable; other statuses, including 0 (transport failure
// before a status was received), are not.
func NewServiceError(service string, status int, err error) *ServiceError {
	return &ServiceError{
		Service:   service,
		Status:    status,
		Retryable: status == 429 || status >= 500,
		Err:       err,
	}
}

// IsRetryable reports whether err is a retryable service failure.
func IsRetryable(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Retryable
}

// RowError records a per-record indexing failure. Rows fail individually;
// the batch continues and reports them at the end.
type RowError struct {
	Line int
	Word string
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d (%q): %s", e.Line, e.Word, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }
