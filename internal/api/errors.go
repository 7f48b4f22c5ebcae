package api

import (
	"errors"
	"net/http"

	"CuboTrack/internal/engine/attribution"

	"google.golang.org/grpc/codes"
)

// ErrReportsDisabled is returned when no regenerator is wired in.
var ErrReportsDisabled = errors.New("report regeneration is not configured")

// RegenerationError wraps a failed regeneration run.
type RegenerationError struct {
	RunID string
	Err   error
}

func (e *RegenerationError) Error() string {
	return "report regeneration failed: " + e.Err.Error()
}

func (e *RegenerationError) Unwrap() error {
	return e.Err
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, attribution.ErrEmptyOperator):
		return http.StatusBadRequest
	case errors.Is(err, attribution.ErrNoActiveSession), errors.Is(err, attribution.ErrNoObservedLine):
		return http.StatusConflict
	case errors.Is(err, ErrReportsDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func grpcCode(err error) codes.Code {
	switch {
	case errors.Is(err, attribution.ErrEmptyOperator):
		return codes.InvalidArgument
	case errors.Is(err, attribution.ErrNoActiveSession), errors.Is(err, attribution.ErrNoObservedLine):
		return codes.FailedPrecondition
	case errors.Is(err, ErrReportsDisabled):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}
