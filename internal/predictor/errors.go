package predictor

import (
	"errors"
	"fmt"
	"net/http"

	"fcsrv/internal/variant"
)

// ErrInactive is matched by errors returned from an inactive predictor.
var ErrInactive = errors.New("predictor inactive")

// InactiveError is returned by Predict on a predictor whose session could not be built.
type InactiveError struct {
	Variant variant.Variant
	Err     error
}

func (e *InactiveError) Error() string {
	return fmt.Sprintf("%s predictor inactive: %v", e.Variant, e.Err)
}

func (e *InactiveError) Unwrap() []error { return []error{ErrInactive, e.Err} }

// StatusCode maps a missing runtime to 503 and every other build failure to 500.
func (e *InactiveError) StatusCode() int {
	if IsDependencyUnavailable(e.Err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// IsInactive reports whether err came from an inactive predictor.
func IsInactive(err error) bool { return errors.Is(err, ErrInactive) }

// PredictError wraps a failure of an active predictor.
type PredictError struct {
	Variant variant.Variant
	Err     error
}

func (e *PredictError) Error() string {
	return fmt.Sprintf("%s predict: %v", e.Variant, e.Err)
}

func (e *PredictError) Unwrap() error { return e.Err }

func (e *PredictError) StatusCode() int { return http.StatusInternalServerError }

// dependencyUnavailableError signals a missing inference runtime so the HTTP
// layer can return 503 Service Unavailable instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var d dependencyUnavailableError
	return errors.As(err, &d)
}

// ErrImageSize is returned when an image is too small for the predictor's tile layout.
var ErrImageSize = errors.New("image size does not match the tile layout")
