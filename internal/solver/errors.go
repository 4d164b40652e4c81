package solver

import (
	"errors"
	"net/http"
)

// Client errors. They are returned wrapped in a *RequestError.
var (
	ErrInvalidImages      = errors.New("invalid images")
	ErrInvalidSubmitLimit = errors.New("invalid submit limit")
	ErrInvalidAPIKey      = errors.New("invalid API key")
	ErrImageDecode        = errors.New("image decode failed")
)

// RequestError is a task rejected because of its content. It is never retried.
type RequestError struct {
	Status int
	Err    error
}

func (e *RequestError) Error() string { return e.Err.Error() }

func (e *RequestError) Unwrap() error { return e.Err }

// StatusCode implements httpapi.HTTPError.
func (e *RequestError) StatusCode() int { return e.Status }

func badRequest(err error) error {
	return &RequestError{Status: http.StatusBadRequest, Err: err}
}

// IsClientError reports whether err was caused by the submitted task.
func IsClientError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}
