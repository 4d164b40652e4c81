package artifact

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds returned by the store and its backends.
var (
	ErrNetwork              = errors.New("artifact download failed")
	ErrManifestEntryMissing = errors.New("manifest entry missing")
	ErrInvalidArtifactName  = errors.New("invalid artifact name")
	ErrFilesystem           = errors.New("artifact filesystem error")
)

// Error carries the failing artifact name, its kind and the underlying cause.
type Error struct {
	Kind error
	Name string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Name, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Name, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// StatusCode implements httpapi.HTTPError. Artifact failures are server side.
func (e *Error) StatusCode() int { return http.StatusInternalServerError }

func newError(kind error, name string, err error) error {
	return &Error{Kind: kind, Name: name, Err: err}
}

// IsNetwork reports whether err came from retrieving an object from a backend.
func IsNetwork(err error) bool { return errors.Is(err, ErrNetwork) }

// IsManifestEntryMissing reports whether the manifest lacked the artifact's base name.
func IsManifestEntryMissing(err error) bool { return errors.Is(err, ErrManifestEntryMissing) }

// IsInvalidArtifactName reports whether the artifact name could not be reduced to a base name.
func IsInvalidArtifactName(err error) bool { return errors.Is(err, ErrInvalidArtifactName) }

// IsFilesystem reports whether a local file operation failed.
func IsFilesystem(err error) bool { return errors.Is(err, ErrFilesystem) }
