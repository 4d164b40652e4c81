// Package predictor builds per-variant predictors on top of an inference
// Engine. Predictors are immutable once built and safe for concurrent use.
package predictor

import (
	"image"

	"fcsrv/internal/variant"
)

// Predictor turns one decoded image into one integer answer.
type Predictor interface {
	// Active reports whether the predictor has a working session.
	Active() bool
	Predict(img image.Image) (int, error)
}

type sessionPredictor struct {
	variant variant.Variant
	core    shape
	sess    Session
}

func (p *sessionPredictor) Active() bool { return true }

func (p *sessionPredictor) Predict(img image.Image) (int, error) {
	n, err := p.core.predict(img)
	if err != nil {
		return 0, &PredictError{Variant: p.variant, Err: err}
	}
	return n, nil
}

// Close releases the underlying session.
func (p *sessionPredictor) Close() error { return p.sess.Close() }

type inactive struct{ err *InactiveError }

// Inactive returns a predictor whose Predict always fails with cause.
func Inactive(v variant.Variant, cause error) Predictor {
	return inactive{err: &InactiveError{Variant: v, Err: cause}}
}

func (p inactive) Active() bool { return false }

func (p inactive) Predict(image.Image) (int, error) { return 0, p.err }

// Err returns the build failure behind an inactive predictor, or nil.
func Err(p Predictor) error {
	if in, ok := p.(inactive); ok {
		return in.err
	}
	return nil
}
