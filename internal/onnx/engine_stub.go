//go:build !onnxruntime

package onnx

import "fcsrv/internal/predictor"

// Built reports whether this binary carries the ONNX Runtime engine.
const Built = false

// Engine is a stub that satisfies predictor.Engine but refuses to open
// sessions without the 'onnxruntime' build tag.
type Engine struct {
	libPath string
}

// New returns the stub engine. libPath is kept for diagnostics only.
func New(libPath string) *Engine { return &Engine{libPath: libPath} }

func (e *Engine) Open(path string, opts predictor.SessionOptions) (predictor.Session, error) {
	return nil, predictor.ErrDependencyUnavailable("onnxruntime support not built (missing 'onnxruntime' build tag)")
}

// Close is a no-op for the stub.
func (e *Engine) Close() error { return nil }
