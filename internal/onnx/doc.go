// Package onnx provides the predictor.Engine backed by ONNX Runtime.
//
// The real engine is compiled with the 'onnxruntime' build tag and loads the
// shared library at runtime (see SetSharedLibraryPath). Default builds link a
// stub whose sessions fail with a dependency-unavailable error, so every
// predictor stays inactive and tasks use the fallback provider if configured.
package onnx

// DefaultLibraryEnv names the environment variable consulted for the runtime
// library path when none is configured.
const DefaultLibraryEnv = "ONNXRUNTIME_LIB"
