package predictor

import "fmt"

// Engine abstracts the inference runtime used by the Factory.
type Engine interface {
	// Open loads the model at path and returns a reusable session.
	Open(path string, opts SessionOptions) (Session, error)
}

// Session is one loaded model. Run must be safe for concurrent use.
type Session interface {
	// Run evaluates the model and returns its first output, flattened.
	Run(inputs []Tensor) ([]float32, error)
	Close() error
}

// Tensor is a named float32 input in NCHW layout.
type Tensor struct {
	Name  string
	Shape []int64
	Data  []float32
}

// Input names expected by the published models.
const (
	InputClassifier = "input"
	InputLeft       = "input_left"
	InputRight      = "input_right"
)

// Allocator selects the session memory allocator.
type Allocator string

const (
	// AllocatorArena uses the runtime's CPU arena.
	AllocatorArena Allocator = "arena"
	// AllocatorDevice allocates directly on the device without an arena.
	AllocatorDevice Allocator = "device"
)

// ParseAllocator validates s; empty selects AllocatorDevice.
func ParseAllocator(s string) (Allocator, error) {
	switch Allocator(s) {
	case "", AllocatorDevice:
		return AllocatorDevice, nil
	case AllocatorArena:
		return AllocatorArena, nil
	default:
		return "", fmt.Errorf("unknown allocator %q (want arena or device)", s)
	}
}

// SessionOptions are applied to every session the Factory opens.
type SessionOptions struct {
	// Threads is the intra-op thread count; values below 1 mean 1.
	Threads   int
	Allocator Allocator
}
