//go:build onnxruntime

package onnx

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"fcsrv/internal/predictor"
)

// Built reports whether this binary carries the ONNX Runtime engine.
const Built = true

// Engine opens ONNX Runtime sessions. The runtime environment is initialized
// on the first Open and shared by every session.
type Engine struct {
	libPath string

	once    sync.Once
	initErr error
}

// New returns an engine loading the runtime from libPath, or from
// $ONNXRUNTIME_LIB when libPath is empty.
func New(libPath string) *Engine {
	if libPath == "" {
		libPath = os.Getenv(DefaultLibraryEnv)
	}
	return &Engine{libPath: libPath}
}

func (e *Engine) init() error {
	e.once.Do(func() {
		if e.libPath != "" {
			ort.SetSharedLibraryPath(e.libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			e.initErr = predictor.ErrDependencyUnavailable("onnxruntime init: " + err.Error())
		}
	})
	return e.initErr
}

func (e *Engine) Open(path string, opts predictor.SessionOptions) (predictor.Session, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("model path is empty")
	}
	if err := e.init(); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("read model io: %w", err)
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("model %s has no outputs", path)
	}

	so, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer so.Destroy()
	threads := opts.Threads
	if threads < 1 {
		threads = 1
	}
	if err := so.SetIntraOpNumThreads(threads); err != nil {
		return nil, fmt.Errorf("set threads: %w", err)
	}
	if err := so.SetCpuMemArena(opts.Allocator == predictor.AllocatorArena); err != nil {
		return nil, fmt.Errorf("set allocator: %w", err)
	}

	inNames := make([]string, len(inputs))
	for i, in := range inputs {
		inNames[i] = in.Name
	}
	out := outputs[0]
	sess, err := ort.NewDynamicAdvancedSession(path, inNames, []string{out.Name}, so)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &session{sess: sess, inputs: inNames, outShape: staticShape(out.Dimensions)}, nil
}

// Close tears down the shared runtime environment.
func (e *Engine) Close() error {
	if ort.IsInitialized() {
		return ort.DestroyEnvironment()
	}
	return nil
}

type session struct {
	sess     *ort.DynamicAdvancedSession
	inputs   []string
	outShape ort.Shape
}

// staticShape replaces dynamic (negative) dimensions with 1; the models run
// with a batch of one.
func staticShape(dims ort.Shape) ort.Shape {
	s := make(ort.Shape, len(dims))
	for i, d := range dims {
		if d < 1 {
			d = 1
		}
		s[i] = d
	}
	return s
}

func (s *session) Run(in []predictor.Tensor) ([]float32, error) {
	byName := make(map[string]predictor.Tensor, len(in))
	for _, t := range in {
		byName[t.Name] = t
	}
	values := make([]ort.Value, len(s.inputs))
	defer func() {
		for _, v := range values {
			if v != nil {
				v.Destroy()
			}
		}
	}()
	for i, name := range s.inputs {
		t, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("missing input %q", name)
		}
		v, err := ort.NewTensor(ort.NewShape(t.Shape...), t.Data)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		values[i] = v
	}
	out, err := ort.NewEmptyTensor[float32](s.outShape)
	if err != nil {
		return nil, fmt.Errorf("output tensor: %w", err)
	}
	defer out.Destroy()
	if err := s.sess.Run(values, []ort.Value{out}); err != nil {
		return nil, err
	}
	data := out.GetData()
	res := make([]float32, len(data))
	copy(res, data)
	return res, nil
}

func (s *session) Close() error { return s.sess.Destroy() }
