package predictor

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
)

// scriptedSession returns scores[i] for the i-th Run call.
type scriptedSession struct {
	mu     sync.Mutex
	scores []float32
	calls  int
	inputs [][]string
	closed bool
	err    error
}

func (s *scriptedSession) Run(in []Tensor) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(in))
	for i, t := range in {
		names[i] = t.Name
	}
	s.inputs = append(s.inputs, names)
	if s.err != nil {
		return nil, s.err
	}
	i := s.calls
	s.calls++
	if i >= len(s.scores) {
		return []float32{0}, nil
	}
	return []float32{s.scores[i]}, nil
}

func (s *scriptedSession) Close() error {
	s.closed = true
	return nil
}

type fakeEngine struct {
	sess  Session
	err   error
	path  string
	opts  SessionOptions
	opens int
}

func (e *fakeEngine) Open(path string, opts SessionOptions) (Session, error) {
	e.opens++
	e.path = path
	e.opts = opts
	if e.err != nil {
		return nil, e.err
	}
	return e.sess, nil
}

type fakeFetcher struct {
	err   error
	names []string
}

func (f *fakeFetcher) Fetch(_ context.Context, name, dir string, _ bool) (string, error) {
	f.names = append(f.names, name)
	if f.err != nil {
		return "", f.err
	}
	return dir + "/" + name, nil
}

var errFetch = errors.New("fetch failed")

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}
