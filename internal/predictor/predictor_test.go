package predictor

import (
	"context"
	"errors"
	"image/color"
	"math"
	"net/http"
	"testing"

	"fcsrv/internal/variant"
)

func newTestFactory(f Fetcher, e Engine) *Factory {
	return NewFactory(FactoryConfig{Fetcher: f, ModelDir: "/models", Engine: e})
}

func TestClassifierPicksFirstMax(t *testing.T) {
	sess := &scriptedSession{scores: []float32{0.1, 0.9, 0.9, 0.3, 0.2, 0.0}}
	p := newTestFactory(&fakeFetcher{}, &fakeEngine{sess: sess}).Build(context.Background(), variant.Card)
	if !p.Active() {
		t.Fatalf("expected active predictor, got %v", Err(p))
	}
	got, err := p.Predict(solidImage(600, 400, color.White))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected index 1, got %d", got)
	}
	if sess.calls != Rotations {
		t.Fatalf("expected %d runs, got %d", Rotations, sess.calls)
	}
	if sess.inputs[0][0] != InputClassifier {
		t.Fatalf("unexpected input name %q", sess.inputs[0][0])
	}
}

func TestClassifierAllNaNKeepsMinusOne(t *testing.T) {
	nan := float32(math.NaN())
	sess := &scriptedSession{scores: []float32{nan, nan, nan, nan, nan, nan}}
	p := newTestFactory(&fakeFetcher{}, &fakeEngine{sess: sess}).Build(context.Background(), variant.Penguin)
	got, err := p.Predict(solidImage(600, 400, color.White))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if got != -1 {
		t.Fatalf("expected -1, got %d", got)
	}
}

func TestPairComparesEveryCandidate(t *testing.T) {
	sess := &scriptedSession{scores: []float32{0.2, 0.5, 0.5, 0.1}}
	p := newTestFactory(&fakeFetcher{}, &fakeEngine{sess: sess}).Build(context.Background(), variant.Rockstack)
	got, err := p.Predict(solidImage(800, 400, color.Black))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected index 1, got %d", got)
	}
	if sess.calls != 4 {
		t.Fatalf("expected 4 candidate runs, got %d", sess.calls)
	}
	in := sess.inputs[0]
	if len(in) != 2 || in[0] != InputLeft || in[1] != InputRight {
		t.Fatalf("unexpected pair inputs %v", in)
	}
}

func TestPairTieStartsAtZero(t *testing.T) {
	sess := &scriptedSession{scores: []float32{0.3, 0.3, 0.3}}
	p := newTestFactory(&fakeFetcher{}, &fakeEngine{sess: sess}).Build(context.Background(), variant.Conveyor)
	got, err := p.Predict(solidImage(600, 400, color.Black))
	if err != nil || got != 0 {
		t.Fatalf("expected 0, got %d err=%v", got, err)
	}
}

func TestPairRejectsSmallImage(t *testing.T) {
	sess := &scriptedSession{}
	p := newTestFactory(&fakeFetcher{}, &fakeEngine{sess: sess}).Build(context.Background(), variant.Conveyor)
	_, err := p.Predict(solidImage(100, 100, color.Black))
	if !errors.Is(err, ErrImageSize) {
		t.Fatalf("expected ErrImageSize, got %v", err)
	}
	var pe *PredictError
	if !errors.As(err, &pe) || pe.StatusCode() != http.StatusInternalServerError {
		t.Fatalf("expected PredictError, got %T", err)
	}
	if sess.calls != 0 {
		t.Fatalf("session must not run on invalid input")
	}
}

func TestSessionErrorSurfacesFromActivePredictor(t *testing.T) {
	boom := errors.New("run failed")
	p := newTestFactory(&fakeFetcher{}, &fakeEngine{sess: &scriptedSession{err: boom}}).Build(context.Background(), variant.Card)
	_, err := p.Predict(solidImage(600, 400, color.White))
	if !errors.Is(err, boom) || IsInactive(err) {
		t.Fatalf("expected wrapped run error, got %v", err)
	}
}

func TestBuildFetchFailureIsInactive(t *testing.T) {
	eng := &fakeEngine{sess: &scriptedSession{}}
	p := newTestFactory(&fakeFetcher{err: errFetch}, eng).Build(context.Background(), variant.Card)
	if p.Active() {
		t.Fatalf("expected inactive predictor")
	}
	_, err := p.Predict(solidImage(600, 400, color.White))
	if !IsInactive(err) || !errors.Is(err, errFetch) {
		t.Fatalf("expected inactive error wrapping fetch error, got %v", err)
	}
	if eng.opens != 0 {
		t.Fatalf("engine must not be opened when fetch fails")
	}
	var ie *InactiveError
	if !errors.As(err, &ie) || ie.StatusCode() != http.StatusInternalServerError {
		t.Fatalf("unexpected status mapping for %v", err)
	}
}

func TestBuildWithoutRuntimeIs503(t *testing.T) {
	p := newTestFactory(&fakeFetcher{}, &fakeEngine{err: ErrDependencyUnavailable("onnxruntime missing")}).Build(context.Background(), variant.Card)
	_, err := p.Predict(nil)
	var ie *InactiveError
	if !errors.As(err, &ie) || ie.StatusCode() != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 inactive error, got %v", err)
	}
	if !IsDependencyUnavailable(err) {
		t.Fatalf("dependency error should be reachable through the chain")
	}

	p = NewFactory(FactoryConfig{Fetcher: &fakeFetcher{}}).Build(context.Background(), variant.Card)
	if p.Active() || !IsDependencyUnavailable(Err(p)) {
		t.Fatalf("nil engine should produce a dependency-unavailable inactive predictor")
	}
}

func TestBuildPassesArtifactAndOptions(t *testing.T) {
	fetch := &fakeFetcher{}
	eng := &fakeEngine{sess: &scriptedSession{}}
	NewFactory(FactoryConfig{Fetcher: fetch, ModelDir: "/m", Engine: eng, Options: SessionOptions{Threads: 4, Allocator: AllocatorArena}}).
		Build(context.Background(), variant.Rockstack)
	if len(fetch.names) != 1 || fetch.names[0] != "rockstack_v2.onnx" {
		t.Fatalf("unexpected fetches %v", fetch.names)
	}
	if eng.path != "/m/rockstack_v2.onnx" || eng.opts.Threads != 4 || eng.opts.Allocator != AllocatorArena {
		t.Fatalf("unexpected open path=%q opts=%+v", eng.path, eng.opts)
	}

	eng = &fakeEngine{sess: &scriptedSession{}}
	newTestFactory(&fakeFetcher{}, eng).Build(context.Background(), variant.Card)
	if eng.opts.Threads != 1 || eng.opts.Allocator != AllocatorDevice {
		t.Fatalf("unexpected default options %+v", eng.opts)
	}
}

func TestParseAllocator(t *testing.T) {
	for in, want := range map[string]Allocator{"": AllocatorDevice, "device": AllocatorDevice, "arena": AllocatorArena} {
		got, err := ParseAllocator(in)
		if err != nil || got != want {
			t.Fatalf("ParseAllocator(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseAllocator("gpu"); err == nil {
		t.Fatalf("expected error for unknown allocator")
	}
}
