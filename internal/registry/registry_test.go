package registry

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fcsrv/internal/events"
	"fcsrv/internal/predictor"
	"fcsrv/internal/variant"
)

type stubPredictor struct {
	answer int
	closed atomic.Bool
}

func (p *stubPredictor) Active() bool                      { return true }
func (p *stubPredictor) Predict(image.Image) (int, error) { return p.answer, nil }
func (p *stubPredictor) Close() error {
	p.closed.Store(true)
	return nil
}

// gatedBuilder blocks every build until release is closed and counts builds per variant.
type gatedBuilder struct {
	release  chan struct{}
	started  chan variant.Variant
	inactive bool
	panics   bool
	mu       sync.Mutex
	counts   map[variant.Variant]int
}

func newGatedBuilder() *gatedBuilder {
	return &gatedBuilder{
		release: make(chan struct{}),
		started: make(chan variant.Variant, 64),
		counts:  map[variant.Variant]int{},
	}
}

func (b *gatedBuilder) Build(ctx context.Context, v variant.Variant) predictor.Predictor {
	b.mu.Lock()
	b.counts[v]++
	b.mu.Unlock()
	b.started <- v
	<-b.release
	if ctx.Err() != nil {
		panic("build context must not be cancelled by callers")
	}
	if b.panics {
		panic("boom")
	}
	if b.inactive {
		return predictor.Inactive(v, errors.New("session failed"))
	}
	return &stubPredictor{answer: v.Ordinal()}
}

func (b *gatedBuilder) count(v variant.Variant) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[v]
}

func TestConcurrentFirstRequestsBuildOnce(t *testing.T) {
	b := newGatedBuilder()
	r := New(Config{Builder: b})

	const n = 64
	var wg sync.WaitGroup
	got := make([]predictor.Predictor, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := r.GetOrBuild(context.Background(), variant.Card)
			if err != nil {
				t.Errorf("get: %v", err)
				return
			}
			got[i] = p
		}(i)
	}
	<-b.started
	close(b.release)
	wg.Wait()

	if c := b.count(variant.Card); c != 1 {
		t.Fatalf("expected exactly one build, got %d", c)
	}
	for i := 1; i < n; i++ {
		if got[i] != got[0] {
			t.Fatalf("caller %d received a different predictor", i)
		}
	}
	if r.BuildsTotal() != 1 {
		t.Fatalf("expected BuildsTotal 1, got %d", r.BuildsTotal())
	}
}

func TestAbandonedCallerDoesNotCancelBuild(t *testing.T) {
	b := newGatedBuilder()
	r := New(Config{Builder: b})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := r.GetOrBuild(ctx, variant.Penguin)
		errCh <- err
	}()
	<-b.started
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if st := r.State(variant.Penguin); st != StateBuilding {
		t.Fatalf("expected building slot, got %s", st)
	}

	close(b.release)
	deadline := time.Now().Add(2 * time.Second)
	for r.State(variant.Penguin) != StateReady {
		if time.Now().After(deadline) {
			t.Fatalf("build did not complete after caller left")
		}
		time.Sleep(5 * time.Millisecond)
	}
	p, err := r.GetOrBuild(context.Background(), variant.Penguin)
	if err != nil || !p.Active() {
		t.Fatalf("expected active predictor, got %v err=%v", p, err)
	}
	if c := b.count(variant.Penguin); c != 1 {
		t.Fatalf("expected one build, got %d", c)
	}
}

func TestInactivePredictorIsCached(t *testing.T) {
	b := newGatedBuilder()
	b.inactive = true
	close(b.release)
	pub := &events.MemoryPublisher{}
	r := New(Config{Builder: b, Publisher: pub})

	for i := 0; i < 3; i++ {
		p, err := r.GetOrBuild(context.Background(), variant.Shadows)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if p.Active() {
			t.Fatalf("expected inactive predictor")
		}
	}
	if c := b.count(variant.Shadows); c != 1 {
		t.Fatalf("inactive predictor must not be rebuilt, got %d builds", c)
	}
	if pub.Count("build_inactive") != 1 || pub.Count("build_start") != 1 {
		t.Fatalf("unexpected events: %+v", pub.Events())
	}
	st := r.Status()
	if len(st) != 1 || st[0].Variant != "shadows" || st[0].Active || st[0].Error == "" {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestVariantsBuildIndependently(t *testing.T) {
	b := newGatedBuilder()
	close(b.release)
	r := New(Config{Builder: b})
	if err := r.Warm(context.Background(), variant.Card, variant.Rockstack, variant.Card); err != nil {
		t.Fatalf("warm: %v", err)
	}
	if b.count(variant.Card) != 1 || b.count(variant.Rockstack) != 1 {
		t.Fatalf("unexpected build counts %v", b.counts)
	}
	p, _ := r.GetOrBuild(context.Background(), variant.Rockstack)
	if n, _ := p.Predict(nil); n != variant.Rockstack.Ordinal() {
		t.Fatalf("slot returned the wrong predictor")
	}
	st := r.Status()
	if len(st) != 2 || st[0].Variant != "card" || st[1].Variant != "rockstack" || st[0].State != "ready" {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestBuildPanicBecomesInactive(t *testing.T) {
	b := newGatedBuilder()
	b.panics = true
	close(b.release)
	r := New(Config{Builder: b})
	p, err := r.GetOrBuild(context.Background(), variant.Maze2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Active() {
		t.Fatalf("panicking build should produce an inactive predictor")
	}
	if _, err := p.Predict(nil); !predictor.IsInactive(err) {
		t.Fatalf("expected inactive error, got %v", err)
	}
}

func TestInvalidVariant(t *testing.T) {
	r := New(Config{Builder: newGatedBuilder()})
	if _, err := r.GetOrBuild(context.Background(), variant.Variant(variant.Count)); !variant.IsUnknown(err) {
		t.Fatalf("expected unknown variant error, got %v", err)
	}
}

func TestCloseReleasesSessions(t *testing.T) {
	b := newGatedBuilder()
	close(b.release)
	r := New(Config{Builder: b})
	p, _ := r.GetOrBuild(context.Background(), variant.Card)
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !p.(*stubPredictor).closed.Load() {
		t.Fatalf("expected predictor to be closed")
	}
}

func TestScanDirMapsArtifactsToVariants(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"3d_rollball_objects.onnx", "card.ONNX", "notes.txt", "extra.onnx"} {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	arts, err := ScanDir(dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(arts) != 3 {
		t.Fatalf("expected 3 onnx files, got %+v", arts)
	}
	if arts[0].Name != "3d_rollball_objects.onnx" || len(arts[0].Variants) != 2 {
		t.Fatalf("shared artifact should serve two variants: %+v", arts[0])
	}
	if arts[1].Name != "card.ONNX" || len(arts[1].Variants) != 0 {
		t.Fatalf("case-mismatched file name should not map to a variant: %+v", arts[1])
	}
	if arts[2].Size != 1 || arts[2].Path != filepath.Join(dir, "extra.onnx") {
		t.Fatalf("unexpected entry %+v", arts[2])
	}
}

func TestArtifactsDeduplicates(t *testing.T) {
	got := Artifacts(variant.RollballAnimals, variant.RollballObjects, variant.Card)
	if len(got) != 2 || got[0] != "3d_rollball_objects.onnx" || got[1] != "card.onnx" {
		t.Fatalf("unexpected artifacts %v", got)
	}
}
