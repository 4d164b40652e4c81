package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fcsrv/internal/artifact"
	"fcsrv/internal/config"
	"fcsrv/internal/events"
	"fcsrv/internal/predictor"
	"fcsrv/internal/registry"
	"fcsrv/internal/solver"
	"fcsrv/internal/variant"
	"fcsrv/pkg/types"
)

// boundsPredictor answers with the image height.
type boundsPredictor struct{}

func (boundsPredictor) Active() bool { return true }

func (boundsPredictor) Predict(img image.Image) (int, error) { return img.Bounds().Dy(), nil }

type countingBuilder struct{ n atomic.Int32 }

func (b *countingBuilder) Build(_ context.Context, v variant.Variant) predictor.Predictor {
	b.n.Add(1)
	if v == variant.Rockstack {
		return predictor.Inactive(v, errors.New("weights missing"))
	}
	return boundsPredictor{}
}

func pngB64(t *testing.T, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func newTestApp(t *testing.T, preload ...variant.Variant) (*App, *countingBuilder) {
	t.Helper()
	hub := events.NewHub(16)
	b := &countingBuilder{}
	reg := registry.New(registry.Config{Builder: b, Publisher: hub})
	s := solver.New(solver.Config{Registry: reg, Limit: 2, Publisher: hub})
	return New(Parts{Solver: s, Registry: reg, Hub: hub, Preload: preload, Logger: zerolog.Nop()}), b
}

func TestSolveAndStatus(t *testing.T) {
	a, b := newTestApp(t)
	task := types.Task{Images: []string{pngB64(t, 3, 5), pngB64(t, 3, 9)}, GameVariantInstructions: [2]string{"card", ""}}
	got, err := a.Solve(context.Background(), task)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if len(got) != 2 || got[0] != 5 || got[1] != 9 {
		t.Fatalf("unexpected answers %v", got)
	}
	if _, err := a.Solve(context.Background(), task); err != nil {
		t.Fatalf("second solve: %v", err)
	}
	if b.n.Load() != 1 {
		t.Fatalf("expected one build, got %d", b.n.Load())
	}

	st := a.Status()
	if st.Limit != 2 || st.BuildsTotal != 1 || st.Fallback != "" {
		t.Fatalf("unexpected status %+v", st)
	}
	if len(st.Predictors) != 1 || st.Predictors[0].Variant != "card" || st.Predictors[0].State != "ready" || !st.Predictors[0].Active {
		t.Fatalf("unexpected predictors %+v", st.Predictors)
	}
	if st.ServerTimeUnix == 0 || st.UptimeSeconds < 0 {
		t.Fatalf("unexpected clock fields %+v", st)
	}
}

func TestInactiveWithoutFallback(t *testing.T) {
	a, _ := newTestApp(t)
	task := types.Task{Images: []string{pngB64(t, 2, 2)}, GameVariantInstructions: [2]string{"rockstack", ""}}
	_, err := a.Solve(context.Background(), task)
	if !predictor.IsInactive(err) {
		t.Fatalf("expected inactive predictor error, got %v", err)
	}
	st := a.Status()
	if len(st.Predictors) != 1 || st.Predictors[0].Active || !strings.Contains(st.Predictors[0].Error, "weights missing") {
		t.Fatalf("unexpected predictors %+v", st.Predictors)
	}
}

func TestReadyAndWarm(t *testing.T) {
	a, b := newTestApp(t, variant.Card, variant.Penguin, variant.Card)
	if a.Ready() {
		t.Fatalf("app must not be ready before MarkReady")
	}
	if err := a.Warm(context.Background()); err != nil {
		t.Fatalf("warm: %v", err)
	}
	if b.n.Load() != 2 {
		t.Fatalf("expected two builds, got %d", b.n.Load())
	}
	a.MarkReady()
	if !a.Ready() {
		t.Fatalf("expected ready")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestSubscribeSeesBuildEvents(t *testing.T) {
	a, _ := newTestApp(t)
	ch, cancel := a.Subscribe()
	defer cancel()
	task := types.Task{Images: []string{pngB64(t, 1, 1)}, GameVariantInstructions: [2]string{"card", ""}}
	if _, err := a.Solve(context.Background(), task); err != nil {
		t.Fatalf("solve: %v", err)
	}
	seen := map[string]bool{}
	timeout := time.After(2 * time.Second)
	for !seen["build_ready"] || !seen["task_solved"] {
		select {
		case ev := <-ch:
			seen[ev.Name] = true
		case <-timeout:
			t.Fatalf("missing events, saw %v", seen)
		}
	}
}

func TestVariantTable(t *testing.T) {
	vs := VariantTable()
	if len(vs) != variant.Count {
		t.Fatalf("expected %d variants, got %d", variant.Count, len(vs))
	}
	for i, v := range vs {
		if v.Ordinal != i || v.Name == "" || v.Artifact == "" {
			t.Fatalf("bad entry %+v", v)
		}
	}
}

// TestBuildFallsBackWhenRuntimeMissing wires the real components against a
// static artifact server and a fake capsolver endpoint.
func TestBuildFallsBackWhenRuntimeMissing(t *testing.T) {
	var artifactHits atomic.Int32
	models := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		artifactHits.Add(1)
		_, _ = w.Write([]byte("not really onnx"))
	}))
	defer models.Close()

	var fallbackHits atomic.Int32
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackHits.Add(1)
		var req struct {
			Task struct {
				Images   []string `json:"images"`
				Question string   `json:"question"`
			} `json:"task"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		objs := make([]int, len(req.Task.Images))
		for i := range objs {
			objs[i] = i + 1
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"errorId": 0, "status": "ready", "solution": map[string]any{"objects": objs}})
	}))
	defer provider.Close()

	cfg := config.Config{
		ModelDir: t.TempDir(),
		Backend:  artifact.BackendConfig{Kind: artifact.KindStatic, BaseURL: models.URL},
		Fallback: config.FallbackConfig{Provider: "capsolver", Key: "k", Endpoint: provider.URL, ImageLimit: 3},
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	a, err := Build(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.Close()
	if a.Store() == nil {
		t.Fatalf("expected an artifact store")
	}

	task := types.Task{Images: []string{pngB64(t, 2, 2), pngB64(t, 2, 2)}, GameVariantInstructions: [2]string{"card", "pick"}}
	got, err := a.Solve(context.Background(), task)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("unexpected answers %v", got)
	}
	if artifactHits.Load() == 0 || fallbackHits.Load() != 1 {
		t.Fatalf("artifact hits=%d fallback hits=%d", artifactHits.Load(), fallbackHits.Load())
	}
	if st := a.Status(); st.Fallback != "capsolver" || len(st.Predictors) != 1 || st.Predictors[0].Active {
		t.Fatalf("unexpected status %+v", st)
	}
}
