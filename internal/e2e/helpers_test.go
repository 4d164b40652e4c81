package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"fcsrv/internal/app"
	"fcsrv/internal/artifact"
	"fcsrv/internal/events"
	"fcsrv/internal/fallback"
	"fcsrv/internal/httpapi"
	"fcsrv/internal/predictor"
	"fcsrv/internal/registry"
	"fcsrv/internal/solver"
)

// modelServer serves artifacts and a version.json built from the good bytes.
// Objects listed in corrupt are served wrong once, then correctly.
type modelServer struct {
	*httptest.Server
	mu      sync.Mutex
	good    map[string][]byte
	corrupt map[string]bool
	hits    map[string]int
}

func newModelServer(t *testing.T, names ...string) *modelServer {
	t.Helper()
	ms := &modelServer{good: map[string][]byte{}, corrupt: map[string]bool{}, hits: map[string]int{}}
	for _, n := range names {
		ms.good[n] = []byte("weights of " + n)
	}
	ms.Server = httptest.NewServer(http.HandlerFunc(ms.serve))
	t.Cleanup(ms.Close)
	return ms
}

func (ms *modelServer) serve(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/")
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.hits[key]++
	if key == artifact.ManifestName {
		m := map[string]string{}
		for name, b := range ms.good {
			base, _, _ := strings.Cut(name, ".")
			sum := sha256.Sum256(b)
			m[base] = hex.EncodeToString(sum[:])
		}
		_ = json.NewEncoder(w).Encode(m)
		return
	}
	b, ok := ms.good[key]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if ms.corrupt[key] {
		delete(ms.corrupt, key)
		_, _ = w.Write([]byte("truncated"))
		return
	}
	_, _ = w.Write(b)
}

func (ms *modelServer) Hits(key string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.hits[key]
}

// meanEngine scores classifier tiles by brightness and pair candidates by
// closeness of brightness to the reference.
type meanEngine struct{ opened atomic.Int32 }

func (e *meanEngine) Open(path string, _ predictor.SessionOptions) (predictor.Session, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	e.opened.Add(1)
	return meanSession{}, nil
}

type meanSession struct{}

func (meanSession) Run(in []predictor.Tensor) ([]float32, error) {
	switch len(in) {
	case 1:
		return []float32{mean(in[0].Data)}, nil
	case 2:
		d := mean(in[0].Data) - mean(in[1].Data)
		if d < 0 {
			d = -d
		}
		return []float32{-d}, nil
	}
	return nil, fmt.Errorf("unexpected %d inputs", len(in))
}

func (meanSession) Close() error { return nil }

func mean(xs []float32) float32 {
	var s float32
	for _, x := range xs {
		s += x
	}
	return s / float32(len(xs))
}

type stackOptions struct {
	updateCheck bool
	fallback    *httptest.Server
	apiKey      string
}

type stack struct {
	srv    *httptest.Server
	models *modelServer
	engine *meanEngine
	dir    string
	pub    *events.MemoryPublisher
}

// newStack wires the real store, factory, registry, solver and HTTP layer
// around a fake inference engine.
func newStack(t *testing.T, models *modelServer, o stackOptions) *stack {
	t.Helper()
	dir := t.TempDir()
	hub := events.NewHub(64)
	mem := events.NewMemoryPublisher()
	pub := events.Multi{hub, mem}

	store := artifact.New(artifact.Config{
		Backend:     artifact.NewStaticBackend(models.URL, nil),
		UpdateCheck: o.updateCheck,
		Publisher:   pub,
	})
	engine := &meanEngine{}
	factory := predictor.NewFactory(predictor.FactoryConfig{
		Fetcher:  store,
		ModelDir: dir,
		Engine:   engine,
		Logger:   zerolog.Nop(),
	})
	reg := registry.New(registry.Config{Builder: factory, Publisher: pub})
	scfg := solver.Config{Registry: reg, APIKey: o.apiKey, Publisher: pub}
	if o.fallback != nil {
		fb, err := fallback.New(fallback.Config{Provider: fallback.CapSolver, ClientKey: "k", Endpoint: o.fallback.URL, ImageLimit: 3})
		if err != nil {
			t.Fatalf("fallback: %v", err)
		}
		scfg.Fallback = fb
		scfg.FallbackName = string(fallback.CapSolver)
	}
	a := app.New(app.Parts{Solver: solver.New(scfg), Registry: reg, Hub: hub, Store: store})
	a.MarkReady()
	t.Cleanup(func() { _ = a.Close() })

	srv := httptest.NewServer(httpapi.NewMux(a))
	t.Cleanup(srv.Close)
	return &stack{srv: srv, models: models, engine: engine, dir: dir, pub: mem}
}

// newFallbackServer answers every capsolver task with 1..n.
func newFallbackServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var req struct {
			Task struct {
				Images []string `json:"images"`
			} `json:"task"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		objs := make([]int, len(req.Task.Images))
		for i := range objs {
			objs[i] = i + 1
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"errorId": 0, "solution": map[string]any{"objects": objs}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// tiledImage is a 600x400 grid of 200px tiles; shades are listed row by row.
func tiledImage(t *testing.T, shades ...uint8) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 600, 400))
	for i, s := range shades {
		r := image.Rect(0, 0, 200, 200).Add(image.Pt(i%3*200, i/3*200))
		draw.Draw(img, r, &image.Uniform{C: color.RGBA{R: s, G: s, B: s, A: 255}}, image.Point{}, draw.Src)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func taskBody(t *testing.T, variantName string, images ...string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"images":                    images,
		"game_variant_instructions": []string{variantName, "pick the right one"},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}
