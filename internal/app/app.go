// Package app assembles the artifact store, predictor registry, solver and
// event hub into the service behind the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"fcsrv/internal/artifact"
	"fcsrv/internal/common/fsutil"
	"fcsrv/internal/config"
	"fcsrv/internal/events"
	"fcsrv/internal/fallback"
	"fcsrv/internal/onnx"
	"fcsrv/internal/predictor"
	"fcsrv/internal/registry"
	"fcsrv/internal/solver"
	"fcsrv/internal/variant"
	"fcsrv/pkg/types"
)

// Parts are the already constructed components of an App.
type Parts struct {
	Solver   *solver.Solver
	Registry *registry.Registry
	Hub      *events.Hub
	// Store is optional; it is nil in tests that never fetch.
	Store   *artifact.Store
	Preload []variant.Variant
	// Closers are closed after the registry, in order.
	Closers []io.Closer
	Logger  zerolog.Logger
}

// App implements httpapi.Service and httpapi.EventSource.
type App struct {
	solver   *solver.Solver
	registry *registry.Registry
	hub      *events.Hub
	store    *artifact.Store
	preload  []variant.Variant
	closers  []io.Closer
	log      zerolog.Logger

	started time.Time
	ready   atomic.Bool
}

// New returns an App over p. It is not ready until MarkReady is called.
func New(p Parts) *App {
	hub := p.Hub
	if hub == nil {
		hub = events.NewHub(0)
	}
	return &App{
		solver:   p.Solver,
		registry: p.Registry,
		hub:      hub,
		store:    p.Store,
		preload:  p.Preload,
		closers:  p.Closers,
		log:      p.Logger,
		started:  time.Now(),
	}
}

// Build wires every component from cfg. cfg must have passed Validate.
func Build(cfg config.Config, log zerolog.Logger) (*App, error) {
	hub := events.NewHub(64)

	modelDir, err := fsutil.ResolveModelDir(cfg.ModelDir)
	if err != nil {
		return nil, err
	}
	backend, err := artifact.NewBackend(cfg.Backend, nil)
	if err != nil {
		return nil, fmt.Errorf("artifact backend: %w", err)
	}
	store := artifact.New(artifact.Config{
		Backend:     backend,
		UpdateCheck: cfg.UpdateCheck,
		Progress:    artifact.LogProgress(log.With().Str("component", "artifact").Logger()),
		Logger:      log.With().Str("component", "artifact").Logger(),
		Publisher:   hub,
	})

	alloc, err := predictor.ParseAllocator(cfg.Allocator)
	if err != nil {
		return nil, err
	}
	libPath := cfg.ONNXRuntimeLib
	if libPath == "" {
		libPath = os.Getenv(onnx.DefaultLibraryEnv)
	}
	engine := onnx.New(libPath)
	if !onnx.Built {
		log.Warn().Msg("built without onnxruntime; local predictors stay inactive")
	}

	factory := predictor.NewFactory(predictor.FactoryConfig{
		Fetcher:  store,
		ModelDir: modelDir,
		Engine:   engine,
		Options:  predictor.SessionOptions{Threads: cfg.Threads, Allocator: alloc},
		Logger:   log.With().Str("component", "predictor").Logger(),
	})
	reg := registry.New(registry.Config{
		Builder:   factory,
		Logger:    log.With().Str("component", "registry").Logger(),
		Publisher: hub,
	})

	scfg := solver.Config{
		Registry:  reg,
		Limit:     cfg.Limit,
		Workers:   cfg.Workers,
		APIKey:    cfg.APIKey,
		Logger:    log.With().Str("component", "solver").Logger(),
		Publisher: hub,
	}
	if cfg.Fallback.Enabled() {
		fb, err := fallback.New(fallback.Config{
			Provider:   fallback.Provider(cfg.Fallback.Provider),
			ClientKey:  cfg.Fallback.Key,
			Endpoint:   cfg.Fallback.Endpoint,
			ImageLimit: cfg.Fallback.ImageLimit,
		}, fallback.WithLogger(log.With().Str("component", "fallback").Logger()))
		if err != nil {
			return nil, err
		}
		scfg.Fallback = fb
		scfg.FallbackName = cfg.Fallback.Provider
	}

	log.Info().Str("model_dir", modelDir).Str("backend", backend.String()).
		Bool("update_check", cfg.UpdateCheck).Str("fallback", scfg.FallbackName).Msg("components ready")

	return New(Parts{
		Solver:   solver.New(scfg),
		Registry: reg,
		Hub:      hub,
		Store:    store,
		Preload:  cfg.PreloadVariants(),
		Closers:  []io.Closer{engine},
		Logger:   log,
	}), nil
}

// Solve answers task.
func (a *App) Solve(ctx context.Context, task types.Task) ([]int, error) {
	return a.solver.Solve(ctx, task)
}

// Status reports registry slots and server facts.
func (a *App) Status() types.StatusResponse {
	now := time.Now()
	return types.StatusResponse{
		Predictors:     a.registry.Status(),
		BuildsTotal:    a.registry.BuildsTotal(),
		Fallback:       a.solver.FallbackName(),
		Limit:          a.solver.Limit(),
		UptimeSeconds:  int64(now.Sub(a.started).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
}

// Variants lists the variant table.
func (a *App) Variants() []types.VariantInfo { return VariantTable() }

// Ready reports whether startup has finished.
func (a *App) Ready() bool { return a.ready.Load() }

// MarkReady flips readiness once the listener is up.
func (a *App) MarkReady() { a.ready.Store(true) }

// Subscribe streams lifecycle events.
func (a *App) Subscribe() (<-chan events.Event, func()) { return a.hub.Subscribe() }

// Store returns the artifact store, or nil.
func (a *App) Store() *artifact.Store { return a.store }

// Warm builds the configured preload variants. Failed builds become inactive
// predictors and are reported by /status, not here.
func (a *App) Warm(ctx context.Context) error {
	if len(a.preload) == 0 {
		return nil
	}
	start := time.Now()
	if err := a.registry.Warm(ctx, a.preload...); err != nil {
		return err
	}
	a.log.Info().Int("variants", len(a.preload)).Dur("took", time.Since(start)).Msg("preload complete")
	return nil
}

// Close releases predictors, then the remaining closers.
func (a *App) Close() error {
	errs := []error{a.registry.Close()}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// VariantTable describes every supported variant in ordinal order.
func VariantTable() []types.VariantInfo {
	out := make([]types.VariantInfo, 0, variant.Count)
	for _, v := range variant.All() {
		out = append(out, types.VariantInfo{
			Name:      v.String(),
			Ordinal:   v.Ordinal(),
			Artifact:  v.Artifact(),
			Shape:     v.Shape().String(),
			Grayscale: v.Grayscale(),
		})
	}
	return out
}
