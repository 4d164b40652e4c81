// Package registry owns one lazily built predictor per variant.
//
// Slots live in a dense array indexed by variant ordinal. A ready slot is read
// with a single atomic load. The first requests for an empty slot coalesce on
// one build; the build runs detached from the callers so an abandoned request
// never leaves a slot half built.
package registry

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"fcsrv/internal/events"
	"fcsrv/internal/predictor"
	"fcsrv/internal/variant"
)

// Builder constructs the predictor for a variant. *predictor.Factory satisfies it.
type Builder interface {
	Build(ctx context.Context, v variant.Variant) predictor.Predictor
}

// State of a registry slot.
type State int32

const (
	StateEmpty State = iota
	StateBuilding
	StateReady
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	default:
		return "empty"
	}
}

type entry struct {
	p       predictor.Predictor
	readyAt time.Time
}

type slot struct {
	state atomic.Int32
	ready atomic.Pointer[entry]
}

// Config wires a Registry.
type Config struct {
	Builder   Builder
	Logger    zerolog.Logger
	Publisher events.Publisher
}

// Registry caches predictors for the lifetime of the process.
type Registry struct {
	builder Builder
	log     zerolog.Logger
	pub     events.Publisher

	slots  [variant.Count]slot
	group  singleflight.Group
	builds atomic.Uint64
}

// New returns an empty registry.
func New(cfg Config) *Registry {
	return &Registry{builder: cfg.Builder, log: cfg.Logger, pub: events.OrNop(cfg.Publisher)}
}

// GetOrBuild returns the predictor for v, building it on first use. Inactive
// predictors are cached like active ones and never rebuilt. If ctx ends while
// a build is in flight GetOrBuild returns ctx.Err() and the build still
// populates the slot.
func (r *Registry) GetOrBuild(ctx context.Context, v variant.Variant) (predictor.Predictor, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("%w: ordinal %d", variant.ErrUnknownVariant, int(v))
	}
	s := &r.slots[v]
	if e := s.ready.Load(); e != nil {
		return e.p, nil
	}

	ch := r.group.DoChan(strconv.Itoa(v.Ordinal()), func() (any, error) {
		// a build that finished between the fast path and here wins
		if e := s.ready.Load(); e != nil {
			return e.p, nil
		}
		return r.build(context.WithoutCancel(ctx), v), nil
	})
	select {
	case res := <-ch:
		return res.Val.(predictor.Predictor), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Registry) build(ctx context.Context, v variant.Variant) predictor.Predictor {
	s := &r.slots[v]
	s.state.Store(int32(StateBuilding))
	r.pub.Publish(events.New("build_start", v.String(), nil))
	r.log.Debug().Str("variant", v.String()).Msg("building predictor")

	start := time.Now()
	p := r.safeBuild(ctx, v)
	took := time.Since(start)

	s.ready.Store(&entry{p: p, readyAt: time.Now()})
	s.state.Store(int32(StateReady))
	r.builds.Add(1)
	buildsTotal.WithLabelValues(v.String(), strconv.FormatBool(p.Active())).Inc()

	if p.Active() {
		r.pub.Publish(events.New("build_ready", v.String(), map[string]any{"took_ms": took.Milliseconds()}))
	} else {
		msg := ""
		if err := predictor.Err(p); err != nil {
			msg = err.Error()
		}
		r.pub.Publish(events.New("build_inactive", v.String(), map[string]any{"took_ms": took.Milliseconds(), "error": msg}))
	}
	return p
}

func (r *Registry) safeBuild(ctx context.Context, v variant.Variant) (p predictor.Predictor) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Str("variant", v.String()).Msg("predictor build panicked")
			p = predictor.Inactive(v, fmt.Errorf("build panic: %v", rec))
		}
	}()
	if r.builder == nil {
		return predictor.Inactive(v, fmt.Errorf("no predictor builder configured"))
	}
	p = r.builder.Build(ctx, v)
	if p == nil {
		p = predictor.Inactive(v, fmt.Errorf("builder returned no predictor"))
	}
	return p
}

// Warm builds the given variants concurrently and waits for them.
func (r *Registry) Warm(ctx context.Context, vs ...variant.Variant) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, v := range vs {
		v := v
		g.Go(func() error {
			_, err := r.GetOrBuild(ctx, v)
			return err
		})
	}
	return g.Wait()
}

// BuildsTotal returns how many builds have completed.
func (r *Registry) BuildsTotal() uint64 { return r.builds.Load() }

// Close releases the sessions of ready predictors. The registry must not be
// used afterwards.
func (r *Registry) Close() error {
	var first error
	for i := range r.slots {
		e := r.slots[i].ready.Load()
		if e == nil {
			continue
		}
		if c, ok := e.p.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
