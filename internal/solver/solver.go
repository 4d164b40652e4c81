// Package solver validates tasks and answers them with local predictors,
// deferring to a remote fallback provider when no local predictor can serve
// the variant.
package solver

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"fcsrv/internal/events"
	"fcsrv/internal/predictor"
	"fcsrv/internal/variant"
	"fcsrv/pkg/types"
)

// DefaultLimit is the maximum number of images per task when none is configured.
const DefaultLimit = 3

// Registry hands out predictors. *registry.Registry satisfies it.
type Registry interface {
	GetOrBuild(ctx context.Context, v variant.Variant) (predictor.Predictor, error)
}

// Fallback solves tasks remotely. *fallback.Client satisfies it.
type Fallback interface {
	Solve(ctx context.Context, images []string, variantName, instruction string) ([]int, error)
}

// Config wires a Solver.
type Config struct {
	Registry Registry
	// Fallback is optional.
	Fallback Fallback
	// FallbackName is reported by /status.
	FallbackName string
	Limit        int
	// Workers bounds concurrent per-image inference; defaults to runtime.NumCPU().
	Workers   int
	APIKey    string
	Logger    zerolog.Logger
	Publisher events.Publisher
}

// Solver is safe for concurrent use.
type Solver struct {
	registry     Registry
	fallback     Fallback
	fallbackName string
	limit        int
	workers      int
	apiKey       string
	log          zerolog.Logger
	pub          events.Publisher
}

// New returns a Solver.
func New(cfg Config) *Solver {
	limit := cfg.Limit
	if limit < 1 {
		limit = DefaultLimit
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Solver{
		registry:     cfg.Registry,
		fallback:     cfg.Fallback,
		fallbackName: cfg.FallbackName,
		limit:        limit,
		workers:      workers,
		apiKey:       cfg.APIKey,
		log:          cfg.Logger,
		pub:          events.OrNop(cfg.Publisher),
	}
}

// Limit returns the maximum number of images per task.
func (s *Solver) Limit() int { return s.limit }

// FallbackName returns the configured fallback provider, or "".
func (s *Solver) FallbackName() string {
	if s.fallback == nil {
		return ""
	}
	return s.fallbackName
}

// Process solves task and folds any error into the result.
func (s *Solver) Process(ctx context.Context, task types.Task) types.TaskResult {
	answers, err := s.Solve(ctx, task)
	if err != nil {
		return types.Failed(err)
	}
	return types.Solved(answers)
}

// Solve returns one answer per image of task, in image order.
func (s *Solver) Solve(ctx context.Context, task types.Task) (answers []int, err error) {
	start := time.Now()
	route := "none"
	defer func() {
		outcome := "solved"
		if err != nil {
			outcome = "failed"
			if IsClientError(err) {
				outcome = "rejected"
			}
		}
		tasksTotal.WithLabelValues(route, outcome).Inc()
		taskDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		ev := s.log.Debug()
		if err != nil {
			ev = s.log.Info().Err(err)
		}
		ev.Str("variant", task.VariantName()).Str("route", route).Int("images", len(task.Images)).
			Dur("took", time.Since(start)).Msg("task " + outcome)
		s.pub.Publish(events.New("task_"+outcome, task.VariantName(), map[string]any{"route": route, "images": len(task.Images)}))
	}()

	if err := s.checkKey(task.APIKey); err != nil {
		return nil, err
	}
	if err := s.validate(task); err != nil {
		return nil, err
	}

	v, err := variant.Parse(task.VariantName())
	if err != nil {
		if s.fallback == nil {
			return nil, badRequest(err)
		}
		route = "fallback"
		return s.viaFallback(ctx, task)
	}

	p, err := s.registry.GetOrBuild(ctx, v)
	if err != nil {
		return nil, err
	}
	if !p.Active() {
		if s.fallback == nil {
			return nil, inactiveCause(v, p)
		}
		route = "fallback"
		return s.viaFallback(ctx, task)
	}
	route = "local"
	return s.local(ctx, p, task.Images)
}

func (s *Solver) checkKey(key string) error {
	if s.apiKey == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
		return &RequestError{Status: http.StatusUnauthorized, Err: ErrInvalidAPIKey}
	}
	return nil
}

func (s *Solver) validate(task types.Task) error {
	if len(task.Images) == 0 {
		return badRequest(ErrInvalidImages)
	}
	if len(task.Images) > s.limit {
		return badRequest(fmt.Errorf("%w: %d images exceeds limit %d", ErrInvalidSubmitLimit, len(task.Images), s.limit))
	}
	return nil
}

func (s *Solver) viaFallback(ctx context.Context, task types.Task) ([]int, error) {
	return s.fallback.Solve(ctx, task.Images, task.VariantName(), task.Instruction())
}

// inactiveCause returns the build error of an inactive predictor.
func inactiveCause(v variant.Variant, p predictor.Predictor) error {
	if err := predictor.Err(p); err != nil {
		return err
	}
	return &predictor.InactiveError{Variant: v, Err: errors.New("session unavailable")}
}

type answer struct {
	index int
	value int
}

// local decodes and predicts every image on a bounded pool. Results are
// tagged with their input index and sorted before assembly.
func (s *Solver) local(ctx context.Context, p predictor.Predictor, images []string) ([]int, error) {
	results := make(chan answer, len(images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, raw := range images {
		i, raw := i, raw
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := DecodeImage(raw)
			if err != nil {
				return badRequest(fmt.Errorf("%w: image %d: %v", ErrImageDecode, i, err))
			}
			n, err := p.Predict(img)
			if err != nil {
				return err
			}
			results <- answer{index: i, value: n}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(results)

	tagged := make([]answer, 0, len(images))
	for a := range results {
		tagged = append(tagged, a)
	}
	sort.Slice(tagged, func(i, j int) bool { return tagged[i].index < tagged[j].index })
	out := make([]int, len(tagged))
	for i, a := range tagged {
		out[i] = a.value
	}
	return out, nil
}
