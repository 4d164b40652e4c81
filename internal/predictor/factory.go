package predictor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"fcsrv/internal/variant"
)

// Fetcher materializes a model artifact locally and returns its path.
// *artifact.Store satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, name, dir string, force bool) (string, error)
}

// FactoryConfig wires a Factory.
type FactoryConfig struct {
	Fetcher      Fetcher
	ModelDir     string
	Engine       Engine
	Preprocessor Preprocessor
	Options      SessionOptions
	Logger       zerolog.Logger
}

// Factory builds predictors. Build never fails; failures produce inactive predictors.
type Factory struct {
	fetcher  Fetcher
	modelDir string
	engine   Engine
	pre      Preprocessor
	opts     SessionOptions
	log      zerolog.Logger
}

// NewFactory returns a Factory. A nil Preprocessor selects NewTilePreprocessor.
func NewFactory(cfg FactoryConfig) *Factory {
	pre := cfg.Preprocessor
	if pre == nil {
		pre = NewTilePreprocessor()
	}
	opts := cfg.Options
	if opts.Threads < 1 {
		opts.Threads = 1
	}
	if opts.Allocator == "" {
		opts.Allocator = AllocatorDevice
	}
	return &Factory{
		fetcher:  cfg.Fetcher,
		modelDir: cfg.ModelDir,
		engine:   cfg.Engine,
		pre:      pre,
		opts:     opts,
		log:      cfg.Logger,
	}
}

// Build resolves the artifact for v, opens a session and wraps it in the
// variant's shape.
func (f *Factory) Build(ctx context.Context, v variant.Variant) Predictor {
	start := time.Now()
	p, err := f.build(ctx, v)
	if err != nil {
		f.log.Warn().Err(err).Str("variant", v.String()).Msg("predictor build failed, marking inactive")
		return Inactive(v, err)
	}
	f.log.Info().Str("variant", v.String()).Str("shape", v.Shape().String()).Dur("took", time.Since(start)).Msg("predictor ready")
	return p
}

func (f *Factory) build(ctx context.Context, v variant.Variant) (Predictor, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("invalid variant %d", int(v))
	}
	if f.engine == nil {
		return nil, ErrDependencyUnavailable("no inference engine configured")
	}
	if f.fetcher == nil {
		return nil, fmt.Errorf("no artifact fetcher configured")
	}
	path, err := f.fetcher.Fetch(ctx, v.Artifact(), f.modelDir, false)
	if err != nil {
		return nil, err
	}
	sess, err := f.engine.Open(path, f.opts)
	if err != nil {
		return nil, err
	}
	var core shape
	switch v.Shape() {
	case variant.Pair:
		core = &pair{sess: sess, pre: f.pre, size: InputSize, gray: v.Grayscale()}
	default:
		core = &classifier{sess: sess, pre: f.pre, rotations: Rotations, size: InputSize}
	}
	return &sessionPredictor{variant: v, core: core, sess: sess}, nil
}
