package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/bryanwahyu/healthwave/internal/domain/analysis"
	"github.com/bryanwahyu/healthwave/internal/domain/failures"
)

// Predictor runs one forward pass of a loaded model over a batch.
type Predictor interface {
	Predict(ctx context.Context, batch []Tensor) ([][]float64, error)
}

// Loader resolves a model by name and fails when it cannot serve.
type Loader interface {
	Load(ctx context.Context, name string) (Predictor, error)
}

// readiness is implemented by predictors that can report they still serve.
type readiness interface {
	Ready(ctx context.Context) error
}

// Options bound inference on every model handle.
type Options struct {
	// Slots is the number of concurrent inferences per model.
	Slots   int64
	Timeout time.Duration
	// MaxEdge is the largest accepted image width or height in pixels.
	MaxEdge int
}

type handle struct {
	name      string
	predictor Predictor
	slots     *semaphore.Weighted
}

// Adapter holds one model per image domain. Handles are read-only after
// construction; each one admits at most Options.Slots inferences at a time.
type Adapter struct {
	models  map[analysis.ImageDomain]*handle
	timeout time.Duration
	maxEdge int
}

// Load resolves the model of every domain through loader. Any missing or
// unavailable model fails the whole load.
func Load(ctx context.Context, loader Loader, names map[analysis.ImageDomain]string, opts Options) (*Adapter, error) {
	predictors := make(map[analysis.ImageDomain]Predictor, len(names))
	for _, d := range analysis.Domains {
		name, ok := names[d]
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: no model configured for %s", failures.ErrModelUnavailable, d)
		}
		p, err := loader.Load(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("%w: load %s model %q: %w", failures.ErrModelUnavailable, d, name, err)
		}
		predictors[d] = p
	}
	a, err := New(predictors, opts)
	if err != nil {
		return nil, err
	}
	for d, h := range a.models {
		h.name = names[d]
	}
	return a, nil
}

// New wraps already loaded predictors. Every known domain must be present.
func New(predictors map[analysis.ImageDomain]Predictor, opts Options) (*Adapter, error) {
	if opts.Slots <= 0 {
		opts.Slots = 1
	}
	if opts.MaxEdge <= 0 {
		opts.MaxEdge = DefaultMaxEdge
	}
	models := make(map[analysis.ImageDomain]*handle, len(predictors))
	for _, d := range analysis.Domains {
		p, ok := predictors[d]
		if !ok || p == nil {
			return nil, fmt.Errorf("%w: no model for %s", failures.ErrModelUnavailable, d)
		}
		models[d] = &handle{name: string(d), predictor: p, slots: semaphore.NewWeighted(opts.Slots)}
	}
	return &Adapter{models: models, timeout: opts.Timeout, maxEdge: opts.MaxEdge}, nil
}

// Classify preprocesses the image and returns element 0 of the model's
// first prediction row as the confidence.
func (a *Adapter) Classify(ctx context.Context, image []byte, d analysis.ImageDomain) (float64, error) {
	h, ok := a.models[d]
	if !ok {
		return 0, fmt.Errorf("%w: no model for %q", failures.ErrModelUnavailable, d)
	}

	tensor, err := Preprocess(image, a.maxEdge)
	if err != nil {
		return 0, err
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	if err := h.slots.Acquire(ctx, 1); err != nil {
		return 0, fmt.Errorf("%w: waiting for %s model: %w", failures.ErrModelUnavailable, d, err)
	}
	defer h.slots.Release(1)

	out, err := h.predictor.Predict(ctx, []Tensor{tensor})
	if err != nil {
		return 0, fmt.Errorf("%w: %s inference: %w", failures.ErrModelUnavailable, d, err)
	}
	if len(out) == 0 || len(out[0]) == 0 {
		return 0, fmt.Errorf("%w: %s model returned an empty prediction", failures.ErrModelUnavailable, d)
	}

	c := out[0][0]
	if math.IsNaN(c) || c < 0 || c > 1 {
		return 0, fmt.Errorf("%w: %s model returned confidence %v outside [0,1]", failures.ErrModelUnavailable, d, c)
	}
	return c, nil
}

// Check reports whether every model that can tell is still serving.
func (a *Adapter) Check(ctx context.Context) error {
	var errs []error
	for d, h := range a.models {
		if r, ok := h.predictor.(readiness); ok {
			if err := r.Ready(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s model %q: %w", d, h.name, err))
			}
		}
	}
	return errors.Join(errs...)
}
