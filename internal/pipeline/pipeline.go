// Package pipeline turns a raw prediction request into a weekly CO2
// estimate: vectorize, normalize, predict, denormalize.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/lacquerai/co2/internal/features"
	"github.com/lacquerai/co2/internal/inference"
	"github.com/rs/zerolog/log"
)

// ErrUnexpectedFailure marks failures outside the known taxonomy.
var ErrUnexpectedFailure = errors.New("unexpected failure")

// Result is the outcome of a successful prediction.
type Result struct {
	// Prediction is the estimated weekly emission in kg of CO2.
	Prediction float64 `json:"prediction" yaml:"prediction"`

	Features   features.Vector `json:"features" yaml:"features"`
	Normalized features.Vector `json:"normalized" yaml:"normalized"`
	Score      float64         `json:"score" yaml:"score"`
}

// Pipeline holds the fixed scaling parameters and the loaded model. It keeps
// no per-request state and is safe for concurrent use.
type Pipeline struct {
	predictor inference.Predictor
	norm      features.NormalizationParams
	denorm    features.DenormalizationParams
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithNormalization overrides the feature scaling.
func WithNormalization(p features.NormalizationParams) Option {
	return func(pl *Pipeline) { pl.norm = p }
}

// WithDenormalization overrides the target bounds.
func WithDenormalization(p features.DenormalizationParams) Option {
	return func(pl *Pipeline) { pl.denorm = p }
}

// New creates a pipeline around a loaded predictor.
func New(predictor inference.Predictor, opts ...Option) *Pipeline {
	pl := &Pipeline{
		predictor: predictor,
		norm:      features.DefaultNormalization,
		denorm:    features.DefaultDenormalization,
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// Predict runs the full sequence. The first failing stage ends the run and
// its error is returned unchanged, except for model errors which are always
// reported as inference failures.
func (pl *Pipeline) Predict(ctx context.Context, in features.RawInput) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("%w: %v", ErrUnexpectedFailure, r)
		}
	}()

	if err := in.CheckRequired(); err != nil {
		return nil, err
	}

	vec, err := features.Vectorize(in)
	if err != nil {
		return nil, err
	}

	normalized := features.Normalize(vec, pl.norm)

	score, err := pl.predictor.Predict(ctx, normalized.Slice())
	if err != nil {
		if !errors.Is(err, inference.ErrInferenceFailure) {
			err = &inference.Error{Backend: "model", Err: err}
		}
		return nil, err
	}

	prediction := features.Denormalize(score, pl.denorm)
	if !finite(score) || !finite(prediction) {
		return nil, &inference.Error{
			Backend: "model",
			Err:     fmt.Errorf("non-finite prediction %v from score %v", prediction, score),
		}
	}

	log.Debug().
		Floats64("features", vec[:]).
		Floats64("normalized", normalized[:]).
		Float64("score", score).
		Float64("prediction", prediction).
		Msg("Prediction computed")

	return &Result{
		Prediction: prediction,
		Features:   vec,
		Normalized: normalized,
		Score:      score,
	}, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Close releases the model.
func (pl *Pipeline) Close() error {
	return pl.predictor.Close()
}
