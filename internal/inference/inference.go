// Package inference runs the trained CO2 model. The model is opaque to the
// rest of the service: it takes a normalized feature vector and returns a
// single score.
package inference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lacquerai/co2/internal/features"
	"github.com/rs/zerolog/log"
)

// ErrInferenceFailure marks any failure while invoking the model.
var ErrInferenceFailure = errors.New("inference failure")

// Error wraps a backend failure. It matches both ErrInferenceFailure and
// the underlying cause with errors.Is.
type Error struct {
	Backend string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s inference failed: %v", e.Backend, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrInferenceFailure, e.Err}
}

// Predictor scores a normalized feature vector. Implementations must be safe
// for concurrent use.
type Predictor interface {
	Predict(ctx context.Context, x []float64) (float64, error)
	Close() error
}

// Backend names accepted in Config.Backend.
const (
	BackendArtifact = "artifact"
	BackendONNX     = "onnx"
	BackendRemote   = "remote"
)

// Config selects and configures the model backend.
type Config struct {
	Backend string
	Path    string
	ONNX    ONNXConfig
	Remote  RemoteConfig
}

// ONNXConfig configures the onnxruntime backend.
type ONNXConfig struct {
	// Library is the path to the onnxruntime shared library. When empty the
	// platform default is used.
	Library string
	Input   string
	Output  string
}

// RemoteConfig configures the HTTP model server backend.
type RemoteConfig struct {
	URL     string
	Timeout time.Duration
}

// DefaultConfig returns the default model configuration.
func DefaultConfig() Config {
	return Config{
		Backend: BackendArtifact,
		Path:    "model.json",
		ONNX: ONNXConfig{
			Input:  "float_input",
			Output: "variable",
		},
		Remote: RemoteConfig{
			Timeout: 5 * time.Second,
		},
	}
}

// Load builds the configured predictor. It is called once at startup.
func Load(ctx context.Context, cfg Config) (Predictor, error) {
	var (
		p   Predictor
		err error
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Backend == "" {
		cfg.Backend = BackendArtifact
	}

	switch cfg.Backend {
	case BackendArtifact:
		p, err = NewArtifactPredictor(cfg.Path)
	case BackendONNX:
		p, err = NewONNXPredictor(cfg.Path, cfg.ONNX)
	case BackendRemote:
		p, err = NewRemotePredictor(cfg.Remote)
	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s model: %w", cfg.Backend, err)
	}

	log.Info().
		Str("backend", cfg.Backend).
		Str("path", cfg.Path).
		Str("url", cfg.Remote.URL).
		Msg("Model loaded")

	return p, nil
}

func checkShape(backend string, x []float64) error {
	if len(x) != features.Width {
		return &Error{
			Backend: backend,
			Err:     fmt.Errorf("shape mismatch: expected %d features, got %d", features.Width, len(x)),
		}
	}
	return nil
}

func checkScore(backend string, score float64) (float64, error) {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, &Error{Backend: backend, Err: fmt.Errorf("model returned non-finite score %v", score)}
	}
	return score, nil
}

// PredictorFunc adapts an ordinary function to the Predictor interface.
type PredictorFunc func(ctx context.Context, x []float64) (float64, error)

func (f PredictorFunc) Predict(ctx context.Context, x []float64) (float64, error) {
	return f(ctx, x)
}

func (f PredictorFunc) Close() error {
	return nil
}
