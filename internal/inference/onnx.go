package inference

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/lacquerai/co2/internal/features"
)

var ortEnv struct {
	mu    sync.Mutex
	users int
}

// acquireEnvironment initializes the process-wide onnxruntime environment
// on first use.
func acquireEnvironment(library string) error {
	ortEnv.mu.Lock()
	defer ortEnv.mu.Unlock()

	if ortEnv.users == 0 {
		if library != "" {
			ort.SetSharedLibraryPath(library)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize onnxruntime: %w", err)
		}
		log.Debug().Str("library", library).Msg("onnxruntime initialized")
	}
	ortEnv.users++
	return nil
}

func releaseEnvironment() error {
	ortEnv.mu.Lock()
	defer ortEnv.mu.Unlock()

	ortEnv.users--
	if ortEnv.users > 0 {
		return nil
	}
	ortEnv.users = 0
	return ort.DestroyEnvironment()
}

// ONNXPredictor runs an ONNX export of the model. Each call allocates its own
// tensors, so concurrent Predict calls share only the session.
type ONNXPredictor struct {
	session *ort.DynamicAdvancedSession
	input   string
	output  string
}

// NewONNXPredictor opens the model at path. The graph must take a float32
// tensor of shape [1, 8] and return a [1, 1] score.
func NewONNXPredictor(path string, cfg ONNXConfig) (*ONNXPredictor, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}
	if cfg.Input == "" || cfg.Output == "" {
		return nil, fmt.Errorf("onnx input and output names are required")
	}

	if err := acquireEnvironment(cfg.Library); err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(path, []string{cfg.Input}, []string{cfg.Output}, nil)
	if err != nil {
		_ = releaseEnvironment()
		return nil, fmt.Errorf("failed to create onnx session: %w", err)
	}

	return &ONNXPredictor{
		session: session,
		input:   cfg.Input,
		output:  cfg.Output,
	}, nil
}

func (p *ONNXPredictor) Predict(ctx context.Context, x []float64) (float64, error) {
	if err := checkShape(BackendONNX, x); err != nil {
		return 0, err
	}

	data := make([]float32, len(x))
	for i, v := range x {
		data[i] = float32(v)
	}

	in, err := ort.NewTensor(ort.NewShape(1, features.Width), data)
	if err != nil {
		return 0, &Error{Backend: BackendONNX, Err: err}
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		return 0, &Error{Backend: BackendONNX, Err: err}
	}
	defer out.Destroy()

	if err := p.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return 0, &Error{Backend: BackendONNX, Err: err}
	}

	scores := out.GetData()
	if len(scores) != 1 {
		return 0, &Error{Backend: BackendONNX, Err: fmt.Errorf("expected 1 output value, got %d", len(scores))}
	}
	return checkScore(BackendONNX, float64(scores[0]))
}

func (p *ONNXPredictor) Close() error {
	if p.session == nil {
		return nil
	}
	err := p.session.Destroy()
	p.session = nil
	if envErr := releaseEnvironment(); err == nil {
		err = envErr
	}
	return err
}
