package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/lacquerai/co2/internal/features"
	"gopkg.in/yaml.v3"
)

// FeatureSchemaConstraint is the range of artifact feature schemas this
// build can serve. A major bump means the column order or scaling changed.
const FeatureSchemaConstraint = "^1.0.0"

// Artifact kinds.
const (
	KindLinear = "linear"
	KindForest = "forest"
)

// Artifact is a model exported to JSON or YAML.
type Artifact struct {
	Kind          string `json:"kind" yaml:"kind"`
	FeatureSchema string `json:"feature_schema" yaml:"feature_schema"`
	Features      int    `json:"features" yaml:"features"`

	// linear
	Intercept    float64   `json:"intercept,omitempty" yaml:"intercept,omitempty"`
	Coefficients []float64 `json:"coefficients,omitempty" yaml:"coefficients,omitempty"`

	// forest
	Trees []Tree `json:"trees,omitempty" yaml:"trees,omitempty"`
}

// Tree is a binary regression tree stored as a flat node list with the root
// at index 0. Leaves have Left and Right set to -1.
type Tree struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
}

// Node is a single tree node.
type Node struct {
	Feature   int     `json:"feature" yaml:"feature"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Left      int     `json:"left" yaml:"left"`
	Right     int     `json:"right" yaml:"right"`
	Value     float64 `json:"value" yaml:"value"`
}

func (n Node) isLeaf() bool {
	return n.Left == -1 && n.Right == -1
}

// LoadArtifact reads and validates a model artifact. Files ending in .yaml
// or .yml are decoded as YAML, everything else as JSON.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var a Artifact
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &a)
	default:
		err = json.Unmarshal(data, &a)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode model artifact %s: %w", path, err)
	}

	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model artifact %s: %w", path, err)
	}
	return &a, nil
}

// Validate checks that the artifact can be evaluated against the served
// feature schema.
func (a *Artifact) Validate() error {
	if a.FeatureSchema == "" {
		return errors.New("feature_schema is required")
	}
	v, err := semver.NewVersion(a.FeatureSchema)
	if err != nil {
		return fmt.Errorf("invalid feature_schema %q: %w", a.FeatureSchema, err)
	}
	c, err := semver.NewConstraint(FeatureSchemaConstraint)
	if err != nil {
		return err
	}
	if !c.Check(v) {
		return fmt.Errorf("feature_schema %s does not satisfy %s", v, FeatureSchemaConstraint)
	}

	if a.Features != features.Width {
		return fmt.Errorf("artifact expects %d features, service produces %d", a.Features, features.Width)
	}

	switch a.Kind {
	case KindLinear:
		if len(a.Coefficients) != features.Width {
			return fmt.Errorf("linear artifact has %d coefficients, want %d", len(a.Coefficients), features.Width)
		}
	case KindForest:
		if len(a.Trees) == 0 {
			return errors.New("forest artifact has no trees")
		}
		for i, t := range a.Trees {
			if err := t.validate(); err != nil {
				return fmt.Errorf("tree %d: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("unknown artifact kind %q", a.Kind)
	}
	return nil
}

// validate requires children to come after their parent, which rules out
// cycles and guarantees evaluation terminates.
func (t Tree) validate() error {
	if len(t.Nodes) == 0 {
		return errors.New("empty tree")
	}
	for i, n := range t.Nodes {
		if n.isLeaf() {
			continue
		}
		if n.Feature < 0 || n.Feature >= features.Width {
			return fmt.Errorf("node %d: feature %d out of range", i, n.Feature)
		}
		for _, child := range []int{n.Left, n.Right} {
			if child <= i || child >= len(t.Nodes) {
				return fmt.Errorf("node %d: child %d out of range", i, child)
			}
		}
	}
	return nil
}

// Score evaluates the artifact on a normalized feature vector.
func (a *Artifact) Score(x []float64) float64 {
	switch a.Kind {
	case KindLinear:
		score := a.Intercept
		for i, coef := range a.Coefficients {
			score += coef * x[i]
		}
		return score
	case KindForest:
		var sum float64
		for _, t := range a.Trees {
			sum += t.leaf(x)
		}
		return sum / float64(len(a.Trees))
	}
	return 0
}

// leaf walks the tree the way scikit-learn does: features are compared at
// float32 precision against float64 thresholds.
func (t Tree) leaf(x []float64) float64 {
	i := 0
	for !t.Nodes[i].isLeaf() {
		n := t.Nodes[i]
		if float64(float32(x[n.Feature])) <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Value
}

// ArtifactPredictor serves an in-process model artifact. The artifact is
// never mutated after loading so Predict is safe for concurrent use.
type ArtifactPredictor struct {
	artifact *Artifact
}

// NewArtifactPredictor loads the artifact at path.
func NewArtifactPredictor(path string) (*ArtifactPredictor, error) {
	a, err := LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	return &ArtifactPredictor{artifact: a}, nil
}

// NewArtifactPredictorFrom serves an already decoded artifact.
func NewArtifactPredictorFrom(a *Artifact) (*ArtifactPredictor, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &ArtifactPredictor{artifact: a}, nil
}

func (p *ArtifactPredictor) Predict(ctx context.Context, x []float64) (float64, error) {
	if err := checkShape(BackendArtifact, x); err != nil {
		return 0, err
	}
	return checkScore(BackendArtifact, p.artifact.Score(x))
}

func (p *ArtifactPredictor) Close() error {
	return nil
}
