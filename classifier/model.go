// Package classifier scores numeric feature vectors against pre-trained
// logistic-regression weight vectors to decide whether script content is
// obfuscated.
package classifier

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Well-known model names. Each variant was trained on a different corpus and
// granularity, trading recall for precision differently.
const (
	// ModelDefault is the high-confidence model; lowest false-positive rate.
	ModelDefault = "default"
	// ModelDeep is the broad model trained on the full scriptblock corpus.
	ModelDeep = "deep"
	// ModelCommand is trained at command-line granularity.
	ModelCommand = "command"
)

// ModelVector is a trained weight vector: index 0 is the bias term, indices
// 1..N are per-feature weights in schema order. Vectors are immutable and
// loaded once at process start.
type ModelVector struct {
	Name    string
	Weights []float64
}

// FeatureLen returns the feature-vector length this model was trained on.
func (m ModelVector) FeatureLen() int {
	return len(m.Weights) - 1
}

// ModelSet holds the named model vectors available for scoring. It is
// populated at startup and read-only afterwards.
type ModelSet struct {
	models map[string]ModelVector
}

// NewModelSet returns a ModelSet containing the built-in pre-trained models.
func NewModelSet() *ModelSet {
	s := &ModelSet{models: make(map[string]ModelVector)}
	for name, weights := range builtinWeights {
		s.models[name] = ModelVector{Name: name, Weights: weights}
	}
	return s
}

// LoadFile merges model vectors from a YAML file into the set. The file maps
// model names to weight arrays (bias first); file entries override built-in
// models of the same name.
func (s *ModelSet) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read model file: %w", err)
	}

	var raw map[string][]float64
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse model file %s: %w", path, err)
	}

	for name, weights := range raw {
		if name == "" {
			return fmt.Errorf("model file %s contains an unnamed model", path)
		}
		if len(weights) < 2 {
			return fmt.Errorf("model %q must have a bias and at least one weight, got %d values", name, len(weights))
		}
		s.models[name] = ModelVector{Name: name, Weights: weights}
	}
	return nil
}

// Get returns the named model vector.
func (s *ModelSet) Get(name string) (ModelVector, error) {
	m, ok := s.models[name]
	if !ok {
		return ModelVector{}, fmt.Errorf("%w: %q (available: %v)", ErrUnknownModel, name, s.Names())
	}
	return m, nil
}

// Names returns the available model names, sorted.
func (s *ModelSet) Names() []string {
	names := make([]string, 0, len(s.models))
	for name := range s.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
