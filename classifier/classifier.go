package classifier

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
)

var (
	// ErrVectorLengthMismatch is returned when a feature vector's length
	// does not match the selected model. It indicates a build or deployment
	// defect (extractor schema and model trained on different layouts) and
	// must never be coerced into a score.
	ErrVectorLengthMismatch = errors.New("feature vector length does not match model")

	// ErrUnknownModel is returned when the requested model name is not in
	// the model set.
	ErrUnknownModel = errors.New("unknown model")
)

// Verdict is the classifier output for one feature vector.
type Verdict struct {
	Obfuscated bool    `json:"obfuscated"`
	Score      float64 `json:"score"`
}

// Config holds configuration for a Classifier.
type Config struct {
	// Models is the model set to score against (default: built-in models).
	Models *ModelSet
	Logger *zap.SugaredLogger
}

// Classifier applies a logistic-regression model vector to a feature vector.
// Scoring is a pure function: deterministic, side-effect free, IEEE-754
// float64 arithmetic matching the trained weights.
type Classifier struct {
	models *ModelSet
	logger *zap.SugaredLogger
}

// New creates a Classifier.
func New(cfg *Config) *Classifier {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Models == nil {
		cfg.Models = NewModelSet()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	return &Classifier{
		models: cfg.Models,
		logger: cfg.Logger,
	}
}

// Models returns the classifier's model set.
func (c *Classifier) Models() *ModelSet {
	return c.models
}

// Score computes the obfuscation probability of a feature vector under the
// named model. An empty model name selects the default model.
func (c *Classifier) Score(features []float64, modelName string) (Verdict, error) {
	if modelName == "" {
		modelName = ModelDefault
	}
	model, err := c.models.Get(modelName)
	if err != nil {
		return Verdict{}, err
	}

	if len(features) != model.FeatureLen() {
		return Verdict{}, fmt.Errorf("%w: model %q expects %d features, got %d",
			ErrVectorLengthMismatch, model.Name, model.FeatureLen(), len(features))
	}

	logit := model.Weights[0]
	for i, f := range features {
		logit += model.Weights[i+1] * f
	}

	score := sigmoid(logit)
	return Verdict{
		Obfuscated: score > 0.5,
		Score:      score,
	}, nil
}

// sigmoid is the standard logistic function.
func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
