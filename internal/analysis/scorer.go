package analysis

import (
	"errors"
	"fmt"
	"math"
)

// DecisionThreshold separates the two labels; probabilities equal to it map to 0
const DecisionThreshold = 0.5

// Normalizer is the fitted per-feature transform applied before scoring
type Normalizer interface {
	// Schema returns the feature names the transform expects, in order.
	Schema() []string
	Transform(x []float64) ([]float64, error)
}

// Classifier maps a normalized vector to a probability in [0,1]
type Classifier interface {
	InputSize() int
	Predict(x []float64) (float64, error)
}

// ScoringContext bundles a normalizer and classifier that were validated
// against the feature schema. It is immutable after construction and safe for
// concurrent use.
type ScoringContext struct {
	version    string
	normalizer Normalizer
	classifier Classifier
	schema     []string
}

// NewScoringContext validates the artifacts against FeatureSchema and returns
// a ready context.
func NewScoringContext(version string, normalizer Normalizer, classifier Classifier) (*ScoringContext, error) {
	if normalizer == nil {
		return nil, &ScoringError{Stage: StageNormalize, Err: errors.New("normalization artifact unavailable")}
	}
	if classifier == nil {
		return nil, &ScoringError{Stage: StageClassify, Err: errors.New("classifier artifact unavailable")}
	}

	schema := append([]string(nil), normalizer.Schema()...)
	template := AssembleFeatures([len(Channels)]ChannelFeatures{}, Magnitude{})
	if err := ValidateSchema(template, schema); err != nil {
		return nil, err
	}
	if classifier.InputSize() != len(schema) {
		return nil, &SchemaMismatchError{
			Detail: fmt.Sprintf("classifier expects %d inputs, schema has %d features", classifier.InputSize(), len(schema)),
		}
	}

	return &ScoringContext{
		version:    version,
		normalizer: normalizer,
		classifier: classifier,
		schema:     schema,
	}, nil
}

// Version identifies the artifact set backing the context
func (sc *ScoringContext) Version() string {
	if sc == nil {
		return ""
	}
	return sc.version
}

// Schema returns the normalizer's ordered feature names
func (sc *ScoringContext) Schema() []string {
	if sc == nil {
		return nil
	}
	return append([]string(nil), sc.schema...)
}

// Score normalizes fv in schema order, runs the classifier and applies the
// decision threshold.
func (sc *ScoringContext) Score(fv FeatureVector) (ScoreResult, error) {
	if sc == nil || sc.normalizer == nil {
		return ScoreResult{}, &ScoringError{Stage: StageNormalize, Err: errors.New("normalization artifact unavailable")}
	}
	if sc.classifier == nil {
		return ScoreResult{}, &ScoringError{Stage: StageClassify, Err: errors.New("classifier artifact unavailable")}
	}
	if err := ValidateSchema(fv, sc.schema); err != nil {
		return ScoreResult{}, err
	}

	x, err := fv.Select(sc.schema)
	if err != nil {
		return ScoreResult{}, err
	}

	z, err := sc.normalizer.Transform(x)
	if err != nil {
		return ScoreResult{}, &ScoringError{Stage: StageNormalize, Err: err}
	}
	if len(z) != len(x) {
		return ScoreResult{}, &ScoringError{Stage: StageNormalize, Err: fmt.Errorf("transform returned %d values for %d features", len(z), len(x))}
	}
	for i, v := range z {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ScoreResult{}, &ScoringError{Stage: StageNormalize, Err: fmt.Errorf("non-finite normalized value for %s", sc.schema[i])}
		}
	}

	p, err := sc.classifier.Predict(z)
	if err != nil {
		return ScoreResult{}, &ScoringError{Stage: StageClassify, Err: err}
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return ScoreResult{}, &ScoringError{Stage: StageClassify, Err: fmt.Errorf("probability %v outside [0,1]", p)}
	}

	return ScoreResult{Label: Threshold(p), Probability: p}, nil
}

// Threshold converts a probability into a label; ties go to 0
func Threshold(p float64) int {
	if p > DecisionThreshold {
		return 1
	}
	return 0
}
