package analysis

import (
	"fmt"
	"math"

	"github.com/ZanzyTHEbar/motion-classifier/internal/types"
	"gonum.org/v1/gonum/floats"
)

// Analyzer orchestrates the full analysis pipeline
type Analyzer struct {
	preprocessor *Preprocessor
	scoring      *ScoringContext
	welch        WelchConfig
}

// NewAnalyzer creates a new analyzer for windows of windowSize samples. The
// scoring context may be nil when only feature extraction is needed.
func NewAnalyzer(windowSize int, scoring *ScoringContext) (*Analyzer, error) {
	p, err := NewPreprocessor(windowSize)
	if err != nil {
		return nil, err
	}
	return &Analyzer{
		preprocessor: p,
		scoring:      scoring,
		welch:        DefaultWelchConfig(windowSize),
	}, nil
}

// WindowSize returns the number of samples consumed per decision
func (a *Analyzer) WindowSize() int {
	return a.preprocessor.WindowSize()
}

// Scoring returns the scoring context, or nil if none was configured
func (a *Analyzer) Scoring() *ScoringContext {
	return a.scoring
}

// ExtractFeatures windows the samples and builds the feature vector. When a
// scoring context is configured the vector is checked against its schema.
func (a *Analyzer) ExtractFeatures(samples []types.SensorSample) (FeatureVector, error) {
	window, err := a.preprocessor.Window(samples)
	if err != nil {
		return FeatureVector{}, err
	}

	var channels [len(Channels)]ChannelFeatures
	for i, series := range a.preprocessor.Channels(window) {
		if !isFinite(floats.Max(series) - floats.Min(series)) {
			return FeatureVector{}, &ScoringError{Stage: StageFeatures, Err: fmt.Errorf("%s range is not finite", Channels[i])}
		}
		cf := ChannelStatistics(series)
		cf.FFTPeak, cf.SpectralEnergy, cf.DominantFreq = ChannelSpectrum(series, a.welch)
		channels[i] = cf
	}

	fv := AssembleFeatures(channels, MagnitudeFeatures(window))
	for i, v := range fv.values {
		if !isFinite(v) {
			return FeatureVector{}, &ScoringError{Stage: StageFeatures, Err: fmt.Errorf("%s is not finite", fv.names[i])}
		}
	}
	if a.scoring != nil {
		if err := ValidateSchema(fv, a.scoring.schema); err != nil {
			return FeatureVector{}, err
		}
	}
	return fv, nil
}

// Predict runs the pipeline end to end and returns the thresholded decision
func (a *Analyzer) Predict(samples []types.SensorSample) (ScoreResult, error) {
	if _, err := a.preprocessor.Window(samples); err != nil {
		return ScoreResult{}, err
	}
	if a.scoring == nil {
		return ScoreResult{}, &ScoringError{Stage: StageClassify, Err: errUnavailable}
	}
	fv, err := a.ExtractFeatures(samples)
	if err != nil {
		return ScoreResult{}, err
	}
	return a.scoring.Score(fv)
}

// PredictRecords validates wire records before running Predict
func (a *Analyzer) PredictRecords(records []types.SensorRecord) (ScoreResult, error) {
	samples, err := a.preprocessor.Records(records)
	if err != nil {
		return ScoreResult{}, err
	}
	return a.Predict(samples)
}

// ExtractFromRecords validates wire records before running ExtractFeatures
func (a *Analyzer) ExtractFromRecords(records []types.SensorRecord) (FeatureVector, error) {
	samples, err := a.preprocessor.Records(records)
	if err != nil {
		return FeatureVector{}, err
	}
	return a.ExtractFeatures(samples)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
