package analysis

import (
	"errors"
	"fmt"

	"github.com/ZanzyTHEbar/motion-classifier/internal/types"
)

// Preprocessor validates incoming samples and cuts them into a scoring window
type Preprocessor struct {
	windowSize int
}

// NewPreprocessor creates a new preprocessor for windows of n samples
func NewPreprocessor(n int) (*Preprocessor, error) {
	if n < 1 {
		return nil, fmt.Errorf("window size must be positive, got %d", n)
	}
	return &Preprocessor{windowSize: n}, nil
}

// WindowSize returns the number of samples per window
func (p *Preprocessor) WindowSize() int {
	return p.windowSize
}

// Records converts wire records into samples, rejecting any record with a
// missing axis.
func (p *Preprocessor) Records(records []types.SensorRecord) ([]types.SensorSample, error) {
	if records == nil {
		return nil, &InputMissingError{Index: -1}
	}
	samples := make([]types.SensorSample, len(records))
	for i, r := range records {
		s, err := r.Sample()
		if err != nil {
			field := ""
			var mf *types.MissingFieldError
			if errors.As(err, &mf) {
				field = mf.Field
			}
			return nil, &InputMissingError{Index: i, Field: field}
		}
		samples[i] = s
	}
	return samples, nil
}

// Window returns a copy of the first windowSize samples. Samples past the
// window are ignored; a shorter input is rejected.
func (p *Preprocessor) Window(samples []types.SensorSample) ([]types.SensorSample, error) {
	if samples == nil {
		return nil, &InputMissingError{Index: -1}
	}
	if len(samples) < p.windowSize {
		return nil, &InsufficientDataError{Got: len(samples), Want: p.windowSize}
	}
	return append([]types.SensorSample(nil), samples[:p.windowSize]...), nil
}

// Channels splits a window into per-axis series in Channels order
func (p *Preprocessor) Channels(window []types.SensorSample) [len(Channels)][]float64 {
	var out [len(Channels)][]float64
	for i := range out {
		out[i] = make([]float64, len(window))
	}
	for j, s := range window {
		out[0][j] = s.AcX
		out[1][j] = s.AcY
		out[2][j] = s.AcZ
		out[3][j] = s.GyX
		out[4][j] = s.GyY
		out[5][j] = s.GyZ
	}
	return out
}
