package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ChannelFeatures holds the descriptors of one channel
type ChannelFeatures struct {
	Mean           float64
	Std            float64
	Min            float64
	Max            float64
	Range          float64
	IQR            float64
	RMS            float64
	Skew           float64
	Kurtosis       float64
	CumSum         float64
	ZeroCrossing   float64
	Entropy        float64
	FFTPeak        float64
	SpectralEnergy float64
	DominantFreq   float64
}

// values returns the descriptors in ChannelMetrics order
func (c ChannelFeatures) values() [len(ChannelMetrics)]float64 {
	return [len(ChannelMetrics)]float64{
		c.Mean, c.Std, c.Min, c.Max, c.Range, c.IQR, c.RMS, c.Skew, c.Kurtosis,
		c.CumSum, c.ZeroCrossing, c.Entropy, c.FFTPeak, c.SpectralEnergy, c.DominantFreq,
	}
}

// Magnitude holds the combined-axis features
type Magnitude struct {
	AccMean  float64
	AccStd   float64
	GyroMean float64
	GyroStd  float64
}

// FeatureVector is an ordered list of named features
type FeatureVector struct {
	names  []string
	values []float64
	index  map[string]int
}

// NewFeatureVector builds a vector from parallel name and value slices
func NewFeatureVector(names []string, values []float64) (FeatureVector, error) {
	if len(names) != len(values) {
		return FeatureVector{}, fmt.Errorf("feature vector: %d names for %d values", len(names), len(values))
	}
	index := make(map[string]int, len(names))
	for i, n := range names {
		if _, dup := index[n]; dup {
			return FeatureVector{}, fmt.Errorf("feature vector: duplicate name %q", n)
		}
		index[n] = i
	}
	return FeatureVector{
		names:  append([]string(nil), names...),
		values: append([]float64(nil), values...),
		index:  index,
	}, nil
}

func (f FeatureVector) Len() int { return len(f.names) }

// Names returns a copy of the feature names in order
func (f FeatureVector) Names() []string { return append([]string(nil), f.names...) }

// Values returns a copy of the feature values in order
func (f FeatureVector) Values() []float64 { return append([]float64(nil), f.values...) }

// Get looks up a feature by name
func (f FeatureVector) Get(name string) (float64, bool) {
	i, ok := f.index[name]
	if !ok {
		return 0, false
	}
	return f.values[i], true
}

// Select returns the values for names in the given order
func (f FeatureVector) Select(names []string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, n := range names {
		v, ok := f.Get(n)
		if !ok {
			return nil, &SchemaMismatchError{Missing: []string{n}}
		}
		out[i] = v
	}
	return out, nil
}

// MarshalJSON encodes the vector as an object with keys in feature order
func (f FeatureVector) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range f.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(n)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.values[i])
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", n, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ScoreResult is the thresholded classifier decision
type ScoreResult struct {
	Label       int     `json:"predicted_label"`
	Probability float64 `json:"predicted_probability"`
}
