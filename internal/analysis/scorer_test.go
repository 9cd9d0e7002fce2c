package analysis

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNormalizer struct {
	schema []string
	err    error
	out    func([]float64) []float64
}

func (s *stubNormalizer) Schema() []string { return s.schema }

func (s *stubNormalizer) Transform(x []float64) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.out != nil {
		return s.out(x), nil
	}
	return x, nil
}

type stubClassifier struct {
	inputs int
	p      float64
	err    error
	seen   []float64
}

func (s *stubClassifier) InputSize() int { return s.inputs }

func (s *stubClassifier) Predict(x []float64) (float64, error) {
	s.seen = append([]float64(nil), x...)
	return s.p, s.err
}

func newStubContext(t *testing.T, p float64) (*ScoringContext, *stubClassifier) {
	t.Helper()
	c := &stubClassifier{inputs: FeatureCount, p: p}
	sc, err := NewScoringContext("test", &stubNormalizer{schema: FeatureSchema()}, c)
	require.NoError(t, err)
	return sc, c
}

func TestThreshold(t *testing.T) {
	tests := []struct {
		p    float64
		want int
	}{
		{p: 0, want: 0},
		{p: 0.49999, want: 0},
		{p: 0.5, want: 0},
		{p: math.Nextafter(0.5, 1), want: 1},
		{p: 0.9, want: 1},
		{p: 1, want: 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Threshold(tt.p), "p=%v", tt.p)
	}
}

func TestNewScoringContext(t *testing.T) {
	t.Run("valid artifacts", func(t *testing.T) {
		sc, err := NewScoringContext("v1", &stubNormalizer{schema: FeatureSchema()}, &stubClassifier{inputs: FeatureCount})
		require.NoError(t, err)
		assert.Equal(t, "v1", sc.Version())
		assert.Equal(t, FeatureSchema(), sc.Schema())
	})

	t.Run("missing normalizer", func(t *testing.T) {
		_, err := NewScoringContext("v1", nil, &stubClassifier{inputs: FeatureCount})
		var scoring *ScoringError
		require.ErrorAs(t, err, &scoring)
		assert.Equal(t, "normalize", scoring.Stage)
	})

	t.Run("missing classifier", func(t *testing.T) {
		_, err := NewScoringContext("v1", &stubNormalizer{schema: FeatureSchema()}, nil)
		var scoring *ScoringError
		require.ErrorAs(t, err, &scoring)
		assert.Equal(t, "classify", scoring.Stage)
	})

	t.Run("schema drift fails fast", func(t *testing.T) {
		schema := FeatureSchema()[:FeatureCount-1]
		_, err := NewScoringContext("v1", &stubNormalizer{schema: schema}, &stubClassifier{inputs: len(schema)})
		var mismatch *SchemaMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, []string{"gyro_mag_std"}, mismatch.Unexpected)
	})

	t.Run("classifier width disagrees", func(t *testing.T) {
		_, err := NewScoringContext("v1", &stubNormalizer{schema: FeatureSchema()}, &stubClassifier{inputs: 88})
		var mismatch *SchemaMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Contains(t, mismatch.Detail, "classifier expects 88 inputs")
	})

	t.Run("nil context accessors", func(t *testing.T) {
		var sc *ScoringContext
		assert.Equal(t, "", sc.Version())
		assert.Nil(t, sc.Schema())
	})
}

func TestScoringContext_Score(t *testing.T) {
	fv := AssembleFeatures([len(Channels)]ChannelFeatures{{Mean: 7}}, Magnitude{GyroStd: 9})

	t.Run("tie goes to zero", func(t *testing.T) {
		sc, _ := newStubContext(t, 0.5)
		res, err := sc.Score(fv)
		require.NoError(t, err)
		assert.Equal(t, ScoreResult{Label: 0, Probability: 0.5}, res)
	})

	t.Run("positive decision", func(t *testing.T) {
		sc, _ := newStubContext(t, 0.73)
		res, err := sc.Score(fv)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Label)
		assert.Equal(t, 0.73, res.Probability)
	})

	t.Run("values follow normalizer schema order", func(t *testing.T) {
		schema := FeatureSchema()
		schema[0], schema[len(schema)-1] = schema[len(schema)-1], schema[0]
		c := &stubClassifier{inputs: FeatureCount, p: 0.1}
		sc, err := NewScoringContext("swapped", &stubNormalizer{schema: schema}, c)
		require.NoError(t, err)

		_, err = sc.Score(fv)
		require.NoError(t, err)
		assert.Equal(t, 9.0, c.seen[0])
		assert.Equal(t, 7.0, c.seen[len(c.seen)-1])
	})

	t.Run("normalizer failure", func(t *testing.T) {
		c := &stubClassifier{inputs: FeatureCount}
		boom := errors.New("boom")
		sc, err := NewScoringContext("v", &stubNormalizer{schema: FeatureSchema(), err: boom}, c)
		require.NoError(t, err)

		_, err = sc.Score(fv)
		var scoring *ScoringError
		require.ErrorAs(t, err, &scoring)
		assert.Equal(t, "normalize", scoring.Stage)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("normalizer changes shape", func(t *testing.T) {
		n := &stubNormalizer{schema: FeatureSchema(), out: func(x []float64) []float64 { return x[:3] }}
		sc, err := NewScoringContext("v", n, &stubClassifier{inputs: FeatureCount})
		require.NoError(t, err)

		_, err = sc.Score(fv)
		var scoring *ScoringError
		assert.ErrorAs(t, err, &scoring)
	})

	t.Run("non-finite normalized value", func(t *testing.T) {
		n := &stubNormalizer{schema: FeatureSchema(), out: func(x []float64) []float64 {
			out := append([]float64(nil), x...)
			out[5] = math.Inf(1)
			return out
		}}
		sc, err := NewScoringContext("v", n, &stubClassifier{inputs: FeatureCount})
		require.NoError(t, err)

		_, err = sc.Score(fv)
		var scoring *ScoringError
		require.ErrorAs(t, err, &scoring)
		assert.Equal(t, "normalize", scoring.Stage)
	})

	t.Run("classifier failure", func(t *testing.T) {
		c := &stubClassifier{inputs: FeatureCount, err: errors.New("shape rejected")}
		sc, err := NewScoringContext("v", &stubNormalizer{schema: FeatureSchema()}, c)
		require.NoError(t, err)

		_, err = sc.Score(fv)
		var scoring *ScoringError
		require.ErrorAs(t, err, &scoring)
		assert.Equal(t, "classify", scoring.Stage)
	})

	t.Run("probability out of range", func(t *testing.T) {
		for _, p := range []float64{-0.1, 1.2, math.NaN()} {
			sc, _ := newStubContext(t, p)
			_, err := sc.Score(fv)
			var scoring *ScoringError
			assert.ErrorAs(t, err, &scoring, "p=%v", p)
		}
	})

	t.Run("vector from a different schema", func(t *testing.T) {
		sc, _ := newStubContext(t, 0.2)
		other, err := NewFeatureVector([]string{"AcX_mean"}, []float64{1})
		require.NoError(t, err)

		_, err = sc.Score(other)
		var mismatch *SchemaMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Len(t, mismatch.Missing, FeatureCount-1)
	})

	t.Run("nil context", func(t *testing.T) {
		var sc *ScoringContext
		_, err := sc.Score(fv)
		var scoring *ScoringError
		assert.ErrorAs(t, err, &scoring)
	})
}
