package analysis

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/ZanzyTHEbar/motion-classifier/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureSchema(t *testing.T) {
	schema := FeatureSchema()
	require.Len(t, schema, FeatureCount)
	assert.Equal(t, 94, FeatureCount)

	assert.Equal(t, "AcX_mean", schema[0])
	assert.Equal(t, "AcX_dominant_freq", schema[len(ChannelMetrics)-1])
	assert.Equal(t, "AcY_mean", schema[len(ChannelMetrics)])
	assert.Equal(t, "GyZ_dominant_freq", schema[len(Channels)*len(ChannelMetrics)-1])
	assert.Equal(t, []string{"acc_mag_mean", "acc_mag_std", "gyro_mag_mean", "gyro_mag_std"}, schema[FeatureCount-4:])

	seen := make(map[string]bool)
	for _, n := range schema {
		assert.False(t, seen[n], "duplicate feature %s", n)
		seen[n] = true
	}
}

func TestMagnitudeFeatures(t *testing.T) {
	t.Run("constant unit window", func(t *testing.T) {
		window := make([]types.SensorSample, DefaultWindowSize)
		for i := range window {
			window[i] = types.SensorSample{AcX: 1, AcY: 1, AcZ: 1, GyX: 1, GyY: 1, GyZ: 1}
		}
		m := MagnitudeFeatures(window)
		assert.Equal(t, math.Sqrt(3), m.AccMean)
		assert.Equal(t, 0.0, m.AccStd)
		assert.Equal(t, math.Sqrt(3), m.GyroMean)
		assert.Equal(t, 0.0, m.GyroStd)
	})

	t.Run("pythagorean triples", func(t *testing.T) {
		window := []types.SensorSample{
			{AcX: 3, AcY: 4, AcZ: 0, GyX: 0, GyY: 0, GyZ: 2},
			{AcX: 0, AcY: 6, AcZ: 8, GyX: 0, GyY: 0, GyZ: 4},
		}
		m := MagnitudeFeatures(window)
		assert.InDelta(t, 7.5, m.AccMean, 1e-12)
		assert.InDelta(t, 2.5, m.AccStd, 1e-12)
		assert.InDelta(t, 3, m.GyroMean, 1e-12)
		assert.InDelta(t, 1, m.GyroStd, 1e-12)
	})

	t.Run("empty window", func(t *testing.T) {
		assert.Equal(t, Magnitude{}, MagnitudeFeatures(nil))
	})
}

func TestAssembleFeatures(t *testing.T) {
	var channels [len(Channels)]ChannelFeatures
	for i := range channels {
		channels[i] = ChannelFeatures{Mean: float64(i), DominantFreq: float64(i) + 0.5}
	}
	fv := AssembleFeatures(channels, Magnitude{AccMean: 1, AccStd: 2, GyroMean: 3, GyroStd: 4})

	require.Equal(t, FeatureCount, fv.Len())
	assert.Equal(t, FeatureSchema(), fv.Names())

	v, ok := fv.Get("GyX_mean")
	require.True(t, ok)
	assert.Equal(t, 3.0, v)

	v, ok = fv.Get("AcZ_dominant_freq")
	require.True(t, ok)
	assert.Equal(t, 2.5, v)

	v, ok = fv.Get("gyro_mag_std")
	require.True(t, ok)
	assert.Equal(t, 4.0, v)

	_, ok = fv.Get("AcX_median")
	assert.False(t, ok)
}

func TestValidateSchema(t *testing.T) {
	fv := AssembleFeatures([len(Channels)]ChannelFeatures{}, Magnitude{})

	t.Run("exact schema", func(t *testing.T) {
		assert.NoError(t, ValidateSchema(fv, FeatureSchema()))
	})

	t.Run("order does not matter", func(t *testing.T) {
		schema := FeatureSchema()
		schema[0], schema[1] = schema[1], schema[0]
		assert.NoError(t, ValidateSchema(fv, schema))
	})

	t.Run("missing and unexpected names", func(t *testing.T) {
		schema := FeatureSchema()
		schema[0] = "AcX_median"
		err := ValidateSchema(fv, schema)
		var mismatch *SchemaMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, []string{"AcX_median"}, mismatch.Missing)
		assert.Equal(t, []string{"AcX_mean"}, mismatch.Unexpected)
	})

	t.Run("truncated schema", func(t *testing.T) {
		schema := FeatureSchema()[:FeatureCount-4]
		err := ValidateSchema(fv, schema)
		var mismatch *SchemaMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Empty(t, mismatch.Missing)
		assert.Len(t, mismatch.Unexpected, 4)
	})

	t.Run("duplicate schema entry", func(t *testing.T) {
		schema := append(FeatureSchema(), "AcX_mean")
		err := ValidateSchema(fv, schema)
		var mismatch *SchemaMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Contains(t, mismatch.Error(), "duplicate schema entries AcX_mean")
	})
}

func TestFeatureVector(t *testing.T) {
	t.Run("length mismatch", func(t *testing.T) {
		_, err := NewFeatureVector([]string{"a", "b"}, []float64{1})
		assert.Error(t, err)
	})

	t.Run("duplicate names", func(t *testing.T) {
		_, err := NewFeatureVector([]string{"a", "a"}, []float64{1, 2})
		assert.Error(t, err)
	})

	t.Run("select reorders", func(t *testing.T) {
		fv, err := NewFeatureVector([]string{"a", "b", "c"}, []float64{1, 2, 3})
		require.NoError(t, err)
		got, err := fv.Select([]string{"c", "a"})
		require.NoError(t, err)
		assert.Equal(t, []float64{3, 1}, got)

		_, err = fv.Select([]string{"z"})
		var mismatch *SchemaMismatchError
		assert.ErrorAs(t, err, &mismatch)
	})

	t.Run("accessors return copies", func(t *testing.T) {
		names := []string{"a", "b"}
		fv, err := NewFeatureVector(names, []float64{1, 2})
		require.NoError(t, err)
		names[0] = "x"
		fv.Values()[0] = 100
		fv.Names()[1] = "y"
		assert.Equal(t, []string{"a", "b"}, fv.Names())
		assert.Equal(t, []float64{1, 2}, fv.Values())
	})

	t.Run("json keeps order", func(t *testing.T) {
		fv, err := NewFeatureVector([]string{"z", "a"}, []float64{1.5, -2})
		require.NoError(t, err)
		out, err := json.Marshal(fv)
		require.NoError(t, err)
		assert.Equal(t, `{"z":1.5,"a":-2}`, string(out))
	})

	t.Run("json rejects non-finite values", func(t *testing.T) {
		fv, err := NewFeatureVector([]string{"a"}, []float64{math.NaN()})
		require.NoError(t, err)
		_, err = json.Marshal(fv)
		assert.Error(t, err)
	})
}
