package analysis

import (
	"math"

	"github.com/ZanzyTHEbar/motion-classifier/internal/types"
)

// MagnitudeFeatures computes mean and population std of the accelerometer and
// gyroscope vector norms across the window.
func MagnitudeFeatures(window []types.SensorSample) Magnitude {
	if len(window) == 0 {
		return Magnitude{}
	}
	acc := make([]float64, len(window))
	gyro := make([]float64, len(window))
	for i, s := range window {
		acc[i] = math.Sqrt(s.AcX*s.AcX + s.AcY*s.AcY + s.AcZ*s.AcZ)
		gyro[i] = math.Sqrt(s.GyX*s.GyX + s.GyY*s.GyY + s.GyZ*s.GyZ)
	}

	var m Magnitude
	m.AccMean, m.AccStd = popMeanStd(acc)
	m.GyroMean, m.GyroStd = popMeanStd(gyro)
	return m
}
