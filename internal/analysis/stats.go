package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// EntropyBins is the histogram resolution used for the entropy feature
const EntropyBins = 10

// momentResolution mirrors float64 resolution; a variance below
// (momentResolution*mean)^2 is treated as zero when standardizing moments.
const momentResolution = 1e-15

// ChannelStatistics computes the descriptive statistics of one channel.
// The spectral fields are left zero; see ChannelSpectrum.
func ChannelStatistics(x []float64) ChannelFeatures {
	if len(x) == 0 {
		return ChannelFeatures{}
	}
	n := float64(len(x))

	mean, std := popMeanStd(x)
	lo, hi := floats.Min(x), floats.Max(x)

	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)

	skew, kurt := standardizedMoments(x, mean)

	return ChannelFeatures{
		Mean:         mean,
		Std:          std,
		Min:          lo,
		Max:          hi,
		Range:        hi - lo,
		IQR:          percentile(sorted, 0.75) - percentile(sorted, 0.25),
		RMS:          math.Sqrt(floats.Dot(x, x) / n),
		Skew:         skew,
		Kurtosis:     kurt,
		CumSum:       cumulativeSum(x),
		ZeroCrossing: float64(zeroCrossings(x)),
		Entropy:      histogramEntropy(x, EntropyBins),
	}
}

// popMeanStd returns the mean and population standard deviation. A constant
// series reports its value and an exact zero.
func popMeanStd(x []float64) (float64, float64) {
	if floats.Min(x) == floats.Max(x) {
		return x[0], 0
	}
	return stat.PopMeanStdDev(x, nil)
}

// standardizedMoments returns the population skewness and Fisher (excess)
// kurtosis without bias correction. Both are zero for a degenerate variance.
func standardizedMoments(x []float64, mean float64) (skew, kurt float64) {
	m2 := stat.Moment(2, x, nil)
	if m2 <= math.Pow(momentResolution*mean, 2) {
		return 0, 0
	}
	m3 := stat.Moment(3, x, nil)
	m4 := stat.Moment(4, x, nil)
	return m3 / math.Pow(m2, 1.5), m4/(m2*m2) - 3
}

// percentile interpolates linearly between closest ranks of a sorted slice,
// q in [0,1].
func percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	vi := float64(n)*q + (1 - q) - 1
	prev := math.Floor(vi)
	lo := int(prev)
	if lo < 0 {
		lo = 0
	}
	if lo > n-1 {
		lo = n - 1
	}
	hi := lo + 1
	if hi > n-1 {
		hi = n - 1
	}
	return lerp(sorted[lo], sorted[hi], vi-prev)
}

func lerp(a, b, t float64) float64 {
	diff := b - a
	if t >= 0.5 {
		return b - diff*(1-t)
	}
	return a + diff*t
}

// cumulativeSum sums the running partial sums of x
func cumulativeSum(x []float64) float64 {
	return floats.Sum(floats.CumSum(make([]float64, len(x)), x))
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// zeroCrossings counts consecutive pairs whose signs differ
func zeroCrossings(x []float64) int {
	count := 0
	for i := 1; i < len(x); i++ {
		if sign(x[i]) != sign(x[i-1]) {
			count++
		}
	}
	return count
}

// histogram bins x into equal-width bins over [min, max]. The last bin is
// closed on the right; a zero range is widened to [v-0.5, v+0.5].
func histogram(x []float64, bins int) []float64 {
	counts := make([]float64, bins)
	if len(x) == 0 || bins < 1 {
		return counts
	}
	first, last := floats.Min(x), floats.Max(x)
	if first == last {
		first -= 0.5
		last += 0.5
	}
	edges := floats.Span(make([]float64, bins+1), first, last)
	width := last - first

	for _, v := range x {
		pos := (v - first) / width * float64(bins)
		// NaN positions from an overflowed width land in the last bin
		idx := bins - 1
		if pos < float64(bins) {
			idx = 0
			if pos > 0 {
				idx = int(pos)
			}
		}
		if idx > 0 && v < edges[idx] {
			idx--
		} else if idx != bins-1 && v >= edges[idx+1] {
			idx++
		}
		counts[idx]++
	}
	return counts
}

// histogramEntropy is the Shannon entropy (nats) of a Laplace-smoothed
// histogram of x.
func histogramEntropy(x []float64, bins int) float64 {
	counts := histogram(x, bins)
	total := 0.0
	for i := range counts {
		counts[i]++
		total += counts[i]
	}
	for i := range counts {
		counts[i] /= total
	}
	return stat.Entropy(counts)
}
