package analysis

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// WelchConfig pins the parameters of the Welch PSD estimator. The defaults
// match scipy.signal.welch: periodic Hann window, half-segment overlap,
// nfft equal to the segment length, mean detrend, one-sided density scaling
// and mean averaging.
type WelchConfig struct {
	// SampleRate is fs in Hz; frequencies are reported in the same unit.
	SampleRate float64
	// SegmentLength is nperseg. Values <= 0 or longer than the input use the
	// whole input as one segment.
	SegmentLength int
	// Overlap is noverlap. A negative value means SegmentLength/2.
	Overlap int
}

// DefaultWelchConfig returns the estimator used for feature extraction:
// unit sample rate and one segment per window of n samples.
func DefaultWelchConfig(n int) WelchConfig {
	return WelchConfig{SampleRate: 1, SegmentLength: n, Overlap: -1}
}

// HannPeriodic returns the DFT-even Hann window of length m
func HannPeriodic(m int) []float64 {
	if m <= 0 {
		return nil
	}
	w := make([]float64, m)
	if m == 1 {
		w[0] = 1
		return w
	}
	step := 2 * math.Pi / float64(m)
	for i := range w {
		w[i] = 0.5 + 0.5*math.Cos(-math.Pi+float64(i)*step)
	}
	return w
}

// Welch estimates the one-sided power spectral density of x. It returns no
// bins for an empty input.
func Welch(x []float64, cfg WelchConfig) (freqs, psd []float64) {
	n := len(x)
	if n == 0 {
		return nil, nil
	}
	fs := cfg.SampleRate
	if fs <= 0 {
		fs = 1
	}
	nperseg := cfg.SegmentLength
	if nperseg <= 0 || nperseg > n {
		nperseg = n
	}
	noverlap := cfg.Overlap
	if noverlap < 0 {
		noverlap = nperseg / 2
	}
	if noverlap >= nperseg {
		noverlap = nperseg - 1
	}
	step := nperseg - noverlap
	segments := (n - noverlap) / step

	win := HannPeriodic(nperseg)
	scale := 1 / (fs * floats.Dot(win, win))

	nfreq := nperseg/2 + 1
	psd = make([]float64, nfreq)
	fft := fourier.NewFFT(nperseg)
	seg := make([]float64, nperseg)
	coeff := make([]complex128, nfreq)

	for s := 0; s < segments; s++ {
		copy(seg, x[s*step:s*step+nperseg])
		mean := stat.Mean(seg, nil)
		for i := range seg {
			seg[i] = (seg[i] - mean) * win[i]
		}
		coeff = fft.Coefficients(coeff, seg)
		for k, c := range coeff {
			p := (real(c)*real(c) + imag(c)*imag(c)) * scale
			if k > 0 && (nperseg%2 == 1 || k < nfreq-1) {
				p *= 2
			}
			psd[k] += p
		}
	}
	for k := range psd {
		psd[k] /= float64(segments)
	}

	freqs = make([]float64, nfreq)
	val := 1 / (float64(nperseg) * (1 / fs))
	for k := range freqs {
		freqs[k] = float64(k) * val
	}
	return freqs, psd
}

// FFTPeak returns the largest DFT magnitude of x
func FFTPeak(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	coeff := fourier.NewFFT(len(x)).Coefficients(nil, x)
	peak := 0.0
	for _, c := range coeff {
		if m := cmplx.Abs(c); m > peak {
			peak = m
		}
	}
	return peak
}

// ChannelSpectrum computes the frequency-domain descriptors of one channel
func ChannelSpectrum(x []float64, cfg WelchConfig) (fftPeak, energy, dominant float64) {
	fftPeak = FFTPeak(x)
	freqs, psd := Welch(x, cfg)
	if len(freqs) == 0 {
		return fftPeak, 0, 0
	}
	return fftPeak, floats.Sum(psd), freqs[floats.MaxIdx(psd)]
}
