package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Spectrum is a one-sided amplitude spectrum.
type Spectrum struct {
	Freq  []float64
	Power []float64
}

// Peak returns the frequency with the largest power, skipping the DC bin.
func (s Spectrum) Peak() (freq, power float64) {
	for i := 1; i < len(s.Power); i++ {
		if s.Power[i] > power {
			freq, power = s.Freq[i], s.Power[i]
		}
	}
	return freq, power
}

// PowerSpectrum removes the mean, zero-pads the series to the next power of
// two and returns the magnitude of each bin up to Nyquist, scaled by the
// original length.
func PowerSpectrum(data []float64, sfreq float64) Spectrum {
	return spectrum(data, sfreq, false)
}

// HannSpectrum is PowerSpectrum with a Hann taper applied before the
// transform. Amplitudes are corrected for the window's coherent gain.
func HannSpectrum(data []float64, sfreq float64) Spectrum {
	return spectrum(data, sfreq, true)
}

func spectrum(data []float64, sfreq float64, hann bool) Spectrum {
	if len(data) == 0 || sfreq <= 0 {
		return Spectrum{}
	}

	var mean float64
	for _, v := range data {
		mean += v
	}
	mean /= float64(len(data))

	centered := make([]float64, len(data))
	for i, v := range data {
		centered[i] = v - mean
	}
	gain := 1.0
	if hann && len(centered) > 1 {
		window.Apply(centered, window.Hann)
		gain = 0.5
	}

	n := nextPow2(len(data))
	padded := make([]float64, n)
	copy(padded, centered)

	bins := fft.FFTReal(padded)
	half := n/2 + 1
	if n == 1 {
		half = 1
	}
	s := Spectrum{Freq: make([]float64, half), Power: make([]float64, half)}
	for i := 0; i < half; i++ {
		s.Freq[i] = float64(i) * sfreq / float64(n)
		s.Power[i] = cmplx.Abs(bins[i]) / float64(len(data)) / gain
	}
	return s
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
