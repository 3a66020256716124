// Package analysis inspects simulated signals in the frequency domain.
//
// [PowerSpectrum] zero-pads a series to a power of two and returns the
// one-sided amplitude spectrum. Peaks are reported without the DC bin:
//
//	s := analysis.PowerSpectrum(r.Clean, sfreq)
//	f, _ := s.Peak()
package analysis
