package sim

import (
	"fmt"

	"github.com/san-kum/erpsim/internal/engine"
)

// Normalize flattens engine output into one display channel. Epoched output
// (channels x samples x epochs) is laid end to end, epoch by epoch. reference
// is 1-based and only consulted in multichannel mode; otherwise channel 1 is
// shown and the channel matrix is nil.
func Normalize(out engine.Output, multichannel bool, reference int) (display []float64, channels [][]float64, err error) {
	switch {
	case out.Epochs != nil:
		channels = make([][]float64, len(out.Epochs))
		for ch, samples := range out.Epochs {
			channels[ch] = unepoch(samples)
		}
	default:
		channels = out.Flat
	}
	if len(channels) == 0 {
		return nil, nil, ErrEmptyOutput
	}

	ref := 1
	if multichannel {
		ref = reference
	}
	if ref < 1 || ref > len(channels) {
		return nil, nil, fmt.Errorf("%w: %d of %d", ErrReferenceChannel, ref, len(channels))
	}

	display = append([]float64(nil), channels[ref-1]...)
	if !multichannel {
		return display, nil, nil
	}
	copied := make([][]float64, len(channels))
	for i, c := range channels {
		copied[i] = append([]float64(nil), c...)
	}
	return display, copied, nil
}

func unepoch(samples [][]float64) []float64 {
	if len(samples) == 0 {
		return nil
	}
	n, epochs := len(samples), len(samples[0])
	flat := make([]float64, 0, n*epochs)
	for e := 0; e < epochs; e++ {
		for s := 0; s < n; s++ {
			flat = append(flat, samples[s][e])
		}
	}
	return flat
}

// TimeAxis returns n sample times in seconds.
func TimeAxis(n int, sfreq float64) []float64 {
	t := make([]float64, n)
	for i := range t {
		t[i] = float64(i) / sfreq
	}
	return t
}
