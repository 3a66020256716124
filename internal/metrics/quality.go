package metrics

import "math"

// Power is the mean squared amplitude of xs.
func Power(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x * x
	}
	return sum / float64(len(xs))
}

// SNR returns the signal-to-noise ratio in decibels, treating noisy-clean as
// the noise. It is +Inf when the two series are identical.
func SNR(clean, noisy []float64) float64 {
	n := min(len(clean), len(noisy))
	if n == 0 {
		return math.NaN()
	}
	residual := make([]float64, n)
	for i := 0; i < n; i++ {
		residual[i] = noisy[i] - clean[i]
	}
	pn := Power(residual)
	if pn == 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(Power(clean[:n])/pn)
}

// Peak returns the index and value of the sample with the largest magnitude.
func Peak(xs []float64) (int, float64) {
	idx, best := -1, 0.0
	for i, x := range xs {
		if idx < 0 || math.Abs(x) > math.Abs(best) {
			idx, best = i, x
		}
	}
	return idx, best
}
