package indicators

import (
	"fmt"
	"math"
)

// RollingMax computes the rolling maximum over a window. Entries before the
// window is full are NaN.
func RollingMax(values []float64, window int) ([]float64, error) {
	return rollingExtreme(values, window, true)
}

// RollingMin computes the rolling minimum over a window. Entries before the
// window is full are NaN.
func RollingMin(values []float64, window int) ([]float64, error) {
	return rollingExtreme(values, window, false)
}

func rollingExtreme(values []float64, window int, max bool) ([]float64, error) {
	if window < 1 {
		return nil, fmt.Errorf("rolling window must be positive, got %d", window)
	}
	if len(values) < window {
		return nil, fmt.Errorf("not enough data points for rolling window: need %d, got %d", window, len(values))
	}
	out := make([]float64, len(values))
	for i := range out {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		ext := values[i-window+1]
		for j := i - window + 2; j <= i; j++ {
			if max && values[j] > ext {
				ext = values[j]
			} else if !max && values[j] < ext {
				ext = values[j]
			}
		}
		out[i] = ext
	}
	return out, nil
}

// RollingStdev computes the rolling sample standard deviation over a window.
// Entries before the window is full are NaN.
func RollingStdev(values []float64, window int) ([]float64, error) {
	if window < 2 {
		return nil, fmt.Errorf("stdev window must be >= 2, got %d", window)
	}
	if len(values) < window {
		return nil, fmt.Errorf("not enough data points for stdev: need %d, got %d", window, len(values))
	}
	out := make([]float64, len(values))
	for i := range out {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		var sum float64
		for j := i - window + 1; j <= i; j++ {
			sum += values[j]
		}
		mean := sum / float64(window)
		var variance float64
		for j := i - window + 1; j <= i; j++ {
			d := values[j] - mean
			variance += d * d
		}
		out[i] = math.Sqrt(variance / float64(window-1))
	}
	return out, nil
}

// RollingMean computes the rolling arithmetic mean over a window. Entries
// before the window is full are NaN.
func RollingMean(values []float64, window int) ([]float64, error) {
	if window < 1 {
		return nil, fmt.Errorf("mean window must be positive, got %d", window)
	}
	if len(values) < window {
		return nil, fmt.Errorf("not enough data points for mean: need %d, got %d", window, len(values))
	}
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(window)
	}
	return out, nil
}
