package analytics

import "math"

// MinIndicatorReadings is the minimum history length before technical
// indicators are reported; below it they would be misleading zeros.
const MinIndicatorReadings = 5

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation, 0 for fewer than two values.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	sum2 := 0.0
	for _, x := range xs {
		d := x - m
		sum2 += d * d
	}
	return math.Sqrt(sum2 / float64(len(xs)))
}

// SMA returns the simple moving average of the last window values,
// or 0 when fewer values exist.
func SMA(values []float64, window int) float64 {
	if window <= 0 || len(values) < window {
		return 0
	}
	return Mean(values[len(values)-window:])
}

// Momentum is the percentage change between the latest value and the value
// lookback readings earlier.
func Momentum(values []float64, lookback int) float64 {
	if lookback <= 0 || len(values) <= lookback {
		return 0
	}
	base := values[len(values)-1-lookback]
	if base == 0 {
		return 0
	}
	return (values[len(values)-1] - base) / base * 100
}

// Volatility is the population standard deviation of the last window values.
func Volatility(values []float64, window int) float64 {
	if window <= 1 || len(values) < window {
		return 0
	}
	return StdDev(values[len(values)-window:])
}

// RSI computes an RSI-style oscillator over the given period, mapped to
// [0,100]. A period with zero average loss and positive average gain
// saturates at exactly 100; a flat period reads neutral.
func RSI(values []float64, period int) float64 {
	if period <= 1 || len(values) <= period {
		return 0
	}
	var gains, losses float64
	start := len(values) - period
	for i := start; i < len(values); i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			gains += d
		} else {
			losses -= d
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		if avgGain > 0 {
			return 100
		}
		return 50
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// VolumeTrend compares the mean of the most recent three volumes to the
// mean of the preceding three. More than 20% apart reads as a trend.
func VolumeTrend(volumes []float64) string {
	if len(volumes) < 6 {
		return "stable"
	}
	recent := Mean(volumes[len(volumes)-3:])
	prior := Mean(volumes[len(volumes)-6 : len(volumes)-3])
	if prior == 0 {
		return "stable"
	}
	ratio := recent / prior
	switch {
	case ratio > 1.2:
		return "increasing"
	case ratio < 0.8:
		return "decreasing"
	default:
		return "stable"
	}
}

// ZScoreCap is the score reported for any deviation from a
// zero-variance history. Kept finite so values flowing into JSON
// payloads stay serializable.
const ZScoreCap = 1000

// ZScore measures how far x sits from the mean of xs in standard
// deviations. A zero-variance history saturates at ±ZScoreCap.
func ZScore(xs []float64, x float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	sd := StdDev(xs)
	if sd == 0 {
		if x == m {
			return 0
		}
		if x > m {
			return ZScoreCap
		}
		return -ZScoreCap
	}
	return (x - m) / sd
}

// Slope returns the least-squares linear regression slope of values over
// their index.
func Slope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (fn*sumXY - sumX*sumY) / denom
}
