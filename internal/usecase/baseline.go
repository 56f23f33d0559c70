package usecase

import (
	"time"

	"GreyPulse/internal/domain/models"
	"GreyPulse/internal/services/analytics"
)

// BaselineCalc derives rolling statistical baselines and price-target
// bands from recent consensus history.
type BaselineCalc struct {
	window int
}

func NewBaselineCalc(window int) *BaselineCalc {
	if window < 2 {
		window = 20
	}
	return &BaselineCalc{window: window}
}

// Compute summarizes the most recent window of values and volumes
// (oldest-first) into a baseline and targets.
func (b *BaselineCalc) Compute(values, volumes []float64, now time.Time) (models.Baseline, models.PriceTargets) {
	if len(values) > b.window {
		values = values[len(values)-b.window:]
	}
	if len(volumes) > b.window {
		volumes = volumes[len(volumes)-b.window:]
	}
	if len(values) == 0 {
		return models.Baseline{UpdatedAt: now}, models.PriceTargets{}
	}

	avg := analytics.Mean(values)
	vol := analytics.StdDev(values)

	low, high := values[0], values[0]
	for _, v := range values[1:] {
		if v < low {
			low = v
		}
		if v > high {
			high = v
		}
	}

	trend := models.DirectionStable
	if len(values) >= 4 {
		slope := analytics.Slope(values)
		// slope below a fraction of volatility is noise, not trend
		threshold := vol / float64(len(values))
		if slope > threshold {
			trend = models.DirectionUp
		} else if slope < -threshold {
			trend = models.DirectionDown
		}
	}

	baseline := models.Baseline{
		Average:    avg,
		Volatility: vol,
		Trend:      trend,
		AvgVolume:  analytics.Mean(volumes),
		Low:        low,
		High:       high,
		Samples:    len(values),
		UpdatedAt:  now,
	}

	targets := models.PriceTargets{
		Conservative: avg - vol,
		Realistic:    avg,
		Optimistic:   avg + vol,
		Support:      low,
		Resistance:   high,
	}

	return baseline, targets
}
