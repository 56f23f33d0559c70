package analytics

import (
	"GreyPulse/internal/domain/models"
)

// EnricherConfig carries the tunable thresholds for change classification
// and indicator windows.
type EnricherConfig struct {
	MinDelta         float64
	ShortSMAWindow   int
	LongSMAWindow    int
	RSIPeriod        int
	MomentumLookback int
}

// Enricher derives change metrics, technical indicators, and sentiment from
// an instrument's reading history. Pure: identical history yields identical
// output.
type Enricher struct {
	cfg EnricherConfig
}

func NewEnricher(cfg EnricherConfig) *Enricher {
	if cfg.MinDelta <= 0 {
		cfg.MinDelta = 0.05
	}
	if cfg.ShortSMAWindow <= 1 {
		cfg.ShortSMAWindow = 5
	}
	if cfg.LongSMAWindow <= cfg.ShortSMAWindow {
		cfg.LongSMAWindow = 10
	}
	if cfg.RSIPeriod <= 1 {
		cfg.RSIPeriod = 14
	}
	if cfg.MomentumLookback <= 0 {
		cfg.MomentumLookback = 5
	}
	return &Enricher{cfg: cfg}
}

// Enrich computes the analysis payload for a fresh consensus reading.
// values and volumes are the instrument's history oldest-first, including
// the new reading as the last element. prev is the previous consensus
// reading, nil when none exists.
func (e *Enricher) Enrich(
	inst models.TrackedInstrument,
	prev *models.AggregatedReading,
	values, volumes []float64,
	r *models.AggregatedReading,
) models.Analysis {
	change := e.changeMetrics(inst, prev, r)
	ind := e.indicators(values, volumes)
	sent := e.sentiment(change, ind, r)

	return models.Analysis{
		Change:     change,
		Indicators: ind,
		Sentiment:  sent,
	}
}

func (e *Enricher) changeMetrics(inst models.TrackedInstrument, prev *models.AggregatedReading, r *models.AggregatedReading) models.ChangeMetrics {
	var change float64
	if prev != nil {
		change = r.Value - prev.Value
	}

	var pct float64
	if ref := inst.RefPrice(); ref > 0 {
		pct = change / ref * 100
	}

	dir := models.DirectionStable
	if change > e.cfg.MinDelta {
		dir = models.DirectionUp
	} else if change < -e.cfg.MinDelta {
		dir = models.DirectionDown
	}

	mag := models.MagnitudeSmall
	abs := pct
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs > 10:
		mag = models.MagnitudeLarge
	case abs > 5:
		mag = models.MagnitudeMedium
	}

	return models.ChangeMetrics{
		Change:    change,
		PctChange: pct,
		Direction: dir,
		Magnitude: mag,
	}
}

func (e *Enricher) indicators(values, volumes []float64) models.Indicators {
	if len(values) < MinIndicatorReadings {
		return models.Indicators{Ready: false, VolumeTrend: "stable"}
	}
	ind := models.Indicators{
		Ready:       true,
		SMAShort:    SMA(values, e.cfg.ShortSMAWindow),
		SMALong:     SMA(values, e.cfg.LongSMAWindow),
		Momentum:    Momentum(values, e.cfg.MomentumLookback),
		Volatility:  Volatility(values, min(len(values), e.cfg.LongSMAWindow)),
		VolumeTrend: VolumeTrend(volumes),
	}
	// RSI over a partial period would read as a misleading zero
	if len(values) > e.cfg.RSIPeriod {
		ind.RSI = RSI(values, e.cfg.RSIPeriod)
		ind.RSIReady = true
	}
	return ind
}

// sentiment folds change, volume, RSI extremes, and spread tightness into a
// 0-100 score around a neutral 50.
func (e *Enricher) sentiment(change models.ChangeMetrics, ind models.Indicators, r *models.AggregatedReading) models.Sentiment {
	score := 50.0

	step := 5.0
	switch change.Magnitude {
	case models.MagnitudeMedium:
		step = 10
	case models.MagnitudeLarge:
		step = 20
	}
	switch change.Direction {
	case models.DirectionUp:
		score += step
	case models.DirectionDown:
		score -= step
	}

	switch ind.VolumeTrend {
	case "increasing":
		score += 5
	case "decreasing":
		score -= 5
	}

	if ind.RSIReady {
		if ind.RSI > 70 {
			score -= 10 // overbought
		} else if ind.RSI < 30 {
			score += 10 // oversold
		}
	}

	if r.Mid > 0 {
		spreadPct := r.Spread / r.Mid * 100
		if spreadPct < 1 {
			score += 5
		} else if spreadPct > 5 {
			score -= 5
		}
	}

	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}

	return models.Sentiment{Score: score, Label: sentimentLabel(score)}
}

func sentimentLabel(score float64) string {
	switch {
	case score < 20:
		return "very-bearish"
	case score < 40:
		return "bearish"
	case score <= 60:
		return "neutral"
	case score <= 80:
		return "bullish"
	default:
		return "very-bullish"
	}
}
