package models

// Direction of movement between consecutive consensus readings.
type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionStable Direction = "stable"
)

// Magnitude buckets the size of a percentage move.
type Magnitude string

const (
	MagnitudeSmall  Magnitude = "small"
	MagnitudeMedium Magnitude = "medium"
	MagnitudeLarge  Magnitude = "large"
)

// ChangeMetrics compares the new consensus value to the previous one.
type ChangeMetrics struct {
	Change    float64   `json:"change"`
	PctChange float64   `json:"pct_change"`
	Direction Direction `json:"direction"`
	Magnitude Magnitude `json:"magnitude"`
}

// Indicators holds technical indicators computed from reading history.
// Ready is false when fewer than the minimum readings exist; consumers
// must not interpret the zero values in that case. RSI needs a full
// period of history, so it carries its own readiness flag.
type Indicators struct {
	Ready       bool    `json:"ready"`
	SMAShort    float64 `json:"sma_short"`
	SMALong     float64 `json:"sma_long"`
	Momentum    float64 `json:"momentum"`
	Volatility  float64 `json:"volatility"`
	RSI         float64 `json:"rsi,omitempty"`
	RSIReady    bool    `json:"rsi_ready"`
	VolumeTrend string  `json:"volume_trend"`
}

// Sentiment is a 0-100 composite score with a five-step label.
type Sentiment struct {
	Score float64 `json:"score"`
	Label string  `json:"label"`
}

// PatternType classifies a detector finding.
type PatternType string

const (
	PatternPriceAnomaly   PatternType = "price_anomaly"
	PatternVolumeAnomaly  PatternType = "volume_anomaly"
	PatternSupportTest    PatternType = "support_test"
	PatternResistanceTest PatternType = "resistance_test"
	PatternTrend          PatternType = "trend"
)

// PatternEvent is one statistically or structurally notable condition
// flagged by the detector for the current cycle.
type PatternEvent struct {
	Type     PatternType `json:"type"`
	Severity string      `json:"severity,omitempty"`
	ZScore   float64     `json:"z_score,omitempty"`
	Level    float64     `json:"level,omitempty"`
	Strength float64     `json:"strength,omitempty"`
	Detail   string      `json:"detail"`
}

// Analysis is the derived payload attached to an AggregatedReading.
type Analysis struct {
	Change     ChangeMetrics  `json:"change"`
	Indicators Indicators     `json:"indicators"`
	Sentiment  Sentiment      `json:"sentiment"`
	Patterns   []PatternEvent `json:"patterns,omitempty"`
	Alerts     []Alert        `json:"alerts,omitempty"`
}

// EnrichedReading pairs a consensus reading with its analysis for broadcast.
type EnrichedReading struct {
	Reading  AggregatedReading `json:"reading"`
	Analysis Analysis          `json:"analysis"`
}
