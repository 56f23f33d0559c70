package models

import "time"

// AlertType classifies a surfaced condition.
type AlertType string

const (
	AlertVolatility  AlertType = "volatility"
	AlertRapidChange AlertType = "rapid_change"
	AlertVolumeSpike AlertType = "volume_spike"
	AlertAnomaly     AlertType = "anomaly"
	AlertThreshold   AlertType = "threshold"
)

// AlertSeverity ranks how urgently an alert should be surfaced.
type AlertSeverity string

const (
	SeverityLow    AlertSeverity = "low"
	SeverityMedium AlertSeverity = "medium"
	SeverityHigh   AlertSeverity = "high"
)

// Alert is immutable once emitted. High severity alerts go straight to the
// broadcast channel; the rest ride along on the analysis payload.
type Alert struct {
	ID           string        `json:"id"`
	InstrumentID string        `json:"instrument_id"`
	Type         AlertType     `json:"type"`
	Severity     AlertSeverity `json:"severity"`
	Message      string        `json:"message"`
	Value        float64       `json:"value"`
	Threshold    float64       `json:"threshold,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// DedupKey identifies repeats of the same condition on the same instrument.
func (a Alert) DedupKey() string {
	return string(a.Type) + "|" + a.InstrumentID
}

// ThresholdDirection is the side a user threshold fires on.
type ThresholdDirection string

const (
	ThresholdAbove ThresholdDirection = "above"
	ThresholdBelow ThresholdDirection = "below"
)

// UserThreshold is a one-shot directional trigger registered by a user.
type UserThreshold struct {
	ID           string             `json:"id"`
	UserID       string             `json:"user_id"`
	InstrumentID string             `json:"instrument_id"`
	Direction    ThresholdDirection `json:"direction"`
	Value        float64            `json:"value"`
	Triggered    bool               `json:"triggered"`
	CreatedAt    time.Time          `json:"created_at"`
	TriggeredAt  *time.Time         `json:"triggered_at,omitempty"`
}

// Crossed reports whether v satisfies the threshold condition.
func (t UserThreshold) Crossed(v float64) bool {
	switch t.Direction {
	case ThresholdAbove:
		return v >= t.Value
	case ThresholdBelow:
		return v <= t.Value
	}
	return false
}
