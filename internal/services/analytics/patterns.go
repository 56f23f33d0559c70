package analytics

import (
	"fmt"
	"math"

	"GreyPulse/internal/domain/models"
)

// MinDetectorReadings is the history length below which the detector is a
// no-op for the cycle.
const MinDetectorReadings = 10

// DetectorConfig carries z-score thresholds for anomaly detection.
type DetectorConfig struct {
	PriceZScore  float64
	VolumeZScore float64
}

// Detector flags statistically or structurally notable conditions from
// recent history. Pure function of its inputs.
type Detector struct {
	cfg DetectorConfig
}

func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.PriceZScore <= 0 {
		cfg.PriceZScore = 2.5
	}
	if cfg.VolumeZScore <= 0 {
		cfg.VolumeZScore = 2.0
	}
	return &Detector{cfg: cfg}
}

// Detect analyzes the new value and volume against prior history.
// values and volumes are oldest-first and exclude the new reading.
func (d *Detector) Detect(values, volumes []float64, value, volume float64) []models.PatternEvent {
	if len(values) < MinDetectorReadings {
		return nil
	}

	var events []models.PatternEvent

	if ev, ok := d.priceAnomaly(values, value); ok {
		events = append(events, ev)
	}
	if ev, ok := d.volumeAnomaly(volumes, volume); ok {
		events = append(events, ev)
	}
	events = append(events, d.levelTests(values, value)...)
	events = append(events, d.trend(values))

	return events
}

func (d *Detector) priceAnomaly(values []float64, value float64) (models.PatternEvent, bool) {
	window := values
	if len(window) > 20 {
		window = window[len(window)-20:]
	}
	z := ZScore(window, value)
	if math.Abs(z) <= d.cfg.PriceZScore {
		return models.PatternEvent{}, false
	}
	severity := "medium"
	if math.Abs(z) > 3 {
		severity = "high"
	}
	return models.PatternEvent{
		Type:     models.PatternPriceAnomaly,
		Severity: severity,
		ZScore:   z,
		Detail:   fmt.Sprintf("value %.2f deviates %.1f sigma from recent mean", value, z),
	}, true
}

func (d *Detector) volumeAnomaly(volumes []float64, volume float64) (models.PatternEvent, bool) {
	window := volumes
	if len(window) > 10 {
		window = window[len(window)-10:]
	}
	if len(window) < 2 {
		return models.PatternEvent{}, false
	}
	z := ZScore(window, volume)
	if math.Abs(z) <= d.cfg.VolumeZScore {
		return models.PatternEvent{}, false
	}
	severity := "medium"
	if math.Abs(z) > 3 {
		severity = "high"
	}
	return models.PatternEvent{
		Type:     models.PatternVolumeAnomaly,
		Severity: severity,
		ZScore:   z,
		Detail:   fmt.Sprintf("volume %.0f deviates %.1f sigma from recent mean", volume, z),
	}, true
}

// levelTests checks the new value against support (min of last 5) and
// resistance (max of last 5). Strength grows with the number of prior
// values that also touched the level within the 2% band.
func (d *Detector) levelTests(values []float64, value float64) []models.PatternEvent {
	last5 := values[len(values)-5:]
	support, resistance := last5[0], last5[0]
	for _, v := range last5[1:] {
		if v < support {
			support = v
		}
		if v > resistance {
			resistance = v
		}
	}

	var events []models.PatternEvent
	if near(value, support) {
		events = append(events, models.PatternEvent{
			Type:     models.PatternSupportTest,
			Level:    support,
			Strength: touchStrength(last5, support),
			Detail:   fmt.Sprintf("value %.2f testing support %.2f", value, support),
		})
	}
	if resistance != support && near(value, resistance) {
		events = append(events, models.PatternEvent{
			Type:     models.PatternResistanceTest,
			Level:    resistance,
			Strength: touchStrength(last5, resistance),
			Detail:   fmt.Sprintf("value %.2f testing resistance %.2f", value, resistance),
		})
	}
	return events
}

func near(value, level float64) bool {
	if level == 0 {
		return value == 0
	}
	return math.Abs(value-level)/math.Abs(level) <= 0.02
}

func touchStrength(window []float64, level float64) float64 {
	touches := 0
	for _, v := range window {
		if near(v, level) {
			touches++
		}
	}
	return float64(touches) / float64(len(window))
}

// trend compares the mean of the first and last thirds of the last 10
// values; strength is the regression slope normalized by observed range.
func (d *Detector) trend(values []float64) models.PatternEvent {
	window := values
	if len(window) > 10 {
		window = window[len(window)-10:]
	}
	third := len(window) / 3
	early := Mean(window[:third])
	late := Mean(window[len(window)-third:])

	direction := "sideways"
	if early != 0 {
		pct := (late - early) / math.Abs(early) * 100
		if pct > 3 {
			direction = "uptrend"
		} else if pct < -3 {
			direction = "downtrend"
		}
	}

	low, high := window[0], window[0]
	for _, v := range window[1:] {
		if v < low {
			low = v
		}
		if v > high {
			high = v
		}
	}
	strength := 0.0
	if rng := high - low; rng > 0 {
		strength = math.Abs(Slope(window)) * float64(len(window)) / rng
		if strength > 1 {
			strength = 1
		}
	}

	return models.PatternEvent{
		Type:     models.PatternTrend,
		Strength: strength,
		Detail:   direction,
	}
}
