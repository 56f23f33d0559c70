package usecase

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"GreyPulse/internal/domain/models"
)

// AlertConfig carries the system-wide alert thresholds.
type AlertConfig struct {
	VolatilityPct   float64 // volatility as % of baseline average
	RapidChangePct  float64 // absolute % change between cycles
	VolumeSpikeMult float64 // volume vs baseline average volume
}

// AlertEvaluator decides which conditions are worth surfacing. It also
// owns the registry of per-user one-shot thresholds.
type AlertEvaluator struct {
	cfg AlertConfig

	mu         sync.Mutex
	thresholds map[string][]*models.UserThreshold // instrumentID -> thresholds
}

func NewAlertEvaluator(cfg AlertConfig) *AlertEvaluator {
	if cfg.VolumeSpikeMult <= 1 {
		cfg.VolumeSpikeMult = 2.0
	}
	return &AlertEvaluator{
		cfg:        cfg,
		thresholds: make(map[string][]*models.UserThreshold),
	}
}

// RegisterThreshold adds a user threshold for an instrument.
func (e *AlertEvaluator) RegisterThreshold(t models.UserThreshold) models.UserThreshold {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now()
	e.mu.Lock()
	e.thresholds[t.InstrumentID] = append(e.thresholds[t.InstrumentID], &t)
	e.mu.Unlock()
	return t
}

// Thresholds returns a snapshot of registered thresholds for an instrument.
func (e *AlertEvaluator) Thresholds(instrumentID string) []models.UserThreshold {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.UserThreshold, 0, len(e.thresholds[instrumentID]))
	for _, t := range e.thresholds[instrumentID] {
		out = append(out, *t)
	}
	return out
}

// DropThresholds discards all thresholds for an instrument (on untrack).
func (e *AlertEvaluator) DropThresholds(instrumentID string) {
	e.mu.Lock()
	delete(e.thresholds, instrumentID)
	e.mu.Unlock()
}

// Evaluate checks the enriched reading against system thresholds, detector
// output, and outstanding user thresholds. System alerts are deduplicated
// through the instrument's recent-alert log; user thresholds fire once.
func (e *AlertEvaluator) Evaluate(
	inst models.TrackedInstrument,
	baseline models.Baseline,
	dedup *models.AlertLog,
	r *models.AggregatedReading,
	an *models.Analysis,
	now time.Time,
) []models.Alert {
	var alerts []models.Alert

	add := func(a models.Alert) {
		a.InstrumentID = inst.ID
		if dedup != nil && dedup.Observe(a.DedupKey(), now) {
			return
		}
		a.ID = uuid.NewString()
		a.Timestamp = now
		alerts = append(alerts, a)
	}

	// volatility breach, measured against the rolling baseline
	if an.Indicators.Ready && baseline.Average > 0 {
		volPct := an.Indicators.Volatility / baseline.Average * 100
		if e.cfg.VolatilityPct > 0 && volPct > e.cfg.VolatilityPct {
			sev := models.SeverityMedium
			if volPct > 2*e.cfg.VolatilityPct {
				sev = models.SeverityHigh
			}
			add(models.Alert{
				Type:      models.AlertVolatility,
				Severity:  sev,
				Message:   fmt.Sprintf("%s volatility %.1f%% of baseline exceeds %.1f%%", inst.Symbol, volPct, e.cfg.VolatilityPct),
				Value:     volPct,
				Threshold: e.cfg.VolatilityPct,
			})
		}
	}

	// rapid change between consecutive cycles
	if e.cfg.RapidChangePct > 0 {
		if pct := math.Abs(an.Change.PctChange); pct > e.cfg.RapidChangePct {
			sev := models.SeverityMedium
			if pct > 2*e.cfg.RapidChangePct {
				sev = models.SeverityHigh
			}
			add(models.Alert{
				Type:      models.AlertRapidChange,
				Severity:  sev,
				Message:   fmt.Sprintf("%s moved %.1f%% in one cycle", inst.Symbol, an.Change.PctChange),
				Value:     an.Change.PctChange,
				Threshold: e.cfg.RapidChangePct,
			})
		}
	}

	// volume spike relative to baseline volume
	if baseline.AvgVolume > 0 && r.Volume >= e.cfg.VolumeSpikeMult*baseline.AvgVolume {
		sev := models.SeverityMedium
		if r.Volume >= 2*e.cfg.VolumeSpikeMult*baseline.AvgVolume {
			sev = models.SeverityHigh
		}
		add(models.Alert{
			Type:      models.AlertVolumeSpike,
			Severity:  sev,
			Message:   fmt.Sprintf("%s volume %.0f vs baseline %.0f", inst.Symbol, r.Volume, baseline.AvgVolume),
			Value:     r.Volume,
			Threshold: e.cfg.VolumeSpikeMult * baseline.AvgVolume,
		})
	}

	// detector anomalies surface as alerts
	for _, ev := range an.Patterns {
		if ev.Type != models.PatternPriceAnomaly && ev.Type != models.PatternVolumeAnomaly {
			continue
		}
		sev := models.SeverityMedium
		if ev.Severity == "high" {
			sev = models.SeverityHigh
		}
		add(models.Alert{
			Type:     models.AlertAnomaly,
			Severity: sev,
			Message:  fmt.Sprintf("%s %s: %s", inst.Symbol, ev.Type, ev.Detail),
			Value:    ev.ZScore,
		})
	}

	alerts = append(alerts, e.fireThresholds(inst, r.Value, now)...)

	return alerts
}

// fireThresholds marks crossed user thresholds triggered and emits one
// alert each. Triggered thresholds never re-fire.
func (e *AlertEvaluator) fireThresholds(inst models.TrackedInstrument, value float64, now time.Time) []models.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	var alerts []models.Alert
	for _, t := range e.thresholds[inst.ID] {
		if t.Triggered || !t.Crossed(value) {
			continue
		}
		t.Triggered = true
		at := now
		t.TriggeredAt = &at
		alerts = append(alerts, models.Alert{
			ID:           uuid.NewString(),
			InstrumentID: inst.ID,
			Type:         models.AlertThreshold,
			Severity:     models.SeverityHigh,
			Message:      fmt.Sprintf("%s crossed %s %.2f at %.2f", inst.Symbol, t.Direction, t.Value, value),
			Value:        value,
			Threshold:    t.Value,
			Timestamp:    now,
		})
	}
	return alerts
}
