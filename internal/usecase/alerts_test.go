package usecase

import (
	"testing"
	"time"

	"GreyPulse/internal/domain/models"
)

func quietAnalysis() *models.Analysis {
	return &models.Analysis{
		Change:     models.ChangeMetrics{Direction: models.DirectionStable},
		Indicators: models.Indicators{Ready: true, VolumeTrend: "stable"},
	}
}

func TestVolumeSpikeFiresThenDedups(t *testing.T) {
	e := NewAlertEvaluator(AlertConfig{VolumeSpikeMult: 2.0})
	inst := testInstrument()
	baseline := models.Baseline{Average: 100, AvgVolume: 100}
	dedup := models.NewAlertLog(5*time.Minute, 64)
	now := time.Now()

	r := &models.AggregatedReading{Value: 100, Volume: 300}
	alerts := e.Evaluate(inst, baseline, dedup, r, quietAnalysis(), now)
	if len(alerts) != 1 {
		t.Fatalf("first spike emitted %d alerts, want 1", len(alerts))
	}
	if alerts[0].Type != models.AlertVolumeSpike {
		t.Fatalf("alert type = %s, want volume_spike", alerts[0].Type)
	}
	if alerts[0].ID == "" || alerts[0].InstrumentID != inst.ID {
		t.Fatalf("alert missing identity: %+v", alerts[0])
	}

	// same condition inside the window is suppressed
	alerts = e.Evaluate(inst, baseline, dedup, r, quietAnalysis(), now.Add(time.Minute))
	if len(alerts) != 0 {
		t.Fatalf("repeat inside dedup window emitted %d alerts, want 0", len(alerts))
	}

	// and fires again once the window has passed
	alerts = e.Evaluate(inst, baseline, dedup, r, quietAnalysis(), now.Add(6*time.Minute))
	if len(alerts) != 1 {
		t.Fatalf("repeat after dedup window emitted %d alerts, want 1", len(alerts))
	}
}

func TestRapidChangeSeverityEscalation(t *testing.T) {
	e := NewAlertEvaluator(AlertConfig{RapidChangePct: 5})
	inst := testInstrument()
	now := time.Now()

	an := quietAnalysis()
	an.Change.PctChange = -7
	alerts := e.Evaluate(inst, models.Baseline{}, models.NewAlertLog(time.Minute, 8), &models.AggregatedReading{Value: 93}, an, now)
	if len(alerts) != 1 || alerts[0].Severity != models.SeverityMedium {
		t.Fatalf("7%% move = %+v, want one medium rapid_change", alerts)
	}

	an = quietAnalysis()
	an.Change.PctChange = 12
	alerts = e.Evaluate(inst, models.Baseline{}, models.NewAlertLog(time.Minute, 8), &models.AggregatedReading{Value: 112}, an, now)
	if len(alerts) != 1 || alerts[0].Severity != models.SeverityHigh {
		t.Fatalf("12%% move = %+v, want one high rapid_change", alerts)
	}
}

func TestVolatilityAgainstBaseline(t *testing.T) {
	e := NewAlertEvaluator(AlertConfig{VolatilityPct: 10})
	inst := testInstrument()
	baseline := models.Baseline{Average: 100}

	an := quietAnalysis()
	an.Indicators.Volatility = 15 // 15% of the baseline average
	alerts := e.Evaluate(inst, baseline, models.NewAlertLog(time.Minute, 8), &models.AggregatedReading{Value: 100}, an, time.Now())
	if len(alerts) != 1 || alerts[0].Type != models.AlertVolatility {
		t.Fatalf("alerts = %+v, want one volatility alert", alerts)
	}

	// unready indicators never trigger volatility checks
	an.Indicators.Ready = false
	alerts = e.Evaluate(inst, baseline, models.NewAlertLog(time.Minute, 8), &models.AggregatedReading{Value: 100}, an, time.Now())
	if len(alerts) != 0 {
		t.Fatalf("unready indicators emitted %d alerts, want 0", len(alerts))
	}
}

func TestAnomalyEventsBecomeAlerts(t *testing.T) {
	e := NewAlertEvaluator(AlertConfig{})
	inst := testInstrument()

	an := quietAnalysis()
	an.Patterns = []models.PatternEvent{
		{Type: models.PatternPriceAnomaly, Severity: "high", ZScore: 4.2, Detail: "spike"},
		{Type: models.PatternTrend, Detail: "uptrend"}, // informational, no alert
	}
	alerts := e.Evaluate(inst, models.Baseline{}, models.NewAlertLog(time.Minute, 8), &models.AggregatedReading{Value: 100}, an, time.Now())
	if len(alerts) != 1 {
		t.Fatalf("emitted %d alerts, want 1 from the anomaly only", len(alerts))
	}
	if alerts[0].Type != models.AlertAnomaly || alerts[0].Severity != models.SeverityHigh {
		t.Fatalf("alert = %+v, want high anomaly", alerts[0])
	}
}

func TestUserThresholdFiresOnce(t *testing.T) {
	e := NewAlertEvaluator(AlertConfig{})
	inst := testInstrument()

	reg := e.RegisterThreshold(models.UserThreshold{
		UserID:       "u1",
		InstrumentID: inst.ID,
		Direction:    models.ThresholdAbove,
		Value:        110,
	})
	if reg.ID == "" {
		t.Fatalf("registered threshold not assigned an id")
	}

	// below the line: nothing
	alerts := e.Evaluate(inst, models.Baseline{}, models.NewAlertLog(time.Minute, 8), &models.AggregatedReading{Value: 105}, quietAnalysis(), time.Now())
	if len(alerts) != 0 {
		t.Fatalf("below threshold emitted %d alerts, want 0", len(alerts))
	}

	// crossing fires exactly one high threshold alert
	alerts = e.Evaluate(inst, models.Baseline{}, models.NewAlertLog(time.Minute, 8), &models.AggregatedReading{Value: 111}, quietAnalysis(), time.Now())
	if len(alerts) != 1 || alerts[0].Type != models.AlertThreshold || alerts[0].Severity != models.SeverityHigh {
		t.Fatalf("crossing = %+v, want one high threshold alert", alerts)
	}

	// one-shot: still above on later cycles, never re-fires
	for i := 0; i < 3; i++ {
		alerts = e.Evaluate(inst, models.Baseline{}, models.NewAlertLog(time.Minute, 8), &models.AggregatedReading{Value: 120}, quietAnalysis(), time.Now())
		if len(alerts) != 0 {
			t.Fatalf("triggered threshold re-fired: %+v", alerts)
		}
	}

	got := e.Thresholds(inst.ID)
	if len(got) != 1 || !got[0].Triggered || got[0].TriggeredAt == nil {
		t.Fatalf("threshold snapshot = %+v, want triggered with timestamp", got)
	}
}

func TestThresholdBelowDirection(t *testing.T) {
	e := NewAlertEvaluator(AlertConfig{})
	inst := testInstrument()
	e.RegisterThreshold(models.UserThreshold{
		InstrumentID: inst.ID,
		Direction:    models.ThresholdBelow,
		Value:        90,
	})

	alerts := e.Evaluate(inst, models.Baseline{}, models.NewAlertLog(time.Minute, 8), &models.AggregatedReading{Value: 89.5}, quietAnalysis(), time.Now())
	if len(alerts) != 1 {
		t.Fatalf("drop through floor emitted %d alerts, want 1", len(alerts))
	}
}

func TestDropThresholds(t *testing.T) {
	e := NewAlertEvaluator(AlertConfig{})
	inst := testInstrument()
	e.RegisterThreshold(models.UserThreshold{InstrumentID: inst.ID, Direction: models.ThresholdAbove, Value: 110})

	e.DropThresholds(inst.ID)
	if got := e.Thresholds(inst.ID); len(got) != 0 {
		t.Fatalf("thresholds after drop = %d, want 0", len(got))
	}
	alerts := e.Evaluate(inst, models.Baseline{}, models.NewAlertLog(time.Minute, 8), &models.AggregatedReading{Value: 200}, quietAnalysis(), time.Now())
	if len(alerts) != 0 {
		t.Fatalf("dropped threshold still fired: %+v", alerts)
	}
}

func TestAlertLogDedupWindow(t *testing.T) {
	l := models.NewAlertLog(time.Minute, 4)
	now := time.Now()

	if l.Observe("volume_spike|ipo-1", now) {
		t.Fatalf("first observation reported as seen")
	}
	if !l.Observe("volume_spike|ipo-1", now.Add(30*time.Second)) {
		t.Fatalf("repeat inside window not suppressed")
	}
	if l.Observe("volume_spike|ipo-1", now.Add(2*time.Minute)) {
		t.Fatalf("observation after window expiry reported as seen")
	}
}
