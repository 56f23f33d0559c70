package analytics

import (
	"reflect"
	"testing"

	"GreyPulse/internal/domain/models"
)

func enrichInstrument() models.TrackedInstrument {
	return models.TrackedInstrument{ID: "ipo-1", Symbol: "ACME", IssuePrice: 100}
}

func TestEnrichInsufficientHistory(t *testing.T) {
	e := NewEnricher(EnricherConfig{})
	r := &models.AggregatedReading{Value: 101}

	an := e.Enrich(enrichInstrument(), nil, []float64{100, 101}, []float64{10, 10}, r)
	if an.Indicators.Ready {
		t.Fatalf("indicators ready with %d readings, want not ready below %d", 2, MinIndicatorReadings)
	}
	if an.Indicators.VolumeTrend != "stable" {
		t.Fatalf("volume trend = %s, want stable placeholder", an.Indicators.VolumeTrend)
	}
}

func TestRSIRequiresFullPeriod(t *testing.T) {
	e := NewEnricher(EnricherConfig{RSIPeriod: 5})
	values := []float64{100, 101, 102, 103, 104}
	volumes := []float64{10, 10, 10, 10, 10}

	an := e.Enrich(enrichInstrument(), nil, values, volumes, &models.AggregatedReading{Value: 104})
	if !an.Indicators.Ready {
		t.Fatalf("indicators not ready with %d readings", len(values))
	}
	if an.Indicators.RSIReady || an.Indicators.RSI != 0 {
		t.Fatalf("partial-period RSI reported: ready=%v rsi=%v", an.Indicators.RSIReady, an.Indicators.RSI)
	}

	values = append(values, 105)
	volumes = append(volumes, 10)
	an = e.Enrich(enrichInstrument(), nil, values, volumes, &models.AggregatedReading{Value: 105})
	if !an.Indicators.RSIReady || an.Indicators.RSI != 100 {
		t.Fatalf("full-period RSI = ready=%v rsi=%v, want saturated 100", an.Indicators.RSIReady, an.Indicators.RSI)
	}
}

func TestEnrichChangeDirection(t *testing.T) {
	e := NewEnricher(EnricherConfig{MinDelta: 0.05})
	inst := enrichInstrument()

	prev := &models.AggregatedReading{Value: 100}
	up := e.Enrich(inst, prev, []float64{100, 110}, []float64{10, 10}, &models.AggregatedReading{Value: 110})
	if up.Change.Direction != models.DirectionUp {
		t.Fatalf("direction = %s, want up", up.Change.Direction)
	}
	if up.Change.PctChange != 10 {
		t.Fatalf("pct change = %v, want 10", up.Change.PctChange)
	}
	if up.Change.Magnitude != models.MagnitudeMedium {
		t.Fatalf("magnitude = %s, want medium for 10%%", up.Change.Magnitude)
	}

	// below min delta reads stable
	flat := e.Enrich(inst, prev, []float64{100, 100.01}, []float64{10, 10}, &models.AggregatedReading{Value: 100.01})
	if flat.Change.Direction != models.DirectionStable {
		t.Fatalf("direction = %s, want stable below min delta", flat.Change.Direction)
	}
}

func TestEnrichNoPreviousReading(t *testing.T) {
	e := NewEnricher(EnricherConfig{})
	an := e.Enrich(enrichInstrument(), nil, []float64{105}, []float64{10}, &models.AggregatedReading{Value: 105})
	if an.Change.Change != 0 || an.Change.Direction != models.DirectionStable {
		t.Fatalf("first reading change = %+v, want zero stable", an.Change)
	}
}

func TestEnrichDeterministic(t *testing.T) {
	e := NewEnricher(EnricherConfig{})
	inst := enrichInstrument()
	values := []float64{100, 102, 101, 104, 103, 106}
	volumes := []float64{10, 12, 9, 14, 11, 13}
	prev := &models.AggregatedReading{Value: 103}
	r := &models.AggregatedReading{Value: 106, Mid: 106, Spread: 0.5}

	a := e.Enrich(inst, prev, values, volumes, r)
	b := e.Enrich(inst, prev, values, volumes, r)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("enrich not deterministic:\n%+v\n%+v", a, b)
	}
}

func TestSentimentBounds(t *testing.T) {
	e := NewEnricher(EnricherConfig{})
	inst := enrichInstrument()

	// strongly bullish inputs must clamp at 100, not overflow
	values := []float64{100, 105, 110, 116, 122, 130}
	volumes := []float64{10, 10, 10, 50, 50, 50}
	prev := &models.AggregatedReading{Value: 122}
	r := &models.AggregatedReading{Value: 130, Mid: 130, Spread: 0.5}

	an := e.Enrich(inst, prev, values, volumes, r)
	if an.Sentiment.Score < 0 || an.Sentiment.Score > 100 {
		t.Fatalf("sentiment score %v outside [0, 100]", an.Sentiment.Score)
	}
	if an.Sentiment.Label == "" {
		t.Fatalf("sentiment label empty")
	}
}

func TestSentimentLabels(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{10, "very-bearish"}, {30, "bearish"}, {50, "neutral"},
		{60, "neutral"}, {70, "bullish"}, {90, "very-bullish"},
	}
	for _, c := range cases {
		if got := sentimentLabel(c.score); got != c.want {
			t.Fatalf("label(%v) = %s, want %s", c.score, got, c.want)
		}
	}
}
