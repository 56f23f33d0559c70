package usecase

import (
	"math"
	"testing"
	"time"

	"GreyPulse/internal/domain/models"
)

func TestBaselineSummaryStats(t *testing.T) {
	b := NewBaselineCalc(20)
	values := []float64{100, 104, 98, 102, 106}
	volumes := []float64{10, 20, 30, 40, 50}

	now := time.Now()
	base, targets := b.Compute(values, volumes, now)

	if math.Abs(base.Average-102) > 1e-9 {
		t.Fatalf("average = %v, want 102", base.Average)
	}
	if base.Low != 98 || base.High != 106 {
		t.Fatalf("low/high = %v/%v, want 98/106", base.Low, base.High)
	}
	if base.AvgVolume != 30 {
		t.Fatalf("avg volume = %v, want 30", base.AvgVolume)
	}
	if base.Samples != 5 || !base.UpdatedAt.Equal(now) {
		t.Fatalf("samples/updatedAt = %d/%v", base.Samples, base.UpdatedAt)
	}

	if targets.Realistic != base.Average {
		t.Fatalf("realistic target = %v, want average", targets.Realistic)
	}
	if targets.Conservative >= targets.Realistic || targets.Optimistic <= targets.Realistic {
		t.Fatalf("target bands not ordered: %+v", targets)
	}
	if targets.Support != 98 || targets.Resistance != 106 {
		t.Fatalf("support/resistance = %v/%v, want 98/106", targets.Support, targets.Resistance)
	}
}

func TestBaselineWindowTruncation(t *testing.T) {
	b := NewBaselineCalc(3)
	values := []float64{1, 1, 1, 10, 20, 30}

	base, _ := b.Compute(values, nil, time.Now())
	if base.Average != 20 || base.Samples != 3 {
		t.Fatalf("windowed average/samples = %v/%d, want 20/3 over the last three", base.Average, base.Samples)
	}
}

func TestBaselineTrendDirection(t *testing.T) {
	b := NewBaselineCalc(20)

	up, _ := b.Compute([]float64{100, 103, 106, 109, 112}, nil, time.Now())
	if up.Trend != models.DirectionUp {
		t.Fatalf("rising trend = %s, want up", up.Trend)
	}
	down, _ := b.Compute([]float64{112, 109, 106, 103, 100}, nil, time.Now())
	if down.Trend != models.DirectionDown {
		t.Fatalf("falling trend = %s, want down", down.Trend)
	}
	flat, _ := b.Compute([]float64{100, 100, 100, 100, 100}, nil, time.Now())
	if flat.Trend != models.DirectionStable {
		t.Fatalf("flat trend = %s, want stable", flat.Trend)
	}
}

func TestBaselineEmptyHistory(t *testing.T) {
	b := NewBaselineCalc(20)
	base, targets := b.Compute(nil, nil, time.Now())
	if base.Samples != 0 || base.Average != 0 {
		t.Fatalf("empty baseline = %+v, want zero stats", base)
	}
	if targets != (models.PriceTargets{}) {
		t.Fatalf("empty targets = %+v, want zero", targets)
	}
}
