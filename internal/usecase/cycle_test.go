package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"GreyPulse/internal/domain/models"
	"GreyPulse/internal/domain/repository"
	"GreyPulse/internal/service/reliability"
	"GreyPulse/internal/services/analytics"
	"GreyPulse/pkg/config"
	"GreyPulse/pkg/logger"
)

type fakeSource struct {
	name    string
	reading models.SourceReading
	err     error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(_ context.Context, _ models.TrackedInstrument) (*models.SourceReading, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := f.reading
	r.Source = f.name
	return &r, nil
}

func (f *fakeSource) Close() error { return nil }

type fakeStore struct {
	appended  []*models.AggregatedReading
	latest    *models.AggregatedReading
	recent    []*models.AggregatedReading
	appendErr error
}

func (f *fakeStore) Init(context.Context) error { return nil }

func (f *fakeStore) AppendReading(_ context.Context, r *models.AggregatedReading) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, r)
	return nil
}

func (f *fakeStore) LatestReading(context.Context, string) (*models.AggregatedReading, error) {
	return f.latest, nil
}

func (f *fakeStore) RecentReadings(context.Context, string, int) ([]*models.AggregatedReading, error) {
	return f.recent, nil
}

func (f *fakeStore) Health(context.Context) error { return nil }
func (f *fakeStore) Close() error                 { return nil }

type fakeBroadcaster struct {
	readings []*models.EnrichedReading
	alerts   []*models.Alert
}

func (f *fakeBroadcaster) PublishReading(_ context.Context, er *models.EnrichedReading) error {
	f.readings = append(f.readings, er)
	return nil
}

func (f *fakeBroadcaster) PublishAlert(_ context.Context, a *models.Alert) error {
	f.alerts = append(f.alerts, a)
	return nil
}

func (f *fakeBroadcaster) Close() error { return nil }

type fakeMetrics struct {
	cycleOK, cycleFail int
}

func (f *fakeMetrics) RecordCycle(_ string, success bool) {
	if success {
		f.cycleOK++
	} else {
		f.cycleFail++
	}
}
func (f *fakeMetrics) RecordSourceFetch(string, string) {}
func (f *fakeMetrics) RecordConsensus(string, float64)  {}
func (f *fakeMetrics) RecordAlert(string)               {}
func (f *fakeMetrics) RecordLatency(string, float64)    {}

var _ repository.SourceClient = (*fakeSource)(nil)
var _ repository.ReadingStore = (*fakeStore)(nil)
var _ repository.Broadcaster = (*fakeBroadcaster)(nil)
var _ repository.Metrics = (*fakeMetrics)(nil)

func newState() *models.TrackingState {
	return &models.TrackingState{
		Tier:         models.TierHigh,
		ShortWindow:  models.NewTrendWindow(5),
		MediumWindow: models.NewTrendWindow(10),
		LongWindow:   models.NewTrendWindow(30),
		VolumeWindow: models.NewTrendWindow(30),
		RecentAlerts: models.NewAlertLog(10*time.Minute, 64),
	}
}

func newRunner(t *testing.T, sources []repository.SourceClient, store *fakeStore, bcast *fakeBroadcaster, metrics *fakeMetrics) (*CycleRunner, *AlertEvaluator) {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "fatal", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	srcCfgs := []config.SourceConfig{
		{Name: "alpha", Weight: 1.0},
		{Name: "beta", Weight: 0.5},
	}
	alerts := NewAlertEvaluator(AlertConfig{VolumeSpikeMult: 2.0})
	runner := NewCycleRunner(
		sources,
		reliability.New(nil),
		NewAggregator(srcCfgs, reliability.New(nil)),
		analytics.NewEnricher(analytics.EnricherConfig{}),
		analytics.NewDetector(analytics.DetectorConfig{}),
		NewBaselineCalc(20),
		alerts,
		store,
		nil,
		bcast,
		metrics,
		l,
	)
	return runner, alerts
}

func TestRunProducesWeightedConsensus(t *testing.T) {
	sources := []repository.SourceClient{
		&fakeSource{name: "alpha", reading: models.SourceReading{Value: 100, Confidence: 1.0, Volume: 600}},
		&fakeSource{name: "beta", reading: models.SourceReading{Value: 110, Confidence: 1.0, Volume: 400}},
	}
	store := &fakeStore{}
	bcast := &fakeBroadcaster{}
	metrics := &fakeMetrics{}
	runner, _ := newRunner(t, sources, store, bcast, metrics)

	st := newState()
	res, err := runner.Run(context.Background(), testInstrument(), st)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// reliability priors are equal, so weights reduce to configured 1.0 vs 0.5
	want := (100*1.0 + 110*0.5) / 1.5
	if math.Abs(res.Reading.Value-want) > 1e-9 {
		t.Fatalf("consensus = %v, want %v", res.Reading.Value, want)
	}
	if res.Reading.Volume != 1000 {
		t.Fatalf("volume = %v, want summed 1000", res.Reading.Volume)
	}

	if len(store.appended) != 1 {
		t.Fatalf("persisted %d readings, want 1", len(store.appended))
	}
	if len(bcast.readings) != 1 {
		t.Fatalf("broadcast %d readings, want 1", len(bcast.readings))
	}
	if st.LongWindow.Len() != 1 || st.VolumeWindow.Len() != 1 {
		t.Fatalf("windows not updated: %d/%d", st.LongWindow.Len(), st.VolumeWindow.Len())
	}
	if st.Baseline.Samples != 1 || st.LastTracked.IsZero() {
		t.Fatalf("state bookkeeping missing: %+v", st.Baseline)
	}
	if metrics.cycleOK != 1 {
		t.Fatalf("success cycles = %d, want 1", metrics.cycleOK)
	}
}

func TestRunAllSourcesFail(t *testing.T) {
	sources := []repository.SourceClient{
		&fakeSource{name: "alpha", err: errors.New("timeout")},
		&fakeSource{name: "beta", err: errors.New("refused")},
	}
	store := &fakeStore{}
	metrics := &fakeMetrics{}
	runner, _ := newRunner(t, sources, store, &fakeBroadcaster{}, metrics)

	st := newState()
	_, err := runner.Run(context.Background(), testInstrument(), st)
	if !errors.Is(err, ErrNoSources) {
		t.Fatalf("run error = %v, want ErrNoSources", err)
	}
	if len(store.appended) != 0 {
		t.Fatalf("failed cycle persisted a reading")
	}
	if st.LongWindow.Len() != 0 || !st.LastTracked.IsZero() {
		t.Fatalf("failed cycle mutated history state")
	}
	if metrics.cycleFail != 1 {
		t.Fatalf("failed cycles = %d, want 1", metrics.cycleFail)
	}
}

func TestRunSurvivesPartialSourceFailure(t *testing.T) {
	sources := []repository.SourceClient{
		&fakeSource{name: "alpha", err: errors.New("timeout")},
		&fakeSource{name: "beta", reading: models.SourceReading{Value: 104.5, Confidence: 0.9}},
	}
	runner, _ := newRunner(t, sources, &fakeStore{}, &fakeBroadcaster{}, &fakeMetrics{})

	res, err := runner.Run(context.Background(), testInstrument(), newState())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Reading.Value != 104.5 || res.Reading.SourceCount != 1 {
		t.Fatalf("surviving source consensus = %v (%d sources), want exactly 104.5 from 1",
			res.Reading.Value, res.Reading.SourceCount)
	}
}

func TestRunSwallowsPersistenceFailure(t *testing.T) {
	sources := []repository.SourceClient{
		&fakeSource{name: "alpha", reading: models.SourceReading{Value: 100, Confidence: 1.0}},
	}
	store := &fakeStore{appendErr: errors.New("clickhouse down")}
	runner, _ := newRunner(t, sources, store, &fakeBroadcaster{}, &fakeMetrics{})

	st := newState()
	if _, err := runner.Run(context.Background(), testInstrument(), st); err != nil {
		t.Fatalf("persistence failure surfaced: %v", err)
	}
	if st.LongWindow.Len() != 1 {
		t.Fatalf("in-memory state not updated despite persistence failure")
	}
}

func TestRunBroadcastsHighSeverityAlerts(t *testing.T) {
	sources := []repository.SourceClient{
		&fakeSource{name: "alpha", reading: models.SourceReading{Value: 120, Confidence: 1.0}},
	}
	bcast := &fakeBroadcaster{}
	runner, alerts := newRunner(t, sources, &fakeStore{}, bcast, &fakeMetrics{})

	inst := testInstrument()
	alerts.RegisterThreshold(models.UserThreshold{
		InstrumentID: inst.ID, Direction: models.ThresholdAbove, Value: 110,
	})

	res, err := runner.Run(context.Background(), inst, newState())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(bcast.alerts) != 1 || bcast.alerts[0].Type != models.AlertThreshold {
		t.Fatalf("broadcast alerts = %+v, want one threshold alert", bcast.alerts)
	}
	// high severity goes out immediately, not on the analysis payload
	if len(res.Analysis.Alerts) != 0 {
		t.Fatalf("high severity alert also attached to payload: %+v", res.Analysis.Alerts)
	}
}

func TestHydrateRefillsWindows(t *testing.T) {
	now := time.Now()
	store := &fakeStore{recent: []*models.AggregatedReading{
		{Value: 100, Volume: 10, Timestamp: now.Add(-2 * time.Minute)},
		{Value: 102, Volume: 12, Timestamp: now.Add(-time.Minute)},
		{Value: 104, Volume: 14, Timestamp: now},
	}}
	runner, _ := newRunner(t, nil, store, &fakeBroadcaster{}, &fakeMetrics{})

	st := newState()
	runner.Hydrate(context.Background(), testInstrument(), st)
	if st.LongWindow.Len() != 3 || st.VolumeWindow.Len() != 3 {
		t.Fatalf("hydrated windows = %d/%d, want 3/3", st.LongWindow.Len(), st.VolumeWindow.Len())
	}
	if st.Baseline.Samples != 3 {
		t.Fatalf("hydrated baseline samples = %d, want 3", st.Baseline.Samples)
	}
}

func TestLatestFallsBackToStore(t *testing.T) {
	store := &fakeStore{latest: &models.AggregatedReading{Value: 101.5}}
	runner, _ := newRunner(t, nil, store, &fakeBroadcaster{}, &fakeMetrics{})

	r, err := runner.Latest(context.Background(), "ipo-1")
	if err != nil || r == nil || r.Value != 101.5 {
		t.Fatalf("latest = %+v/%v, want store reading", r, err)
	}

	empty := &fakeStore{}
	runner, _ = newRunner(t, nil, empty, &fakeBroadcaster{}, &fakeMetrics{})
	r, err = runner.Latest(context.Background(), "ipo-1")
	if err != nil || r != nil {
		t.Fatalf("latest with no history = %+v/%v, want nil/nil", r, err)
	}
}
