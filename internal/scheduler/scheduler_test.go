package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"GreyPulse/internal/domain/models"
	"GreyPulse/internal/usecase"
	"GreyPulse/pkg/config"
	"GreyPulse/pkg/logger"
)

// stubRunner counts cycles and fails on demand.
type stubRunner struct {
	mu       sync.Mutex
	runs     []string
	hydrated []string
	err      error
}

func (r *stubRunner) Run(_ context.Context, inst models.TrackedInstrument, st *models.TrackingState) (*usecase.CycleResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, inst.ID)
	if r.err != nil {
		return nil, r.err
	}
	st.LastTracked = time.Now()
	return &usecase.CycleResult{}, nil
}

func (r *stubRunner) Hydrate(_ context.Context, inst models.TrackedInstrument, _ *models.TrackingState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hydrated = append(r.hydrated, inst.ID)
}

func (r *stubRunner) runCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "fatal", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func testConfig() Config {
	tc := config.TierConfig{Interval: time.Hour, BatchSize: 8, Parallelism: 2}
	return Config{
		Tiers: map[models.Tier]config.TierConfig{
			models.TierHigh:   tc,
			models.TierMedium: tc,
			models.TierLow:    tc,
		},
		RetryCeiling: 3,
		StaleAfter:   time.Hour,
		Retention:    24 * time.Hour,
		DedupWindow:  5 * time.Minute,
	}
}

func instrument(id string, status models.InstrumentStatus) models.TrackedInstrument {
	return models.TrackedInstrument{ID: id, Symbol: "SYM-" + id, Status: status, IssuePrice: 100}
}

func TestTrackAssignsTierByStatus(t *testing.T) {
	r := &stubRunner{}
	s := New(testConfig(), r, testLogger(t))

	cases := []struct {
		status models.InstrumentStatus
		tier   models.Tier
	}{
		{models.StatusOpen, models.TierHigh},
		{models.StatusUpcoming, models.TierMedium},
		{models.StatusClosed, models.TierLow},
		{models.StatusListed, models.TierLow},
	}
	for i, c := range cases {
		id := string(rune('a' + i))
		if err := s.Track(instrument(id, c.status)); err != nil {
			t.Fatalf("track %s: %v", id, err)
		}
		st, err := s.InstrumentStatus(id)
		if err != nil {
			t.Fatalf("status %s: %v", id, err)
		}
		if st.Tier != c.tier {
			t.Fatalf("status %s tier = %s, want %s", c.status, st.Tier, c.tier)
		}
	}
	if len(r.hydrated) != len(cases) {
		t.Fatalf("hydrated %d instruments, want %d", len(r.hydrated), len(cases))
	}
}

func TestTrackDuplicate(t *testing.T) {
	s := New(testConfig(), &stubRunner{}, testLogger(t))
	if err := s.Track(instrument("ipo-1", models.StatusOpen)); err != nil {
		t.Fatalf("track: %v", err)
	}
	if err := s.Track(instrument("ipo-1", models.StatusOpen)); !errors.Is(err, ErrAlreadyTracked) {
		t.Fatalf("duplicate track error = %v, want ErrAlreadyTracked", err)
	}
}

func TestTrackRejectsEmptyIdentity(t *testing.T) {
	s := New(testConfig(), &stubRunner{}, testLogger(t))
	if err := s.Track(models.TrackedInstrument{Symbol: "ACME"}); err == nil {
		t.Fatalf("expected error for missing id")
	}
}

func TestUntrackInvokesHooks(t *testing.T) {
	var dropped []string
	s := New(testConfig(), &stubRunner{}, testLogger(t),
		WithUntrackHook(func(id string) { dropped = append(dropped, id) }))

	if err := s.Untrack("ghost"); !errors.Is(err, ErrNotTracked) {
		t.Fatalf("untrack unknown = %v, want ErrNotTracked", err)
	}
	if err := s.Track(instrument("ipo-1", models.StatusOpen)); err != nil {
		t.Fatalf("track: %v", err)
	}
	if err := s.Untrack("ipo-1"); err != nil {
		t.Fatalf("untrack: %v", err)
	}
	if len(dropped) != 1 || dropped[0] != "ipo-1" {
		t.Fatalf("hooks saw %v, want [ipo-1]", dropped)
	}
	if _, err := s.InstrumentStatus("ipo-1"); !errors.Is(err, ErrNotTracked) {
		t.Fatalf("status after untrack = %v, want ErrNotTracked", err)
	}
}

func TestTickRunsAndRequeues(t *testing.T) {
	r := &stubRunner{}
	cfg := testConfig()
	s := New(cfg, r, testLogger(t))
	if err := s.Track(instrument("ipo-1", models.StatusOpen)); err != nil {
		t.Fatalf("track: %v", err)
	}

	s.tick(models.TierHigh, cfg.Tiers[models.TierHigh])
	if got := r.runCount(); got != 1 {
		t.Fatalf("cycles after one tick = %d, want 1", got)
	}
	// requeued in its tier, so the next tick runs it again
	s.tick(models.TierHigh, cfg.Tiers[models.TierHigh])
	if got := r.runCount(); got != 2 {
		t.Fatalf("cycles after two ticks = %d, want 2", got)
	}

	st, _ := s.InstrumentStatus("ipo-1")
	if st.LastTracked.IsZero() {
		t.Fatalf("lastTracked not stamped after a successful cycle")
	}
}

func TestFailureCeilingPausesInstrument(t *testing.T) {
	r := &stubRunner{err: errors.New("source down")}
	cfg := testConfig()
	s := New(cfg, r, testLogger(t))
	if err := s.Track(instrument("ipo-1", models.StatusOpen)); err != nil {
		t.Fatalf("track: %v", err)
	}

	for i := 0; i < cfg.RetryCeiling; i++ {
		s.tick(models.TierHigh, cfg.Tiers[models.TierHigh])
	}
	st, _ := s.InstrumentStatus("ipo-1")
	if !st.Paused || !st.Degraded {
		t.Fatalf("after %d failures: paused=%v degraded=%v, want both true", cfg.RetryCeiling, st.Paused, st.Degraded)
	}
	if st.ConsecutiveFailures != cfg.RetryCeiling {
		t.Fatalf("failures = %d, want %d", st.ConsecutiveFailures, cfg.RetryCeiling)
	}

	// paused instruments are not requeued and further ticks do nothing
	runs := r.runCount()
	s.tick(models.TierHigh, cfg.Tiers[models.TierHigh])
	if r.runCount() != runs {
		t.Fatalf("paused instrument still ran")
	}

	// recovery: resume clears the streak and re-enqueues
	r.mu.Lock()
	r.err = nil
	r.mu.Unlock()
	if err := s.Resume("ipo-1"); err != nil {
		t.Fatalf("resume: %v", err)
	}
	st, _ = s.InstrumentStatus("ipo-1")
	if st.Paused || st.ConsecutiveFailures != 0 {
		t.Fatalf("after resume: paused=%v failures=%d, want running with zero failures", st.Paused, st.ConsecutiveFailures)
	}
	s.tick(models.TierHigh, cfg.Tiers[models.TierHigh])
	if r.runCount() != runs+1 {
		t.Fatalf("resumed instrument did not run")
	}
}

func TestPauseSkipsScheduling(t *testing.T) {
	r := &stubRunner{}
	cfg := testConfig()
	s := New(cfg, r, testLogger(t))
	if err := s.Track(instrument("ipo-1", models.StatusOpen)); err != nil {
		t.Fatalf("track: %v", err)
	}
	if err := s.Pause("ipo-1"); err != nil {
		t.Fatalf("pause: %v", err)
	}

	s.tick(models.TierHigh, cfg.Tiers[models.TierHigh])
	if r.runCount() != 0 {
		t.Fatalf("paused instrument ran %d cycles, want 0", r.runCount())
	}
}

func TestUpdateStatusRetiersAndStampsListedAt(t *testing.T) {
	r := &stubRunner{}
	cfg := testConfig()
	s := New(cfg, r, testLogger(t))
	if err := s.Track(instrument("ipo-1", models.StatusOpen)); err != nil {
		t.Fatalf("track: %v", err)
	}

	if err := s.UpdateStatus("ipo-1", models.StatusListed); err != nil {
		t.Fatalf("update status: %v", err)
	}
	st, _ := s.InstrumentStatus("ipo-1")
	if st.Tier != models.TierLow {
		t.Fatalf("listed tier = %s, want low", st.Tier)
	}
	inst, _ := s.Instrument("ipo-1")
	if inst.ListedAt.IsZero() {
		t.Fatalf("listedAt not stamped on listing")
	}

	// the stale high-tier queue entry is a no-op now
	s.tick(models.TierHigh, cfg.Tiers[models.TierHigh])
	if r.runCount() != 0 {
		t.Fatalf("re-tiered instrument ran from its old tier queue")
	}
	// and the low-tier queue owns it
	s.tick(models.TierLow, cfg.Tiers[models.TierLow])
	if r.runCount() != 1 {
		t.Fatalf("re-tiered instrument did not run from its new tier")
	}
}

func TestSweepPromotesStaleInstrument(t *testing.T) {
	r := &stubRunner{}
	cfg := testConfig()
	s := New(cfg, r, testLogger(t))
	if err := s.Track(instrument("ipo-1", models.StatusClosed)); err != nil {
		t.Fatalf("track: %v", err)
	}

	v, _ := s.entries.Load("ipo-1")
	e := v.(*entry)
	e.mu.Lock()
	e.state.LastTracked = time.Now().Add(-2 * cfg.StaleAfter)
	e.mu.Unlock()

	s.sweep(time.Now())
	st, _ := s.InstrumentStatus("ipo-1")
	if st.Tier != models.TierHigh {
		t.Fatalf("stale instrument tier = %s, want promoted to high", st.Tier)
	}
	s.tick(models.TierHigh, cfg.Tiers[models.TierHigh])
	if r.runCount() != 1 {
		t.Fatalf("promoted instrument was not enqueued for catch-up")
	}
}

func TestSweepRetiresListedPastRetention(t *testing.T) {
	var dropped []string
	cfg := testConfig()
	s := New(cfg, &stubRunner{}, testLogger(t),
		WithUntrackHook(func(id string) { dropped = append(dropped, id) }))

	inst := instrument("ipo-1", models.StatusListed)
	inst.ListedAt = time.Now().Add(-2 * cfg.Retention)
	if err := s.Track(inst); err != nil {
		t.Fatalf("track: %v", err)
	}

	s.sweep(time.Now())
	if _, err := s.InstrumentStatus("ipo-1"); !errors.Is(err, ErrNotTracked) {
		t.Fatalf("retired instrument still tracked: %v", err)
	}
	if len(dropped) != 1 {
		t.Fatalf("untrack hooks saw %v, want one retirement", dropped)
	}
}

// blockingRunner parks inside Run until released so tests can observe
// what happens while a cycle is in flight.
type blockingRunner struct {
	entered chan struct{}
	release chan struct{}
}

func (r *blockingRunner) Run(_ context.Context, _ models.TrackedInstrument, st *models.TrackingState) (*usecase.CycleResult, error) {
	close(r.entered)
	<-r.release
	st.Baseline = models.Baseline{Average: 42, Samples: 1}
	st.LastTracked = time.Now()
	return &usecase.CycleResult{}, nil
}

func (r *blockingRunner) Hydrate(context.Context, models.TrackedInstrument, *models.TrackingState) {}

func TestStatusSerializesWithRunningCycle(t *testing.T) {
	r := &blockingRunner{entered: make(chan struct{}), release: make(chan struct{})}
	cfg := testConfig()
	s := New(cfg, r, testLogger(t))
	if err := s.Track(instrument("ipo-1", models.StatusOpen)); err != nil {
		t.Fatalf("track: %v", err)
	}

	tickDone := make(chan struct{})
	go func() {
		s.tick(models.TierHigh, cfg.Tiers[models.TierHigh])
		close(tickDone)
	}()
	<-r.entered

	statusCh := make(chan []TrackingStatus, 1)
	go func() { statusCh <- s.Status() }()

	// the snapshot must wait for the cycle's state writes, not read
	// around them
	select {
	case <-statusCh:
		t.Fatalf("status returned while a cycle was mutating state")
	case <-time.After(20 * time.Millisecond):
	}

	close(r.release)
	out := <-statusCh
	if len(out) != 1 || out[0].Baseline.Samples != 1 || out[0].Baseline.Average != 42 {
		t.Fatalf("status after cycle = %+v, want the cycle's baseline", out)
	}
	if out[0].LastTracked.IsZero() {
		t.Fatalf("lastTracked not visible after the cycle completed")
	}
	<-tickDone
}

func TestStatusSortedByID(t *testing.T) {
	s := New(testConfig(), &stubRunner{}, testLogger(t))
	for _, id := range []string{"c", "a", "b"} {
		if err := s.Track(instrument(id, models.StatusOpen)); err != nil {
			t.Fatalf("track %s: %v", id, err)
		}
	}
	out := s.Status()
	if len(out) != 3 {
		t.Fatalf("status count = %d, want 3", len(out))
	}
	for i, want := range []string{"a", "b", "c"} {
		if out[i].Instrument.ID != want {
			t.Fatalf("status[%d] = %s, want %s", i, out[i].Instrument.ID, want)
		}
	}
}
