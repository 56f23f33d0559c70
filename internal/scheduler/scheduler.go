package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"GreyPulse/internal/domain/models"
	"GreyPulse/internal/usecase"
	"GreyPulse/pkg/config"
	"GreyPulse/pkg/logger"
)

var (
	ErrAlreadyTracked = errors.New("instrument already tracked")
	ErrNotTracked     = errors.New("instrument not tracked")
)

// Window depths for the per-instrument trend history.
const (
	shortWindowSize  = 5
	mediumWindowSize = 10
	longWindowSize   = 30
	volumeWindowSize = 30
)

// dedupLogSize bounds the per-instrument recent-alert log.
const dedupLogSize = 64

// Runner is the per-cycle work the scheduler dispatches. Satisfied by
// usecase.CycleRunner; narrowed to an interface so tests can stub it.
type Runner interface {
	Run(ctx context.Context, inst models.TrackedInstrument, st *models.TrackingState) (*usecase.CycleResult, error)
	Hydrate(ctx context.Context, inst models.TrackedInstrument, st *models.TrackingState)
}

// Config carries the scheduler's tier layout and failure policy.
type Config struct {
	Tiers         map[models.Tier]config.TierConfig
	RetryCeiling  int
	StaleAfter    time.Duration
	SweepInterval time.Duration
	PacingDelay   time.Duration
	Retention     time.Duration
	DedupWindow   time.Duration
}

// FromAppConfig maps the loaded application config onto scheduler config.
func FromAppConfig(c *config.Config) Config {
	return Config{
		Tiers: map[models.Tier]config.TierConfig{
			models.TierHigh:   c.Scheduler.Tiers.High,
			models.TierMedium: c.Scheduler.Tiers.Medium,
			models.TierLow:    c.Scheduler.Tiers.Low,
		},
		RetryCeiling:  c.Scheduler.RetryCeiling,
		StaleAfter:    c.Scheduler.StaleAfter,
		SweepInterval: c.Scheduler.SweepInterval,
		PacingDelay:   c.Scheduler.PacingDelay,
		Retention:     c.Scheduler.Retention,
		DedupWindow:   c.Analytics.DedupWindow,
	}
}

// entry pairs an instrument with its tracking state. The mutex is held
// for the full duration of a cycle, so at most one cycle mutates the
// state at a time and admin operations, status snapshots, and the stale
// sweep serialize against in-flight cycles.
type entry struct {
	mu    sync.Mutex
	inst  models.TrackedInstrument
	state *models.TrackingState
}

// TrackingStatus is the operational view of one tracked instrument.
type TrackingStatus struct {
	Instrument          models.TrackedInstrument `json:"instrument"`
	Tier                models.Tier              `json:"tier"`
	Paused              bool                     `json:"paused"`
	Degraded            bool                     `json:"degraded"`
	ConsecutiveFailures int                      `json:"consecutive_failures"`
	LastTracked         time.Time                `json:"last_tracked,omitempty"`
	Baseline            models.Baseline          `json:"baseline"`
	Targets             models.PriceTargets      `json:"targets"`
}

// Scheduler polls the tracking universe on per-tier cadences. Each tier
// runs its own ticker loop popping bounded batches off a FIFO queue;
// removal, pause, and tier changes are observed at the next scheduling
// attempt rather than interrupting an in-flight cycle.
type Scheduler struct {
	cfg    Config
	runner Runner
	log    *logger.Logger

	entries sync.Map // instrument ID -> *entry
	queues  map[models.Tier]*tierQueue

	onUntrack []func(instrumentID string)

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// Option configures optional scheduler behavior.
type Option func(*Scheduler)

// WithUntrackHook registers a cleanup callback invoked after an
// instrument leaves the universe.
func WithUntrackHook(fn func(instrumentID string)) Option {
	return func(s *Scheduler) { s.onUntrack = append(s.onUntrack, fn) }
}

func New(cfg Config, runner Runner, log *logger.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:    cfg,
		runner: runner,
		log:    log,
		queues: map[models.Tier]*tierQueue{
			models.TierHigh:   newTierQueue(),
			models.TierMedium: newTierQueue(),
			models.TierLow:    newTierQueue(),
		},
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the tier loops and the stale sweep. Idempotent.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		for tier, tc := range s.cfg.Tiers {
			s.wg.Add(1)
			go s.runTier(tier, tc)
		}
		if s.cfg.SweepInterval > 0 {
			s.wg.Add(1)
			go s.runSweep()
		}
		s.log.Info("scheduler started",
			logger.Int("instruments", s.count()),
			logger.Duration("high_interval", s.cfg.Tiers[models.TierHigh].Interval),
			logger.Duration("low_interval", s.cfg.Tiers[models.TierLow].Interval))
	})
}

// Stop halts scheduling and waits for in-flight cycles to drain.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// Track adds an instrument to the universe in the tier implied by its
// lifecycle status, hydrating history before the first cycle.
func (s *Scheduler) Track(inst models.TrackedInstrument) error {
	if inst.ID == "" || inst.Symbol == "" {
		return fmt.Errorf("track: id and symbol required")
	}
	tier := models.TierForStatus(inst.Status)
	st := s.newState(tier)

	e := &entry{inst: inst, state: st}
	if _, loaded := s.entries.LoadOrStore(inst.ID, e); loaded {
		return fmt.Errorf("%w: %s", ErrAlreadyTracked, inst.ID)
	}

	s.runner.Hydrate(context.Background(), inst, st)
	s.queues[tier].push(inst.ID)

	s.log.Info("instrument tracked",
		logger.String("instrument", inst.ID),
		logger.String("symbol", inst.Symbol),
		logger.String("tier", string(tier)))
	return nil
}

// Untrack removes an instrument. Queue entries for it become no-ops at
// the next pop; an in-flight cycle finishes but its result is discarded
// along with the state.
func (s *Scheduler) Untrack(id string) error {
	if _, ok := s.entries.LoadAndDelete(id); !ok {
		return fmt.Errorf("%w: %s", ErrNotTracked, id)
	}
	for _, fn := range s.onUntrack {
		fn(id)
	}
	s.log.Info("instrument untracked", logger.String("instrument", id))
	return nil
}

// Pause suspends polling without losing accumulated state.
func (s *Scheduler) Pause(id string) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.state.Paused = true
	e.mu.Unlock()
	s.log.Info("instrument paused", logger.String("instrument", id))
	return nil
}

// Resume clears the pause and the failure streak, and re-enqueues the
// instrument in its current tier. This is the recovery path for
// instruments paused by the retry ceiling.
func (s *Scheduler) Resume(id string) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.state.Paused = false
	e.state.ConsecutiveFailures = 0
	tier := e.state.Tier
	e.mu.Unlock()
	s.queues[tier].push(id)
	s.log.Info("instrument resumed",
		logger.String("instrument", id), logger.String("tier", string(tier)))
	return nil
}

// UpdateStatus moves an instrument through its lifecycle, re-tiering it
// when the status implies a different cadence. Entering the listed
// stage stamps ListedAt so the retention sweep can eventually drop it.
func (s *Scheduler) UpdateStatus(id string, status models.InstrumentStatus) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	prev := e.inst.Status
	e.inst.Status = status
	if status == models.StatusListed && e.inst.ListedAt.IsZero() {
		e.inst.ListedAt = time.Now()
	}
	oldTier := e.state.Tier
	newTier := models.TierForStatus(status)
	if newTier != oldTier {
		e.state.Tier = newTier
		e.state.Interval = s.cfg.Tiers[newTier].Interval
	}
	e.mu.Unlock()

	if newTier != oldTier {
		s.queues[newTier].push(id)
	}
	s.log.Info("instrument status updated",
		logger.String("instrument", id),
		logger.String("from", string(prev)),
		logger.String("to", string(status)),
		logger.String("tier", string(newTier)))
	return nil
}

// Status returns the operational view of the whole universe, sorted by
// instrument ID for stable output.
func (s *Scheduler) Status() []TrackingStatus {
	var out []TrackingStatus
	s.entries.Range(func(_, v any) bool {
		out = append(out, snapshot(v.(*entry), s.cfg.RetryCeiling))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument.ID < out[j].Instrument.ID })
	return out
}

// InstrumentStatus returns the operational view of one instrument.
func (s *Scheduler) InstrumentStatus(id string) (TrackingStatus, error) {
	e, err := s.entry(id)
	if err != nil {
		return TrackingStatus{}, err
	}
	return snapshot(e, s.cfg.RetryCeiling), nil
}

// Instrument returns the canonical copy of a tracked instrument.
func (s *Scheduler) Instrument(id string) (models.TrackedInstrument, error) {
	e, err := s.entry(id)
	if err != nil {
		return models.TrackedInstrument{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inst, nil
}

func snapshot(e *entry, ceiling int) TrackingStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return TrackingStatus{
		Instrument:          e.inst,
		Tier:                e.state.Tier,
		Paused:              e.state.Paused,
		Degraded:            e.state.Paused && e.state.ConsecutiveFailures >= ceiling,
		ConsecutiveFailures: e.state.ConsecutiveFailures,
		LastTracked:         e.state.LastTracked,
		Baseline:            e.state.Baseline,
		Targets:             e.state.Targets,
	}
}

func (s *Scheduler) entry(id string) (*entry, error) {
	v, ok := s.entries.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotTracked, id)
	}
	return v.(*entry), nil
}

func (s *Scheduler) count() int {
	n := 0
	s.entries.Range(func(_, _ any) bool { n++; return true })
	return n
}

func (s *Scheduler) newState(tier models.Tier) *models.TrackingState {
	return &models.TrackingState{
		Tier:         tier,
		Interval:     s.cfg.Tiers[tier].Interval,
		ShortWindow:  models.NewTrendWindow(shortWindowSize),
		MediumWindow: models.NewTrendWindow(mediumWindowSize),
		LongWindow:   models.NewTrendWindow(longWindowSize),
		VolumeWindow: models.NewTrendWindow(volumeWindowSize),
		RecentAlerts: models.NewAlertLog(s.cfg.DedupWindow, dedupLogSize),
	}
}

// runTier drives one tier's cadence: each tick pops a bounded batch and
// dispatches it with bounded parallelism and a pacing delay between
// launches so source rate limits see a smooth request shape.
func (s *Scheduler) runTier(tier models.Tier, tc config.TierConfig) {
	defer s.wg.Done()
	ticker := time.NewTicker(tc.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(tier, tc)
		}
	}
}

func (s *Scheduler) tick(tier models.Tier, tc config.TierConfig) {
	batch := s.queues[tier].popN(tc.BatchSize)
	if len(batch) == 0 {
		return
	}

	sem := make(chan struct{}, tc.Parallelism)
	var wg sync.WaitGroup
	for _, id := range batch {
		select {
		case <-s.stopCh:
			wg.Wait()
			return
		default:
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			s.dispatch(tier, id)
		}(id)
		if s.cfg.PacingDelay > 0 {
			time.Sleep(s.cfg.PacingDelay)
		}
	}
	wg.Wait()
}

// dispatch runs one cycle for one instrument and decides its fate:
// requeue on success, requeue on failure below the ceiling, pause at
// the ceiling. Untracked, paused, and re-tiered instruments fall out
// here without running.
func (s *Scheduler) dispatch(tier models.Tier, id string) {
	v, ok := s.entries.Load(id)
	if !ok {
		return // untracked since enqueue
	}
	e := v.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Paused {
		return
	}
	if e.state.Tier != tier {
		// moved tiers while queued; the new tier's queue owns it now
		return
	}

	// the cycle runs under the entry lock so its writes to the tracking
	// state never interleave with snapshots or the sweep
	_, err := s.runner.Run(context.Background(), e.inst, e.state)

	if err != nil {
		e.state.ConsecutiveFailures++
		failures := e.state.ConsecutiveFailures
		if failures >= s.cfg.RetryCeiling {
			e.state.Paused = true
			s.log.Error("instrument paused after repeated failures",
				logger.String("instrument", id),
				logger.Int("failures", failures),
				logger.Error(err))
			return
		}
		s.log.Warn("tracking cycle failed",
			logger.String("instrument", id),
			logger.Int("failures", failures),
			logger.Error(err))
		s.queues[tier].push(id)
		return
	}
	e.state.ConsecutiveFailures = 0
	s.queues[e.state.Tier].push(id)
}

// runSweep periodically promotes stale instruments to the high tier for
// an immediate catch-up poll and retires listed instruments past the
// retention window.
func (s *Scheduler) runSweep() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *Scheduler) sweep(now time.Time) {
	var retire []string
	s.entries.Range(func(k, v any) bool {
		id := k.(string)
		e := v.(*entry)

		e.mu.Lock()
		stale := !e.state.Paused &&
			!e.state.LastTracked.IsZero() &&
			now.Sub(e.state.LastTracked) > s.cfg.StaleAfter &&
			e.state.Tier != models.TierHigh
		if stale {
			e.state.Tier = models.TierHigh
			e.state.Interval = s.cfg.Tiers[models.TierHigh].Interval
		}
		expired := s.cfg.Retention > 0 &&
			e.inst.Status == models.StatusListed &&
			!e.inst.ListedAt.IsZero() &&
			now.Sub(e.inst.ListedAt) > s.cfg.Retention
		e.mu.Unlock()

		if stale {
			s.queues[models.TierHigh].push(id)
			s.log.Warn("stale instrument promoted",
				logger.String("instrument", id))
		}
		if expired {
			retire = append(retire, id)
		}
		return true
	})

	for _, id := range retire {
		if err := s.Untrack(id); err == nil {
			s.log.Info("listed instrument retired",
				logger.String("instrument", id))
		}
	}
}
