package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"GreyPulse/internal/domain/models"
	"GreyPulse/internal/domain/repository"
	"GreyPulse/internal/service/reliability"
	"GreyPulse/internal/services/analytics"
	"GreyPulse/pkg/cache"
	"GreyPulse/pkg/logger"
)

// latestTTL bounds how long a cached consensus may serve as stale fallback.
const latestTTL = 24 * time.Hour

// CycleResult is the outcome of one successful tracking cycle.
type CycleResult struct {
	Reading  *models.AggregatedReading
	Analysis models.Analysis
	Alerts   []models.Alert
}

// CycleRunner executes one tracking cycle for one instrument: fetch all
// sources concurrently, aggregate, enrich, detect, evaluate alerts, then
// persist and broadcast. Persistence and broadcast failures are logged and
// swallowed so in-memory state stays correct for the next cycle.
type CycleRunner struct {
	sources  []repository.SourceClient
	rel      *reliability.Tracker
	agg      *Aggregator
	enricher *analytics.Enricher
	detector *analytics.Detector
	baseline *BaselineCalc
	alerts   *AlertEvaluator
	store    repository.ReadingStore
	cache    cache.Service
	bcast    repository.Broadcaster
	metrics  repository.Metrics
	log      *logger.Logger
}

func NewCycleRunner(
	sources []repository.SourceClient,
	rel *reliability.Tracker,
	agg *Aggregator,
	enricher *analytics.Enricher,
	detector *analytics.Detector,
	baseline *BaselineCalc,
	alerts *AlertEvaluator,
	store repository.ReadingStore,
	cacheSvc cache.Service,
	bcast repository.Broadcaster,
	metrics repository.Metrics,
	log *logger.Logger,
) *CycleRunner {
	return &CycleRunner{
		sources:  sources,
		rel:      rel,
		agg:      agg,
		enricher: enricher,
		detector: detector,
		baseline: baseline,
		alerts:   alerts,
		store:    store,
		cache:    cacheSvc,
		bcast:    bcast,
		metrics:  metrics,
		log:      log,
	}
}

// Run executes one cycle. The caller guarantees exclusive access to st for
// the duration of the call (single-writer invariant).
func (c *CycleRunner) Run(ctx context.Context, inst models.TrackedInstrument, st *models.TrackingState) (*CycleResult, error) {
	start := time.Now()
	now := start

	readings := c.fetchAll(ctx, inst)

	reading, err := c.agg.Aggregate(inst, readings, now)
	if err != nil {
		c.metrics.RecordCycle(inst.ID, false)
		return nil, err
	}

	histValues := st.LongWindow.Values()
	histVolumes := st.VolumeWindow.Values()
	values := append(histValues, reading.Value)
	volumes := append(histVolumes, reading.Volume)

	var prev *models.AggregatedReading
	if len(histValues) > 0 {
		prev = &models.AggregatedReading{Value: histValues[len(histValues)-1]}
	}

	an := c.enricher.Enrich(inst, prev, values, volumes, reading)
	an.Patterns = c.detector.Detect(histValues, histVolumes, reading.Value, reading.Volume)

	alerts := c.alerts.Evaluate(inst, st.Baseline, st.RecentAlerts, reading, &an, now)
	for _, a := range alerts {
		c.metrics.RecordAlert(string(a.Type))
		if a.Severity == models.SeverityHigh {
			if err := c.bcast.PublishAlert(ctx, &a); err != nil {
				c.log.Error("alert publish failed",
					logger.String("instrument", inst.ID),
					logger.String("type", string(a.Type)),
					logger.Error(err))
			}
			continue
		}
		an.Alerts = append(an.Alerts, a)
	}

	c.persistAndBroadcast(ctx, inst, reading, an)

	// state bookkeeping; exclusive access guaranteed by the scheduler
	point := models.TrendPoint{Value: reading.Value, Timestamp: now}
	st.ShortWindow.Push(point)
	st.MediumWindow.Push(point)
	st.LongWindow.Push(point)
	st.VolumeWindow.Push(models.TrendPoint{Value: reading.Volume, Timestamp: now})
	st.Baseline, st.Targets = c.baseline.Compute(values, volumes, now)
	st.LastTracked = now

	c.metrics.RecordCycle(inst.ID, true)
	c.metrics.RecordConsensus(inst.Symbol, reading.Value)
	c.metrics.RecordLatency("tracking_cycle", time.Since(start).Seconds())

	return &CycleResult{Reading: reading, Analysis: an, Alerts: alerts}, nil
}

// fetchAll queries every source concurrently. Each client enforces its own
// timeout, so the slowest source bounds the whole fan-out. Failures update
// the reliability tracker and never propagate.
func (c *CycleRunner) fetchAll(ctx context.Context, inst models.TrackedInstrument) []*models.SourceReading {
	out := make([]*models.SourceReading, len(c.sources))
	var wg sync.WaitGroup
	for i, src := range c.sources {
		wg.Add(1)
		go func(i int, src repository.SourceClient) {
			defer wg.Done()
			start := time.Now()
			r, err := src.Fetch(ctx, inst)
			if err != nil {
				c.rel.RecordFailure(inst.ID, src.Name())
				c.metrics.RecordSourceFetch(src.Name(), "failure")
				c.log.Debug("source fetch failed",
					logger.String("source", src.Name()),
					logger.String("symbol", inst.Symbol),
					logger.Error(err))
				return
			}
			if r.Latency == 0 {
				r.Latency = time.Since(start)
			}
			c.rel.RecordSuccess(inst.ID, src.Name(), r.Latency)
			c.metrics.RecordSourceFetch(src.Name(), "success")
			out[i] = r
		}(i, src)
	}
	wg.Wait()
	return out
}

func (c *CycleRunner) persistAndBroadcast(ctx context.Context, inst models.TrackedInstrument, reading *models.AggregatedReading, an models.Analysis) {
	if err := c.store.AppendReading(ctx, reading); err != nil {
		c.log.Error("reading append failed",
			logger.String("instrument", inst.ID), logger.Error(err))
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, latestKey(inst.ID), reading, latestTTL); err != nil {
			c.log.Warn("latest-reading cache set failed",
				logger.String("instrument", inst.ID), logger.Error(err))
		}
	}

	enriched := &models.EnrichedReading{Reading: *reading, Analysis: an}
	if err := c.bcast.PublishReading(ctx, enriched); err != nil {
		c.log.Error("reading publish failed",
			logger.String("instrument", inst.ID), logger.Error(err))
	}
}

// hydrateDepth matches the long window so a restart refills it completely.
const hydrateDepth = 30

// Hydrate seeds an instrument's windows and baseline from persisted
// history so indicators resume instead of restarting from empty.
func (c *CycleRunner) Hydrate(ctx context.Context, inst models.TrackedInstrument, st *models.TrackingState) {
	history, err := c.store.RecentReadings(ctx, inst.ID, hydrateDepth)
	if err != nil {
		c.log.Warn("history hydrate failed",
			logger.String("instrument", inst.ID), logger.Error(err))
		return
	}
	for _, r := range history {
		point := models.TrendPoint{Value: r.Value, Timestamp: r.Timestamp}
		st.ShortWindow.Push(point)
		st.MediumWindow.Push(point)
		st.LongWindow.Push(point)
		st.VolumeWindow.Push(models.TrendPoint{Value: r.Volume, Timestamp: r.Timestamp})
	}
	st.Baseline, st.Targets = c.baseline.Compute(st.LongWindow.Values(), st.VolumeWindow.Values(), time.Now())
}

// Latest serves the freshest consensus: cache first, store fallback.
// A nil reading with nil error means nothing has been recorded yet.
func (c *CycleRunner) Latest(ctx context.Context, instrumentID string) (*models.AggregatedReading, error) {
	if c.cache != nil {
		var r models.AggregatedReading
		if err := c.cache.Get(ctx, latestKey(instrumentID), &r); err == nil {
			return &r, nil
		}
	}
	r, err := c.store.LatestReading(ctx, instrumentID)
	if err != nil {
		return nil, fmt.Errorf("latest reading: %w", err)
	}
	return r, nil
}

// History returns up to count recent readings, oldest first.
func (c *CycleRunner) History(ctx context.Context, instrumentID string, count int) ([]*models.AggregatedReading, error) {
	return c.store.RecentReadings(ctx, instrumentID, count)
}

func latestKey(instrumentID string) string { return "latest:" + instrumentID }
