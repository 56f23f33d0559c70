package reliability

import (
	"sync"
	"time"

	"GreyPulse/internal/domain/models"
)

// blend is the EMA factor: new weight = blend*old + (1-blend)*observed.
const blend = 0.7

// record is one (instrument, source) reliability entry with its own lock.
type record struct {
	mu         sync.Mutex
	successes  int64
	failures   int64
	avgLatency time.Duration
	weight     float64
	updatedAt  time.Time
}

// Tracker maintains per-(instrument, source) exponential-moving trust
// scores. Entries are partitioned so concurrent cycles for different
// instruments never contend on one lock.
type Tracker struct {
	m      sync.Map // "instrument|source" -> *record
	priors map[string]float64
}

// New creates a tracker. priors maps source name to its configured initial
// reliability weight; unknown sources start at 0.8.
func New(priors map[string]float64) *Tracker {
	if priors == nil {
		priors = make(map[string]float64)
	}
	return &Tracker{priors: priors}
}

func (t *Tracker) prior(source string) float64 {
	if p, ok := t.priors[source]; ok {
		return p
	}
	return 0.8
}

func (t *Tracker) entry(instrumentID, source string) *record {
	key := instrumentID + "|" + source
	if v, ok := t.m.Load(key); ok {
		return v.(*record)
	}
	v, _ := t.m.LoadOrStore(key, &record{weight: t.prior(source)})
	return v.(*record)
}

// RecordSuccess updates counters and latency after a successful fetch.
func (t *Tracker) RecordSuccess(instrumentID, source string, latency time.Duration) {
	r := t.entry(instrumentID, source)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes++
	if r.avgLatency == 0 {
		r.avgLatency = latency
	} else {
		r.avgLatency = time.Duration(blend*float64(r.avgLatency) + (1-blend)*float64(latency))
	}
	r.reweigh()
}

// RecordFailure updates counters after a failed or timed-out fetch.
func (t *Tracker) RecordFailure(instrumentID, source string) {
	r := t.entry(instrumentID, source)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
	r.reweigh()
}

// reweigh blends the observed success ratio into the weight. Called with
// the record lock held.
func (r *record) reweigh() {
	total := r.successes + r.failures
	if total == 0 {
		return
	}
	observed := float64(r.successes) / float64(total)
	w := blend*r.weight + (1-blend)*observed
	if w < 0 {
		w = 0
	} else if w > 1 {
		w = 1
	}
	r.weight = w
	r.updatedAt = time.Now()
}

// Weight returns the current reliability weight in [0,1].
func (t *Tracker) Weight(instrumentID, source string) float64 {
	r := t.entry(instrumentID, source)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.weight
}

// Snapshot returns a copy of the record for reporting.
func (t *Tracker) Snapshot(instrumentID, source string) models.ReliabilityRecord {
	r := t.entry(instrumentID, source)
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.ReliabilityRecord{
		Successes:  r.successes,
		Failures:   r.failures,
		AvgLatency: r.avgLatency,
		Weight:     r.weight,
		UpdatedAt:  r.updatedAt,
	}
}

// Forget drops all records for an instrument; called on untrack.
func (t *Tracker) Forget(instrumentID string) {
	prefix := instrumentID + "|"
	t.m.Range(func(k, _ any) bool {
		if key, ok := k.(string); ok && len(key) > len(prefix) && key[:len(prefix)] == prefix {
			t.m.Delete(k)
		}
		return true
	})
}
