package repository

import (
	"context"

	"GreyPulse/internal/domain/models"
)

// SourceClient obtains one reading of the tracked quantity from one
// external source. Implementations must honor their configured timeout and
// return an error on failure; one source failing never fails the cycle.
type SourceClient interface {
	Name() string
	Fetch(ctx context.Context, inst models.TrackedInstrument) (*models.SourceReading, error)
	Close() error
}

// ReadingStore is the external append-only persistence collaborator.
type ReadingStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	AppendReading(ctx context.Context, r *models.AggregatedReading) error
	// LatestReading returns nil without error when no reading exists.
	LatestReading(ctx context.Context, instrumentID string) (*models.AggregatedReading, error)
	// RecentReadings returns up to count readings ordered oldest first.
	RecentReadings(ctx context.Context, instrumentID string, count int) ([]*models.AggregatedReading, error)
	Health(ctx context.Context) error
	Close() error
}

// Broadcaster is the external publish/subscribe fan-out collaborator.
// Delivery is at-least-once; the engine never waits for subscribers.
type Broadcaster interface {
	PublishReading(ctx context.Context, er *models.EnrichedReading) error
	PublishAlert(ctx context.Context, a *models.Alert) error
	Close() error
}

// Metrics records operational counters and gauges.
type Metrics interface {
	RecordCycle(instrumentID string, success bool)
	RecordSourceFetch(source, outcome string)
	RecordConsensus(symbol string, value float64)
	RecordAlert(kind string)
	RecordLatency(op string, seconds float64)
}
