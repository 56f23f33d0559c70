package models

import "time"

// SourceReading is a single raw observation from one external source.
// Ephemeral: produced by one fetch, consumed by the aggregator, never stored.
type SourceReading struct {
	Source     string
	Value      float64
	Volume     float64
	Bid        float64
	Ask        float64
	Confidence float64
	Latency    time.Duration
	Timestamp  time.Time
}

// ReliabilityRecord tracks observed trust for one (instrument, source) pair.
// Weight stays in [0,1] and is blended 70/30 toward the observed success ratio.
type ReliabilityRecord struct {
	Successes  int64
	Failures   int64
	AvgLatency time.Duration
	Weight     float64
	UpdatedAt  time.Time
}

// AggregatedReading is the consensus produced by one successful tracking
// cycle. This is the unit that gets persisted and broadcast.
type AggregatedReading struct {
	InstrumentID string    `json:"instrument_id"`
	Symbol       string    `json:"symbol"`
	Value        float64   `json:"value"`
	PctOfRef     float64   `json:"pct_of_ref"`
	Volume       float64   `json:"volume"`
	Bid          float64   `json:"bid"`
	Ask          float64   `json:"ask"`
	Mid          float64   `json:"mid"`
	Spread       float64   `json:"spread"`
	Confidence   float64   `json:"confidence"`
	SourceCount  int       `json:"source_count"`
	Sources      []string  `json:"sources"`
	Quality      int       `json:"quality"`
	Grade        string    `json:"grade"`
	Timestamp    time.Time `json:"timestamp"`
}
