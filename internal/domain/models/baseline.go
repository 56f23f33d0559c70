package models

import "time"

// Baseline is a rolling statistical summary of recent consensus readings,
// recomputed after every successful cycle.
type Baseline struct {
	Average    float64   `json:"average"`
	Volatility float64   `json:"volatility"`
	Trend      Direction `json:"trend"`
	AvgVolume  float64   `json:"avg_volume"`
	Low        float64   `json:"low"`
	High       float64   `json:"high"`
	Samples    int       `json:"samples"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PriceTargets are derived bands around the baseline.
type PriceTargets struct {
	Conservative float64 `json:"conservative"`
	Realistic    float64 `json:"realistic"`
	Optimistic   float64 `json:"optimistic"`
	Support      float64 `json:"support"`
	Resistance   float64 `json:"resistance"`
}
