package models

import "time"

// InstrumentStatus is the lifecycle stage of a tracked instrument.
type InstrumentStatus string

const (
	StatusUpcoming InstrumentStatus = "upcoming"
	StatusOpen     InstrumentStatus = "open"
	StatusClosed   InstrumentStatus = "closed"
	StatusListed   InstrumentStatus = "listed"
)

// Tier is a polling priority class. Lower tiers poll less often.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// TierForStatus maps lifecycle status to the initial polling tier.
func TierForStatus(s InstrumentStatus) Tier {
	switch s {
	case StatusOpen:
		return TierHigh
	case StatusUpcoming:
		return TierMedium
	default:
		return TierLow
	}
}

// TrackedInstrument identifies one instrument in the tracking universe.
// The scheduler owns the canonical copy; everything else works on a
// per-cycle snapshot.
type TrackedInstrument struct {
	ID         string           `json:"id"`
	Symbol     string           `json:"symbol"`
	Status     InstrumentStatus `json:"status"`
	IssuePrice float64          `json:"issue_price"`
	BandLow    float64          `json:"band_low"`
	BandHigh   float64          `json:"band_high"`
	ListedAt   time.Time        `json:"listed_at,omitempty"`
}

// RefPrice returns the reference price used for percentage metrics.
// Band upper bound when set, issue price otherwise.
func (i TrackedInstrument) RefPrice() float64 {
	if i.BandHigh > 0 {
		return i.BandHigh
	}
	return i.IssuePrice
}
