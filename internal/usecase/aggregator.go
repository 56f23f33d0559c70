package usecase

import (
	"errors"
	"time"

	"GreyPulse/internal/domain/models"
	"GreyPulse/pkg/config"
)

// ErrNoSources means zero sources returned successfully; the cycle fails
// rather than producing a zero-value reading.
var ErrNoSources = errors.New("aggregate: no successful sources")

// ReliabilityWeights supplies the current per-(instrument, source) trust
// score. Satisfied by reliability.Tracker.
type ReliabilityWeights interface {
	Weight(instrumentID, source string) float64
}

// Aggregator turns N independent source readings into one consensus
// reading with a quality score.
type Aggregator struct {
	configured map[string]float64 // source name -> configured weight
	rel        ReliabilityWeights
}

func NewAggregator(srcCfgs []config.SourceConfig, rel ReliabilityWeights) *Aggregator {
	configured := make(map[string]float64, len(srcCfgs))
	for _, sc := range srcCfgs {
		configured[sc.Name] = sc.Weight
	}
	return &Aggregator{configured: configured, rel: rel}
}

// Aggregate combines successful readings into a weighted consensus.
// Per-source weight = configured weight x reliability weight x reading
// confidence; the consensus is the weighted mean, so it always lies within
// the contributing values.
func (a *Aggregator) Aggregate(inst models.TrackedInstrument, readings []*models.SourceReading, now time.Time) (*models.AggregatedReading, error) {
	contributing := make([]*models.SourceReading, 0, len(readings))
	for _, r := range readings {
		if r != nil {
			contributing = append(contributing, r)
		}
	}
	if len(contributing) == 0 {
		return nil, ErrNoSources
	}

	var (
		weightedSum float64
		totalWeight float64
		volume      float64
		bidSum      float64
		askSum      float64
		quoted      int
		confSum     float64
		sources     = make([]string, 0, len(contributing))
	)

	for _, r := range contributing {
		cw, ok := a.configured[r.Source]
		if !ok {
			cw = 1.0
		}
		w := cw * a.rel.Weight(inst.ID, r.Source) * r.Confidence
		weightedSum += r.Value * w
		totalWeight += w

		volume += r.Volume
		confSum += r.Confidence
		if r.Bid > 0 && r.Ask > 0 {
			bidSum += r.Bid
			askSum += r.Ask
			quoted++
		}
		sources = append(sources, r.Source)
	}

	var value float64
	if totalWeight > 0 {
		value = weightedSum / totalWeight
	} else {
		// all weights collapsed to zero: fall back to a plain mean
		for _, r := range contributing {
			value += r.Value
		}
		value /= float64(len(contributing))
	}

	var bid, ask, mid, spread float64
	if quoted > 0 {
		bid = bidSum / float64(quoted)
		ask = askSum / float64(quoted)
		mid = (bid + ask) / 2
		spread = ask - bid
	}

	avgConf := confSum / float64(len(contributing))

	var pctOfRef float64
	if ref := inst.RefPrice(); ref > 0 {
		pctOfRef = value / ref * 100
	}

	quality := qualityScore(len(contributing), avgConf, spread, volume)

	return &models.AggregatedReading{
		InstrumentID: inst.ID,
		Symbol:       inst.Symbol,
		Value:        value,
		PctOfRef:     pctOfRef,
		Volume:       volume,
		Bid:          bid,
		Ask:          ask,
		Mid:          mid,
		Spread:       spread,
		Confidence:   avgConf,
		SourceCount:  len(contributing),
		Sources:      sources,
		Quality:      quality,
		Grade:        qualityGrade(quality),
		Timestamp:    now,
	}, nil
}

// qualityScore starts at 100 and penalizes thin sourcing, weak confidence,
// wide spreads, and low volume. Clamped to [0, 100].
func qualityScore(sourceCount int, avgConf, spread, volume float64) int {
	score := 100

	switch sourceCount {
	case 1:
		score -= 20
	case 2:
		score -= 10
	}

	if avgConf < 0.9 {
		switch {
		case avgConf < 0.6:
			score -= 15
		case avgConf < 0.75:
			score -= 10
		default:
			score -= 5
		}
	}

	if spread > 5 {
		if spread > 10 {
			score -= 15
		} else {
			score -= 10
		}
	}

	if volume < 500 {
		if volume < 100 {
			score -= 20
		} else {
			score -= 10
		}
	}

	if score < 0 {
		score = 0
	}
	return score
}

func qualityGrade(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}
