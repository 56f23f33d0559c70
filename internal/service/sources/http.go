package sources

import (
	"context"
	"fmt"
	"time"

	"GreyPulse/internal/domain/models"
	"GreyPulse/internal/service/ratelimit"
	"GreyPulse/pkg/config"
	xhttp "GreyPulse/pkg/http"
)

// quoteResponse is the dealer quote wire format.
type quoteResponse struct {
	Symbol     string  `json:"symbol"`
	Premium    float64 `json:"premium"`
	Volume     float64 `json:"volume"`
	Bid        float64 `json:"bid"`
	Ask        float64 `json:"ask"`
	Confidence float64 `json:"confidence"`
	Timestamp  int64   `json:"ts"` // unix seconds
}

// HTTPSource fetches one grey-market quote per call from a dealer HTTP API.
type HTTPSource struct {
	cfg     config.SourceConfig
	client  *xhttp.Client
	limiter *ratelimit.Limiter
}

// NewHTTPSource creates an HTTP-backed source client. The configured
// timeout bounds every fetch; the limiter caps request rate per source.
func NewHTTPSource(cfg config.SourceConfig, limiter *ratelimit.Limiter) *HTTPSource {
	return &HTTPSource{
		cfg:     cfg,
		client:  xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		limiter: limiter,
	}
}

func (s *HTTPSource) Name() string { return s.cfg.Name }

// Fetch requests a quote for the instrument's symbol. Timeout and transport
// errors come back as plain errors; the caller records the failure.
func (s *HTTPSource) Fetch(ctx context.Context, inst models.TrackedInstrument) (*models.SourceReading, error) {
	if s.limiter != nil && !s.limiter.Allow(s.cfg.Name, s.cfg.MaxRPS, s.cfg.MaxRPS) {
		return nil, ErrThrottled
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	var q quoteResponse
	headers := map[string]string{}
	if s.cfg.APIKey != "" {
		headers["X-API-Key"] = s.cfg.APIKey
	}
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         s.cfg.URL,
		Headers:     headers,
		QueryParams: map[string][]string{"symbol": {inst.Symbol}},
	}, &q)
	if err != nil {
		return nil, fmt.Errorf("fetch %s from %s: %w", inst.Symbol, s.cfg.Name, err)
	}

	ts := time.Unix(q.Timestamp, 0)
	if q.Timestamp == 0 {
		ts = time.Now()
	}
	conf := q.Confidence
	if conf <= 0 || conf > 1 {
		conf = 0.5
	}

	return &models.SourceReading{
		Source:     s.cfg.Name,
		Value:      q.Premium,
		Volume:     q.Volume,
		Bid:        q.Bid,
		Ask:        q.Ask,
		Confidence: conf,
		Latency:    time.Since(start),
		Timestamp:  ts,
	}, nil
}

func (s *HTTPSource) Close() error { return nil }
