package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"GreyPulse/internal/domain/models"
	"GreyPulse/pkg/config"
	"GreyPulse/pkg/logger"
)

// feedQuote is one frame from a dealer feed.
type feedQuote struct {
	Symbol     string  `json:"symbol"`
	Premium    float64 `json:"premium"`
	Volume     float64 `json:"volume"`
	Bid        float64 `json:"bid"`
	Ask        float64 `json:"ask"`
	Confidence float64 `json:"confidence"`
	Timestamp  int64   `json:"ts"` // ms
}

type cachedQuote struct {
	reading    models.SourceReading
	receivedAt time.Time
}

// StreamSource keeps the latest quote per symbol from a dealer WebSocket
// feed and serves Fetch from that cache. A fetch fails when the cached
// quote is older than the configured max age, so a dead feed degrades into
// ordinary source failures instead of serving frozen data.
type StreamSource struct {
	cfg config.SourceConfig
	log *logger.Logger

	mu     sync.RWMutex
	quotes map[string]cachedQuote

	cancel context.CancelFunc
	done   chan struct{}
}

// NewStreamSource creates and starts a stream-backed source client.
func NewStreamSource(cfg config.SourceConfig, log *logger.Logger) *StreamSource {
	ctx, cancel := context.WithCancel(context.Background())
	s := &StreamSource{
		cfg:    cfg,
		log:    log,
		quotes: make(map[string]cachedQuote),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

func (s *StreamSource) Name() string { return s.cfg.Name }

// Fetch serves the last received quote for the instrument's symbol.
func (s *StreamSource) Fetch(_ context.Context, inst models.TrackedInstrument) (*models.SourceReading, error) {
	s.mu.RLock()
	q, ok := s.quotes[inst.Symbol]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("source %s: no quote for %s", s.cfg.Name, inst.Symbol)
	}
	if age := time.Since(q.receivedAt); age > s.cfg.MaxQuoteAge {
		return nil, fmt.Errorf("source %s: quote for %s is %s old: %w", s.cfg.Name, inst.Symbol, age.Round(time.Second), ErrStaleQuote)
	}
	r := q.reading
	return &r, nil
}

// run maintains the feed connection, reconnecting with jittered backoff.
func (s *StreamSource) run(ctx context.Context) {
	defer close(s.done)
	b := &backoff.Backoff{
		Min:    time.Second,
		Max:    time.Minute,
		Jitter: true,
	}
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := s.connect(ctx)
		if err != nil {
			s.log.Warn("feed connect failed",
				logger.String("source", s.cfg.Name), logger.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(b.Duration()):
			}
			continue
		}
		b.Reset()
		s.log.Info("feed connected", logger.String("source", s.cfg.Name))

		s.readLoop(ctx, conn)
		_ = conn.Close()
	}
}

func (s *StreamSource) connect(ctx context.Context) (*websocket.Conn, error) {
	u := s.cfg.URL
	if s.cfg.APIKey != "" {
		u = fmt.Sprintf("%s?token=%s", u, s.cfg.APIKey)
	}
	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.cfg.Name, err)
	}
	return conn, nil
}

func (s *StreamSource) readLoop(ctx context.Context, conn *websocket.Conn) {
	// ReadMessage blocks until a frame arrives; close the connection on
	// cancellation so an idle feed cannot wedge shutdown
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn("feed read failed",
				logger.String("source", s.cfg.Name), logger.Error(err))
			return
		}
		var q feedQuote
		if err := json.Unmarshal(raw, &q); err != nil || q.Symbol == "" {
			continue // ignore non-quote frames
		}
		s.store(q)
	}
}

func (s *StreamSource) store(q feedQuote) {
	ts := time.UnixMilli(q.Timestamp)
	if q.Timestamp == 0 {
		ts = time.Now()
	}
	conf := q.Confidence
	if conf <= 0 || conf > 1 {
		conf = 0.5
	}
	s.mu.Lock()
	s.quotes[q.Symbol] = cachedQuote{
		reading: models.SourceReading{
			Source:     s.cfg.Name,
			Value:      q.Premium,
			Volume:     q.Volume,
			Bid:        q.Bid,
			Ask:        q.Ask,
			Confidence: conf,
			Timestamp:  ts,
		},
		receivedAt: time.Now(),
	}
	s.mu.Unlock()
}

// Close stops the feed loop and waits for it to exit.
func (s *StreamSource) Close() error {
	s.cancel()
	<-s.done
	return nil
}
