package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"GreyPulse/internal/domain/models"
	"GreyPulse/pkg/config"
	"GreyPulse/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "fatal", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func TestCloseUnblocksIdleFeed(t *testing.T) {
	connected := make(chan struct{}, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		select {
		case connected <- struct{}{}:
		default:
		}
		// hold the connection open without ever sending a frame
		_, _, _ = conn.ReadMessage()
		_ = conn.Close()
	}))
	defer srv.Close()

	cfg := config.SourceConfig{
		Name:        "feed",
		URL:         "ws" + strings.TrimPrefix(srv.URL, "http"),
		Timeout:     2 * time.Second,
		MaxQuoteAge: time.Minute,
	}
	s := NewStreamSource(cfg, testLogger(t))

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatalf("feed never connected")
	}

	done := make(chan struct{})
	go func() {
		_ = s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("close hung on an idle connection")
	}
}

func TestFetchServesCachedQuoteUntilStale(t *testing.T) {
	s := &StreamSource{
		cfg:    config.SourceConfig{Name: "feed", MaxQuoteAge: 50 * time.Millisecond},
		log:    testLogger(t),
		quotes: make(map[string]cachedQuote),
	}
	s.store(feedQuote{Symbol: "ACME", Premium: 42.5, Volume: 10, Confidence: 0.9})

	inst := models.TrackedInstrument{ID: "ipo-1", Symbol: "ACME"}
	r, err := s.Fetch(context.Background(), inst)
	if err != nil || r.Value != 42.5 {
		t.Fatalf("fetch = %+v/%v, want cached 42.5", r, err)
	}

	time.Sleep(60 * time.Millisecond)
	if _, err := s.Fetch(context.Background(), inst); !errors.Is(err, ErrStaleQuote) {
		t.Fatalf("stale fetch error = %v, want ErrStaleQuote", err)
	}
}
