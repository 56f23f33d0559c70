package sources

import (
	"errors"
	"fmt"

	"GreyPulse/internal/domain/repository"
	"GreyPulse/internal/service/ratelimit"
	"GreyPulse/pkg/config"
	"GreyPulse/pkg/logger"
)

// ErrThrottled marks a fetch rejected by the per-source rate limiter.
var ErrThrottled = errors.New("source: rate limited")

// ErrStaleQuote marks a stream source whose cached quote is too old to serve.
var ErrStaleQuote = errors.New("source: cached quote stale")

// Build constructs one SourceClient per configured source. Stream sources
// are started immediately and reconnect on their own.
func Build(cfgs []config.SourceConfig, limiter *ratelimit.Limiter, log *logger.Logger) ([]repository.SourceClient, error) {
	clients := make([]repository.SourceClient, 0, len(cfgs))
	for _, sc := range cfgs {
		switch sc.Kind {
		case "http":
			clients = append(clients, NewHTTPSource(sc, limiter))
		case "stream":
			clients = append(clients, NewStreamSource(sc, log))
		default:
			return nil, fmt.Errorf("unknown source kind %q for %q", sc.Kind, sc.Name)
		}
	}
	return clients, nil
}
