package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/N129BZ/stratuxmap/internal/logger"
	"github.com/N129BZ/stratuxmap/internal/stratux"
)

// WebsocketConfig configures a WebsocketSource.
type WebsocketConfig struct {
	URL        string        // Stratux weather socket, e.g. ws://192.168.10.1/weather
	MinBackoff time.Duration // First reconnect delay
	MaxBackoff time.Duration // Reconnect delay ceiling
}

// WebsocketSource reads envelopes from the Stratux /weather socket,
// reconnecting with exponential backoff when the connection drops.
type WebsocketSource struct {
	cfg    WebsocketConfig
	dialer *websocket.Dialer
	log    *logger.Logger
	clock  clockwork.Clock
}

// NewWebsocketSource creates a source for cfg.URL.
func NewWebsocketSource(cfg WebsocketConfig, log *logger.Logger) *WebsocketSource {
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = cfg.MinBackoff
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &WebsocketSource{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:    log.Named("websocket"),
		clock:  clockwork.NewRealClock(),
	}
}

func (s *WebsocketSource) Name() string { return "stratux-websocket" }

func (s *WebsocketSource) Run(ctx context.Context, out chan<- *stratux.Envelope) error {
	backoff := s.cfg.MinBackoff

	for {
		received, err := s.session(ctx, out)
		if ctx.Err() != nil {
			return nil
		}
		if received > 0 {
			backoff = s.cfg.MinBackoff
		}
		s.log.Warn("weather socket disconnected",
			logger.String("url", s.cfg.URL),
			logger.Int("received", received),
			logger.Duration("retry_in", backoff),
			logger.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-s.clock.After(backoff):
		}
		backoff = nextBackoff(backoff, s.cfg.MaxBackoff)
	}
}

// session runs one connection until it fails, returning how many
// envelopes it delivered.
func (s *WebsocketSource) session(ctx context.Context, out chan<- *stratux.Envelope) (int, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}
	defer conn.Close()

	s.log.Info("connected to weather socket", logger.String("url", s.cfg.URL))

	// Unblock ReadMessage when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	received := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return received, fmt.Errorf("read: %w", err)
		}

		env, err := stratux.DecodeEnvelope(data)
		if err != nil {
			s.log.Debug("skipping undecodable frame", logger.Error(err))
			continue
		}

		select {
		case out <- env:
			received++
		case <-ctx.Done():
			return received, ctx.Err()
		}
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
