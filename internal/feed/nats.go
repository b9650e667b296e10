package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/N129BZ/stratuxmap/internal/logger"
	"github.com/N129BZ/stratuxmap/internal/storage"
	"github.com/N129BZ/stratuxmap/internal/stratux"
)

// ConnectNATS dials url with reconnects that never give up.
func ConnectNATS(url, name string, reconnectWait time.Duration, log *logger.Logger) (*nats.Conn, error) {
	if log == nil {
		log = logger.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", logger.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", logger.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return nc, nil
}

// NATSSource reads envelopes published on a subject, bare or wrapped.
type NATSSource struct {
	nc      *nats.Conn
	subject string
	log     *logger.Logger
}

// NewNATSSource creates a source subscribed to subject on nc.
func NewNATSSource(nc *nats.Conn, subject string, log *logger.Logger) *NATSSource {
	if log == nil {
		log = logger.NewNop()
	}
	return &NATSSource{nc: nc, subject: subject, log: log.Named("nats")}
}

func (s *NATSSource) Name() string { return "nats:" + s.subject }

func (s *NATSSource) Run(ctx context.Context, out chan<- *stratux.Envelope) error {
	msgs := make(chan *nats.Msg, 256)
	sub, err := s.nc.ChanSubscribe(s.subject, msgs)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	s.log.Info("subscribed", logger.String("subject", s.subject))

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-msgs:
			env, err := stratux.DecodeEnvelope(msg.Data)
			if err != nil {
				s.log.Debug("skipping undecodable message",
					logger.String("subject", msg.Subject), logger.Error(err))
				continue
			}
			select {
			case out <- env:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Publisher is the part of a NATS connection NATSSink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes each record to <prefix>.<type>.<station>.
type NATSSink struct {
	pub    Publisher
	prefix string
}

// NewNATSSink creates a sink publishing under prefix.
func NewNATSSink(pub Publisher, prefix string) *NATSSink {
	return &NATSSink{pub: pub, prefix: strings.TrimSuffix(prefix, ".")}
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Write(_ context.Context, r storage.Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", r.Key(), err)
	}
	return s.pub.Publish(s.Subject(r), data)
}

// Subject returns the subject r is published on. Dots in the type tag
// (TAF.AMD) become underscores so the station stays the last token.
func (s *NATSSink) Subject(r storage.Record) string {
	typ := strings.ReplaceAll(r.Type, ".", "_")
	station := r.Station
	if station == "" {
		station = "unknown"
	}
	return s.prefix + "." + typ + "." + station
}
