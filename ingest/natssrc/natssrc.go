// Package natssrc feeds JSON records published on a NATS subject into an ingest.Sink.
package natssrc

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/theoremus-urban-solutions/routemap/ingest"
)

const defaultBuffer = 256

type Source struct {
	conn    *nats.Conn
	subject string
	buffer  int
	log     *zap.Logger
}

type Option func(*Source)

func WithLogger(l *zap.Logger) Option { return func(s *Source) { s.log = l } }

// WithBuffer sets the number of messages held while the sink is busy
func WithBuffer(n int) Option { return func(s *Source) { s.buffer = n } }

// New subscribes to subject on an existing connection once Run is called
func New(conn *nats.Conn, subject string, opts ...Option) *Source {
	s := &Source{conn: conn, subject: subject, buffer: defaultBuffer, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	if s.buffer <= 0 {
		s.buffer = defaultBuffer
	}
	s.log = s.log.Named("nats").With(zap.String("subject", subject))
	return s
}

// Connect dials url with the given client name
func Connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url, nats.Name(name), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return conn, nil
}

func (s *Source) Name() string { return "nats:" + s.subject }

// Run consumes messages until ctx is done. Undecodable messages are logged and dropped.
func (s *Source) Run(ctx context.Context, sink ingest.Sink) error {
	msgs := make(chan *nats.Msg, s.buffer)
	sub, err := s.conn.ChanSubscribe(s.subject, msgs)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	defer func() {
		if sub.IsValid() {
			if err := sub.Unsubscribe(); err != nil {
				s.log.Debug("error unsubscribing", zap.Error(err))
			}
		}
	}()
	s.log.Info("subscribed")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-msgs:
			s.handle(msg.Data, sink)
		}
	}
}

func (s *Source) handle(data []byte, sink ingest.Sink) {
	records, err := ingest.DecodeJSON(data)
	if err != nil {
		s.log.Error("error unmarshalling data", zap.Error(err))
		return
	}
	if len(records) == 0 {
		return
	}
	res := sink.AddDataPoints(records)
	s.log.Debug("received data",
		zap.Int("accepted", res.Accepted),
		zap.Int("stale", res.Stale),
		zap.Int("rejected", res.Rejected))
}
