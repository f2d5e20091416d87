// Package redissrc feeds JSON records published on a Redis pub/sub channel into an ingest.Sink.
package redissrc

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/theoremus-urban-solutions/routemap/ingest"
)

type Source struct {
	client  *redis.Client
	channel string
	log     *zap.Logger
}

type Option func(*Source)

func WithLogger(l *zap.Logger) Option { return func(s *Source) { s.log = l } }

func New(client *redis.Client, channel string, opts ...Option) *Source {
	s := &Source{client: client, channel: channel, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.Named("redis").With(zap.String("channel", channel))
	return s
}

// NewClient creates a client for addr
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func (s *Source) Name() string { return "redis:" + s.channel }

// Run consumes the channel until ctx is done. Undecodable payloads are logged and dropped.
func (s *Source) Run(ctx context.Context, sink ingest.Sink) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer func() { _ = pubsub.Close() }()

	// wait for the subscription confirmation so publish errors surface here
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	s.log.Info("subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handle(msg.Payload, sink)
		}
	}
}

// Publish sends records to channel as one JSON array
func Publish(ctx context.Context, client *redis.Client, channel string, records []ingest.Record) error {
	data, err := ingest.EncodeJSON(records)
	if err != nil {
		return err
	}
	return client.Publish(ctx, channel, data).Err()
}

func (s *Source) handle(payload string, sink ingest.Sink) {
	records, err := ingest.DecodeJSON([]byte(payload))
	if err != nil {
		s.log.Error("error unmarshalling data", zap.Error(err))
		return
	}
	if len(records) == 0 {
		return
	}
	res := sink.AddDataPoints(records)
	s.log.Debug("received data", zap.Int("accepted", res.Accepted), zap.Int("stale", res.Stale))
}
