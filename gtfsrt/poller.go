package gtfsrt

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/theoremus-urban-solutions/routemap/ingest"
	"github.com/theoremus-urban-solutions/routemap/internal/timeutil"
)

// DefaultInterval is the poll period when none is configured
const DefaultInterval = 30 * time.Second

// Poller periodically fetches a VehiclePositions feed and forwards it to a sink
type Poller struct {
	name     string
	url      string
	interval time.Duration
	client   *Client
	clock    timeutil.Clock
	log      *zap.Logger
}

// PollerOption configures a Poller
type PollerOption func(*Poller)

func WithInterval(d time.Duration) PollerOption { return func(p *Poller) { p.interval = d } }
func WithClient(c *Client) PollerOption         { return func(p *Poller) { p.client = c } }
func WithClock(c timeutil.Clock) PollerOption   { return func(p *Poller) { p.clock = c } }
func WithLogger(l *zap.Logger) PollerOption     { return func(p *Poller) { p.log = l } }

// NewPoller creates a poller for the feed at url
func NewPoller(name, url string, opts ...PollerOption) *Poller {
	p := &Poller{
		name:     name,
		url:      url,
		interval: DefaultInterval,
		clock:    timeutil.RealClock{},
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.client == nil {
		p.client = NewClient(0)
	}
	p.log = p.log.Named("gtfsrt").With(zap.String("feed", name))
	return p
}

func (p *Poller) Name() string { return p.name }

// Run polls immediately and then once per interval until ctx is done.
// Fetch and decode errors are logged and do not stop the poller.
func (p *Poller) Run(ctx context.Context, sink ingest.Sink) error {
	p.poll(ctx, sink)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			p.poll(ctx, sink)
		}
	}
}

// Once fetches and forwards a single snapshot
func (p *Poller) Once(ctx context.Context, sink ingest.Sink) (ingest.BatchResult, error) {
	data, err := p.client.Fetch(ctx, p.url)
	if err != nil {
		return ingest.BatchResult{}, err
	}
	records, err := DecodeVehiclePositions(data)
	if err != nil {
		return ingest.BatchResult{}, err
	}
	return sink.AddDataPoints(records), nil
}

func (p *Poller) poll(ctx context.Context, sink ingest.Sink) {
	res, err := p.Once(ctx, sink)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn("poll failed", zap.Error(err))
		}
		return
	}
	p.log.Debug("poll done",
		zap.Int("accepted", res.Accepted),
		zap.Int("stale", res.Stale),
		zap.Int("rejected", res.Rejected))
}
