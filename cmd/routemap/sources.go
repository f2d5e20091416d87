package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/theoremus-urban-solutions/routemap/config"
	"github.com/theoremus-urban-solutions/routemap/gtfsrt"
	"github.com/theoremus-urban-solutions/routemap/history"
	"github.com/theoremus-urban-solutions/routemap/ingest"
	"github.com/theoremus-urban-solutions/routemap/ingest/natssrc"
	"github.com/theoremus-urban-solutions/routemap/ingest/redissrc"
	"github.com/theoremus-urban-solutions/routemap/utils"
)

var errNoHistory = errors.New("history.dsn is not configured")

// feedPollers creates a poller per configured feed, or only for feed when set
func feedPollers(cfg config.AppConfig, feed string, log *zap.Logger) []ingest.Source {
	type named struct {
		name string
		rt   config.GTFSRTConfig
	}
	var feeds []named
	if feed != "" || len(cfg.Feeds) == 0 {
		name, rt := cfg.SelectFeed(feed)
		feeds = append(feeds, named{name, rt})
	} else {
		for _, f := range cfg.Feeds {
			feeds = append(feeds, named{f.Name, f.GTFSRT})
		}
	}

	var out []ingest.Source
	for _, f := range feeds {
		if f.rt.VehiclePositionsURL == "" {
			continue
		}
		out = append(out, gtfsrt.NewPoller(f.name, f.rt.VehiclePositionsURL,
			gtfsrt.WithInterval(time.Duration(f.rt.ReadIntervalMS)*time.Millisecond),
			gtfsrt.WithClient(gtfsrt.NewClient(time.Duration(f.rt.TimeoutMS)*time.Millisecond)),
			gtfsrt.WithLogger(log)))
	}
	return out
}

// buildSources returns every live source enabled by cfg and a func releasing their connections
func buildSources(cfg config.AppConfig, feed string, log *zap.Logger) ([]ingest.Source, func(), error) {
	sources := feedPollers(cfg, feed, log)
	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.NATS.URL != "" {
		conn, err := natssrc.Connect(cfg.NATS.URL, "routemap")
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		closers = append(closers, conn.Close)
		sources = append(sources, natssrc.New(conn, cfg.NATS.Subject, natssrc.WithLogger(log)))
	}
	if cfg.Redis.Addr != "" {
		client := redissrc.NewClient(cfg.Redis.Addr)
		closers = append(closers, func() { _ = client.Close() })
		sources = append(sources, redissrc.New(client, cfg.Redis.Channel, redissrc.WithLogger(log)))
	}
	return sources, cleanup, nil
}

// runSources starts each source in g with the sink chosen by sinkFor
func runSources(ctx context.Context, g *errgroup.Group, sources []ingest.Source, sinkFor func(source string) ingest.Sink, log *zap.Logger) {
	for _, src := range sources {
		g.Go(func() error {
			log.Info("source started", zap.String("source", src.Name()))
			if err := src.Run(ctx, sinkFor(src.Name())); err != nil {
				return fmt.Errorf("%s: %w", src.Name(), err)
			}
			log.Info("source stopped", zap.String("source", src.Name()))
			return nil
		})
	}
}

func openHistory(ctx context.Context, cfg config.AppConfig, log *zap.Logger, opts ...history.Option) (*history.Store, error) {
	if cfg.History.DSN == "" {
		return nil, errNoHistory
	}
	return history.Open(ctx, cfg.History.Driver, cfg.History.DSN, append([]history.Option{history.WithLogger(log)}, opts...)...)
}

// parseInstant accepts epoch seconds or RFC3339; empty means unset
func parseInstant(s string) (float64, bool, error) {
	if s == "" {
		return 0, false, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, false, fmt.Errorf("invalid time %q: want epoch seconds or RFC3339", s)
	}
	return utils.EpochFromTime(t), true, nil
}
