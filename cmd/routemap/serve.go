package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/theoremus-urban-solutions/routemap"
	"github.com/theoremus-urban-solutions/routemap/api"
	"github.com/theoremus-urban-solutions/routemap/config"
	"github.com/theoremus-urban-solutions/routemap/history"
	"github.com/theoremus-urban-solutions/routemap/ingest"
)

func newServeCmd(g *globals) *cobra.Command {
	o := &overrides{}
	var record bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the live map view and its control API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := g.setup(o)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return runServe(cmd.Context(), g, cfg, record, log)
		},
	}
	o.addServerFlags(cmd.Flags())
	o.addMapFlags(cmd.Flags())
	o.addSourceFlags(cmd.Flags())
	o.addHistoryFlags(cmd.Flags())
	o.addPlaybackFlags(cmd.Flags())
	cmd.Flags().BoolVar(&record, "record", false, "archive every received batch in the history database")
	return cmd
}

func runServe(ctx context.Context, g *globals, cfg config.AppConfig, record bool, log *zap.Logger) error {
	view, err := routemap.NewView(cfg, routemap.WithLogger(log))
	if err != nil {
		return err
	}
	defer view.Close()

	var store *history.Store
	if record {
		if store, err = openHistory(ctx, cfg, log); err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
	}
	sinkFor := func(source string) ingest.Sink {
		if store == nil {
			return view
		}
		return ingest.Tee(view, history.NewRecorder(store, source))
	}

	sources, cleanup, err := buildSources(cfg, g.feed, log)
	if err != nil {
		return err
	}
	defer cleanup()

	eg, ctx := errgroup.WithContext(ctx)
	runSources(ctx, eg, sources, sinkFor, log)

	srv := api.NewServer(api.Deps{
		Clock:             view.Clock(),
		Sink:              sinkFor("api"),
		Renderer:          view.Surface(),
		VehicleMonitoring: view.VehicleMonitoring,
		CORSOrigins:       cfg.Server.CORSOrigins,
		Logger:            log,
	})
	eg.Go(func() error {
		return routemap.Serve(ctx, routemap.NewHTTPServer(cfg.Server.Port, srv.Handler()), nil, log)
	})

	if path := g.configPath(); path != "" {
		eg.Go(func() error {
			return config.Watch(ctx, path, log, func(c config.AppConfig) {
				if err := view.ApplyPlayback(c.Playback); err != nil {
					log.Warn("reloaded playback settings rejected", zap.Error(err))
				}
			})
		})
	}
	return eg.Wait()
}
