package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/theoremus-urban-solutions/routemap"
	"github.com/theoremus-urban-solutions/routemap/api"
	"github.com/theoremus-urban-solutions/routemap/config"
	"github.com/theoremus-urban-solutions/routemap/history"
)

type replayOptions struct {
	from, to  string
	batchSize int
}

func newReplayCmd(g *globals) *cobra.Command {
	o := &overrides{}
	ro := &replayOptions{}
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Plays archived positions back through the map view and its control API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := g.setup(o)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return runReplay(cmd.Context(), cfg, ro, log)
		},
	}
	o.addServerFlags(cmd.Flags())
	o.addMapFlags(cmd.Flags())
	o.addHistoryFlags(cmd.Flags())
	o.addPlaybackFlags(cmd.Flags())
	cmd.Flags().StringVar(&ro.from, "from", "", "start of the range (epoch seconds or RFC3339); default the oldest position")
	cmd.Flags().StringVar(&ro.to, "to", "", "end of the range; default the newest position")
	cmd.Flags().IntVar(&ro.batchSize, "batch-size", history.DefaultBatchSize, "records per batch")
	return cmd
}

// replayRange resolves the requested range against the archive bounds
func replayRange(ctx context.Context, store *history.Store, ro *replayOptions) (float64, float64, error) {
	from, hasFrom, err := parseInstant(ro.from)
	if err != nil {
		return 0, 0, err
	}
	to, hasTo, err := parseInstant(ro.to)
	if err != nil {
		return 0, 0, err
	}
	if hasFrom && hasTo {
		return from, to, nil
	}
	lo, hi, ok, err := store.Bounds(ctx)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, 0, fmt.Errorf("history is empty")
	}
	if !hasFrom {
		from = lo
	}
	if !hasTo {
		to = hi
	}
	return from, to, nil
}

func runReplay(ctx context.Context, cfg config.AppConfig, ro *replayOptions, log *zap.Logger) error {
	store, err := openHistory(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	from, to, err := replayRange(ctx, store, ro)
	if err != nil {
		return err
	}

	cfg.Playback.Realtime = false
	view, err := routemap.NewView(cfg, routemap.WithLogger(log))
	if err != nil {
		return err
	}
	defer view.Close()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info("replay started", zap.Float64("from", from), zap.Float64("to", to))
		return history.NewReplay(store, from, to, ro.batchSize).Run(ctx, view)
	})

	srv := api.NewServer(api.Deps{
		Clock:             view.Clock(),
		Renderer:          view.Surface(),
		VehicleMonitoring: view.VehicleMonitoring,
		CORSOrigins:       cfg.Server.CORSOrigins,
		Logger:            log,
	})
	eg.Go(func() error {
		return routemap.Serve(ctx, routemap.NewHTTPServer(cfg.Server.Port, srv.Handler()), nil, log)
	})
	return eg.Wait()
}
