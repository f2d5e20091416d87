package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/theoremus-urban-solutions/routemap/config"
	"github.com/theoremus-urban-solutions/routemap/history"
	"github.com/theoremus-urban-solutions/routemap/ingest"
	"github.com/theoremus-urban-solutions/routemap/utils"
)

// pruneEvery is how often the recorder drops rows older than --retain
const pruneEvery = time.Hour

func newRecordCmd(g *globals) *cobra.Command {
	o := &overrides{}
	var retain time.Duration
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Archives every live source into the history database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := g.setup(o)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return runRecord(cmd.Context(), g, cfg, retain, log)
		},
	}
	o.addSourceFlags(cmd.Flags())
	o.addHistoryFlags(cmd.Flags())
	cmd.Flags().DurationVar(&retain, "retain", 0, "drop positions older than this; 0 keeps everything")
	return cmd
}

func runRecord(ctx context.Context, g *globals, cfg config.AppConfig, retain time.Duration, log *zap.Logger) error {
	store, err := openHistory(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sources, cleanup, err := buildSources(cfg, g.feed, log)
	if err != nil {
		return err
	}
	defer cleanup()
	if len(sources) == 0 {
		log.Warn("no sources configured, nothing to record")
		return nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	runSources(ctx, eg, sources, func(source string) ingest.Sink {
		return history.NewRecorder(store, source)
	}, log)
	if retain > 0 {
		eg.Go(func() error { return pruneLoop(ctx, store, retain, log) })
	}
	return eg.Wait()
}

func pruneLoop(ctx context.Context, store *history.Store, retain time.Duration, log *zap.Logger) error {
	ticker := time.NewTicker(pruneEvery)
	defer ticker.Stop()
	for {
		before := utils.EpochFromTime(time.Now().Add(-retain))
		if n, err := store.Prune(ctx, before); err != nil {
			log.Warn("prune failed", zap.Error(err))
		} else if n > 0 {
			log.Info("pruned positions", zap.Int64("rows", n))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
