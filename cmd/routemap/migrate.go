package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/theoremus-urban-solutions/routemap/history"
)

func newMigrateCmd(g *globals) *cobra.Command {
	o := &overrides{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manages the history database schema",
	}
	o.addHistoryFlags(cmd.PersistentFlags())

	run := func(op func(*cobra.Command, *history.Store, *zap.Logger) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := g.setup(o)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			store, err := openHistory(cmd.Context(), cfg, log, history.WithoutMigrations())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			return op(cmd, store, log)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Applies all pending migrations",
			RunE: run(func(_ *cobra.Command, s *history.Store, log *zap.Logger) error {
				if err := s.MigrateUp(); err != nil {
					return err
				}
				log.Info("migrations applied")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Rolls back the latest migration",
			RunE: run(func(_ *cobra.Command, s *history.Store, log *zap.Logger) error {
				if err := s.MigrateDown(); err != nil {
					return err
				}
				log.Info("migration rolled back")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Prints the applied schema version",
			RunE: run(func(cmd *cobra.Command, s *history.Store, _ *zap.Logger) error {
				v, dirty, err := s.MigrateVersion()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d dirty=%v\n", v, dirty)
				return nil
			}),
		},
	)
	return cmd
}
