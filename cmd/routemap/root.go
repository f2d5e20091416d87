package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/theoremus-urban-solutions/routemap"
	"github.com/theoremus-urban-solutions/routemap/config"
)

const envPrefix = "ROUTEMAP"

// globals shared by every subcommand
type globals struct {
	cfgFile  string
	logLevel string
	feed     string
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	v := viper.New()
	root := &cobra.Command{
		Use:          "routemap",
		Short:        "Plays back vehicle positions on a map",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v.SetEnvPrefix(envPrefix)
			v.AutomaticEnv()
			bindFlags(cmd, v)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&g.cfgFile, "config", "",
		"config file (default is ./config.yml or ./config/config.yml)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "overrides logging.level")
	root.PersistentFlags().StringVar(&g.feed, "feed", "", "only poll this feed from config.feeds[]")

	root.AddCommand(
		newServeCmd(g),
		newRenderCmd(g),
		newRecordCmd(g),
		newReplayCmd(g),
		newMigrateCmd(g),
	)
	return root
}

// bindFlags applies ROUTEMAP_* environment values to flags that were not set
// on the command line, e.g. --nats-url from ROUTEMAP_NATS_URL.
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		envVar := fmt.Sprintf("%s_%s", envPrefix, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")))
		if err := v.BindEnv(f.Name, envVar); err != nil {
			fmt.Fprintf(os.Stderr, "could not bind env var %s: %v\n", envVar, err)
		}
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				fmt.Fprintf(os.Stderr, "could not set flag value for %s: %v\n", f.Name, err)
			}
		}
	})
}

// loadConfig reads the config file, falling back to defaults when none exists
func (g *globals) loadConfig() (config.AppConfig, error) {
	if g.cfgFile != "" {
		if err := config.LoadAppConfigFile(g.cfgFile); err != nil {
			return config.AppConfig{}, err
		}
		return config.Config, nil
	}
	err := config.LoadAppConfig()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		config.Config = config.Default()
	case err != nil:
		return config.AppConfig{}, err
	}
	return config.Config, nil
}

// configPath is the file to watch for reloads, empty when running on defaults
func (g *globals) configPath() string {
	if g.cfgFile != "" {
		return g.cfgFile
	}
	for _, p := range config.SearchPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// setup loads the configuration, applies o and builds the logger
func (g *globals) setup(o *overrides) (config.AppConfig, *zap.Logger, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return cfg, nil, err
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if o != nil {
		o.apply(&cfg)
	}
	log, err := routemap.InitLogging(cfg.Logging)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}
