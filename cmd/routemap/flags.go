package main

import (
	"github.com/spf13/pflag"

	"github.com/theoremus-urban-solutions/routemap/config"
)

// overrides are command line values that replace config file settings when set
type overrides struct {
	port          int
	mapBackend    string
	mapOutput     string
	natsURL       string
	natsSubject   string
	redisAddr     string
	redisChannel  string
	historyDriver string
	historyDSN    string
	timeWindow    string
	speed         float64
}

func (o *overrides) addServerFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.port, "port", 0, "overrides server.port")
}

func (o *overrides) addMapFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.mapBackend, "map-backend", "", "recorder|echarts|plot|staticmap")
	fs.StringVar(&o.mapOutput, "output", "", "snapshot file, - for stdout")
}

func (o *overrides) addSourceFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.natsURL, "nats-url", "", "NATS server URL")
	fs.StringVar(&o.natsSubject, "nats-subject", "", "NATS subject carrying JSON records")
	fs.StringVar(&o.redisAddr, "redis-addr", "", "Redis host:port")
	fs.StringVar(&o.redisChannel, "redis-channel", "", "Redis pub/sub channel carrying JSON records")
}

func (o *overrides) addHistoryFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.historyDriver, "history-driver", "", "sqlite|postgres")
	fs.StringVar(&o.historyDSN, "history-dsn", "", "history database DSN")
}

func (o *overrides) addPlaybackFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.timeWindow, "time-window", "", "sliding window such as rt-30m")
	fs.Float64Var(&o.speed, "speed", 0, "playback seconds per wall second")
}

func (o *overrides) apply(cfg *config.AppConfig) {
	if o.port > 0 {
		cfg.Server.Port = o.port
	}
	if o.mapBackend != "" {
		cfg.Map.Backend = o.mapBackend
	}
	if o.mapOutput != "" {
		cfg.Map.OutputPath = o.mapOutput
	}
	if o.natsURL != "" {
		cfg.NATS.URL = o.natsURL
	}
	if o.natsSubject != "" {
		cfg.NATS.Subject = o.natsSubject
	}
	if o.redisAddr != "" {
		cfg.Redis.Addr = o.redisAddr
	}
	if o.redisChannel != "" {
		cfg.Redis.Channel = o.redisChannel
	}
	if o.historyDriver != "" {
		cfg.History.Driver = o.historyDriver
	}
	if o.historyDSN != "" {
		cfg.History.DSN = o.historyDSN
	}
	if o.timeWindow != "" {
		cfg.Playback.TimeWindow = o.timeWindow
	}
	if o.speed > 0 {
		cfg.Playback.Speed = o.speed
	}
}
