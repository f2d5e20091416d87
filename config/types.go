package config

// ServerConfig contains server configuration
type ServerConfig struct {
	Port        int      `yaml:"port" validate:"omitempty,gt=0,lt=65536"`
	CORSOrigins []string `yaml:"corsOrigins"`
	// Codespace is the SIRI ProducerRef and DataSource of exported journeys
	Codespace string `yaml:"codespace"`
}

// LoggingConfig controls the process logger
type LoggingConfig struct {
	Level       string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Development bool   `yaml:"development"`
	// Filter is a zapfilter rule set, e.g. "info+:* debug+:clock"
	Filter string `yaml:"filter"`
}

// MapConfig selects the map backend
type MapConfig struct {
	Backend    string `yaml:"backend" validate:"omitempty,oneof=recorder echarts plot staticmap"`
	OutputPath string `yaml:"outputPath"`
	APIKey     string `yaml:"apiKey"`
	Width      int    `yaml:"width" validate:"gte=0"`
	Height     int    `yaml:"height" validate:"gte=0"`
	Title      string `yaml:"title"`
}

// PlaybackConfig holds the initial clock settings
type PlaybackConfig struct {
	RefreshRate float64 `yaml:"refreshRate" validate:"gte=0"`
	Speed       float64 `yaml:"speed" validate:"gte=0"`
	Realtime    bool    `yaml:"realtime"`
	// TimeWindow is a relative range like "rt-30m"; empty disables eviction
	TimeWindow         string  `yaml:"timeWindow" validate:"omitempty,startswith=rt-"`
	RetentionTolerance float64 `yaml:"retentionTolerance" validate:"gte=0"`
}

// GTFSRTConfig contains GTFS-Realtime feed configuration
type GTFSRTConfig struct {
	VehiclePositionsURL string `yaml:"vehiclePositionsURL" validate:"omitempty,url"`
	ReadIntervalMS      int    `yaml:"readIntervalMS" validate:"gte=0"`
	TimeoutMS           int    `yaml:"timeoutMS" validate:"gte=0"`
}

// Feed represents a single vehicle feed configuration
type Feed struct {
	Name   string       `yaml:"name" validate:"required"`
	GTFSRT GTFSRTConfig `yaml:"gtfsrt" validate:"required"`
}

// NATSConfig enables the NATS source when URL is set
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject" validate:"required_with=URL"`
}

// RedisConfig enables the Redis pub/sub source when Addr is set
type RedisConfig struct {
	Addr    string `yaml:"addr" validate:"omitempty,hostname_port"`
	Channel string `yaml:"channel" validate:"required_with=Addr"`
}

// HistoryConfig enables the feed archive when DSN is set
type HistoryConfig struct {
	Driver string `yaml:"driver" validate:"omitempty,oneof=sqlite postgres"`
	DSN    string `yaml:"dsn"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Map      MapConfig      `yaml:"map"`
	Playback PlaybackConfig `yaml:"playback"`
	GTFSRT   GTFSRTConfig   `yaml:"gtfsrt"`
	Feeds    []Feed         `yaml:"feeds" validate:"dive"`
	NATS     NATSConfig     `yaml:"nats"`
	Redis    RedisConfig    `yaml:"redis"`
	History  HistoryConfig  `yaml:"history"`
}
