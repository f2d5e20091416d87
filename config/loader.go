package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultPort        = 16181
	DefaultLogLevel    = "info"
	DefaultMapBackend  = "recorder"
	DefaultMapWidth    = 1024
	DefaultMapHeight   = 768
	DefaultRefreshRate = 2
	DefaultSpeed       = 10
	DefaultRetention   = 300
	DefaultReadMS      = 30000
	DefaultTimeoutMS   = 10000
	DefaultHistoryDB   = "sqlite"
)

// SearchPaths are tried in order by LoadAppConfig
var SearchPaths = []string{"config.yml", "./config/config.yml"}

// Config is the global application configuration
var Config AppConfig

var validate = validator.New()

// LoadAppConfig loads and validates the first config.yml found in SearchPaths
func LoadAppConfig() error {
	var err error
	for _, p := range SearchPaths {
		if _, statErr := os.Stat(p); statErr != nil {
			err = statErr
			continue
		}
		return LoadAppConfigFile(p)
	}
	return err
}

// LoadAppConfigFile loads, validates and installs the configuration at path
func LoadAppConfigFile(path string) error {
	cfg, err := ReadFile(path)
	if err != nil {
		return err
	}
	Config = cfg
	return nil
}

// ReadFile parses and validates path without touching the global Config
func ReadFile(path string) (AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, err
	}
	return Parse(data)
}

// Parse decodes YAML, validates it and fills in defaults
func Parse(data []byte) (AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return AppConfig{}, fmt.Errorf("invalid config field %s: failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return AppConfig{}, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// Default returns a configuration with every default applied
func Default() AppConfig {
	var cfg AppConfig
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values
func (c *AppConfig) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Map.Backend == "" {
		c.Map.Backend = DefaultMapBackend
	}
	if c.Map.Width == 0 {
		c.Map.Width = DefaultMapWidth
	}
	if c.Map.Height == 0 {
		c.Map.Height = DefaultMapHeight
	}
	if c.Playback.RefreshRate == 0 {
		c.Playback.RefreshRate = DefaultRefreshRate
	}
	if c.Playback.Speed == 0 {
		c.Playback.Speed = DefaultSpeed
	}
	if c.Playback.RetentionTolerance == 0 {
		c.Playback.RetentionTolerance = DefaultRetention
	}
	c.GTFSRT.applyDefaults()
	for i := range c.Feeds {
		c.Feeds[i].GTFSRT.applyDefaults()
	}
	if c.History.Driver == "" {
		c.History.Driver = DefaultHistoryDB
	}
}

func (g *GTFSRTConfig) applyDefaults() {
	if g.ReadIntervalMS == 0 {
		g.ReadIntervalMS = DefaultReadMS
	}
	if g.TimeoutMS == 0 {
		g.TimeoutMS = DefaultTimeoutMS
	}
}

// SelectFeed chooses a feed by name; fallback to first; if none, use top-level GTFSRT.
func SelectFeed(name string) (string, GTFSRTConfig) {
	return Config.SelectFeed(name)
}

// SelectFeed chooses a feed of c by name with the same fallbacks as the package function
func (c AppConfig) SelectFeed(name string) (string, GTFSRTConfig) {
	if name != "" {
		for _, f := range c.Feeds {
			if f.Name == name {
				return f.Name, f.GTFSRT
			}
		}
	}
	if len(c.Feeds) > 0 {
		return c.Feeds[0].Name, c.Feeds[0].GTFSRT
	}
	return "default", c.GTFSRT
}
