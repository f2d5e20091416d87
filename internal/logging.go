package internal

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"moul.io/zapfilter"
)

// InitLogging builds the process logger and installs it as the zap global.
// filter is a zapfilter rule set such as "info+:* debug+:clock"; when set it
// decides per logger name and level, overriding level.
func InitLogging(level string, development bool, filter string) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if level == "" {
		level = "info"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	var opts []zap.Option
	if filter != "" {
		rules, err := zapfilter.ParseRules(filter)
		if err != nil {
			return nil, fmt.Errorf("invalid log filter %q: %w", filter, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		opts = append(opts, zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapfilter.NewFilteringCore(c, rules)
		}))
	}

	logger, err := cfg.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
