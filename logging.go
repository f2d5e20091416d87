package routemap

import (
	"go.uber.org/zap"

	"github.com/theoremus-urban-solutions/routemap/config"
	"github.com/theoremus-urban-solutions/routemap/internal"
)

// InitLogging builds the process logger from the logging section
func InitLogging(cfg config.LoggingConfig) (*zap.Logger, error) {
	return internal.InitLogging(cfg.Level, cfg.Development, cfg.Filter)
}
