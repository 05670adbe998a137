package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/HerbHall/cliphub/internal/config"
)

// newLogger builds the process logger: JSON production output by default,
// console development output when cfg.Development is set.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		zc.Level = level
	}
	return zc.Build()
}
