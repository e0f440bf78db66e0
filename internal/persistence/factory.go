package persistence

import (
	"fmt"
	"path/filepath"

	"github.com/neogan74/droppy-api/internal/logger"
)

const boltFileName = "droppy.db"

// NewEngine creates a persistence engine based on configuration
func NewEngine(cfg Config, log logger.Logger) (Engine, error) {
	switch cfg.Type {
	case "", "memory":
		log.Info("Using in-memory store")
		return NewMemoryEngine(), nil
	case "badger":
		log.Info("Using BadgerDB store",
			logger.String("data_dir", cfg.DataDir),
			logger.Bool("sync_writes", cfg.SyncWrites))
		return NewBadgerEngine(cfg.DataDir, cfg.SyncWrites, log)
	case "bolt":
		path := filepath.Join(cfg.DataDir, boltFileName)
		log.Info("Using bbolt store",
			logger.String("path", path),
			logger.Bool("sync_writes", cfg.SyncWrites))
		return NewBoltEngine(path, cfg.SyncWrites, log)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}
