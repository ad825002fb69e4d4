package database

import (
	"fmt"
	"os"
	"path/filepath"

	"cdl-sync/internal/cdl"
	"cdl-sync/internal/config"
)

// FileName is the database file inside the configured data directory.
const FileName = "cdlsync.db"

// NewDatabaseFromConfig creates a RunHistory based on the database config type.
func NewDatabaseFromConfig(cfg config.DatabaseConfig) (cdl.RunHistory, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, FileName))
	case "memory":
		return NewSQLiteDatabase(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
