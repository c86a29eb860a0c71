package database

import (
	"fmt"
	"os"
	"path/filepath"

	"subtree-go/internal/config"
	"subtree-go/internal/subtree"
)

// NewStoreFromConfig creates a TreeStore based on the database config type.
func NewStoreFromConfig(cfg config.DatabaseConfig, clock subtree.Clock, ids subtree.KeyGenerator) (subtree.TreeStore, error) {
	switch cfg.Type {
	case "sqlite", "":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, "subtree.db"), clock, ids)
	case "memory":
		return NewSQLiteStore(":memory:", clock, ids)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
