// Package storage selects the story store configured for the service.
package storage

import (
	"fmt"

	"github.com/groqtales/groqtales-server/internal/config"
	"github.com/groqtales/groqtales-server/internal/core/ports"
	"github.com/groqtales/groqtales-server/internal/storage/memory"
	"github.com/groqtales/groqtales-server/internal/storage/sqlite"
)

// Re-export storage types from core/ports.
type (
	StoryStore  = ports.StoryStore
	StoryRecord = ports.StoryRecord
	MintOutcome = ports.MintOutcome
)

// New opens the store named by cfg.Type. It returns a nil store for "none"
// (or empty), which disables persistence.
func New(cfg config.StorageConfig) (StoryStore, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return memory.New(), nil
	case "sqlite":
		store, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
