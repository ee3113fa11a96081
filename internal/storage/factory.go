package storage

import (
	"fmt"
	"log/slog"

	"github.com/panodraw/annotator/internal/config"
	"github.com/panodraw/annotator/internal/database"
	gormstorage "github.com/panodraw/annotator/internal/storage/gorm"
	"github.com/panodraw/annotator/internal/storage/memory"
	"github.com/rs/zerolog"
)

// NewBackend creates a journal backend from configuration. Type "none"
// returns a nil Backend and no error.
func NewBackend(cfg config.StorageConfig, zl zerolog.Logger, logger *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "memory":
		return memory.New(cfg.Memory), nil
	case "sqlite", "postgres":
		m := database.NewManager(zl)
		if err := m.Connect(cfg); err != nil {
			return nil, err
		}
		return gormstorage.New(gormstorage.Dependencies{
			DB:     m.DB,
			Closer: m,
			Logger: logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
