package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/panodraw/annotator/internal/config"
	"github.com/panodraw/annotator/internal/storage"
	gormstorage "github.com/panodraw/annotator/internal/storage/gorm"
	"github.com/panodraw/annotator/internal/storage/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface checks
var (
	_ storage.Backend  = (*memory.Backend)(nil)
	_ storage.Exporter = (*memory.Backend)(nil)
	_ storage.Loader   = (*memory.Backend)(nil)
	_ storage.Backend  = (*gormstorage.Backend)(nil)
	_ storage.Loader   = (*gormstorage.Backend)(nil)
)

func TestNewBackend(t *testing.T) {
	b, err := storage.NewBackend(config.StorageConfig{Type: "none"}, zerolog.Nop(), nil)
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = storage.NewBackend(config.StorageConfig{Type: "memory"}, zerolog.Nop(), nil)
	require.NoError(t, err)
	assert.IsType(t, &memory.Backend{}, b)

	b, err = storage.NewBackend(config.StorageConfig{
		Type:   "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "j.db")},
	}, zerolog.Nop(), nil)
	require.NoError(t, err)
	require.IsType(t, &gormstorage.Backend{}, b)
	require.NoError(t, b.Init())
	require.NoError(t, b.Close())

	_, err = storage.NewBackend(config.StorageConfig{Type: "bogus"}, zerolog.Nop(), nil)
	assert.ErrorContains(t, err, "unknown storage type")
}
