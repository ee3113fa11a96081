package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/panodraw/annotator/internal/config"
	"github.com/panodraw/annotator/internal/model"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryPath opens SQLite in shared in-memory mode.
const MemoryPath = ""

var sqlitePragmas = []string{
	"PRAGMA user_version = 1;",
	"PRAGMA journal_mode = WAL;",
	"PRAGMA synchronous = NORMAL;",
	"PRAGMA foreign_keys = ON;",
	"PRAGMA cache_size = -8000;",
	"PRAGMA temp_store = MEMORY;",
}

// Manager handles the journal database connection.
type Manager struct {
	DB     *gorm.DB
	SqlDB  *sql.DB
	Logger zerolog.Logger
}

// NewManager creates a new database manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{Logger: log}
}

// Connect opens the database selected by cfg.Type ("sqlite" or "postgres"),
// validates it and migrates the journal schema.
func (m *Manager) Connect(cfg config.StorageConfig) error {
	var err error
	switch cfg.Type {
	case "postgres":
		m.DB, err = OpenPostgres(cfg.DB)
	case "sqlite":
		m.DB, err = OpenSQLite(cfg.SQLite.Path)
	default:
		return fmt.Errorf("unsupported database type: %q", cfg.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to open %s database: %w", cfg.Type, err)
	}

	m.SqlDB, err = m.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = m.SqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}
	if cfg.Type == "postgres" {
		m.SqlDB.SetMaxOpenConns(10)
	} else {
		// one writer keeps the in-memory database alive and avoids SQLITE_BUSY
		m.SqlDB.SetMaxOpenConns(1)
	}
	m.Logger.Info().Str("dialect", m.DB.Dialector.Name()).Msg("Connected to database")

	return m.Setup()
}

// Setup migrates the journal tables.
func (m *Manager) Setup() error {
	m.Logger.Info().Msg("Migrating schema")
	start := time.Now()
	if err := m.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	m.Logger.Debug().Dur("duration", time.Since(start)).Msg("Database setup complete")
	return nil
}

// Close closes the underlying connection pool.
func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	return m.SqlDB.Close()
}

// OpenPostgres connects to Postgres with the given settings.
func OpenPostgres(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database,
	)

	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        1000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// OpenSQLite opens a SQLite database file. An empty path uses a shared
// in-memory database.
func OpenSQLite(path string) (*gorm.DB, error) {
	dsn := path
	if path == MemoryPath {
		dsn = "file::memory:?cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        500,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	for _, pragma := range sqlitePragmas {
		if path == MemoryPath && pragma == "PRAGMA journal_mode = WAL;" {
			continue
		}
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	return db, nil
}
