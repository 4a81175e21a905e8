package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/unclebandit/campaign-studio/internal/config"
	"github.com/unclebandit/campaign-studio/internal/db"
	appErrors "github.com/unclebandit/campaign-studio/internal/errors"
)

// Migrator is implemented by backends that own their schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Vault is an opened record store plus whatever must be released with it.
type Vault struct {
	VaultRepository
	conn *sql.DB
}

// Close releases the SQL connection, if any.
func (v *Vault) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// Open builds the backend selected by VAULT_BACKEND. It returns
// ErrVaultDisabled when the backend's settings are missing.
func Open(ctx context.Context, cfg config.Config) (*Vault, error) {
	if !cfg.VaultEnabled() {
		return nil, appErrors.ErrVaultDisabled
	}

	switch cfg.VaultBackend {
	case config.BackendNotion:
		client := notionapi.NewClient(notionapi.Token(cfg.NotionKey))
		return &Vault{VaultRepository: NewNotionRepository(client, cfg.DatabaseID, cfg.Location)}, nil
	case config.BackendPostgres:
		return openSQL(ctx, db.DriverPostgres, cfg.DatabaseURL, Postgres, cfg)
	case config.BackendSQLite:
		return openSQL(ctx, db.DriverSQLite, cfg.SQLitePath, SQLite, cfg)
	default:
		return nil, fmt.Errorf("unknown vault backend %q", cfg.VaultBackend)
	}
}

func openSQL(ctx context.Context, driver, dsn string, dialect Dialect, cfg config.Config) (*Vault, error) {
	conn, err := db.Open(ctx, db.Options{Driver: driver, DSN: dsn, PingTimeout: cfg.VaultTimeout})
	if err != nil {
		return nil, err
	}
	repo := &PostRepository{DB: conn, Dialect: dialect, Location: cfg.Location}
	return &Vault{VaultRepository: repo, conn: conn}, nil
}

// MigrateIfSupported applies the schema for SQL backends and is a no-op for
// Notion, whose database is managed in the Notion UI.
func MigrateIfSupported(ctx context.Context, v *Vault) (bool, error) {
	m, ok := v.VaultRepository.(Migrator)
	if !ok {
		return false, nil
	}
	return true, m.Migrate(ctx)
}
