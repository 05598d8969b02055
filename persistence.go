package identity

import (
	"context"
	"database/sql"
	"io/fs"
	"time"

	goerrors "github.com/goliatone/go-errors"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// PersistenceConfig carries the settings the persistence client needs.
type PersistenceConfig struct {
	Debug       bool          `env:"IDENTITY_DB_DEBUG"`
	Driver      string        `env:"IDENTITY_DB_DRIVER" envDefault:"sqlite"`
	Server      string        `env:"IDENTITY_DB_SERVER"`
	DSN         string        `env:"IDENTITY_DB_DSN" envDefault:"file::memory:?cache=shared"`
	PingTimeout time.Duration `env:"IDENTITY_DB_PING_TIMEOUT" envDefault:"5s"`
}

func (p PersistenceConfig) GetDebug() bool                { return p.Debug }
func (p PersistenceConfig) GetDriver() string             { return p.Driver }
func (p PersistenceConfig) GetServer() string             { return p.Server }
func (p PersistenceConfig) GetDSN() string                { return p.DSN }
func (p PersistenceConfig) GetPingTimeout() time.Duration { return p.PingTimeout }

// RegisterModels registers this package's models with the persistence client.
// Call before creating the client so relations resolve.
func RegisterModels() {
	persistence.RegisterModel((*Account)(nil))
	persistence.RegisterModel((*Profile)(nil))
}

// OpenDatabase opens a sqlite-backed database and boots the persistence
// client: models, migrations, validation. It returns the ready bun handle.
func OpenDatabase(ctx context.Context, cfg PersistenceConfig, logger Logger) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.GetDSN())
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open database")
	}

	RegisterModels()

	client, err := persistence.New(cfg, sqldb, sqlitedialect.New())
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create persistence client")
	}

	if logger != nil {
		client.SetLogger(logger)
	}

	migrations, err := fs.Sub(GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load embedded migrations")
	}

	client.RegisterDialectMigrations(
		migrations,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.ValidateDialects(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "migration dialect validation failed")
	}

	if err := client.Migrate(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to run migrations")
	}

	return client.DB(), nil
}
