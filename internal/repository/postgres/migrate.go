package postgres

import (
	"errors"
	"fmt"

	"github.com/Rrens/chatpdf/internal/config"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"
)

// Migrator applies the knowledge_chunks schema
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator opens the migration source. An empty sourceURL selects
// cfg.Migrations.
func NewMigrator(cfg config.DatabaseConfig, sourceURL string) (*Migrator, error) {
	if sourceURL == "" {
		sourceURL = cfg.Migrations
	}
	m, err := migrate.New(sourceURL, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return &Migrator{m: m}, nil
}

// Up applies all pending migrations
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("database migration: no changes")
			return nil
		}
		return fmt.Errorf("failed to run migrate up: %w", err)
	}
	mg.logVersion("database migration: success")
	return nil
}

// Down rolls back one migration
func (mg *Migrator) Down() error {
	if err := mg.m.Steps(-1); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	mg.logVersion("database migration: rolled back")
	return nil
}

// Version returns the applied schema version
func (mg *Migrator) Version() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (mg *Migrator) Close() {
	srcErr, dbErr := mg.m.Close()
	if srcErr != nil || dbErr != nil {
		log.Warn().AnErr("source", srcErr).AnErr("database", dbErr).Msg("failed to close migrator")
	}
}

func (mg *Migrator) logVersion(msg string) {
	version, dirty, _ := mg.Version()
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg(msg)
}

// RunMigrations applies all pending migrations for cfg
func RunMigrations(cfg config.DatabaseConfig) error {
	mg, err := NewMigrator(cfg, "")
	if err != nil {
		return err
	}
	defer mg.Close()
	return mg.Up()
}
