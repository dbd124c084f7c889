// Package migrations embeds the schema migrations and applies them with
// bun's migrator, which records applied versions in bun_migrations.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed *.sql
var files embed.FS

// Load returns the embedded migrations.
func Load() (*migrate.Migrations, error) {
	m := migrate.NewMigrations()
	if err := m.Discover(files); err != nil {
		return nil, fmt.Errorf("discover migrations: %w", err)
	}
	return m, nil
}

// Apply runs every migration not yet recorded as applied. Concurrent callers
// are serialized through the migrator lock table.
func Apply(ctx context.Context, db *bun.DB, log *slog.Logger) error {
	return withMigrator(ctx, db, func(m *migrate.Migrator) error {
		group, err := m.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		if group.IsZero() {
			log.Info("schema up to date")
			return nil
		}
		log.Info("migrations applied", slog.String("group", group.String()))
		return nil
	})
}

// Rollback reverts the most recently applied migration group.
func Rollback(ctx context.Context, db *bun.DB, log *slog.Logger) error {
	return withMigrator(ctx, db, func(m *migrate.Migrator) error {
		group, err := m.Rollback(ctx)
		if err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
		if group.IsZero() {
			log.Info("nothing to roll back")
			return nil
		}
		log.Info("migrations rolled back", slog.String("group", group.String()))
		return nil
	})
}

func withMigrator(ctx context.Context, db *bun.DB, fn func(m *migrate.Migrator) error) error {
	ms, err := Load()
	if err != nil {
		return err
	}
	m := migrate.NewMigrator(db, ms)
	if err := m.Init(ctx); err != nil {
		return fmt.Errorf("init migrator: %w", err)
	}
	if err := m.Lock(ctx); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}
	defer func() { _ = m.Unlock(ctx) }()
	return fn(m)
}
