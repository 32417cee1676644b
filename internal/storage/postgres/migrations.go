package postgres

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed sql/migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "sql/migrations"

func (s *Store) prepareGoose() error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// MigrateUp применяет все недостающие up-миграции.
func (s *Store) MigrateUp(ctx context.Context) error {
	if err := s.prepareGoose(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, s.db, migrationsDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// MigrateDown откатывает последнюю применённую миграцию.
func (s *Store) MigrateDown(ctx context.Context) error {
	if err := s.prepareGoose(); err != nil {
		return err
	}
	if err := goose.DownContext(ctx, s.db, migrationsDir); err != nil {
		return fmt.Errorf("rollback migration: %w", err)
	}
	return nil
}

// MigrationStatus печатает статус миграций в лог goose.
func (s *Store) MigrationStatus(ctx context.Context) error {
	if err := s.prepareGoose(); err != nil {
		return err
	}
	if err := goose.StatusContext(ctx, s.db, migrationsDir); err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	return nil
}
