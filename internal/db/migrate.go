package db

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

const migrationTable = "shoppulse_migrations"

//go:embed migrations/*.sql
var migrations embed.FS

var (
	ErrSetDialect      = errors.New("failed to set migration dialect")
	ErrApplyMigrations = errors.New("failed to apply migrations")
)

// Migrate applies the embedded migrations. The database/sql handle shares
// the pool's connections and is left open.
func (s *Store) Migrate(ctx context.Context, log *zap.Logger) error {
	db := stdlib.OpenDBFromPool(s.Pool)

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{log.Sugar()})
	goose.SetTableName(migrationTable)

	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrSetDialect, err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return errors.Join(ErrApplyMigrations, err)
	}

	return nil
}

type gooseLogger struct {
	log *zap.SugaredLogger
}

func (g gooseLogger) Printf(format string, args ...any) {
	g.log.Info(fmt.Sprintf(format, args...))
}

// Fatalf only logs; goose still returns the error to the caller.
func (g gooseLogger) Fatalf(format string, args ...any) {
	g.log.Error(fmt.Sprintf(format, args...))
}
