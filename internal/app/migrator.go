package app

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/Freeeeeet/classdesk/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// Migrator applies the embedded goose migrations.
type Migrator struct {
	db     *sql.DB
	fsys   fs.FS
	logger *zap.Logger
}

func NewMigrator(pool *pgxpool.Pool, logger *zap.Logger) (*Migrator, error) {
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	goose.SetLogger(gooseLogger{logger.Sugar()})

	// goose works on *sql.DB, so wrap the pool.
	db := stdlib.OpenDBFromPool(pool)

	return &Migrator{
		db:     db,
		fsys:   migrations.FS,
		logger: logger,
	}, nil
}

// Run applies every pending migration.
func (mg *Migrator) Run(ctx context.Context) error {
	mg.logger.Info("Applying database migrations")

	goose.SetBaseFS(mg.fsys)
	defer goose.SetBaseFS(nil)

	if err := goose.UpContext(ctx, mg.db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, err := mg.Version(ctx)
	if err != nil {
		return err
	}
	mg.logger.Info("Migrations applied", zap.Int64("version", version))
	return nil
}

func (mg *Migrator) Version(ctx context.Context) (int64, error) {
	version, err := goose.GetDBVersionContext(ctx, mg.db)
	if err != nil {
		return 0, fmt.Errorf("get version: %w", err)
	}
	return version, nil
}

// Close closes the sql.DB wrapper. The pool stays open.
func (mg *Migrator) Close() error {
	if mg.db != nil {
		return mg.db.Close()
	}
	return nil
}

type gooseLogger struct {
	s *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.s.Infof(format, v...)
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.s.Fatalf(format, v...)
}
