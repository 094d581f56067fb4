// Package postgres connects recdex to PostgreSQL through gorm.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/kailas-cloud/recdex/internal/db"
)

var _ db.Backend = (*Store)(nil)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Config holds connection parameters for PostgreSQL.
type Config struct {
	DSN      string
	MaxConns int
}

// Store owns the gorm connection pool.
type Store struct {
	gdb    *gorm.DB
	logger *zap.Logger
}

// Connect opens the pool. Connectivity is checked separately by WaitForReady.
func Connect(cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	gdb, err := gorm.Open(pgdriver.Open(cfg.DSN), &gorm.Config{
		PrepareStmt:          true,
		TranslateError:       true,
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}
	if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
		sqlDB.SetMaxIdleConns(max(cfg.MaxConns/2, 1))
	}
	sqlDB.SetConnMaxIdleTime(15 * time.Minute)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Store{gdb: gdb, logger: logger.With(zap.String("component", "postgres"))}, nil
}

// DB returns the gorm handle bound to ctx.
func (s *Store) DB(ctx context.Context) *gorm.DB {
	return s.gdb.WithContext(ctx)
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.gdb.DB()
	if err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// WaitForReady polls Ping until the database responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.PollReady(ctx, timeout, 250*time.Millisecond, s.Ping)
}

// Close releases the pool.
func (s *Store) Close() {
	sqlDB, err := s.gdb.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		s.logger.Warn("Failed to close postgres pool", zap.Error(err))
	}
}

// Migrate applies the embedded schema in lexical order. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	names, err := migrationNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		raw, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return &db.Error{Op: db.OpMigrate, Err: fmt.Errorf("read %s: %w", name, err)}
		}
		if err := s.DB(ctx).Exec(string(raw)).Error; err != nil {
			return &db.Error{Op: db.OpMigrate, Err: fmt.Errorf("exec %s: %w", name, err)}
		}
		s.logger.Info("Migration applied", zap.String("migration", name))
	}
	return nil
}

func migrationNames() ([]string, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, &db.Error{Op: db.OpMigrate, Err: err}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
