// Package store persists resources, periods and specs in PostgreSQL and
// implements the transactional get-or-create and range query semantics the
// reduction pipeline relies on.
package store

import (
	"context"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/moolen/strato/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the database handle and the per-entity stores. It implements
// lifecycle.Component: Start verifies connectivity and applies pending
// migrations, Stop closes the pool.
type Store struct {
	db     *sqlx.DB
	logger *logging.Logger

	Resources *ResourceStore
	Specs     *SpecStore
	Periods   *PeriodStore
}

// New opens a database handle for the given DSN. The connection is not
// verified until Start.
func New(dsn string) (*Store, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return newStore(db), nil
}

// NewWithDB wraps an existing database handle. Used by tests.
func NewWithDB(db *sqlx.DB) *Store {
	return newStore(db)
}

func newStore(db *sqlx.DB) *Store {
	logger := logging.GetLogger("store")
	return &Store{
		db:        db,
		logger:    logger,
		Resources: &ResourceStore{logger: logger.WithName("store.resource")},
		Specs:     &SpecStore{logger: logger.WithName("store.spec")},
		Periods:   &PeriodStore{logger: logger.WithName("store.period")},
	}
}

// Start implements the lifecycle.Component interface.
func (s *Store) Start(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		return err
	}
	s.logger.Info("Store started")
	return nil
}

// Stop implements the lifecycle.Component interface.
func (s *Store) Stop(ctx context.Context) error {
	s.logger.Info("Closing database pool")
	return s.db.Close()
}

// Name implements the lifecycle.Component interface.
func (s *Store) Name() string {
	return "Store"
}

// IsReady reports database connectivity for the readiness endpoint.
func (s *Store) IsReady() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx) == nil
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db.DB, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	s.logger.Info("Schema migrations applied")
	return nil
}

// RunInTx executes fn inside a transaction, committing on nil and rolling
// back on error. Each ingested event runs its phases through here so the
// row lock taken inside fn is held until commit.
func (s *Store) RunInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("failed to begin transaction", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Rollback failed: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("failed to commit transaction", err)
	}
	return nil
}

// DB exposes the underlying handle for the range query path.
func (s *Store) DB() *sqlx.DB {
	return s.db
}
