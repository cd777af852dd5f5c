// Package postgres implements store.Store backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/records/internal/model"
	"github.com/alfredjeanlab/records/internal/page"
	"github.com/alfredjeanlab/records/internal/payload"
	"github.com/alfredjeanlab/records/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Options configure the connection pool.
type Options struct {
	// Driver is the database/sql driver name: "postgres" (lib/pq) or "pgx".
	Driver          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultOptions returns the pool settings used when none are configured.
func DefaultOptions() Options {
	return Options{
		Driver:          "postgres",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// Open connects to the PostgreSQL database at databaseURL, configures the
// connection pool, and runs any pending migrations. The returned pool is
// shared by every store built on it with New.
func Open(databaseURL string, opts Options) (*sql.DB, error) {
	if opts.Driver == "" {
		opts.Driver = "postgres"
	}
	if opts.Driver != "postgres" && opts.Driver != "pgx" {
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := sql.Open(opts.Driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// PostgresStore implements store.Store for records whose payload meta is M.
type PostgresStore[M any] struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store[model.Profile] = (*PostgresStore[model.Profile])(nil)

// New returns a store reading and writing records as M over db.
func New[M any](db *sql.DB) *PostgresStore[M] {
	return &PostgresStore[M]{db: db}
}

// Close closes the underlying pool, including for other stores sharing it.
func (s *PostgresStore[M]) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *PostgresStore[M]) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore[M]) CreateRecord(ctx context.Context, rec *model.Record[M]) error {
	return queryCreateRecord(ctx, s.db, rec)
}

func (s *PostgresStore[M]) GetRecord(ctx context.Context, id string) (*model.Record[M], error) {
	return queryGetRecord[M](ctx, s.db, id, false)
}

// ListRecords returns one page of matching records. The count and the page
// are read in their own snapshot transaction.
func (s *PostgresStore[M]) ListRecords(ctx context.Context, filter model.RecordFilter, params page.Params) (*page.Result[model.Record[M]], error) {
	return page.Paginate[model.Record[M]](ctx, s.db, listQuery(filter), params)
}

func (s *PostgresStore[M]) UpdatePayload(ctx context.Context, id string, p payload.Payload[M]) (*model.Record[M], error) {
	return queryUpdatePayload(ctx, s.db, id, p)
}

// DeleteRecord locks, reads and deletes the record in one transaction, so a
// row that does not decode as M is left in place.
func (s *PostgresStore[M]) DeleteRecord(ctx context.Context, id string) (*model.Record[M], error) {
	var deleted *model.Record[M]
	err := s.RunInTransaction(ctx, func(tx store.Store[M]) error {
		var err error
		deleted, err = tx.DeleteRecord(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore[M]) RunInTransaction(ctx context.Context, fn func(tx store.Store[M]) error) error {
	return s.runTx(ctx, nil, fn)
}

// RunInSnapshot runs fn in a read-only repeatable-read transaction. Every
// read fn makes, including paginated listings, observes the same snapshot.
func (s *PostgresStore[M]) RunInSnapshot(ctx context.Context, fn func(tx store.Store[M]) error) error {
	return s.runTx(ctx, page.SnapshotTxOptions, fn)
}

func (s *PostgresStore[M]) runTx(ctx context.Context, opts *sql.TxOptions, fn func(tx store.Store[M]) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	if err := fn(&txStore[M]{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore[M any] struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store[model.Profile] = (*txStore[model.Profile])(nil)

func (s *txStore[M]) CreateRecord(ctx context.Context, rec *model.Record[M]) error {
	return queryCreateRecord(ctx, s.tx, rec)
}

func (s *txStore[M]) GetRecord(ctx context.Context, id string) (*model.Record[M], error) {
	return queryGetRecord[M](ctx, s.tx, id, false)
}

func (s *txStore[M]) ListRecords(ctx context.Context, filter model.RecordFilter, params page.Params) (*page.Result[model.Record[M]], error) {
	return page.PaginateTx[model.Record[M]](ctx, s.tx, listQuery(filter), params)
}

func (s *txStore[M]) UpdatePayload(ctx context.Context, id string, p payload.Payload[M]) (*model.Record[M], error) {
	return queryUpdatePayload(ctx, s.tx, id, p)
}

func (s *txStore[M]) DeleteRecord(ctx context.Context, id string) (*model.Record[M], error) {
	return queryDeleteRecord[M](ctx, s.tx, id)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore[M]) RunInTransaction(ctx context.Context, fn func(tx store.Store[M]) error) error {
	return fn(s)
}

// RunInSnapshot on a txStore reuses the existing transaction. Callers that
// need snapshot reads must start from the root store.
func (s *txStore[M]) RunInSnapshot(ctx context.Context, fn func(tx store.Store[M]) error) error {
	return fn(s)
}

func (s *txStore[M]) Ping(ctx context.Context) error {
	_, err := s.tx.ExecContext(ctx, "SELECT 1")
	return err
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore[M]) Close() error {
	return nil
}
