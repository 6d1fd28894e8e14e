package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when no row matches.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict is returned when a unique constraint rejects a write.
	ErrConflict = errors.New("repository: conflict")
)

const uniqueViolation = "23505"

// Store groups the entity repositories and runs multi-entity writes atomically.
type Store interface {
	Tickets() TicketRepository
	Comments() CommentRepository
	Notifications() NotificationRepository
	Users() UserRepository
	Departments() DepartmentRepository

	// WithinTx runs fn against a store whose repositories share one
	// transaction. Returning an error from fn rolls every write back.
	WithinTx(ctx context.Context, fn func(tx Store) error) error

	Ping(ctx context.Context) error
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore is the Postgres-backed Store.
type SQLStore struct {
	db *sql.DB
	q  queryer
}

// NewSQLStore wraps a database handle opened with the pgx stdlib driver.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, q: db}
}

func (s *SQLStore) Tickets() TicketRepository             { return &ticketRepository{q: s.q} }
func (s *SQLStore) Comments() CommentRepository           { return &commentRepository{q: s.q} }
func (s *SQLStore) Notifications() NotificationRepository { return &notificationRepository{q: s.q} }
func (s *SQLStore) Users() UserRepository                 { return &userRepository{q: s.q} }
func (s *SQLStore) Departments() DepartmentRepository     { return &departmentRepository{q: s.q} }

// WithinTx begins a transaction unless the store is already bound to one.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&SQLStore{db: s.db, q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}

func mapReadError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	val := ns.String
	return &val
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	val := nt.Time
	return &val
}

func jsonColumn(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
