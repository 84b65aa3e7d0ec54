package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Postgres unique_violation.
const pqUniqueViolation = "23505"

// mapErr turns driver errors into repository sentinels and adds context.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
		return fmt.Errorf("%s: %w (%s)", op, ErrDuplicate, pqErr.Constraint)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// expectOne reports ErrNotFound when an UPDATE/DELETE touched no rows.
func expectOne(op string, res sql.Result, err error) error {
	if err != nil {
		return mapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Store groups the account repositories and can rebind them to a transaction.
type Store interface {
	Users() UserRepository
	OTPs() OTPRepository
	WithinTx(ctx context.Context, fn func(Store) error) error
}

type sqlStore struct {
	db *sql.DB
	q  DBTX
}

func NewStore(db *sql.DB) Store {
	return &sqlStore{db: db, q: db}
}

func (s *sqlStore) Users() UserRepository { return NewUserRepository(s.q) }
func (s *sqlStore) OTPs() OTPRepository   { return NewOTPRepository(s.q) }

// WithinTx runs fn with repositories bound to a single transaction. Nested
// calls reuse the outer transaction.
func (s *sqlStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	if _, inTx := s.q.(*sql.Tx); inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&sqlStore{db: s.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
