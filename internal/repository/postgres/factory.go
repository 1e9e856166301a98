package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
	repo "github.com/baharkarakas/broker-ledger/internal/repository"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct{ pool *pgxpool.Pool }

func NewStore(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

func (s *Store) Read() repo.Repositories { return newRepositories(s.pool) }

// WithTx runs fn in one read-committed transaction; balance safety comes from
// the row locks taken by the *ForUpdate lookups.
func (s *Store) WithTx(ctx context.Context, fn func(repo.Repositories) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	if err := fn(newRepositories(tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func newRepositories(q querier) repo.Repositories {
	return repo.Repositories{
		Wallets:      &walletsRepo{q},
		Transactions: &transactionsRepo{q},
		Requests:     &requestsRepo{q},
		Offers:       &offersRepo{q},
		Disputes:     &disputesRepo{q},
		Withdrawals:  &withdrawalsRepo{q},
		AuditLogs:    &auditLogsRepo{q},
	}
}

// notFound maps a missing row, or a key that is not a valid uuid, to
// apperr.ErrNotFound.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
		return apperr.NotFound(format, args...)
	}
	return err
}

// isInvalidText reports a 22P02 raised when a malformed key is cast to uuid.
func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

// validID reports whether id can address a uuid primary key.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return d, nil
}

func parseNullDecimal(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseDecimal(*s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func nullDecimalArg(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}
