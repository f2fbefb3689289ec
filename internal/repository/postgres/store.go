package postgres

import (
	"context"
	"errors"
	"fmt"

	"stockledger/internal/domain"
	"stockledger/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

var _ repository.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// View runs fn in a read-only repeatable-read snapshot so multi-table reads
// never see half of a stock command.
func (s *Store) View(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&txRepo{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit read tx: %w", err)
	}
	return nil
}

// Update runs fn in a read-write transaction. Product, order and batch reads
// inside it take row locks (SELECT ... FOR UPDATE).
func (s *Store) Update(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&txRepo{tx: tx, lock: true}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

type txRepo struct {
	tx   pgx.Tx
	lock bool
}

var _ repository.Tx = (*txRepo)(nil)

func (r *txRepo) forUpdate() string {
	if r.lock {
		return " FOR UPDATE"
	}
	return ""
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	return fmt.Errorf("%s: %w", what, err)
}

func writeErr(err error, what string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %s: %w", what, pgErr.ConstraintName, domain.ErrConflict)
		case "23514":
			return fmt.Errorf("%s: %s: %w", what, pgErr.ConstraintName, domain.ErrValidation)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

func affected(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanProvenance(kind, orderID, orderNo string) domain.Provenance {
	return domain.Provenance{Kind: domain.ProvenanceKind(kind), OrderID: orderID, OrderNo: orderNo}
}
