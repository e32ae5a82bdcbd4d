package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// Querier is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx.
// Repositories issue every statement through it so the same code runs
// inside or outside a unit of work.
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// InTx runs fn inside a transaction carried on the context.
//
// Usage in services:
//
//	err := s.db.InTx(ctx, func(ctx context.Context) error {
//	    meds, err := s.medicines.LockByIDs(ctx, ids)
//	    ...
//	    return s.invoices.Create(ctx, inv)
//	})
//
// Nested calls join the outer transaction instead of opening a new one.
// Any error returned by fn rolls back everything written through Conn(ctx).
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.getTx(ctx) != nil {
		return fn(ctx)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Conn returns the transaction stored on ctx, or the pool when there is none
func (db *DB) Conn(ctx context.Context) Querier {
	if tx := db.getTx(ctx); tx != nil {
		return tx
	}
	return db.DB
}

// InTransaction reports whether ctx carries an open transaction
func (db *DB) InTransaction(ctx context.Context) bool {
	return db.getTx(ctx) != nil
}

// getTx extracts transaction from context if present
func (db *DB) getTx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}
