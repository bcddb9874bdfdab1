package database

import (
	"context"
	"database/sql"
	"time"

	"media-library/internal/metrics"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// BeginTransaction opens the store's single write transaction. Writes made
// through the Database until Commit or Rollback run inside it.
//
// The transaction is not bound to a context: its lifetime is managed by
// Commit and Rollback.
func (d *Database) BeginTransaction() error {
	start := time.Now()
	var err error
	defer func() { recordQuery("begin_transaction", start, err) }()

	d.txMu.Lock()
	defer d.txMu.Unlock()

	if d.tx != nil {
		err = ErrTransactionActive
		return err
	}

	tx, err := d.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	d.tx = tx
	d.txStart = time.Now()
	return nil
}

// Commit commits the open write transaction.
func (d *Database) Commit() error {
	return d.endTransaction("commit", (*sql.Tx).Commit)
}

// Rollback aborts the open write transaction.
func (d *Database) Rollback() error {
	return d.endTransaction("rollback", (*sql.Tx).Rollback)
}

func (d *Database) endTransaction(op string, end func(*sql.Tx) error) error {
	start := time.Now()
	var err error
	defer func() { recordQuery(op, start, err) }()

	d.txMu.Lock()
	tx, txStart := d.tx, d.txStart
	d.tx = nil
	d.txMu.Unlock()

	if tx == nil {
		err = ErrNoTransaction
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues(op).Observe(time.Since(txStart).Seconds())
	err = end(tx)
	return err
}

// InTransaction reports whether a write transaction is open.
func (d *Database) InTransaction() bool {
	d.txMu.Lock()
	defer d.txMu.Unlock()
	return d.tx != nil
}

// writer returns the open transaction, or the pool when none is open.
func (d *Database) writer() queryer {
	d.txMu.Lock()
	defer d.txMu.Unlock()
	if d.tx != nil {
		return d.tx
	}
	return d.db
}
