package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	dErrors "signup/pkg/domain-errors"
	txcontext "signup/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxRunner runs a function inside one Postgres transaction. Stores reached
// through the callback's context join it via pkg/platform/tx.
type TxRunner struct {
	db      beginner
	timeout time.Duration
}

func NewTxRunner(db beginner) *TxRunner {
	return &TxRunner{db: db, timeout: defaultTxTimeout}
}

func (t *TxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	tx, err := t.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
