package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction/executor handle. Repositories accept it as the
// first argument after ctx; nil means "use the pool directly".
type Tx = any

// TransactionManager wraps a function in a database transaction.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
