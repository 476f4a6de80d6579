package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes a function inside a database transaction,
// passing the transaction handle to repositories via the opaque Tx argument.
//
// Keeps use-case interfaces clean: no driver types leak out, and repository
// methods accepting a Tx can detect a transaction handle implementation-side
// (row locks, tx-bound Exec/Query). Repositories MUST gracefully accept a nil
// Tx and fall back to the pool.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
