package ports

import (
	"context"
	"sort"
	"sync"
)

// Tx is an opaque transaction handle for repositories/adapters.
// Infrastructure controls the concrete type (for example, *gorm.DB).
type Tx interface{}

// UnitOfWork defines a transaction boundary.
//
// Callback-style: returning an error rolls back, returning nil commits.
// Tables written inside fn are announced to the InvalidationTracker only after
// the commit succeeds.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

type txScope struct {
	tx Tx

	mu      sync.Mutex
	changed map[string]struct{}
}

// WithTxContext stores a transaction handle in context and opens a fresh
// changed-table set for it.
func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, &txScope{tx: tx, changed: make(map[string]struct{})})
}

// TxFromContext reads a transaction handle from context.
func TxFromContext(ctx context.Context) Tx {
	if ctx == nil {
		return nil
	}
	scope, ok := ctx.Value(txKey{}).(*txScope)
	if !ok || scope == nil {
		return nil
	}
	return scope.tx
}

// MarkChanged records tables written inside the transaction carried by ctx.
// It returns false when ctx carries no transaction; the caller must then
// publish the change itself.
func MarkChanged(ctx context.Context, tables ...string) bool {
	if ctx == nil {
		return false
	}
	scope, ok := ctx.Value(txKey{}).(*txScope)
	if !ok || scope == nil {
		return false
	}

	scope.mu.Lock()
	defer scope.mu.Unlock()
	for _, table := range tables {
		scope.changed[table] = struct{}{}
	}
	return true
}

// ChangedTables lists the tables marked inside the transaction carried by ctx.
func ChangedTables(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	scope, ok := ctx.Value(txKey{}).(*txScope)
	if !ok || scope == nil {
		return nil
	}

	scope.mu.Lock()
	defer scope.mu.Unlock()
	out := make([]string, 0, len(scope.changed))
	for table := range scope.changed {
		out = append(out, table)
	}
	sort.Strings(out)
	return out
}
