package uow

import (
	"context"

	"gorm.io/gorm"

	"comicshelf/internal/ports"
)

// UnitOfWork implements ports.UnitOfWork with gorm. Nested calls join the
// outer transaction.
type UnitOfWork struct {
	db      *gorm.DB
	tracker ports.InvalidationTracker
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db *gorm.DB, tracker ports.InvalidationTracker) *UnitOfWork {
	return &UnitOfWork{db: db, tracker: tracker}
}

func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ports.TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	var txCtx context.Context
	if err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx = ports.WithTxContext(ctx, tx)
		return fn(txCtx)
	}); err != nil {
		return err
	}

	if u.tracker != nil {
		if tables := ports.ChangedTables(txCtx); len(tables) > 0 {
			u.tracker.Notify(tables...)
		}
	}
	return nil
}
