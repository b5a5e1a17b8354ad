package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"comicshelf/internal/errs"
	"comicshelf/internal/infrastructure/persistence/sqlite/model"
	"comicshelf/internal/ports"
)

// SQLiteCache is a TTL-aware key-value table. Calls made with a transaction in
// context join it, so cache writes can commit atomically with cache pages.
type SQLiteCache struct {
	db  *gorm.DB
	now func() time.Time
}

var _ ports.Cache = (*SQLiteCache)(nil)

func NewSQLiteCache(db *gorm.DB) *SQLiteCache {
	return &SQLiteCache{db: db, now: time.Now}
}

func (c *SQLiteCache) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return c.db.WithContext(ctx), nil
	}
	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (c *SQLiteCache) Get(ctx context.Context, key string) (string, bool, error) {
	db, err := c.dbFromContext(ctx)
	if err != nil {
		return "", false, err
	}

	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return "", false, errors.New("key is required")
	}

	var row model.KV
	if err := db.Where("key = ?", trimmedKey).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, errs.Store(errs.Wrap(err, "query cache by key"))
	}

	if row.ExpiresAt > 0 && c.now().UnixNano() >= row.ExpiresAt {
		return "", false, nil
	}
	return row.Value, true, nil
}

func (c *SQLiteCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	db, err := c.dbFromContext(ctx)
	if err != nil {
		return err
	}

	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return errors.New("key is required")
	}

	now := c.now().UTC()
	row := model.KV{
		Key:       trimmedKey,
		Value:     value,
		UpdatedAt: now.Format(time.RFC3339Nano),
	}
	if ttl > 0 {
		row.ExpiresAt = now.Add(ttl).UnixNano()
	}

	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":                row.Value,
			"updated_at":           row.UpdatedAt,
			"expires_at_unix_nano": row.ExpiresAt,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Store(errs.Wrap(err, "upsert cache key"))
	}

	return nil
}

func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	db, err := c.dbFromContext(ctx)
	if err != nil {
		return err
	}

	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return errors.New("key is required")
	}

	if err := db.Where("key = ?", trimmedKey).Delete(&model.KV{}).Error; err != nil {
		return errs.Store(errs.Wrap(err, "delete cache key"))
	}
	return nil
}

// PurgeExpired drops every expired entry and reports how many were removed.
func (c *SQLiteCache) PurgeExpired(ctx context.Context) (int64, error) {
	db, err := c.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	result := db.Where("expires_at_unix_nano > 0 AND expires_at_unix_nano <= ?", c.now().UnixNano()).Delete(&model.KV{})
	if result.Error != nil {
		return 0, errs.Store(errs.Wrap(result.Error, "purge expired cache keys"))
	}
	return result.RowsAffected, nil
}
