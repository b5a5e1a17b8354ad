package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"comicshelf/internal/domain/comic"
	"comicshelf/internal/errs"
	"comicshelf/internal/infrastructure/persistence/sqlite/model"
	"comicshelf/internal/ports"
)

// RemoteKeyRepository is the Cursor Store: one row per cached comic.
type RemoteKeyRepository struct {
	db      *gorm.DB
	tracker ports.InvalidationTracker
}

var _ ports.RemoteKeyStore = (*RemoteKeyRepository)(nil)

func NewRemoteKeyRepository(db *gorm.DB, tracker ports.InvalidationTracker) *RemoteKeyRepository {
	return &RemoteKeyRepository{db: db, tracker: tracker}
}

func (r *RemoteKeyRepository) Get(ctx context.Context, comicID int64) (comic.RemoteKey, bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return comic.RemoteKey{}, false, err
	}

	var row model.RemoteKey
	if err := db.Where("comic_id = ?", comicID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return comic.RemoteKey{}, false, nil
		}
		return comic.RemoteKey{}, false, errs.Store(errs.Wrap(err, "query remote key"))
	}
	return mapRemoteKey(row), true, nil
}

func (r *RemoteKeyRepository) UpsertAll(ctx context.Context, keys []comic.RemoteKey) error {
	if len(keys) == 0 {
		return nil
	}
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	rows := make([]model.RemoteKey, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, model.RemoteKey{
			ComicID:           key.ComicID,
			PrevKey:           key.PrevKey,
			NextKey:           key.NextKey,
			CreatedAtUnixNano: key.CreatedAt.UnixNano(),
		})
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "comic_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"prev_key", "next_key", "created_at_unix_nano"}),
	}).Create(&rows).Error; err != nil {
		return errs.Store(errs.Wrapf(err, "upsert %d remote keys", len(rows)))
	}

	ports.PublishChanged(ctx, r.tracker, ports.TableRemoteKeys)
	return nil
}

func (r *RemoteKeyRepository) DeleteAll(ctx context.Context) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.RemoteKey{}).Error; err != nil {
		return errs.Store(errs.Wrap(err, "delete remote keys"))
	}

	ports.PublishChanged(ctx, r.tracker, ports.TableRemoteKeys)
	return nil
}

func (r *RemoteKeyRepository) OldestCreatedAt(ctx context.Context) (time.Time, bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return time.Time{}, false, err
	}

	var oldest sql.NullInt64
	if err := db.Model(&model.RemoteKey{}).Select("MIN(created_at_unix_nano)").Row().Scan(&oldest); err != nil {
		return time.Time{}, false, errs.Store(errs.Wrap(err, "query oldest remote key"))
	}
	if !oldest.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(0, oldest.Int64).UTC(), true, nil
}

func (r *RemoteKeyRepository) Count(ctx context.Context) (int, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.RemoteKey{}).Count(&count).Error; err != nil {
		return 0, errs.Store(errs.Wrap(err, "count remote keys"))
	}
	return int(count), nil
}

func mapRemoteKey(row model.RemoteKey) comic.RemoteKey {
	return comic.RemoteKey{
		ComicID:   row.ComicID,
		PrevKey:   row.PrevKey,
		NextKey:   row.NextKey,
		CreatedAt: time.Unix(0, row.CreatedAtUnixNano).UTC(),
	}
}
