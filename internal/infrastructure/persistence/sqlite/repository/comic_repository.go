package repository

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"comicshelf/internal/domain/comic"
	"comicshelf/internal/errs"
	"comicshelf/internal/infrastructure/persistence/sqlite/model"
	"comicshelf/internal/ports"
)

var comicPayloadColumns = []string{
	"title",
	"description",
	"thumbnail_path",
	"thumbnail_extension",
	"text_objects",
	"creators",
	"characters",
}

// ComicRepository is the Cache Store: comics ordered by a locally allocated
// ordinal.
type ComicRepository struct {
	db      *gorm.DB
	tracker ports.InvalidationTracker
}

var _ ports.ComicStore = (*ComicRepository)(nil)

func NewComicRepository(db *gorm.DB, tracker ports.InvalidationTracker) *ComicRepository {
	return &ComicRepository{db: db, tracker: tracker}
}

func (r *ComicRepository) ReadRange(ctx context.Context, offset int, count int) ([]comic.Comic, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if count <= 0 {
		return []comic.Comic{}, nil
	}

	var rows []model.Comic
	if err := db.Order("ordinal asc").Offset(offset).Limit(count).Find(&rows).Error; err != nil {
		return nil, errs.Store(errs.Wrap(err, "query comics range"))
	}

	items := make([]comic.Comic, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapComic(row))
	}
	return items, nil
}

func (r *ComicRepository) Count(ctx context.Context) (int, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.Comic{}).Count(&count).Error; err != nil {
		return 0, errs.Store(errs.Wrap(err, "count comics"))
	}
	return int(count), nil
}

func (r *ComicRepository) CountBefore(ctx context.Context, ordinal int64) (int, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.Comic{}).Where("ordinal < ?", ordinal).Count(&count).Error; err != nil {
		return 0, errs.Store(errs.Wrap(err, "count comics before ordinal"))
	}
	return int(count), nil
}

func (r *ComicRepository) GetByID(ctx context.Context, id int64) (comic.Comic, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return comic.Comic{}, err
	}

	var row model.Comic
	if err := db.Where("comic_id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return comic.Comic{}, comic.ErrComicNotFound
		}
		return comic.Comic{}, errs.Store(errs.Wrap(err, "query comic"))
	}
	return mapComic(row), nil
}

// UpsertAll writes comics in slice order. New rows get ordinals above the
// current maximum or below the current minimum depending on placement; a comic
// that is already cached keeps its ordinal and has its payload replaced.
func (r *ComicRepository) UpsertAll(ctx context.Context, comics []comic.Comic, placement ports.Placement) error {
	if len(comics) == 0 {
		return nil
	}

	if ports.TxFromContext(ctx) == nil {
		if err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return r.UpsertAll(ports.WithTxContext(ctx, tx), comics, placement)
		}); err != nil {
			return err
		}
		ports.PublishChanged(ctx, r.tracker, ports.TableComics)
		return nil
	}

	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	first, err := nextOrdinal(db, placement, len(comics))
	if err != nil {
		return err
	}

	rows := make([]model.Comic, 0, len(comics))
	for i, c := range comics {
		row := toComicRow(c)
		row.Ordinal = first + int64(i)
		rows = append(rows, row)
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "comic_id"}},
		DoUpdates: clause.AssignmentColumns(comicPayloadColumns),
	}).Create(&rows).Error; err != nil {
		return errs.Store(errs.Wrapf(err, "upsert %d comics", len(rows)))
	}

	ports.PublishChanged(ctx, r.tracker, ports.TableComics)
	return nil
}

func (r *ComicRepository) DeleteAll(ctx context.Context) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Comic{}).Error; err != nil {
		return errs.Store(errs.Wrap(err, "delete comics"))
	}

	ports.PublishChanged(ctx, r.tracker, ports.TableComics)
	return nil
}

// nextOrdinal returns the first ordinal of a block of n new rows.
func nextOrdinal(db *gorm.DB, placement ports.Placement, n int) (int64, error) {
	var lo, hi sql.NullInt64
	if err := db.Model(&model.Comic{}).Select("MIN(ordinal), MAX(ordinal)").Row().Scan(&lo, &hi); err != nil {
		return 0, errs.Store(errs.Wrap(err, "query ordinal bounds"))
	}
	if !lo.Valid || !hi.Valid {
		return 0, nil
	}
	if placement == ports.PlaceBefore {
		return lo.Int64 - int64(n), nil
	}
	return hi.Int64 + 1, nil
}

func toComicRow(c comic.Comic) model.Comic {
	return model.Comic{
		ComicID:            c.ID,
		Title:              c.Title,
		Description:        c.Description,
		ThumbnailPath:      c.Thumbnail.Path,
		ThumbnailExtension: c.Thumbnail.Extension,
		TextObjects:        c.TextObjects,
		Creators:           c.Creators,
		Characters:         c.Characters,
	}
}

func mapComic(row model.Comic) comic.Comic {
	return comic.Comic{
		ID:          row.ComicID,
		Ordinal:     row.Ordinal,
		Title:       row.Title,
		Description: row.Description,
		Thumbnail: comic.Image{
			Path:      row.ThumbnailPath,
			Extension: row.ThumbnailExtension,
		},
		TextObjects: row.TextObjects,
		Creators:    row.Creators,
		Characters:  row.Characters,
	}
}
