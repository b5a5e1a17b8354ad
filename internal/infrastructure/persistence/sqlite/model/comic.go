package model

import "comicshelf/internal/domain/comic"

// Comic is one cached row. Ordinal is allocated by the repository, never by
// SQLite, so it can go below zero for prepended pages.
type Comic struct {
	Ordinal            int64                    `gorm:"column:ordinal;primaryKey;autoIncrement:false"`
	ComicID            int64                    `gorm:"column:comic_id;not null;uniqueIndex"`
	Title              string                   `gorm:"column:title;type:text;not null"`
	Description        string                   `gorm:"column:description;type:text;not null"`
	ThumbnailPath      string                   `gorm:"column:thumbnail_path;type:text;not null"`
	ThumbnailExtension string                   `gorm:"column:thumbnail_extension;type:text;not null"`
	TextObjects        []comic.TextObject       `gorm:"column:text_objects;type:text;serializer:json"`
	Creators           []comic.CreatorSummary   `gorm:"column:creators;type:text;serializer:json"`
	Characters         []comic.CharacterSummary `gorm:"column:characters;type:text;serializer:json"`
}

func (Comic) TableName() string {
	return "comics"
}
