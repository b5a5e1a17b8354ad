package ports

import (
	"context"
	"time"

	"comicshelf/internal/domain/comic"
)

// Placement decides where new ordinals go relative to the cached rows.
type Placement int

const (
	// PlaceAfter allocates ordinals above the current maximum (0 on an empty table).
	PlaceAfter Placement = iota
	// PlaceBefore allocates ordinals below the current minimum.
	PlaceBefore
)

// ComicStore is the ordered cache of comics. Positions (offset) count rows in
// ordinal order.
type ComicStore interface {
	ReadRange(ctx context.Context, offset int, count int) ([]comic.Comic, error)
	Count(ctx context.Context) (int, error)
	CountBefore(ctx context.Context, ordinal int64) (int, error)
	GetByID(ctx context.Context, id int64) (comic.Comic, error)
	UpsertAll(ctx context.Context, comics []comic.Comic, placement Placement) error
	DeleteAll(ctx context.Context) error
}

// RemoteKeyStore keeps one cursor per cached comic.
type RemoteKeyStore interface {
	Get(ctx context.Context, comicID int64) (key comic.RemoteKey, found bool, err error)
	UpsertAll(ctx context.Context, keys []comic.RemoteKey) error
	DeleteAll(ctx context.Context) error
	OldestCreatedAt(ctx context.Context) (oldest time.Time, found bool, err error)
	Count(ctx context.Context) (int, error)
}
