package paging

import (
	"context"
	"sync/atomic"

	"comicshelf/internal/domain/comic"
	"comicshelf/internal/errs"
	"comicshelf/internal/ports"
)

// SourcePage is one read of the cached list. Positions are row offsets in
// ordinal order.
type SourcePage struct {
	Items       []comic.Comic
	ItemsBefore int
	ItemsAfter  int
	// Invalid means the cache changed under this Source; discard the page and
	// read again through a new Source.
	Invalid bool
}

// Source reads the Cache Store only. It is bound to the comics table version
// it was created at and becomes invalid once that version moves on.
type Source struct {
	comics  ports.ComicStore
	uow     ports.UnitOfWork
	tracker ports.InvalidationTracker
	version uint64
	invalid atomic.Bool
}

func NewSource(comics ports.ComicStore, uow ports.UnitOfWork, tracker ports.InvalidationTracker) *Source {
	s := &Source{comics: comics, uow: uow, tracker: tracker}
	if tracker != nil {
		s.version = tracker.Version(ports.TableComics)
	}
	return s
}

// Invalidate marks the Source stale.
func (s *Source) Invalidate() {
	s.invalid.Store(true)
}

// Stale reports whether the cache changed since the Source was created.
func (s *Source) Stale() bool {
	if s.invalid.Load() {
		return true
	}
	if s.tracker != nil && s.tracker.Version(ports.TableComics) != s.version {
		s.invalid.Store(true)
		return true
	}
	return false
}

// Load reads length rows starting at position start. Range and count come from
// one read transaction so they agree with each other.
func (s *Source) Load(ctx context.Context, start int, length int) (SourcePage, error) {
	if s.Stale() {
		return SourcePage{Invalid: true}, nil
	}
	if start < 0 {
		start = 0
	}

	var page SourcePage
	err := s.uow.WithTx(ctx, func(ctx context.Context) error {
		items, err := s.comics.ReadRange(ctx, start, length)
		if err != nil {
			return err
		}
		total, err := s.comics.Count(ctx)
		if err != nil {
			return err
		}

		before := min(start, total)
		page = SourcePage{
			Items:       items,
			ItemsBefore: before,
			ItemsAfter:  max(total-before-len(items), 0),
		}
		return nil
	})
	if err != nil {
		return SourcePage{}, errs.Wrap(err, "read cached comics")
	}

	if s.Stale() {
		return SourcePage{Invalid: true}, nil
	}
	return page, nil
}

// PositionOf is the number of cached rows ordered before ordinal.
func (s *Source) PositionOf(ctx context.Context, ordinal int64) (int, error) {
	n, err := s.comics.CountBefore(ctx, ordinal)
	if err != nil {
		return 0, errs.Wrap(err, "locate cached comic")
	}
	return n, nil
}
