package repository

import (
	"context"
	"errors"
	"slices"
	"testing"

	"gorm.io/gorm"

	"comicshelf/internal/domain/comic"
	"comicshelf/internal/errs"
	"comicshelf/internal/infrastructure/persistence/sqlite/sqlitetest"
	"comicshelf/internal/infrastructure/persistence/sqlite/tracker"
	"comicshelf/internal/ports"
)

func setupComicRepository(t *testing.T) (*ComicRepository, *tracker.Tracker, *gorm.DB) {
	t.Helper()
	db := sqlitetest.Open(t)
	tr := tracker.New()
	return NewComicRepository(db, tr), tr, db
}

func ordinals(items []comic.Comic) []int64 {
	out := make([]int64, 0, len(items))
	for _, c := range items {
		out = append(out, c.Ordinal)
	}
	return out
}

func TestUpsertAllAllocatesOrdinalsFromZero(t *testing.T) {
	repo, tr, _ := setupComicRepository(t)
	ctx := context.Background()

	if err := repo.UpsertAll(ctx, sqlitetest.Comics(100, 3), ports.PlaceAfter); err != nil {
		t.Fatalf("UpsertAll() error = %v", err)
	}
	if err := repo.UpsertAll(ctx, sqlitetest.Comics(200, 2), ports.PlaceAfter); err != nil {
		t.Fatalf("UpsertAll(second) error = %v", err)
	}

	items, err := repo.ReadRange(ctx, 0, 10)
	if err != nil {
		t.Fatalf("ReadRange() error = %v", err)
	}
	if got := ordinals(items); !slices.Equal(got, []int64{0, 1, 2, 3, 4}) {
		t.Fatalf("ordinals = %v", got)
	}
	if got := comic.IDs(items); !slices.Equal(got, []int64{100, 101, 102, 200, 201}) {
		t.Fatalf("ids = %v", got)
	}
	if tr.Version(ports.TableComics) != 2 {
		t.Fatalf("tracker version = %d, want 2", tr.Version(ports.TableComics))
	}
}

func TestUpsertAllPlaceBeforeKeepsPageOrder(t *testing.T) {
	repo, _, _ := setupComicRepository(t)
	ctx := context.Background()

	if err := repo.UpsertAll(ctx, sqlitetest.Comics(300, 2), ports.PlaceAfter); err != nil {
		t.Fatalf("UpsertAll() error = %v", err)
	}
	if err := repo.UpsertAll(ctx, sqlitetest.Comics(100, 3), ports.PlaceBefore); err != nil {
		t.Fatalf("UpsertAll(before) error = %v", err)
	}

	items, err := repo.ReadRange(ctx, 0, 10)
	if err != nil {
		t.Fatalf("ReadRange() error = %v", err)
	}
	if got := comic.IDs(items); !slices.Equal(got, []int64{100, 101, 102, 300, 301}) {
		t.Fatalf("ids = %v", got)
	}
	if got := ordinals(items); !slices.Equal(got, []int64{-3, -2, -1, 0, 1}) {
		t.Fatalf("ordinals = %v", got)
	}

	before, err := repo.CountBefore(ctx, 0)
	if err != nil || before != 3 {
		t.Fatalf("CountBefore(0) = %d, %v", before, err)
	}
}

func TestUpsertAllReplacesPayloadAndKeepsOrdinal(t *testing.T) {
	repo, _, _ := setupComicRepository(t)
	ctx := context.Background()

	if err := repo.UpsertAll(ctx, sqlitetest.Comics(1, 2), ports.PlaceAfter); err != nil {
		t.Fatalf("UpsertAll() error = %v", err)
	}

	updated := sqlitetest.Comics(2, 1)
	updated[0].Title = "Renamed"
	if err := repo.UpsertAll(ctx, updated, ports.PlaceAfter); err != nil {
		t.Fatalf("UpsertAll(update) error = %v", err)
	}

	got, err := repo.GetByID(ctx, 2)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Title != "Renamed" || got.Ordinal != 1 {
		t.Fatalf("GetByID() = %+v", got)
	}
	if n, _ := repo.Count(ctx); n != 2 {
		t.Fatalf("Count() = %d, want 2", n)
	}
}

func TestGetByIDRoundTripsNestedLists(t *testing.T) {
	repo, _, _ := setupComicRepository(t)
	ctx := context.Background()

	in := sqlitetest.Comics(42, 1)
	in[0].TextObjects = []comic.TextObject{{Type: "issue_solicit_text", Language: "en-us", Text: "It's the end."}}
	in[0].Characters = []comic.CharacterSummary{{Name: "Hulk"}}
	if err := repo.UpsertAll(ctx, in, ports.PlaceAfter); err != nil {
		t.Fatalf("UpsertAll() error = %v", err)
	}

	got, err := repo.GetByID(ctx, 42)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	want := in[0]
	want.Ordinal = 0
	if !got.Equal(want) {
		t.Fatalf("GetByID() = %+v, want %+v", got, want)
	}

	if _, err := repo.GetByID(ctx, 43); !errors.Is(err, comic.ErrComicNotFound) {
		t.Fatalf("GetByID(missing) err = %v", err)
	}
}

func TestDeleteAllClearsTable(t *testing.T) {
	repo, tr, _ := setupComicRepository(t)
	ctx := context.Background()

	if err := repo.UpsertAll(ctx, sqlitetest.Comics(1, 4), ports.PlaceAfter); err != nil {
		t.Fatalf("UpsertAll() error = %v", err)
	}
	if err := repo.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if n, _ := repo.Count(ctx); n != 0 {
		t.Fatalf("Count() = %d after DeleteAll", n)
	}
	if tr.Version(ports.TableComics) != 2 {
		t.Fatalf("tracker version = %d, want 2", tr.Version(ports.TableComics))
	}

	// ordinals restart once the table is empty
	if err := repo.UpsertAll(ctx, sqlitetest.Comics(9, 1), ports.PlaceAfter); err != nil {
		t.Fatalf("UpsertAll() error = %v", err)
	}
	got, _ := repo.GetByID(ctx, 9)
	if got.Ordinal != 0 {
		t.Fatalf("ordinal after reset = %d", got.Ordinal)
	}
}

func TestReadRangeHonorsOffsetAndCount(t *testing.T) {
	repo, _, _ := setupComicRepository(t)
	ctx := context.Background()

	if err := repo.UpsertAll(ctx, sqlitetest.Comics(1, 10), ports.PlaceAfter); err != nil {
		t.Fatalf("UpsertAll() error = %v", err)
	}

	items, err := repo.ReadRange(ctx, 8, 5)
	if err != nil {
		t.Fatalf("ReadRange() error = %v", err)
	}
	if got := comic.IDs(items); !slices.Equal(got, []int64{9, 10}) {
		t.Fatalf("ids = %v", got)
	}
	if items, _ := repo.ReadRange(ctx, 0, 0); len(items) != 0 {
		t.Fatalf("ReadRange(count=0) = %v", items)
	}
}

func TestReadRangeRejectsCancelledContext(t *testing.T) {
	repo, _, _ := setupComicRepository(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := repo.ReadRange(ctx, 0, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("ReadRange() err = %v", err)
	}
	if errs.KindOf(errs.Store(context.Canceled)) != errs.KindStore {
		t.Fatalf("store mark lost")
	}
}
