package paging

import (
	"errors"
	"testing"

	"comicshelf/internal/domain/comic"
)

func pageOf(ids ...int64) Page {
	items := make([]comic.Comic, 0, len(ids))
	for _, id := range ids {
		items = append(items, comic.Comic{ID: id})
	}
	return Page{Items: items}
}

func TestPagingStateFirstAndLastSkipEmptyPages(t *testing.T) {
	state := PagingState{Pages: []Page{{}, pageOf(1, 2), pageOf(3), {}}}

	first, ok := state.FirstItem()
	if !ok || first.ID != 1 {
		t.Fatalf("FirstItem() = %d, %v", first.ID, ok)
	}
	last, ok := state.LastItem()
	if !ok || last.ID != 3 {
		t.Fatalf("LastItem() = %d, %v", last.ID, ok)
	}

	if _, ok := (PagingState{}).FirstItem(); ok {
		t.Fatalf("FirstItem() on empty state should be false")
	}
}

func TestClosestItemToPositionClamps(t *testing.T) {
	state := PagingState{Pages: []Page{pageOf(1, 2), pageOf(3, 4)}}

	cases := map[int]int64{-5: 1, 0: 1, 2: 3, 3: 4, 99: 4}
	for pos, want := range cases {
		got, ok := state.ClosestItemToPosition(pos)
		if !ok || got.ID != want {
			t.Fatalf("ClosestItemToPosition(%d) = %d, %v want %d", pos, got.ID, ok, want)
		}
	}

	if _, ok := state.ClosestItemToAnchor(); ok {
		t.Fatalf("ClosestItemToAnchor() without anchor should be false")
	}
	anchor := 1
	state.AnchorPosition = &anchor
	if got, ok := state.ClosestItemToAnchor(); !ok || got.ID != 2 {
		t.Fatalf("ClosestItemToAnchor() = %d, %v", got.ID, ok)
	}
}

func TestStateFromResult(t *testing.T) {
	boom := errors.New("boom")

	if st, ok := StateFromResult(Success{EndOfPaginationReached: true}).(NotLoading); !ok || !st.EndOfPaginationReached {
		t.Fatalf("StateFromResult(success) = %#v", st)
	}
	st, ok := StateFromResult(Failure{Err: boom}).(LoadError)
	if !ok || !errors.Is(st.Err, boom) {
		t.Fatalf("StateFromResult(failure) = %#v", st)
	}
}

func TestLoadStatesFirstError(t *testing.T) {
	boom := errors.New("boom")
	states := IdleLoadStates().With(LoadAppend, LoadError{Err: boom})

	loadType, err := states.FirstError()
	if loadType != LoadAppend || !errors.Is(err, boom) {
		t.Fatalf("FirstError() = %s, %v", loadType, err)
	}
	if _, err := IdleLoadStates().FirstError(); err != nil {
		t.Fatalf("FirstError() on idle = %v", err)
	}
	if Describe(states.Append) != "error: boom" || Describe(states.Prepend) != "idle" {
		t.Fatalf("Describe() = %q / %q", Describe(states.Append), Describe(states.Prepend))
	}
}
