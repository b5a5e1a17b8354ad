package paging

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"comicshelf/internal/domain/comic"
	domainpaging "comicshelf/internal/domain/paging"
	"comicshelf/internal/errs"
	"comicshelf/internal/infrastructure/persistence/sqlite/sqlitetest"
	"comicshelf/internal/ports"
)

func startPager(t *testing.T, env *testEnv, q comic.Query) *Pager {
	t.Helper()
	p := NewPager(context.Background(), q, env.cfg, env.deps)
	t.Cleanup(p.Close)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return p
}

func requireNotLoading(t *testing.T, state domainpaging.LoadState, wantEnd bool) {
	t.Helper()
	st, ok := state.(domainpaging.NotLoading)
	if !ok {
		t.Fatalf("state = %s, want not loading", domainpaging.Describe(state))
	}
	if st.EndOfPaginationReached != wantEnd {
		t.Fatalf("end of pagination = %v, want %v", st.EndOfPaginationReached, wantEnd)
	}
}

func TestPagerStartLaunchesRefresh(t *testing.T) {
	env := newTestEnv(t)
	catalog := env.source.catalog(1, 45)

	p := startPager(t, env, testQuery)
	snap := p.Snapshot()

	if got := comic.IDs(snap.Items); !slices.Equal(got, comic.IDs(catalog[:20])) {
		t.Fatalf("window = %v", got)
	}
	if snap.ItemsBefore != 0 || snap.ItemsAfter != 0 {
		t.Fatalf("before/after = %d/%d", snap.ItemsBefore, snap.ItemsAfter)
	}
	requireNotLoading(t, snap.States.Refresh, false)
	if env.source.requestCount() != 1 {
		t.Fatalf("requests = %d, want 1", env.source.requestCount())
	}
}

func TestPagerAppendsUntilRemoteIsExhausted(t *testing.T) {
	env := newTestEnv(t)
	catalog := env.source.catalog(1, 45)
	p := startPager(t, env, testQuery)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := p.Append(ctx); err != nil {
			t.Fatalf("Append() #%d error = %v", i, err)
		}
	}

	snap := p.Snapshot()
	if got := comic.IDs(snap.Items); !slices.Equal(got, comic.IDs(catalog)) {
		t.Fatalf("window = %v", got)
	}
	requireNotLoading(t, snap.States.Append, true)

	requests := env.source.requestCount()
	if err := p.Append(ctx); err != nil {
		t.Fatalf("Append() after end error = %v", err)
	}
	if env.source.requestCount() != requests {
		t.Fatalf("append after end fetched again")
	}
}

func TestPagerSkipsRefreshForFreshCache(t *testing.T) {
	env := newTestEnv(t)
	catalog := env.source.catalog(1, 40)
	first := startPager(t, env, testQuery)
	if err := first.Append(context.Background()); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	first.Close()
	requests := env.source.requestCount()

	second := startPager(t, env, testQuery)
	snap := second.Snapshot()
	if env.source.requestCount() != requests {
		t.Fatalf("fresh cache was fetched again")
	}
	if got := comic.IDs(snap.Items); !slices.Equal(got, comic.IDs(catalog[:20])) {
		t.Fatalf("window = %v", got)
	}
	if snap.ItemsAfter != 20 {
		t.Fatalf("items after = %d, want 20", snap.ItemsAfter)
	}

	// The second page comes from the cache.
	if err := second.Append(context.Background()); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if env.source.requestCount() != requests {
		t.Fatalf("cached page was fetched")
	}
	if n := len(second.Snapshot().Items); n != 40 {
		t.Fatalf("window size = %d, want 40", n)
	}
}

func TestPagerPrependsFromRemote(t *testing.T) {
	env := newTestEnv(t)
	page1 := sqlitetest.Comics(1, 20)
	page2 := sqlitetest.Comics(21, 20)
	env.seed(t, testQuery, 2, page2, time.Now())
	env.source.setPage(1, page1)

	p := startPager(t, env, testQuery)
	if got := comic.IDs(p.Snapshot().Items); !slices.Equal(got, comic.IDs(page2)) {
		t.Fatalf("initial window = %v", got)
	}

	if err := p.Prepend(context.Background()); err != nil {
		t.Fatalf("Prepend() error = %v", err)
	}
	snap := p.Snapshot()
	want := append(comic.IDs(page1), comic.IDs(page2)...)
	if got := comic.IDs(snap.Items); !slices.Equal(got, want) {
		t.Fatalf("window = %v, want %v", got, want)
	}
	if snap.ItemsBefore != 0 {
		t.Fatalf("items before = %d", snap.ItemsBefore)
	}
	requireNotLoading(t, snap.States.Prepend, false)

	if err := p.Prepend(context.Background()); err != nil {
		t.Fatalf("second Prepend() error = %v", err)
	}
	requireNotLoading(t, p.Snapshot().States.Prepend, true)
	if env.source.requestCount() != 1 {
		t.Fatalf("requests = %d, want 1", env.source.requestCount())
	}
}

func TestPagerAccessPrefetches(t *testing.T) {
	env := newTestEnv(t)
	env.source.catalog(1, 60)
	p := startPager(t, env, testQuery)
	ctx := context.Background()

	if err := p.Access(ctx, 10); err != nil {
		t.Fatalf("Access(10) error = %v", err)
	}
	if n := len(p.Snapshot().Items); n != 20 {
		t.Fatalf("window grew to %d before reaching the prefetch distance", n)
	}

	if err := p.Access(ctx, 16); err != nil {
		t.Fatalf("Access(16) error = %v", err)
	}
	if n := len(p.Snapshot().Items); n != 40 {
		t.Fatalf("window = %d, want 40", n)
	}
}

func TestPagerRetryReloadsFailedDirection(t *testing.T) {
	env := newTestEnv(t)
	catalog := env.source.catalog(1, 40)
	p := startPager(t, env, testQuery)
	ctx := context.Background()

	env.source.setErr(errs.Transport(errors.New("timeout")))
	if err := p.Append(ctx); err == nil {
		t.Fatalf("Append() should fail")
	}
	snap := p.Snapshot()
	if _, ok := snap.States.Append.(domainpaging.LoadError); !ok {
		t.Fatalf("append state = %s", domainpaging.Describe(snap.States.Append))
	}
	if loadType, err := snap.States.FirstError(); err == nil || loadType != domainpaging.LoadAppend {
		t.Fatalf("FirstError() = %s, %v", loadType, err)
	}
	if len(snap.Items) != 20 {
		t.Fatalf("window changed on failure: %d", len(snap.Items))
	}

	env.source.setErr(nil)
	if err := p.Retry(ctx); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	snap = p.Snapshot()
	if got := comic.IDs(snap.Items); !slices.Equal(got, comic.IDs(catalog)) {
		t.Fatalf("window after retry = %v", got)
	}
	requireNotLoading(t, snap.States.Append, false)

	if err := p.Retry(ctx); err != nil {
		t.Fatalf("Retry() with nothing failed = %v", err)
	}
}

func TestPagerFailedInitialRefreshBlocksRemoteLoads(t *testing.T) {
	env := newTestEnv(t)
	env.source.catalog(1, 40)
	env.source.setErr(errs.Transport(errors.New("offline")))

	p := NewPager(context.Background(), testQuery, env.cfg, env.deps)
	t.Cleanup(p.Close)
	if err := p.Start(context.Background()); err == nil {
		t.Fatalf("Start() should report the failed refresh")
	}
	if _, ok := p.Snapshot().States.Refresh.(domainpaging.LoadError); !ok {
		t.Fatalf("refresh state = %s", domainpaging.Describe(p.Snapshot().States.Refresh))
	}

	requests := env.source.requestCount()
	if err := p.Append(context.Background()); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if env.source.requestCount() != requests {
		t.Fatalf("append ran before the initial refresh succeeded")
	}

	env.source.setErr(nil)
	if err := p.Retry(context.Background()); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if n := len(p.Snapshot().Items); n != 20 {
		t.Fatalf("window after retry = %d", n)
	}
}

func TestPagerRefreshResetsWindow(t *testing.T) {
	env := newTestEnv(t)
	env.source.catalog(1, 60)
	p := startPager(t, env, testQuery)
	ctx := context.Background()

	if err := p.Append(ctx); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	fresh := sqlitetest.Comics(1000, 20)
	env.source.setPage(1, fresh)

	if err := p.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	snap := p.Snapshot()
	if got := comic.IDs(snap.Items); !slices.Equal(got, comic.IDs(fresh)) {
		t.Fatalf("window = %v", got)
	}
	if comics, _ := env.counts(t); comics != 20 {
		t.Fatalf("cache size after refresh = %d", comics)
	}
}

func TestPagerCoalescesConcurrentAppends(t *testing.T) {
	env := newTestEnv(t)
	env.source.catalog(1, 45)
	p := startPager(t, env, testQuery)
	<-env.source.entered

	env.source.mu.Lock()
	env.source.block = make(chan struct{})
	env.source.mu.Unlock()

	ctx := context.Background()
	var wg sync.WaitGroup
	results := make(chan error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results <- p.Append(ctx)
	}()
	<-env.source.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		results <- p.Append(ctx)
	}()
	time.Sleep(50 * time.Millisecond)
	close(env.source.block)
	wg.Wait()
	close(results)

	for err := range results {
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if env.source.requestCount() != 2 {
		t.Fatalf("requests = %d, want refresh + one append", env.source.requestCount())
	}
	if n := len(p.Snapshot().Items); n != 40 {
		t.Fatalf("window = %d, want 40", n)
	}
}

func TestPagerSubscribeSeesCacheChanges(t *testing.T) {
	env := newTestEnv(t)
	env.source.catalog(1, 40)
	p := startPager(t, env, testQuery)

	updates, cancel := p.Subscribe()
	defer cancel()
	first := <-updates
	if len(first.Items) != 20 {
		t.Fatalf("first snapshot = %d items", len(first.Items))
	}

	// An out-of-band change to a cached row is re-emitted.
	changed := first.Items[0]
	changed.Title = "Retitled"
	if err := env.comics.UpsertAll(context.Background(), []comic.Comic{changed}, ports.PlaceAfter); err != nil {
		t.Fatalf("UpsertAll() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-updates:
			if len(snap.Items) > 0 && snap.Items[0].Title == "Retitled" {
				if snap.Version <= first.Version {
					t.Fatalf("version did not advance")
				}
				return
			}
		case <-deadline:
			t.Fatalf("no snapshot with the changed row")
		}
	}
}

func TestPagerCloseEndsSubscriptions(t *testing.T) {
	env := newTestEnv(t)
	env.source.catalog(1, 20)
	p := startPager(t, env, testQuery)

	updates, _ := p.Subscribe()
	<-updates
	p.Close()

	if _, ok := <-updates; ok {
		t.Fatalf("subscription still open after Close")
	}
	if err := p.Append(context.Background()); !errors.Is(err, ErrPagerClosed) {
		t.Fatalf("Append() after Close = %v", err)
	}
}

func TestPagerPrependReanchorsWithoutTracker(t *testing.T) {
	env := newTestEnv(t)
	env.deps.Tracker = nil
	page1 := sqlitetest.Comics(1, 20)
	page2 := sqlitetest.Comics(21, 20)
	env.seed(t, testQuery, 2, page2, time.Now())
	env.source.setPage(1, page1)

	p := startPager(t, env, testQuery)
	if err := p.Prepend(context.Background()); err != nil {
		t.Fatalf("Prepend() error = %v", err)
	}

	snap := p.Snapshot()
	want := append(comic.IDs(page1), comic.IDs(page2)...)
	if got := comic.IDs(snap.Items); !slices.Equal(got, want) {
		t.Fatalf("window = %v, want %v", got, want)
	}
	if snap.ItemsBefore != 0 || snap.ItemsAfter != 0 {
		t.Fatalf("before/after = %d/%d", snap.ItemsBefore, snap.ItemsAfter)
	}
}
