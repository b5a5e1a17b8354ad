package paging

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"comicshelf/internal/domain/comic"
	domainpaging "comicshelf/internal/domain/paging"
	"comicshelf/internal/errs"
	cacheinfra "comicshelf/internal/infrastructure/cache"
	"comicshelf/internal/infrastructure/persistence/sqlite/repository"
	"comicshelf/internal/infrastructure/persistence/sqlite/sqlitetest"
	"comicshelf/internal/infrastructure/persistence/sqlite/tracker"
	"comicshelf/internal/infrastructure/persistence/sqlite/uow"
	"comicshelf/internal/ports"
)

// fakeSource serves scripted pages by page number and records every request.
type fakeSource struct {
	mu          sync.Mutex
	pageSize    int
	pages       map[int][]comic.Comic
	details     map[int64]comic.Comic
	err         error
	requests    []ports.ComicPageRequest
	detailCalls int

	// Requests matching blockSort wait for block (or cancellation).
	block     chan struct{}
	blockSort comic.SortOrder
	entered   chan ports.ComicPageRequest

	// afterFetch runs once the page is ready, before it is returned.
	afterFetch func()
}

func newFakeSource(pageSize int) *fakeSource {
	return &fakeSource{
		pageSize: pageSize,
		pages:    make(map[int][]comic.Comic),
		details:  make(map[int64]comic.Comic),
		entered:  make(chan ports.ComicPageRequest, 64),
	}
}

// catalog splits n comics starting at firstID into pages.
func (f *fakeSource) catalog(firstID int64, n int) []comic.Comic {
	items := sqlitetest.Comics(firstID, n)
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < n; i += f.pageSize {
		page := i/f.pageSize + 1
		f.pages[page] = items[i:min(i+f.pageSize, n)]
	}
	return items
}

func (f *fakeSource) setPage(page int, items []comic.Comic) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[page] = items
}

func (f *fakeSource) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSource) FetchComics(ctx context.Context, req ports.ComicPageRequest) ([]comic.Comic, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	page := req.Offset/req.Limit + 1
	items := slices.Clone(f.pages[page])
	err := f.err
	block := f.block
	blocked := block != nil && (f.blockSort == "" || f.blockSort == req.Sort)
	after := f.afterFetch
	f.mu.Unlock()

	select {
	case f.entered <- req:
	default:
	}

	if blocked {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, errs.Transport(errs.Wrap(ctx.Err(), "fetch comics"))
		}
	}
	if err != nil {
		return nil, err
	}
	if after != nil {
		after()
	}
	return items, nil
}

func (f *fakeSource) FetchComic(_ context.Context, id int64) (comic.Comic, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++
	if f.err != nil {
		return comic.Comic{}, false, f.err
	}
	item, ok := f.details[id]
	return item, ok, nil
}

func (f *fakeSource) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeSource) lastRequest() ports.ComicPageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeSource) detailCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailCalls
}

type testEnv struct {
	comics  *repository.ComicRepository
	keys    *repository.RemoteKeyRepository
	uow     *uow.UnitOfWork
	cache   *cacheinfra.SQLiteCache
	tracker *tracker.Tracker
	source  *fakeSource
	deps    Deps
	cfg     Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvOn(t, sqlitetest.Open(t))
}

func newTestEnvOn(t *testing.T, db *gorm.DB) *testEnv {
	t.Helper()

	tr := tracker.New()
	cfg := Config{
		PageSize:         20,
		InitialLoadSize:  20,
		PrefetchDistance: 5,
		FreshnessWindow:  30 * time.Minute,
		StartingPage:     1,
	}.WithDefaults()

	env := &testEnv{
		comics:  repository.NewComicRepository(db, tr),
		keys:    repository.NewRemoteKeyRepository(db, tr),
		uow:     uow.NewUnitOfWork(db, tr),
		cache:   cacheinfra.NewSQLiteCache(db),
		tracker: tr,
		source:  newFakeSource(cfg.PageSize),
		cfg:     cfg,
	}
	env.deps = Deps{
		Source:     env.source,
		Comics:     env.comics,
		RemoteKeys: env.keys,
		UnitOfWork: env.uow,
		Cache:      env.cache,
		Tracker:    tr,
	}
	return env
}

func (e *testEnv) mediator(q comic.Query, now time.Time) *Mediator {
	m := NewMediator(q, e.cfg, e.deps)
	m.now = func() time.Time { return now }
	return m
}

// seed writes comics and their keys as if they arrived on page.
func (e *testEnv) seed(t *testing.T, q comic.Query, page int, items []comic.Comic, createdAt time.Time) {
	t.Helper()
	ctx := context.Background()
	err := e.uow.WithTx(ctx, func(ctx context.Context) error {
		if err := e.keys.UpsertAll(ctx, comic.KeysForPage(items, page, e.cfg.StartingPage, createdAt)); err != nil {
			return err
		}
		if err := e.comics.UpsertAll(ctx, items, ports.PlaceAfter); err != nil {
			return err
		}
		return e.cache.Set(ctx, queryMarkerKey, q.Key(), 0)
	})
	if err != nil {
		t.Fatalf("seed page %d: %v", page, err)
	}
}

func (e *testEnv) counts(t *testing.T) (int, int) {
	t.Helper()
	ctx := context.Background()
	comics, err := e.comics.Count(ctx)
	if err != nil {
		t.Fatalf("count comics: %v", err)
	}
	keys, err := e.keys.Count(ctx)
	if err != nil {
		t.Fatalf("count keys: %v", err)
	}
	return comics, keys
}

func (e *testEnv) cached(t *testing.T) []comic.Comic {
	t.Helper()
	items, err := e.comics.ReadRange(context.Background(), 0, 1000)
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}
	return items
}

// stateOf is a PagingState holding items as one page.
func stateOf(items []comic.Comic, anchor *int) domainpaging.PagingState {
	state := domainpaging.PagingState{AnchorPosition: anchor}
	if len(items) > 0 {
		state.Pages = []domainpaging.Page{{Items: items}}
	}
	return state
}
