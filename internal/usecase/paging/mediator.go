package paging

import (
	"context"
	"log/slog"
	"time"

	"comicshelf/internal/bootstrap/logging"
	"comicshelf/internal/domain/comic"
	domainpaging "comicshelf/internal/domain/paging"
	"comicshelf/internal/errs"
	"comicshelf/internal/ports"
)

// queryMarkerKey records which query the cached pages belong to.
const queryMarkerKey = "paging.cache_query"

// Deps are the collaborators shared by every query.
type Deps struct {
	Source     ports.ComicSource
	Comics     ports.ComicStore
	RemoteKeys ports.RemoteKeyStore
	UnitOfWork ports.UnitOfWork
	Cache      ports.Cache
	Tracker    ports.InvalidationTracker
}

// Mediator decides, for one query, which remote page to fetch and merges it
// into the cache. It performs at most one remote call per Load and never
// retries.
type Mediator struct {
	query  comic.Query
	cfg    Config
	source ports.ComicSource
	comics ports.ComicStore
	keys   ports.RemoteKeyStore
	uow    ports.UnitOfWork
	cache  ports.Cache
	now    func() time.Time
}

func NewMediator(query comic.Query, cfg Config, deps Deps) *Mediator {
	return &Mediator{
		query:  query,
		cfg:    cfg.WithDefaults(),
		source: deps.Source,
		comics: deps.Comics,
		keys:   deps.RemoteKeys,
		uow:    deps.UnitOfWork,
		cache:  deps.Cache,
		now:    time.Now,
	}
}

func (m *Mediator) logCtx(ctx context.Context) context.Context {
	return logging.WithAttrs(
		logging.WithComponent(ctx, "paging.mediator"),
		slog.String("query", m.query.String()),
	)
}

// Initialize skips the initial refresh only when the oldest cursor is younger
// than the freshness window and the cache was filled for this query. Any read
// failure launches the refresh.
func (m *Mediator) Initialize(ctx context.Context) domainpaging.InitializeAction {
	logCtx := m.logCtx(ctx)

	oldest, found, err := m.keys.OldestCreatedAt(ctx)
	if err != nil {
		logging.Warn(logCtx, "read cursor age failed, launching refresh", slog.Any("err", errs.Loggable(err)))
		return domainpaging.LaunchInitialRefresh
	}
	if !found {
		logging.Debug(logCtx, "cache empty, launching refresh")
		return domainpaging.LaunchInitialRefresh
	}

	age := m.now().Sub(oldest)
	if age >= m.cfg.FreshnessWindow {
		logging.Debug(logCtx, "cache expired, launching refresh", slog.Duration("age", age))
		return domainpaging.LaunchInitialRefresh
	}

	if m.cache != nil {
		marker, ok, err := m.cache.Get(ctx, queryMarkerKey)
		if err != nil {
			logging.Warn(logCtx, "read cache query failed, launching refresh", slog.Any("err", errs.Loggable(err)))
			return domainpaging.LaunchInitialRefresh
		}
		if !ok || marker != m.query.Key() {
			logging.Debug(logCtx, "cache filled for another query, launching refresh", slog.String("cached_query", marker))
			return domainpaging.LaunchInitialRefresh
		}
	}

	logging.Debug(logCtx, "cache fresh, skipping refresh", slog.Duration("age", age))
	return domainpaging.SkipInitialRefresh
}

// ServesQuery reports whether the cached pages were fetched for this query.
func (m *Mediator) ServesQuery(ctx context.Context) bool {
	if m.cache == nil {
		return true
	}
	marker, ok, err := m.cache.Get(ctx, queryMarkerKey)
	return err == nil && ok && marker == m.query.Key()
}

// Load runs one load of the given direction against state.
func (m *Mediator) Load(ctx context.Context, loadType domainpaging.LoadType, state domainpaging.PagingState) domainpaging.MediatorResult {
	logCtx := logging.WithAttrs(m.logCtx(ctx), slog.String("load_type", loadType.String()))

	page, done, err := m.pageFor(ctx, loadType, state)
	if err != nil {
		logging.Warn(logCtx, "resolve page cursor failed", slog.Any("err", errs.Loggable(err)))
		return domainpaging.Failure{Err: err}
	}
	if done != nil {
		logging.Debug(logCtx, "no fetch needed", slog.Bool("end_of_pagination", done.EndOfPaginationReached))
		return *done
	}

	req := ports.ComicPageRequest{
		Limit:           m.cfg.PageSize,
		Offset:          (page - 1) * m.cfg.PageSize,
		Sort:            m.query.Sort,
		TitleStartsWith: m.query.TitleStartsWith,
	}
	items, err := m.source.FetchComics(ctx, req)
	if err != nil {
		logging.Warn(logCtx, "fetch page failed", slog.Int("page", page), slog.Any("err", errs.Loggable(err)))
		return domainpaging.Failure{Err: errs.Wrapf(err, "fetch page %d", page)}
	}
	// A superseded load must not write.
	if err := ctx.Err(); err != nil {
		return domainpaging.Failure{Err: errs.Wrap(err, "load cancelled")}
	}

	endOfPagination := len(items) == 0
	if endOfPagination && loadType != domainpaging.LoadRefresh {
		logging.Debug(logCtx, "remote page empty", slog.Int("page", page))
		return domainpaging.Success{EndOfPaginationReached: true}
	}

	if err := m.write(ctx, loadType, page, items); err != nil {
		logging.Error(logCtx, "write page failed", slog.Int("page", page), slog.Any("err", errs.Loggable(err)))
		return domainpaging.Failure{Err: err}
	}

	logging.Info(logCtx, "page cached",
		slog.Int("page", page),
		slog.Int("items", len(items)),
		slog.Bool("end_of_pagination", endOfPagination),
	)
	return domainpaging.Success{EndOfPaginationReached: endOfPagination}
}

// pageFor returns the page to fetch, or a result when no fetch is needed.
func (m *Mediator) pageFor(ctx context.Context, loadType domainpaging.LoadType, state domainpaging.PagingState) (int, *domainpaging.Success, error) {
	switch loadType {
	case domainpaging.LoadRefresh:
		item, ok := state.ClosestItemToAnchor()
		if !ok {
			return m.cfg.StartingPage, nil, nil
		}
		key, found, err := m.keys.Get(ctx, item.ID)
		if err != nil {
			return 0, nil, err
		}
		// Re-fetch the page the anchored item arrived on.
		if found && key.NextKey != nil {
			return max(*key.NextKey-1, m.cfg.StartingPage), nil, nil
		}
		return m.cfg.StartingPage, nil, nil

	case domainpaging.LoadPrepend:
		item, ok := state.FirstItem()
		if !ok {
			return 0, &domainpaging.Success{EndOfPaginationReached: false}, nil
		}
		key, found, err := m.keys.Get(ctx, item.ID)
		if err != nil {
			return 0, nil, err
		}
		if !found {
			return 0, &domainpaging.Success{EndOfPaginationReached: false}, nil
		}
		if key.PrevKey == nil {
			return 0, &domainpaging.Success{EndOfPaginationReached: true}, nil
		}
		return *key.PrevKey, nil, nil

	case domainpaging.LoadAppend:
		item, ok := state.LastItem()
		if !ok {
			return 0, &domainpaging.Success{EndOfPaginationReached: false}, nil
		}
		key, found, err := m.keys.Get(ctx, item.ID)
		if err != nil {
			return 0, nil, err
		}
		if !found {
			return 0, &domainpaging.Success{EndOfPaginationReached: false}, nil
		}
		if key.NextKey == nil {
			return 0, &domainpaging.Success{EndOfPaginationReached: true}, nil
		}
		return *key.NextKey, nil, nil

	default:
		return 0, nil, errs.Wrapf(errUnknownLoadType, "load type %d", int(loadType))
	}
}

// write applies one fetched page in a single transaction. Refresh replaces
// the whole cache; Prepend and Append only add rows.
func (m *Mediator) write(ctx context.Context, loadType domainpaging.LoadType, page int, items []comic.Comic) error {
	keys := comic.KeysForPage(items, page, m.cfg.StartingPage, m.now())
	placement := ports.PlaceAfter
	if loadType == domainpaging.LoadPrepend {
		placement = ports.PlaceBefore
	}

	return m.uow.WithTx(ctx, func(ctx context.Context) error {
		if loadType == domainpaging.LoadRefresh {
			if err := m.keys.DeleteAll(ctx); err != nil {
				return err
			}
			if err := m.comics.DeleteAll(ctx); err != nil {
				return err
			}
		}
		if err := m.keys.UpsertAll(ctx, keys); err != nil {
			return err
		}
		if err := m.comics.UpsertAll(ctx, items, placement); err != nil {
			return err
		}
		if loadType == domainpaging.LoadRefresh && m.cache != nil {
			if err := m.cache.Set(ctx, queryMarkerKey, m.query.Key(), 0); err != nil {
				return err
			}
		}
		return nil
	})
}
