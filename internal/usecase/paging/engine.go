package paging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"comicshelf/internal/bootstrap/logging"
	"comicshelf/internal/domain/comic"
	"comicshelf/internal/errs"
)

// Engine hands out one Pager per query. Opening a different query closes the
// previous Pager before the new one initializes.
type Engine struct {
	cfg  Config
	deps Deps

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	current *Pager
	closed  bool
}

func NewEngine(ctx context.Context, cfg Config, deps Deps) (*Engine, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errs.Wrap(err, "validate paging config")
	}
	if deps.Source == nil || deps.Comics == nil || deps.RemoteKeys == nil || deps.UnitOfWork == nil {
		return nil, errors.New("paging engine: source, stores and unit of work are required")
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &Engine{cfg: cfg, deps: deps, ctx: ctx, cancel: cancel}, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Open returns the started Pager for query. The query is normalized first, so
// filters below the minimum length share the unfiltered Pager. Load failures
// are reported through the Pager's states, not as an error.
func (e *Engine) Open(ctx context.Context, query comic.Query) (*Pager, error) {
	q := comic.NormalizeQuery(query.TitleStartsWith, query.Sort, e.cfg.QueryMinLength)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	pager := e.current
	var previous *Pager
	if pager == nil || pager.Query() != q || pager.Closed() {
		previous = pager
		pager = NewPager(e.ctx, q, e.cfg, e.deps)
		e.current = pager
	}
	e.mu.Unlock()

	if previous != nil {
		logging.Info(logging.WithComponent(ctx, "paging.engine"), "query switched",
			slog.String("from", previous.Query().String()),
			slog.String("to", q.String()),
		)
		previous.Close()
	}

	if err := pager.Start(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logging.Warn(logging.WithComponent(ctx, "paging.engine"), "initial load failed",
			slog.String("query", q.String()),
			slog.Any("err", errs.Loggable(err)),
		)
	}
	// Superseded by a concurrent Open.
	if pager.Closed() {
		return nil, ErrPagerClosed
	}
	return pager, nil
}

// Current is the most recently opened Pager, or nil.
func (e *Engine) Current() *Pager {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	pager := e.current
	e.current = nil
	e.mu.Unlock()

	if pager != nil {
		pager.Close()
	}
	e.cancel()
}

// Comic looks a comic up in the cached list, then in the detail cache, then
// remotely. Remote hits are kept in the detail cache for DetailTTL.
func (e *Engine) Comic(ctx context.Context, id int64) (comic.Comic, error) {
	if id <= 0 {
		return comic.Comic{}, comic.ErrInvalidComicID
	}
	logCtx := logging.WithAttrs(logging.WithComponent(ctx, "paging.engine"), slog.Int64("comic_id", id))

	item, err := e.deps.Comics.GetByID(ctx, id)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, comic.ErrComicNotFound) {
		return comic.Comic{}, err
	}

	key := detailKey(id)
	if e.deps.Cache != nil {
		raw, found, err := e.deps.Cache.Get(ctx, key)
		if err != nil {
			logging.Warn(logCtx, "read detail cache failed", slog.Any("err", errs.Loggable(err)))
		} else if found {
			var cached comic.Comic
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
			logging.Warn(logCtx, "drop undecodable detail cache entry")
		}
	}

	item, found, err := e.deps.Source.FetchComic(ctx, id)
	if err != nil {
		return comic.Comic{}, errs.Wrapf(err, "fetch comic %d", id)
	}
	if !found {
		return comic.Comic{}, comic.ErrComicNotFound
	}

	if e.deps.Cache != nil {
		raw, err := json.Marshal(item)
		if err == nil {
			err = e.deps.Cache.Set(ctx, key, string(raw), e.cfg.DetailTTL)
		}
		if err != nil {
			logging.Warn(logCtx, "write detail cache failed", slog.Any("err", errs.Loggable(err)))
		}
	}
	return item, nil
}

// PurgeExpired drops detail entries whose DetailTTL ran out. A disk-resident
// cache would otherwise keep them across runs.
func (e *Engine) PurgeExpired(ctx context.Context) error {
	if e.deps.Cache == nil {
		return nil
	}
	purged, err := e.deps.Cache.PurgeExpired(ctx)
	if err != nil {
		return errs.Wrap(err, "purge expired cache entries")
	}
	if purged > 0 {
		logging.Info(logging.WithComponent(ctx, "paging.engine"), "expired cache entries purged", slog.Int64("count", purged))
	}
	return nil
}

func detailKey(id int64) string {
	return "comic.detail." + strconv.FormatInt(id, 10)
}
