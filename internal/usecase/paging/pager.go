package paging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"comicshelf/internal/bootstrap/logging"
	"comicshelf/internal/domain/comic"
	domainpaging "comicshelf/internal/domain/paging"
	"comicshelf/internal/errs"
	"comicshelf/internal/ports"
)

// Snapshot is what a consumer renders: the loaded window of the cached list
// plus the state of every load direction.
type Snapshot struct {
	Query       comic.Query
	Items       []comic.Comic
	ItemsBefore int
	ItemsAfter  int
	States      domainpaging.LoadStates
	Version     uint64
}

// Pager serves one query. It keeps a window [start, start+len(items)) over
// the cached list, grows it from the cache first and asks the Mediator only
// when the cache is exhausted in that direction. Loads of the same direction
// are coalesced.
type Pager struct {
	query    comic.Query
	cfg      Config
	deps     Deps
	mediator *Mediator

	ctx    context.Context
	cancel context.CancelFunc

	loads singleflight.Group
	// gate lets Prepend and Append run together but never alongside Refresh.
	gate     sync.RWMutex
	inflight sync.WaitGroup

	startOnce sync.Once
	started   chan struct{}
	startErr  error

	mu              sync.Mutex
	closed          bool
	source          *Source
	start           int
	items           []comic.Comic
	itemsAfter      int
	anchor          *int
	states          domainpaging.LoadStates
	awaitingRefresh bool
	failed          domainpaging.LoadType
	hasFailed       bool
	version         uint64
	subs            map[int]chan Snapshot
	nextSub         int
}

func NewPager(ctx context.Context, query comic.Query, cfg Config, deps Deps) *Pager {
	cfg = cfg.WithDefaults()
	ctx, cancel := context.WithCancel(logging.WithAttrs(
		logging.WithComponent(ctx, "paging.pager"),
		slog.String("query", query.String()),
	))
	return &Pager{
		query:    query,
		cfg:      cfg,
		deps:     deps,
		mediator: NewMediator(query, cfg, deps),
		ctx:      ctx,
		cancel:   cancel,
		started:  make(chan struct{}),
		states:   domainpaging.IdleLoadStates(),
		subs:     make(map[int]chan Snapshot),
	}
}

func (p *Pager) Query() comic.Query {
	return p.query
}

// Start runs Initialize once and then either the blocking initial Refresh or
// a read of the cached rows. Every caller waits for the same start; the error
// is the initial load's error, which is also reported in the load states.
func (p *Pager) Start(ctx context.Context) error {
	p.startOnce.Do(func() {
		if !p.track() {
			p.startErr = ErrPagerClosed
			close(p.started)
			return
		}
		go func() {
			defer p.inflight.Done()
			p.startErr = p.initialize()
			close(p.started)
		}()
	})

	select {
	case <-p.started:
		return p.startErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pager) initialize() error {
	action := p.mediator.Initialize(p.ctx)
	logging.Info(p.ctx, "pager starting", slog.String("action", action.String()))

	if p.deps.Tracker != nil {
		p.inflight.Add(1)
		go func() {
			defer p.inflight.Done()
			p.watch()
		}()
	}

	if action == domainpaging.LaunchInitialRefresh {
		p.mu.Lock()
		p.awaitingRefresh = true
		p.mu.Unlock()
		return p.run(p.ctx, domainpaging.LoadRefresh)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.resetWindowLocked(p.ctx)
	if err != nil {
		p.states = p.states.With(domainpaging.LoadRefresh, domainpaging.LoadError{Err: err})
		p.markFailedLocked(domainpaging.LoadRefresh)
	}
	p.emitLocked()
	return err
}

// Refresh re-runs the Refresh path and resets the window to the top.
func (p *Pager) Refresh(ctx context.Context) error {
	return p.run(ctx, domainpaging.LoadRefresh)
}

func (p *Pager) Append(ctx context.Context) error {
	return p.run(ctx, domainpaging.LoadAppend)
}

func (p *Pager) Prepend(ctx context.Context) error {
	return p.run(ctx, domainpaging.LoadPrepend)
}

// Retry re-runs the most recently failed direction. Cursors are derived
// again from the current cache.
func (p *Pager) Retry(ctx context.Context) error {
	p.mu.Lock()
	loadType, ok := p.failed, p.hasFailed
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return p.run(ctx, loadType)
}

// Access records that the consumer looked at window index and loads the
// neighbouring page when the index is within the prefetch distance of an edge.
func (p *Pager) Access(ctx context.Context, index int) error {
	p.mu.Lock()
	n := len(p.items)
	if n == 0 {
		p.mu.Unlock()
		return nil
	}
	index = min(max(index, 0), n-1)
	anchor := index
	p.anchor = &anchor
	needPrepend := index < p.cfg.PrefetchDistance
	needAppend := index >= n-p.cfg.PrefetchDistance
	p.mu.Unlock()

	var loadErrs []error
	if needPrepend {
		loadErrs = append(loadErrs, p.Prepend(ctx))
	}
	if needAppend {
		loadErrs = append(loadErrs, p.Append(ctx))
	}
	return errors.Join(loadErrs...)
}

// Snapshot returns the current state.
func (p *Pager) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Subscribe returns a channel that always holds the newest snapshot; older
// unread snapshots are dropped. The current snapshot is delivered first.
func (p *Pager) Subscribe() (<-chan Snapshot, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if p.closed {
		close(ch)
		return ch, func() {}
	}
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	ch <- p.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if sub, ok := p.subs[id]; ok {
				delete(p.subs, id)
				close(sub)
			}
		})
	}
}

// Close cancels in-flight loads, waits for them to return and closes every
// subscription. Results of cancelled loads are discarded.
func (p *Pager) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.inflight.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	for id, ch := range p.subs {
		delete(p.subs, id)
		close(ch)
	}
	logging.Debug(p.ctx, "pager closed")
}

func (p *Pager) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// track registers an in-flight load unless the pager is closed.
func (p *Pager) track() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.inflight.Add(1)
	return true
}

func (p *Pager) run(ctx context.Context, loadType domainpaging.LoadType) error {
	ch := p.loads.DoChan(loadType.String(), func() (any, error) {
		if !p.track() {
			return nil, ErrPagerClosed
		}
		defer p.inflight.Done()
		return nil, p.load(loadType)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pager) load(loadType domainpaging.LoadType) error {
	ctx := p.ctx
	if loadType == domainpaging.LoadRefresh {
		return p.refresh(ctx)
	}

	// Until the launched refresh lands, the cache may hold another query's rows.
	p.mu.Lock()
	unfilled := p.awaitingRefresh && p.source == nil
	p.mu.Unlock()
	if unfilled {
		return nil
	}

	grew, err := p.extend(ctx, loadType)
	if err != nil {
		return p.readFailed(ctx, loadType, err)
	}
	if grew {
		return nil
	}

	p.gate.RLock()
	defer p.gate.RUnlock()

	p.mu.Lock()
	blocked := p.awaitingRefresh
	state := p.states.Get(loadType)
	p.mu.Unlock()
	if blocked {
		return nil
	}
	if st, ok := state.(domainpaging.NotLoading); ok && st.EndOfPaginationReached {
		return nil
	}

	p.setState(loadType, domainpaging.Loading{})
	result := p.mediator.Load(ctx, loadType, p.pagingState())
	if err := ctx.Err(); err != nil {
		return err
	}

	switch r := result.(type) {
	case domainpaging.Failure:
		p.mu.Lock()
		p.states = p.states.With(loadType, domainpaging.LoadError{Err: r.Err})
		p.markFailedLocked(loadType)
		p.emitLocked()
		p.mu.Unlock()
		return r.Err
	case domainpaging.Success:
		// The write shifted positions when it prepended; re-read through a new Source.
		p.mu.Lock()
		if p.source != nil {
			p.source.Invalidate()
		}
		p.mu.Unlock()
		if _, err := p.extend(ctx, loadType); err != nil {
			return p.readFailed(ctx, loadType, err)
		}
		p.mu.Lock()
		p.states = p.states.With(loadType, domainpaging.NotLoading{EndOfPaginationReached: r.EndOfPaginationReached})
		p.clearFailedLocked(loadType)
		p.emitLocked()
		p.mu.Unlock()
		return nil
	default:
		panic("unknown mediator result")
	}
}

func (p *Pager) refresh(ctx context.Context) error {
	p.gate.Lock()
	defer p.gate.Unlock()

	p.setState(domainpaging.LoadRefresh, domainpaging.Loading{})
	result := p.mediator.Load(ctx, domainpaging.LoadRefresh, p.pagingState())
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch r := result.(type) {
	case domainpaging.Failure:
		p.states = p.states.With(domainpaging.LoadRefresh, domainpaging.LoadError{Err: r.Err})
		p.markFailedLocked(domainpaging.LoadRefresh)
		// Keep showing what the cache holds for this query.
		if p.awaitingRefresh && len(p.items) == 0 && p.mediator.ServesQuery(ctx) {
			if err := p.resetWindowLocked(ctx); err != nil {
				logging.Warn(ctx, "read stale cache failed", slog.Any("err", errs.Loggable(err)))
			}
		}
		p.emitLocked()
		return r.Err
	case domainpaging.Success:
		end := domainpaging.NotLoading{EndOfPaginationReached: r.EndOfPaginationReached}
		p.states = domainpaging.LoadStates{Refresh: end, Prepend: end, Append: end}
		p.awaitingRefresh = false
		p.hasFailed = false
		err := p.resetWindowLocked(ctx)
		if err != nil {
			p.states = p.states.With(domainpaging.LoadRefresh, domainpaging.LoadError{Err: err})
			p.markFailedLocked(domainpaging.LoadRefresh)
		}
		p.emitLocked()
		return err
	default:
		panic("unknown mediator result")
	}
}

func (p *Pager) readFailed(ctx context.Context, loadType domainpaging.LoadType, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	logging.Warn(ctx, "read cached page failed",
		slog.String("load_type", loadType.String()),
		slog.Any("err", errs.Loggable(err)),
	)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = p.states.With(loadType, domainpaging.LoadError{Err: err})
	p.markFailedLocked(loadType)
	p.emitLocked()
	return err
}

// extend grows the window by up to one page from the cache. It reports false
// when the cache holds nothing more in that direction.
func (p *Pager) extend(ctx context.Context, loadType domainpaging.LoadType) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for attempt := 0; attempt < maxReadAttempts; attempt++ {
		if err := p.syncLocked(ctx); err != nil {
			return false, err
		}

		var from, length int
		switch loadType {
		case domainpaging.LoadAppend:
			from, length = p.start+len(p.items), p.cfg.PageSize
		case domainpaging.LoadPrepend:
			if p.start == 0 {
				return false, nil
			}
			from = max(p.start-p.cfg.PageSize, 0)
			length = p.start - from
		default:
			return false, nil
		}

		page, err := p.source.Load(ctx, from, length)
		if err != nil {
			return false, err
		}
		if page.Invalid {
			continue
		}
		if len(page.Items) == 0 {
			if loadType == domainpaging.LoadAppend && p.itemsAfter != page.ItemsAfter {
				p.itemsAfter = page.ItemsAfter
				p.emitLocked()
			}
			return false, nil
		}

		if loadType == domainpaging.LoadAppend {
			p.items = append(p.items, page.Items...)
			p.itemsAfter = page.ItemsAfter
		} else {
			p.items = append(slices.Clone(page.Items), p.items...)
			p.start = from
			if p.anchor != nil {
				shifted := *p.anchor + len(page.Items)
				p.anchor = &shifted
			}
		}
		p.emitLocked()
		return true, nil
	}
	return false, errs.Store(errCacheUnstable)
}

const maxReadAttempts = 4

var errCacheUnstable = errors.New("cache kept changing while reading")

// syncLocked re-reads the window through a new Source when the cache changed.
// The window is re-anchored on its first item, so rows inserted before it
// shift the window instead of the items.
func (p *Pager) syncLocked(ctx context.Context) error {
	for attempt := 0; attempt < maxReadAttempts; attempt++ {
		if p.source != nil && !p.source.Stale() {
			return nil
		}

		source := NewSource(p.deps.Comics, p.deps.UnitOfWork, p.deps.Tracker)
		if len(p.items) == 0 {
			p.source = source
			page, err := source.Load(ctx, p.start, 0)
			if err != nil {
				return err
			}
			if page.Invalid {
				continue
			}
			p.itemsAfter = page.ItemsAfter
			return nil
		}

		start, err := source.PositionOf(ctx, p.items[0].Ordinal)
		if err != nil {
			return err
		}
		page, err := source.Load(ctx, start, len(p.items))
		if err != nil {
			return err
		}
		if page.Invalid {
			continue
		}
		p.source = source
		p.start = page.ItemsBefore
		p.items = page.Items
		p.itemsAfter = page.ItemsAfter
		if p.anchor != nil && *p.anchor >= len(p.items) {
			p.anchor = nil
		}
		return nil
	}
	return errs.Store(errCacheUnstable)
}

// resetWindowLocked reads the first InitialLoadSize cached rows.
func (p *Pager) resetWindowLocked(ctx context.Context) error {
	for attempt := 0; attempt < maxReadAttempts; attempt++ {
		source := NewSource(p.deps.Comics, p.deps.UnitOfWork, p.deps.Tracker)
		page, err := source.Load(ctx, 0, p.cfg.InitialLoadSize)
		if err != nil {
			return err
		}
		if page.Invalid {
			continue
		}
		p.source = source
		p.start = 0
		p.items = page.Items
		p.itemsAfter = page.ItemsAfter
		p.anchor = nil
		return nil
	}
	return errs.Store(errCacheUnstable)
}

// watch re-reads the window after every committed change of the comics table.
func (p *Pager) watch() {
	for {
		changed := p.deps.Tracker.Changed(ports.TableComics)

		p.mu.Lock()
		if p.source != nil && p.source.Stale() {
			if err := p.syncLocked(p.ctx); err != nil {
				if p.ctx.Err() == nil {
					logging.Warn(p.ctx, "reload after cache change failed", slog.Any("err", errs.Loggable(err)))
				}
			} else {
				p.emitLocked()
			}
		}
		p.mu.Unlock()

		select {
		case <-p.ctx.Done():
			return
		case <-changed:
		}
	}
}

func (p *Pager) pagingState() domainpaging.PagingState {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := domainpaging.PagingState{}
	if len(p.items) > 0 {
		state.Pages = []domainpaging.Page{{Items: slices.Clone(p.items)}}
	}
	if p.anchor != nil {
		anchor := *p.anchor
		state.AnchorPosition = &anchor
	}
	return state
}

func (p *Pager) setState(loadType domainpaging.LoadType, state domainpaging.LoadState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = p.states.With(loadType, state)
	p.emitLocked()
}

func (p *Pager) markFailedLocked(loadType domainpaging.LoadType) {
	p.failed = loadType
	p.hasFailed = true
}

func (p *Pager) clearFailedLocked(loadType domainpaging.LoadType) {
	if p.hasFailed && p.failed == loadType {
		p.hasFailed = false
	}
}

func (p *Pager) snapshotLocked() Snapshot {
	return Snapshot{
		Query:       p.query,
		Items:       slices.Clone(p.items),
		ItemsBefore: p.start,
		ItemsAfter:  p.itemsAfter,
		States:      p.states,
		Version:     p.version,
	}
}

func (p *Pager) emitLocked() {
	p.version++
	snap := p.snapshotLocked()
	for _, ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
