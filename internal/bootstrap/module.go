package bootstrap

import (
	"context"
	"log/slog"
	"strings"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"comicshelf/internal/bootstrap/config"
	"comicshelf/internal/bootstrap/database"
	"comicshelf/internal/bootstrap/logging"
	cacheinfra "comicshelf/internal/infrastructure/cache"
	sqliterepo "comicshelf/internal/infrastructure/persistence/sqlite/repository"
	sqlitetracker "comicshelf/internal/infrastructure/persistence/sqlite/tracker"
	sqliteuow "comicshelf/internal/infrastructure/persistence/sqlite/uow"
	"comicshelf/internal/infrastructure/remote/fixture"
	"comicshelf/internal/infrastructure/remote/marvel"
	"comicshelf/internal/ports"
	"comicshelf/internal/usecase/paging"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqlitetracker.New,
			fx.As(new(ports.InvalidationTracker)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewComicRepository,
			fx.As(new(ports.ComicStore)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewRemoteKeyRepository,
			fx.As(new(ports.RemoteKeyStore)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(provideComicSource),
	fx.Provide(providePagingConfig),
	fx.Provide(provideEngine),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithComponent(p.Ctx, "bootstrap.fx")
	return config.Load(ctx, p.ConfigFile)
}

// provideDatabase opens the database and migrates the cache tables; an
// in-memory cache starts empty on every run.
func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithComponent(ctx, "bootstrap.fx")

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, DB: db}
	if err := app.InitSchema(logCtx); err != nil {
		_ = app.Close(logCtx)
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideComicSource(ctx context.Context, cfg config.Config) (ports.ComicSource, error) {
	logCtx := logging.WithComponent(ctx, "bootstrap.fx")

	switch strings.ToLower(cfg.Remote.Driver) {
	case config.RemoteDriverMarvel:
		logging.Info(logCtx, "using remote comic source", slog.String("base_url", cfg.Remote.BaseURL))
		return marvel.New(marvel.Options{
			BaseURL:         cfg.Remote.BaseURL,
			PublicKey:       cfg.Remote.PublicKey,
			PrivateKey:      cfg.Remote.PrivateKey,
			Timeout:         cfg.Remote.Timeout,
			BreakerFailures: cfg.Remote.Breaker.Failures,
			BreakerOpenFor:  cfg.Remote.Breaker.OpenFor,
		})
	default:
		logging.Info(logCtx, "using fixture comic source", slog.String("fixture_file", cfg.Remote.FixtureFile))
		return fixture.Load(cfg.Remote.FixtureFile)
	}
}

func providePagingConfig(cfg config.Config) paging.Config {
	return paging.Config{
		PageSize:         cfg.Paging.PageSize,
		InitialLoadSize:  cfg.Paging.InitialLoadSize,
		PrefetchDistance: cfg.Paging.PrefetchDistance,
		FreshnessWindow:  cfg.Paging.FreshnessWindow,
		StartingPage:     cfg.Paging.StartingPage,
		QueryMinLength:   cfg.Paging.QueryMinLength,
		DetailTTL:        cfg.Paging.DetailTTL,
	}.WithDefaults()
}

type engineParams struct {
	fx.In

	Ctx        context.Context
	Config     paging.Config
	Source     ports.ComicSource
	Comics     ports.ComicStore
	RemoteKeys ports.RemoteKeyStore
	UnitOfWork ports.UnitOfWork
	Cache      ports.Cache
	Tracker    ports.InvalidationTracker
}

func provideEngine(lc fx.Lifecycle, p engineParams) (*paging.Engine, error) {
	engine, err := paging.NewEngine(p.Ctx, p.Config, paging.Deps{
		Source:     p.Source,
		Comics:     p.Comics,
		RemoteKeys: p.RemoteKeys,
		UnitOfWork: p.UnitOfWork,
		Cache:      p.Cache,
		Tracker:    p.Tracker,
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return engine.PurgeExpired(ctx)
		},
		OnStop: func(_ context.Context) error {
			engine.Close()
			return nil
		},
	})
	return engine, nil
}
