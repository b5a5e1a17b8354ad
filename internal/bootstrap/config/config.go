package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"comicshelf/internal/bootstrap/logging"
	"comicshelf/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Paging   PagingConfig   `mapstructure:"paging"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type RemoteConfig struct {
	Driver      string        `mapstructure:"driver"`
	BaseURL     string        `mapstructure:"base_url"`
	PublicKey   string        `mapstructure:"public_key"`
	PrivateKey  string        `mapstructure:"private_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	FixtureFile string        `mapstructure:"fixture_file"`
	Breaker     BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	Failures uint32        `mapstructure:"failures"`
	OpenFor  time.Duration `mapstructure:"open_for"`
}

type PagingConfig struct {
	PageSize         int           `mapstructure:"page_size"`
	InitialLoadSize  int           `mapstructure:"initial_load_size"`
	PrefetchDistance int           `mapstructure:"prefetch_distance"`
	FreshnessWindow  time.Duration `mapstructure:"freshness_window"`
	StartingPage     int           `mapstructure:"starting_page"`
	QueryMinLength   int           `mapstructure:"query_min_length"`
	DetailTTL        time.Duration `mapstructure:"detail_ttl"`
}

const (
	RemoteDriverMarvel  = "marvel"
	RemoteDriverFixture = "fixture"
)

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithComponent(ctx, "bootstrap.config")

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("remote_driver", cfg.Remote.Driver),
		slog.Int("page_size", cfg.Paging.PageSize),
	)

	return cfg, nil
}

func (c Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	switch strings.ToLower(c.Remote.Driver) {
	case RemoteDriverMarvel:
		if c.Remote.PublicKey == "" || c.Remote.PrivateKey == "" {
			return errors.New("remote.public_key and remote.private_key are required for the marvel driver")
		}
	case RemoteDriverFixture:
	default:
		return fmt.Errorf("unsupported remote driver %q", c.Remote.Driver)
	}
	if c.Paging.PageSize <= 0 {
		return errors.New("paging.page_size must be positive")
	}
	if c.Paging.StartingPage < 1 {
		return errors.New("paging.starting_page must be at least 1")
	}
	if c.Paging.FreshnessWindow <= 0 {
		return errors.New("paging.freshness_window must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "comicshelf")
	v.SetDefault("app.env", "local")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:comicshelf?mode=memory&cache=shared")
	v.SetDefault("remote.driver", RemoteDriverFixture)
	v.SetDefault("remote.base_url", "https://gateway.marvel.com/v1/public/")
	v.SetDefault("remote.public_key", "")
	v.SetDefault("remote.private_key", "")
	v.SetDefault("remote.timeout", 15*time.Second)
	v.SetDefault("remote.fixture_file", "")
	v.SetDefault("remote.breaker.failures", 5)
	v.SetDefault("remote.breaker.open_for", 30*time.Second)
	v.SetDefault("paging.page_size", 20)
	v.SetDefault("paging.initial_load_size", 60)
	v.SetDefault("paging.prefetch_distance", 20)
	v.SetDefault("paging.freshness_window", 30*time.Minute)
	v.SetDefault("paging.starting_page", 1)
	v.SetDefault("paging.query_min_length", 3)
	v.SetDefault("paging.detail_ttl", 10*time.Minute)
}
