package paging

import (
	"errors"
	"time"

	"comicshelf/internal/domain/comic"
)

const (
	DefaultPageSize        = 20
	DefaultFreshnessWindow = 30 * time.Minute
	DefaultStartingPage    = 1
	DefaultDetailTTL       = 10 * time.Minute
)

// Config is fixed for the lifetime of an Engine.
type Config struct {
	PageSize int
	// InitialLoadSize is how many cached rows a fresh window reads.
	InitialLoadSize int
	// PrefetchDistance is how close to a window edge Access has to get before
	// the next page is requested.
	PrefetchDistance int
	FreshnessWindow  time.Duration
	StartingPage     int
	QueryMinLength   int
	DetailTTL        time.Duration
}

func DefaultConfig() Config {
	return Config{}.WithDefaults()
}

// WithDefaults fills zero fields.
func (c Config) WithDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.InitialLoadSize <= 0 {
		c.InitialLoadSize = 3 * c.PageSize
	}
	if c.PrefetchDistance <= 0 {
		c.PrefetchDistance = c.PageSize
	}
	if c.FreshnessWindow <= 0 {
		c.FreshnessWindow = DefaultFreshnessWindow
	}
	if c.StartingPage <= 0 {
		c.StartingPage = DefaultStartingPage
	}
	if c.QueryMinLength <= 0 {
		c.QueryMinLength = comic.DefaultQueryMinLength
	}
	if c.DetailTTL <= 0 {
		c.DetailTTL = DefaultDetailTTL
	}
	return c
}

func (c Config) Validate() error {
	if c.PageSize <= 0 {
		return errors.New("page size must be positive")
	}
	if c.StartingPage < 1 {
		return errors.New("starting page must be at least 1")
	}
	if c.FreshnessWindow <= 0 {
		return errors.New("freshness window must be positive")
	}
	return nil
}
