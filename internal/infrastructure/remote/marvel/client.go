// Package marvel is the HTTP ComicSource: signed GET requests against the
// public comics catalog, guarded by a circuit breaker.
package marvel

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/sony/gobreaker"

	"comicshelf/internal/bootstrap/logging"
	"comicshelf/internal/domain/comic"
	"comicshelf/internal/errs"
	"comicshelf/internal/ports"
)

const DefaultBaseURL = "https://gateway.marvel.com/v1/public/"

// StatusError is a non-2xx answer.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote returned %d %s", e.Code, e.Status)
	}
	return fmt.Sprintf("remote returned %d %s: %s", e.Code, e.Status, e.Body)
}

type Options struct {
	BaseURL    string
	PublicKey  string
	PrivateKey string
	Timeout    time.Duration
	HTTPClient *http.Client

	// Breaker trips after BreakerFailures consecutive transport or 5xx
	// failures and stays open for BreakerOpenFor.
	BreakerFailures uint32
	BreakerOpenFor  time.Duration
}

type Client struct {
	baseURL    *url.URL
	publicKey  string
	privateKey string
	http       *http.Client
	breaker    *gobreaker.CircuitBreaker
	now        func() time.Time
}

var _ ports.ComicSource = (*Client)(nil)

type authParams struct {
	Timestamp string `url:"ts"`
	APIKey    string `url:"apikey"`
	Hash      string `url:"hash"`
}

type comicsParams struct {
	authParams
	Limit           int    `url:"limit"`
	Offset          int    `url:"offset"`
	OrderBy         string `url:"orderBy,omitempty"`
	TitleStartsWith string `url:"titleStartsWith,omitempty"`
}

func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, errs.Wrap(err, "parse remote base url")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	failures := opts.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	openFor := opts.BreakerOpenFor
	if openFor <= 0 {
		openFor = 30 * time.Second
	}

	return &Client{
		baseURL:    base,
		publicKey:  opts.PublicKey,
		privateKey: opts.PrivateKey,
		http:       httpClient,
		now:        time.Now,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "comics-remote",
			MaxRequests: 1,
			Timeout:     openFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			// 4xx answers mean the service is up.
			IsSuccessful: func(err error) bool {
				if err == nil {
					return true
				}
				var se *StatusError
				return errors.As(err, &se) && se.Code < http.StatusInternalServerError
			},
		}),
	}, nil
}

// FetchComics loads one page of comics.
func (c *Client) FetchComics(ctx context.Context, req ports.ComicPageRequest) ([]comic.Comic, error) {
	params := comicsParams{
		authParams:      c.sign(),
		Limit:           req.Limit,
		Offset:          req.Offset,
		OrderBy:         string(req.Sort),
		TitleStartsWith: strings.TrimSpace(req.TitleStartsWith),
	}

	env, err := c.get(ctx, "comics", params)
	if err != nil {
		return nil, err
	}

	items := make([]comic.Comic, 0, len(env.Data.Results))
	for _, dto := range env.Data.Results {
		items = append(items, dto.toDomain())
	}
	return items, nil
}

// FetchComic loads a single comic; a 404 is reported as not found.
func (c *Client) FetchComic(ctx context.Context, id int64) (comic.Comic, bool, error) {
	if id <= 0 {
		return comic.Comic{}, false, comic.ErrInvalidComicID
	}

	env, err := c.get(ctx, "comics/"+strconv.FormatInt(id, 10), c.sign())
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return comic.Comic{}, false, nil
		}
		return comic.Comic{}, false, err
	}
	if len(env.Data.Results) == 0 {
		return comic.Comic{}, false, nil
	}
	return env.Data.Results[0].toDomain(), true, nil
}

// sign builds ts/apikey/hash where hash = md5(ts + privateKey + publicKey).
func (c *Client) sign() authParams {
	ts := strconv.FormatInt(c.now().UnixMilli(), 10)
	sum := md5.Sum([]byte(ts + c.privateKey + c.publicKey))
	return authParams{
		Timestamp: ts,
		APIKey:    c.publicKey,
		Hash:      hex.EncodeToString(sum[:]),
	}
}

func (c *Client) get(ctx context.Context, path string, params any) (envelope, error) {
	values, err := query.Values(params)
	if err != nil {
		return envelope{}, errs.Wrap(err, "encode query params")
	}

	endpoint := c.baseURL.ResolveReference(&url.URL{Path: path})
	endpoint.RawQuery = values.Encode()

	logCtx := logging.WithComponent(ctx, "remote.marvel")
	started := time.Now()

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, endpoint.String())
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = errs.Transport(errs.Wrap(err, "remote circuit breaker"))
		}
		logging.Warn(logCtx, "remote request failed",
			slog.String("path", path),
			slog.Duration("elapsed", time.Since(started)),
			slog.Any("err", errs.Loggable(err)),
		)
		return envelope{}, err
	}

	logging.Debug(logCtx, "remote request finished",
		slog.String("path", path),
		slog.Duration("elapsed", time.Since(started)),
	)
	return out.(envelope), nil
}

func (c *Client) do(ctx context.Context, endpoint string) (envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return envelope{}, errs.Wrap(err, "build remote request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, errs.Transport(errs.Wrap(err, "send remote request"))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return envelope{}, errs.Transport(errs.Wrap(err, "read remote response"))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return envelope{}, errs.Protocol(&StatusError{
			Code:   resp.StatusCode,
			Status: http.StatusText(resp.StatusCode),
			Body:   truncate(strings.TrimSpace(string(body)), 256),
		})
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}, errs.Protocol(errs.Wrap(err, "decode remote response"))
	}
	return env, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
