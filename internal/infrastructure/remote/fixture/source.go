// Package fixture is an offline ComicSource backed by a TOML catalog. It
// sorts, filters and pages locally the way the remote catalog does.
package fixture

import (
	"cmp"
	"context"
	_ "embed"
	"errors"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"comicshelf/internal/domain/comic"
	"comicshelf/internal/errs"
	"comicshelf/internal/ports"
)

//go:embed catalog.toml
var defaultCatalog []byte

type catalogFile struct {
	Comics []catalogComic `toml:"comics"`
}

type catalogComic struct {
	ID          int64             `toml:"id"`
	Title       string            `toml:"title"`
	Description string            `toml:"description"`
	IssueNumber int               `toml:"issue_number"`
	FocDate     time.Time         `toml:"foc_date"`
	OnSaleDate  time.Time         `toml:"onsale_date"`
	Modified    time.Time         `toml:"modified"`
	Thumbnail   string            `toml:"thumbnail"`
	Extension   string            `toml:"extension"`
	Creators    []catalogSummary  `toml:"creators"`
	Characters  []catalogSummary  `toml:"characters"`
	TextObjects []catalogTextBlob `toml:"text_objects"`
}

type catalogSummary struct {
	Name string `toml:"name"`
	Role string `toml:"role"`
}

type catalogTextBlob struct {
	Type     string `toml:"type"`
	Language string `toml:"language"`
	Text     string `toml:"text"`
}

// Source serves comics from memory. Fail, when set, is returned by every
// fetch; it lets the console and tests simulate an unreachable catalog.
type Source struct {
	mu     sync.RWMutex
	comics []catalogComic
	fail   error
}

var _ ports.ComicSource = (*Source)(nil)

// Load reads a catalog file; an empty path loads the bundled catalog.
func Load(path string) (*Source, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Parse(defaultCatalog)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(err, "read fixture catalog %s", path)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Source, error) {
	var file catalogFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil, errs.Wrap(err, "decode fixture catalog")
	}

	seen := make(map[int64]struct{}, len(file.Comics))
	for _, c := range file.Comics {
		if c.ID <= 0 {
			return nil, errors.New("fixture catalog: comic id must be positive")
		}
		if _, dup := seen[c.ID]; dup {
			return nil, errs.Wrapf(errors.New("duplicate comic id"), "fixture catalog id %d", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return &Source{comics: file.Comics}, nil
}

// SetFailure makes every later fetch fail with a transport error until it is
// cleared with nil.
func (s *Source) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *Source) FetchComics(ctx context.Context, req ports.ComicPageRequest) ([]comic.Comic, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Transport(errs.Wrap(err, "fetch comics"))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return nil, errs.Transport(s.fail)
	}
	if req.Limit <= 0 || req.Offset < 0 {
		return nil, errs.Protocol(errs.Wrapf(errors.New("invalid page"), "limit=%d offset=%d", req.Limit, req.Offset))
	}

	prefix := strings.ToLower(strings.TrimSpace(req.TitleStartsWith))
	matched := make([]catalogComic, 0, len(s.comics))
	for _, c := range s.comics {
		if prefix == "" || strings.HasPrefix(strings.ToLower(c.Title), prefix) {
			matched = append(matched, c)
		}
	}
	sortCatalog(matched, req.Sort)

	if req.Offset >= len(matched) {
		return []comic.Comic{}, nil
	}
	end := min(req.Offset+req.Limit, len(matched))

	out := make([]comic.Comic, 0, end-req.Offset)
	for _, c := range matched[req.Offset:end] {
		out = append(out, c.toDomain())
	}
	return out, nil
}

func (s *Source) FetchComic(ctx context.Context, id int64) (comic.Comic, bool, error) {
	if id <= 0 {
		return comic.Comic{}, false, comic.ErrInvalidComicID
	}
	if err := ctx.Err(); err != nil {
		return comic.Comic{}, false, errs.Transport(errs.Wrap(err, "fetch comic"))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return comic.Comic{}, false, errs.Transport(s.fail)
	}
	for _, c := range s.comics {
		if c.ID == id {
			return c.toDomain(), true, nil
		}
	}
	return comic.Comic{}, false, nil
}

// Len is the catalog size.
func (s *Source) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.comics)
}

// sortCatalog orders by the requested field with id as a stable tie-breaker.
func sortCatalog(items []catalogComic, order comic.SortOrder) {
	if !order.Valid() {
		order = comic.DefaultSortOrder
	}
	byField := func(a, b catalogComic) int {
		switch order.Field() {
		case "focDate":
			return a.FocDate.Compare(b.FocDate)
		case "onsaleDate":
			return a.OnSaleDate.Compare(b.OnSaleDate)
		case "issueNumber":
			return cmp.Compare(a.IssueNumber, b.IssueNumber)
		case "modified":
			return a.Modified.Compare(b.Modified)
		default:
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}
	}
	slices.SortStableFunc(items, func(a, b catalogComic) int {
		c := byField(a, b)
		if order.Descending() {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func (c catalogComic) toDomain() comic.Comic {
	out := comic.Comic{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Thumbnail:   comic.Image{Path: c.Thumbnail, Extension: c.Extension},
	}
	for _, t := range c.TextObjects {
		out.TextObjects = append(out.TextObjects, comic.TextObject{Type: t.Type, Language: t.Language, Text: t.Text})
	}
	for _, s := range c.Creators {
		out.Creators = append(out.Creators, comic.CreatorSummary{Name: s.Name, Role: s.Role})
	}
	for _, s := range c.Characters {
		out.Characters = append(out.Characters, comic.CharacterSummary{Name: s.Name, Role: s.Role})
	}
	return out
}
