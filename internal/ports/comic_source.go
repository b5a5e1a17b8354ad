package ports

import (
	"context"

	"comicshelf/internal/domain/comic"
)

// ComicPageRequest is one remote page. Offset is already derived from the page
// number by the caller.
type ComicPageRequest struct {
	Limit           int
	Offset          int
	Sort            comic.SortOrder
	TitleStartsWith string
}

// ComicSource is the remote catalog. Errors are classified with errs.Transport
// and errs.Protocol.
type ComicSource interface {
	FetchComics(ctx context.Context, req ComicPageRequest) ([]comic.Comic, error)
	FetchComic(ctx context.Context, id int64) (item comic.Comic, found bool, err error)
}
