package paging

import "comicshelf/internal/domain/comic"

// Page is one contiguous chunk of cached comics as the consumer holds it.
type Page struct {
	Items []comic.Comic
}

// PagingState is what the mediator sees of the consumer: the loaded pages and
// the position the viewport was last anchored at. Positions count from the
// first loaded item, so AnchorPosition 0 is Pages[0].Items[0].
type PagingState struct {
	Pages          []Page
	AnchorPosition *int
}

// FirstItem returns the first item of the first non-empty page.
func (s PagingState) FirstItem() (comic.Comic, bool) {
	for _, p := range s.Pages {
		if len(p.Items) > 0 {
			return p.Items[0], true
		}
	}
	return comic.Comic{}, false
}

// LastItem returns the last item of the last non-empty page.
func (s PagingState) LastItem() (comic.Comic, bool) {
	for i := len(s.Pages) - 1; i >= 0; i-- {
		if items := s.Pages[i].Items; len(items) > 0 {
			return items[len(items)-1], true
		}
	}
	return comic.Comic{}, false
}

// ItemCount is the number of loaded items across pages.
func (s PagingState) ItemCount() int {
	n := 0
	for _, p := range s.Pages {
		n += len(p.Items)
	}
	return n
}

// ClosestItemToPosition returns the loaded item at position, clamped to the
// loaded range when position falls outside it.
func (s PagingState) ClosestItemToPosition(position int) (comic.Comic, bool) {
	total := s.ItemCount()
	if total == 0 {
		return comic.Comic{}, false
	}
	if position < 0 {
		position = 0
	}
	if position >= total {
		position = total - 1
	}
	for _, p := range s.Pages {
		if position < len(p.Items) {
			return p.Items[position], true
		}
		position -= len(p.Items)
	}
	return comic.Comic{}, false
}

// ClosestItemToAnchor resolves AnchorPosition; false when there is no anchor.
func (s PagingState) ClosestItemToAnchor() (comic.Comic, bool) {
	if s.AnchorPosition == nil {
		return comic.Comic{}, false
	}
	return s.ClosestItemToPosition(*s.AnchorPosition)
}
