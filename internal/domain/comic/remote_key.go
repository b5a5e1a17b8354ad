package comic

import "time"

// RemoteKey is the cursor kept for every cached comic: the remote page before
// and after the page the comic arrived on. A nil PrevKey marks the first page,
// a nil NextKey the last.
type RemoteKey struct {
	ComicID   int64
	PrevKey   *int
	NextKey   *int
	CreatedAt time.Time
}

// PageKey returns a pointer to page, for building RemoteKey values.
func PageKey(page int) *int {
	return &page
}

// KeysForPage derives the cursors for comics fetched from page.
// startingPage has no previous page; an empty fetch has no next page.
func KeysForPage(comics []Comic, page int, startingPage int, createdAt time.Time) []RemoteKey {
	var prevKey, nextKey *int
	if page != startingPage {
		prevKey = PageKey(page - 1)
	}
	if len(comics) > 0 {
		nextKey = PageKey(page + 1)
	}

	keys := make([]RemoteKey, 0, len(comics))
	for _, c := range comics {
		keys = append(keys, RemoteKey{
			ComicID:   c.ID,
			PrevKey:   prevKey,
			NextKey:   nextKey,
			CreatedAt: createdAt,
		})
	}
	return keys
}
