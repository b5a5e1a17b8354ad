package ports

import "context"

const (
	TableComics     = "comics"
	TableRemoteKeys = "remote_keys"
)

// InvalidationTracker announces committed table writes. Readers capture
// Version before reading and compare afterwards; Changed returns a channel that
// is closed at the next change of the table.
type InvalidationTracker interface {
	Version(table string) uint64
	Changed(table string) <-chan struct{}
	Notify(tables ...string)
}

// PublishChanged marks tables inside the current transaction, or notifies the
// tracker right away when there is none.
func PublishChanged(ctx context.Context, tracker InvalidationTracker, tables ...string) {
	if tracker == nil || len(tables) == 0 {
		return
	}
	if MarkChanged(ctx, tables...) {
		return
	}
	tracker.Notify(tables...)
}
