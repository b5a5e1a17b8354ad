package comic

import "errors"

var (
	ErrComicNotFound    = errors.New("comic not found")
	ErrInvalidSortOrder = errors.New("invalid sort order")
	ErrInvalidComicID   = errors.New("invalid comic id")
)
