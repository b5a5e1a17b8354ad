package paging

import "errors"

var (
	ErrEngineClosed    = errors.New("paging engine closed")
	ErrPagerClosed     = errors.New("pager closed")
	errUnknownLoadType = errors.New("unknown load type")
)
