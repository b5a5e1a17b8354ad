package comic

import "strings"

// DefaultQueryMinLength is the shortest title filter sent to the catalog.
const DefaultQueryMinLength = 3

// Query identifies one paging session. Two sessions share cached pages only
// when their queries are equal.
type Query struct {
	TitleStartsWith string
	Sort            SortOrder
}

// NormalizeQuery trims the filter, drops it when shorter than minLength, and
// fills in the default sort order.
func NormalizeQuery(filter string, sort SortOrder, minLength int) Query {
	if minLength <= 0 {
		minLength = DefaultQueryMinLength
	}
	trimmed := strings.TrimSpace(filter)
	if len([]rune(trimmed)) < minLength {
		trimmed = ""
	}
	if !sort.Valid() {
		sort = DefaultSortOrder
	}
	return Query{TitleStartsWith: trimmed, Sort: sort}
}

// Key is a stable string form used to tag the cache epoch.
func (q Query) Key() string {
	return string(q.Sort) + "|" + q.TitleStartsWith
}

func (q Query) String() string {
	if q.TitleStartsWith == "" {
		return "sort=" + string(q.Sort)
	}
	return "sort=" + string(q.Sort) + " title^=" + q.TitleStartsWith
}
