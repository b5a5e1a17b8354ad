package comic

import (
	"fmt"
	"strings"
)

// SortOrder is the remote catalog's orderBy value.
type SortOrder string

const (
	SortFocDateAsc      SortOrder = "focDate"
	SortFocDateDesc     SortOrder = "-focDate"
	SortOnSaleDateAsc   SortOrder = "onsaleDate"
	SortOnSaleDateDesc  SortOrder = "-onsaleDate"
	SortTitleAsc        SortOrder = "title"
	SortTitleDesc       SortOrder = "-title"
	SortIssueNumberAsc  SortOrder = "issueNumber"
	SortIssueNumberDesc SortOrder = "-issueNumber"
	SortModifiedAsc     SortOrder = "modified"
	SortModifiedDesc    SortOrder = "-modified"
)

const DefaultSortOrder = SortTitleAsc

var sortOrders = []SortOrder{
	SortFocDateAsc,
	SortFocDateDesc,
	SortOnSaleDateAsc,
	SortOnSaleDateDesc,
	SortTitleAsc,
	SortTitleDesc,
	SortIssueNumberAsc,
	SortIssueNumberDesc,
	SortModifiedAsc,
	SortModifiedDesc,
}

var sortDescriptions = map[SortOrder]string{
	SortFocDateAsc:      "FOC date (oldest first)",
	SortFocDateDesc:     "FOC date (newest first)",
	SortOnSaleDateAsc:   "on-sale date (oldest first)",
	SortOnSaleDateDesc:  "on-sale date (newest first)",
	SortTitleAsc:        "title (A-Z)",
	SortTitleDesc:       "title (Z-A)",
	SortIssueNumberAsc:  "issue number (ascending)",
	SortIssueNumberDesc: "issue number (descending)",
	SortModifiedAsc:     "last modified (oldest first)",
	SortModifiedDesc:    "last modified (newest first)",
}

// SortOrders lists every supported order in display order.
func SortOrders() []SortOrder {
	out := make([]SortOrder, len(sortOrders))
	copy(out, sortOrders)
	return out
}

// ParseSortOrder accepts the wire value ("-title") or an empty string for the default.
func ParseSortOrder(raw string) (SortOrder, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DefaultSortOrder, nil
	}
	for _, order := range sortOrders {
		if string(order) == trimmed {
			return order, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSortOrder, raw)
}

func (s SortOrder) Valid() bool {
	_, ok := sortDescriptions[s]
	return ok
}

func (s SortOrder) Description() string {
	if d, ok := sortDescriptions[s]; ok {
		return d
	}
	return string(s)
}

// Descending reports whether the order is the reversed variant.
func (s SortOrder) Descending() bool {
	return strings.HasPrefix(string(s), "-")
}

// Field is the order without its direction prefix.
func (s SortOrder) Field() string {
	return strings.TrimPrefix(string(s), "-")
}

// Next cycles to the following order, wrapping around.
func (s SortOrder) Next() SortOrder {
	for i, order := range sortOrders {
		if order == s {
			return sortOrders[(i+1)%len(sortOrders)]
		}
	}
	return DefaultSortOrder
}
