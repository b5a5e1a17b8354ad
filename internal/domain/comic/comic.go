package comic

import "slices"

// Comic is one cached record. ID is assigned by the remote catalog; Ordinal is
// assigned locally and is the only sort key for cache reads.
type Comic struct {
	ID          int64
	Ordinal     int64
	Title       string
	Description string
	Thumbnail   Image
	TextObjects []TextObject
	Creators    []CreatorSummary
	Characters  []CharacterSummary
}

type Image struct {
	Path      string
	Extension string
}

// URL joins path and extension the way the catalog serves images.
func (i Image) URL() string {
	if i.Path == "" {
		return ""
	}
	if i.Extension == "" {
		return i.Path
	}
	return i.Path + "." + i.Extension
}

type TextObject struct {
	Type     string
	Language string
	Text     string
}

type CreatorSummary struct {
	Name string
	Role string
}

type CharacterSummary struct {
	Name string
	Role string
}

// Equal compares every field. Ordering never goes through Equal.
func (c Comic) Equal(other Comic) bool {
	return c.ID == other.ID &&
		c.Ordinal == other.Ordinal &&
		c.Title == other.Title &&
		c.Description == other.Description &&
		c.Thumbnail == other.Thumbnail &&
		slices.Equal(c.TextObjects, other.TextObjects) &&
		slices.Equal(c.Creators, other.Creators) &&
		slices.Equal(c.Characters, other.Characters)
}

// SamePayload is Equal without the locally assigned ordinal, for comparing a
// cached row against what the remote returned.
func (c Comic) SamePayload(other Comic) bool {
	other.Ordinal = c.Ordinal
	return c.Equal(other)
}

// IDs returns the business ids in slice order.
func IDs(comics []Comic) []int64 {
	ids := make([]int64, 0, len(comics))
	for _, c := range comics {
		ids = append(ids, c.ID)
	}
	return ids
}
