package marvel

import "comicshelf/internal/domain/comic"

type envelope struct {
	Code   int           `json:"code"`
	Status string        `json:"status"`
	Data   dataContainer `json:"data"`
}

type dataContainer struct {
	Offset  *int       `json:"offset"`
	Total   *int       `json:"total"`
	Count   *int       `json:"count"`
	Results []comicDTO `json:"results"`
}

type comicDTO struct {
	ID          int64           `json:"id"`
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Thumbnail   *imageDTO       `json:"thumbnail"`
	TextObjects []textObjectDTO `json:"textObjects"`
	Creators    *summaryListDTO `json:"creators"`
	Characters  *summaryListDTO `json:"characters"`
}

type imageDTO struct {
	Path      string `json:"path"`
	Extension string `json:"extension"`
}

type textObjectDTO struct {
	Type     string `json:"type"`
	Language string `json:"language"`
	Text     string `json:"text"`
}

type summaryListDTO struct {
	Items []summaryDTO `json:"items"`
}

type summaryDTO struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

func (d comicDTO) toDomain() comic.Comic {
	c := comic.Comic{ID: d.ID}
	if d.Title != nil {
		c.Title = *d.Title
	}
	if d.Description != nil {
		c.Description = *d.Description
	}
	if d.Thumbnail != nil {
		c.Thumbnail = comic.Image{Path: d.Thumbnail.Path, Extension: d.Thumbnail.Extension}
	}
	for _, t := range d.TextObjects {
		c.TextObjects = append(c.TextObjects, comic.TextObject{Type: t.Type, Language: t.Language, Text: t.Text})
	}
	if d.Creators != nil {
		for _, s := range d.Creators.Items {
			c.Creators = append(c.Creators, comic.CreatorSummary{Name: s.Name, Role: s.Role})
		}
	}
	if d.Characters != nil {
		for _, s := range d.Characters.Items {
			c.Characters = append(c.Characters, comic.CharacterSummary{Name: s.Name, Role: s.Role})
		}
	}
	return c
}
