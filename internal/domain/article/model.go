package article

import (
	"time"

	"github.com/google/uuid"
)

// Article maps to the article table.
type Article struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	Category   string    `db:"category" json:"category"`
	Content    string    `db:"content" json:"content"`
	CoverImage *string   `db:"cover_image" json:"coverImage,omitempty"`
	ViewCount  int       `db:"view_count" json:"viewCount"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// ListItem replaces the full content with a short excerpt for list views.
type ListItem struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	Desc       string    `json:"desc"`
	CoverImage *string   `json:"coverImage,omitempty"`
	ViewCount  int       `json:"viewCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

const excerptLen = 100

func (a *Article) ToListItem() *ListItem {
	desc := a.Content
	if runes := []rune(desc); len(runes) > excerptLen {
		desc = string(runes[:excerptLen]) + "..."
	}
	return &ListItem{
		ID:         a.ID,
		Title:      a.Title,
		Category:   a.Category,
		Desc:       desc,
		CoverImage: a.CoverImage,
		ViewCount:  a.ViewCount,
		CreatedAt:  a.CreatedAt,
	}
}
