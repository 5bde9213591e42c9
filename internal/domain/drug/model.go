package drug

import (
	"time"

	"github.com/google/uuid"
)

// Drug maps to the drug_catalog table. An informational entry, not a
// prescription: intro, usage and warnings are plain-language consumer text.
type Drug struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	CommonNames []string  `db:"common_names" json:"commonNames,omitempty"`
	Tags        []string  `db:"tags" json:"tags,omitempty"`
	Intro       string    `db:"intro" json:"intro"`
	Usage       string    `db:"usage" json:"usage"`
	Warnings    string    `db:"warnings" json:"warnings"`
	Disclaimer  string    `db:"disclaimer" json:"disclaimer"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// ListItem is the trimmed shape used in search results.
type ListItem struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Tags []string  `json:"tags,omitempty"`
}

func (d *Drug) ToListItem() *ListItem {
	return &ListItem{ID: d.ID, Name: d.Name, Tags: d.Tags}
}
