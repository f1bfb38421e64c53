// Package models provides data model definitions for brewsync.
package models

import "time"

// Origin is the denormalized origin record as the backend serializes it.
type Origin struct {
	Name string `json:"name"`
}

// Recipe represents a coffee recipe as exchanged with the backend.
// IDs are server-assigned integers; a recipe created while offline carries
// a client-generated placeholder id (Unix milliseconds) until its ADD
// operation replays successfully.
type Recipe struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Origin      Origin `db:"origin" json:"origin"`
	Description string `db:"description" json:"description"`
	UserID      int64  `db:"user_id" json:"user"`
}

// TableName returns the table name for Recipe.
func (Recipe) TableName() string {
	return "recipes"
}

// NewPlaceholderID returns a client-side placeholder id for a recipe
// created while offline.
func NewPlaceholderID() int64 {
	return time.Now().UnixMilli()
}

// IsPlaceholder reports whether id looks like a client-generated
// placeholder rather than a server-assigned id. Placeholders are Unix
// millisecond timestamps and therefore far above any realistic
// server-assigned sequence value.
func IsPlaceholder(id int64) bool {
	return id >= 1_000_000_000_000
}

// RecipePayload is the mutation body sent to the backend on create and
// update. The backend expects the origin denormalized as {name}.
type RecipePayload struct {
	Name        string `json:"name"`
	Origin      Origin `json:"origin"`
	Description string `json:"description"`
}

// Payload extracts the mutable fields of a recipe.
func (r *Recipe) Payload() RecipePayload {
	return RecipePayload{
		Name:        r.Name,
		Origin:      r.Origin,
		Description: r.Description,
	}
}
