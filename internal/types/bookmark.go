package types

import (
	"sort"
	"time"
)

// Bookmark is a snapshot of a place saved by a user. The embedded place is a
// copy taken at bookmark time, not a live reference.
type Bookmark struct {
	Place
	Liked     bool      `json:"liked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BookmarkSet maps a place id to its saved snapshot.
type BookmarkSet map[string]Bookmark

// Clone returns a shallow copy safe to hand to another goroutine.
func (s BookmarkSet) Clone() BookmarkSet {
	out := make(BookmarkSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Has reports whether id is bookmarked.
func (s BookmarkSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Bookmarks returns the set ordered by creation time, oldest first.
func (s BookmarkSet) Bookmarks() []Bookmark {
	out := make([]Bookmark, 0, len(s))
	for _, b := range s {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Places returns the saved place snapshots in the same order as Bookmarks.
func (s BookmarkSet) Places() []Place {
	bookmarks := s.Bookmarks()
	out := make([]Place, 0, len(bookmarks))
	for _, b := range bookmarks {
		out = append(out, b.Place)
	}
	return out
}

// ToggleResult is the local outcome of a bookmark toggle.
type ToggleResult struct {
	PlaceID    string  `json:"place_id"`
	Bookmarked bool    `json:"bookmarked"`
	Notice     *Notice `json:"notice,omitempty"`
}
