package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/relsort/internal/shared"
)

// Precision is the granularity at which an album's release date is known.
type Precision string

const (
	PrecisionYear  Precision = "year"
	PrecisionMonth Precision = "month"
	PrecisionDay   Precision = "day"
)

// Direction selects oldest-first or newest-first ordering.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// ParseDirection accepts "asc"/"ascending"/"oldest" and "desc"/"descending"/"newest", case-insensitively.
// An empty string is [Ascending].
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending", "oldest":
		return Ascending, nil
	case "desc", "descending", "newest":
		return Descending, nil
	default:
		return "", fmt.Errorf("%w: unknown sort direction %q", shared.ErrInvalidArgument, s)
	}
}

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == Ascending || d == Descending
}

// Label is the human readable form used in progress messages.
func (d Direction) Label() string {
	if d == Descending {
		return "newest first"
	}
	return "oldest first"
}

// Album is the release a track belongs to.
type Album struct {
	Name        string    `json:"name"`
	ReleaseDate string    `json:"release_date,omitempty"`
	Precision   Precision `json:"release_date_precision,omitempty"`
}

// Track is a playlist entry as fetched from the catalog.
type Track struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Artists []string `json:"artists"`
	Album   Album    `json:"album"`
}

// ArtistNames joins the track's artists for display.
func (t Track) ArtistNames() string {
	return strings.Join(t.Artists, ", ")
}

// URI is the catalog identifier used in write requests.
func (t Track) URI() string {
	return "spotify:track:" + t.ID
}

// OrderedTrackList is a sequence of tracks in resolved release order, ties kept in fetch order.
type OrderedTrackList []Track

// URIs returns the target identifier sequence for reconciliation.
func (l OrderedTrackList) URIs() []string {
	uris := make([]string, len(l))
	for i, t := range l {
		uris[i] = t.URI()
	}
	return uris
}

// Playlist represents playlist metadata from the catalog.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Owner       string `json:"owner,omitempty"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
}
