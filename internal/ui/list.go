package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/relsort/internal/models"
	"github.com/desertthunder/relsort/internal/releasedate"
)

type playlistItem struct{ models.Playlist }

func (i playlistItem) FilterValue() string { return i.Name + " " + i.Owner }
func (i playlistItem) Title() string       { return i.Name }
func (i playlistItem) Description() string {
	parts := []string{fmt.Sprintf("%d tracks", i.TrackCount)}
	if i.Owner != "" {
		parts = append(parts, "by "+i.Owner)
	}
	if i.Playlist.Description != "" {
		parts = append(parts, i.Playlist.Description)
	}
	return strings.Join(parts, " • ")
}

// trackItem shows a track with its release date at the precision the catalog reported.
type trackItem models.Track

func (i trackItem) FilterValue() string { return i.Name + " " + models.Track(i).ArtistNames() }
func (i trackItem) Title() string       { return i.Name }
func (i trackItem) Description() string {
	t := models.Track(i)
	return fmt.Sprintf("%s • %s (%s)", t.ArtistNames(), t.Album.Name, releasedate.FormatTrack(t))
}

// newList builds a list titled title with one item per element of values.
func newList[T any](title string, values []T, item func(T) list.Item) list.Model {
	items := make([]list.Item, len(values))
	for i, v := range values {
		items[i] = item(v)
	}
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	return l
}

func asPlaylistItem(p models.Playlist) list.Item { return playlistItem{p} }
func asTrackItem(t models.Track) list.Item       { return trackItem(t) }
