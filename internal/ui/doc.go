// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for sorting a playlist by release date:
//  1. [PlaylistListView] : Browse and select Spotify playlists
//  2. [TrackListView] : Preview tracks with their release dates in current playlist order
//  3. [ConfirmView] : Pick the sort direction and confirm the rewrite
//  4. [SortView] : Monitor the sort as it moves through its phases and batches
//  5. [ResultView] : Display the oldest and newest tracks, or the failure
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the [tasks.Sorter], which never blocks on a slow UI.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
