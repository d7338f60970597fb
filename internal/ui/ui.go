package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/relsort/internal/models"
	"github.com/desertthunder/relsort/internal/shared"
	"github.com/desertthunder/relsort/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	TrackListView
	ConfirmView
	SortView
	ResultView
)

// Catalog lists playlists and their tracks for browsing.
type Catalog interface {
	GetPlaylists(ctx context.Context) ([]models.Playlist, error)
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	catalog      Catalog
	sorter       tasks.Sorter
	width        int
	height       int
	playlistList list.Model
	playlists    []models.Playlist
	trackList    list.Model
	selected     models.Playlist
	tracks       []models.Track
	direction    models.Direction
	progressChan chan tasks.ProgressUpdate
	done         chan sortComplete
	progress     tasks.ProgressUpdate
	result       *models.SortResult
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, catalog Catalog, sorter tasks.Sorter) *Model {
	return &Model{
		ctx:       ctx,
		view:      PlaylistListView,
		catalog:   catalog,
		sorter:    sorter,
		direction: models.Ascending,
		width:     80,
		height:    24,
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// Init initializes the TUI by fetching playlists from Spotify.
func (m *Model) Init() tea.Cmd {
	return m.fetchPlaylists()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		if m.err != nil && m.view != ResultView {
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		}

		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case SortView:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		data := msg.data.(playlistsFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.playlists = data.playlists
		m.playlistList = newList("Spotify Playlists", data.playlists, asPlaylistItem)
		m.resize()
		return m, nil

	case MsgTracksFetched:
		data := msg.data.(tracksFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.selected = data.playlist
		m.tracks = data.tracks
		m.trackList = newList(fmt.Sprintf("Tracks in '%s'", data.playlist.Name), data.tracks, asTrackItem)
		m.view = TrackListView
		m.resize()
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgSortComplete:
		data := msg.data.(sortComplete)
		m.result = data.result
		m.err = data.err
		m.view = ResultView
		m.progressChan = nil
		m.done = nil
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case TrackListView:
		return m.renderTrackList()
	case ConfirmView:
		return m.renderConfirm()
	case SortView:
		return m.renderSort()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) resize() {
	w, h := max(m.width-4, 10), max(m.height-8, 5)
	if m.playlists != nil {
		m.playlistList.SetSize(w, h)
	}
	if m.tracks != nil {
		m.trackList.SetSize(w, h)
	}
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.playlists == nil {
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		return m, nil
	}

	if m.playlistList.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.open):
			if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
				return m, m.fetchTracks(pl.Playlist)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.trackList.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.back):
			m.view = PlaylistListView
			return m, nil
		case key.Matches(msg, m.keys.sort):
			m.view = ConfirmView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = TrackListView
		return m, nil
	case key.Matches(msg, m.keys.flip):
		if m.direction == models.Ascending {
			m.direction = models.Descending
		} else {
			m.direction = models.Ascending
		}
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = SortView
		m.progress = tasks.ProgressUpdate{}
		return m, m.startSort()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = PlaylistListView
		m.selected = models.Playlist{}
		m.tracks = nil
		m.result = nil
		m.err = nil
		return m, m.fetchPlaylists()
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.view == PlaylistListView && m.playlists != nil:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case m.view == TrackListView && m.tracks != nil:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.catalog.GetPlaylists(m.ctx)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *Model) fetchTracks(playlist models.Playlist) tea.Cmd {
	return func() tea.Msg {
		tracks, err := m.catalog.PlaylistTracks(m.ctx, playlist.ID)
		return tracksFetchedMsg(playlist, tracks, err)
	}
}

// startSort runs the sort in the background. The progress channel is closed once the outcome is on done.
func (m *Model) startSort() tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan sortComplete, 1)
	m.progressChan, m.done = progress, done

	id, direction := m.selected.ID, m.direction
	go func() {
		result, err := m.sorter.Sort(m.ctx, progress, id, direction)
		done <- sortComplete{result, err}
		close(progress)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.done
	return func() tea.Msg {
		if progress == nil {
			return sortCompleteMsg(nil, errors.New("no sort in progress"))
		}

		update, ok := <-progress
		if !ok {
			out := <-done
			return sortCompleteMsg(out.result, out.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) helpView() string {
	return m.help.ShortHelpView(m.keys.forView(m.view))
}

func (m *Model) renderPlaylistList() string {
	if m.playlists == nil {
		return styles.help.Render("Loading playlists...")
	}
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), m.helpView())
}

func (m *Model) renderTrackList() string {
	return fmt.Sprintf("%s\n\n%s", m.trackList.View(), m.helpView())
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Sort '%s' by release date?", m.selected.Name))
	info := fmt.Sprintf("\nTracks: %d\nOrder: %s\n\n%s\n",
		len(m.tracks),
		m.direction.Label(),
		styles.warn.Render("The playlist is rewritten in place."),
	)

	return fmt.Sprintf("%s\n%s\n%s", title, info, m.helpView())
}

func (m *Model) renderSort() string {
	title := styles.title.Render(fmt.Sprintf("Sorting '%s'", m.selected.Name))

	var phase string
	switch m.progress.Phase {
	case tasks.Fetching:
		phase = "Fetching tracks..."
	case tasks.Ordering:
		phase = "Ordering by release date..."
	case tasks.Reconciling:
		phase = fmt.Sprintf("Rewriting playlist %s %d/%d", progressBar(m.progress.Step, m.progress.Total, 30), m.progress.Step, m.progress.Total)
	case tasks.Summarizing, tasks.Done:
		phase = "Summarizing..."
	default:
		phase = "Starting..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, styles.help.Render(m.progress.Message))
}

// progressBar renders a fixed-width bar filled step/total of the way.
func progressBar(step, total, width int) string {
	filled := 0
	if total > 0 {
		filled = min(width, step*width/total)
	}
	return "[" + styles.bar.Render(strings.Repeat("█", filled)) + strings.Repeat("░", width-filled) + "]"
}

func (m *Model) renderResult() string {
	helpView := m.helpView()

	if m.err != nil {
		var partial *shared.PartialReconciliationError
		if errors.As(m.err, &partial) {
			msg := fmt.Sprintf("Sort interrupted after %d of %d batches: %v\n\nThe remote playlist was changed and may now be incomplete.", partial.Applied, partial.Total, m.err)
			return fmt.Sprintf("%s\n\n%s", styles.warn.Render(msg), helpView)
		}
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(fmt.Sprintf("Sort failed: %v", m.err)), helpView)
	}

	if m.result == nil {
		return fmt.Sprintf("%s\n\n%s", styles.err.Render("No result available"), helpView)
	}

	title := styles.ok.Render("✓ Playlist sorted!")
	info := fmt.Sprintf("\nPlaylist: %s\nTracks: %d (%s)\nBatches: %d",
		m.result.PlaylistName,
		m.result.TracksProcessed,
		m.result.Direction.Label(),
		m.result.BatchesApplied,
	)
	oldest, newest := m.result.Chronological()
	if oldest != nil {
		info += fmt.Sprintf("\nOldest: %s by %s (%s)", oldest.Name, strings.Join(oldest.Artists, ", "), oldest.ReleaseDate)
	}
	if newest != nil {
		info += fmt.Sprintf("\nNewest: %s by %s (%s)", newest.Name, strings.Join(newest.Artists, ", "), newest.ReleaseDate)
	}

	return fmt.Sprintf("%s\n%s\n\n%s", title, info, helpView)
}
