package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the bindings handled outside the list components, which bring their own navigation keys.
type keyMap struct {
	open    key.Binding
	sort    key.Binding
	back    key.Binding
	yes     key.Binding
	no      key.Binding
	flip    key.Binding
	restart key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		open:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		sort:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "sort")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		yes:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "sort")),
		no:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "cancel")),
		flip:    key.NewBinding(key.WithKeys("d", "tab"), key.WithHelp("d", "flip direction")),
		restart: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "sort another")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// forView lists the bindings shown in the help line of v. The sort view has none.
func (k keyMap) forView(v ViewState) []key.Binding {
	switch v {
	case PlaylistListView:
		return []key.Binding{k.open, k.quit}
	case TrackListView:
		return []key.Binding{k.sort, k.back, k.quit}
	case ConfirmView:
		return []key.Binding{k.yes, k.flip, k.no}
	case ResultView:
		return []key.Binding{k.restart, k.quit}
	default:
		return nil
	}
}
