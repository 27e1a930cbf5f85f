// ABOUTME: Bubble Tea message types used in the configuration view message loop.
// ABOUTME: Widget notifications and save results are bridged into tea.Msg values through channels.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/pipeconf/widget"
)

// LoadedMsg signals that the widget's fetch resolved. Err is the load error, if any.
type LoadedMsg struct {
	Err error
}

// ChangeMsg wraps a widget change notification.
type ChangeMsg struct {
	Change widget.Change
}

// SavedMsg carries the result of a save.
type SavedMsg struct {
	Err error
}

// WaitForLoadCmd blocks until the widget's Loaded channel closes.
func WaitForLoadCmd(w *widget.Widget) tea.Cmd {
	return func() tea.Msg {
		<-w.Loaded()
		return LoadedMsg{Err: w.Err()}
	}
}

// WaitForChangeCmd returns a command that reads the next change from ch.
// It returns nil when the channel is closed.
func WaitForChangeCmd(ch <-chan widget.Change) tea.Cmd {
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return nil
		}
		return ChangeMsg{Change: c}
	}
}
