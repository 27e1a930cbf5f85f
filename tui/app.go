// ABOUTME: Top-level Bubble Tea model that drives a configuration widget from the terminal.
// ABOUTME: Implements tea.Model (Init, Update, View) over widget rows, an inline text editor, and save.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/pipeconf/pipeline"
	"github.com/2389-research/pipeconf/widget"
)

// changeBuffer bounds queued widget notifications. Notifications past the
// bound are dropped; the next redraw reads the widget state directly.
const changeBuffer = 32

// Model is the terminal configuration view over one widget.
type Model struct {
	ctx         context.Context
	widget      *widget.Widget
	changes     chan widget.Change
	unsubscribe func()

	view   widget.ViewData
	rows   []Row
	cursor int

	input      textinput.Model
	editing    bool
	editTarget widget.Target
	adding     widget.SectionID

	saving bool
	status string
	width  int
	height int
}

// NewModel creates a Model over w and subscribes to its changes. The widget
// is mounted by Init.
func NewModel(ctx context.Context, w *widget.Widget) *Model {
	ti := textinput.New()
	ti.Prompt = "> "

	changes := make(chan widget.Change, changeBuffer)
	m := &Model{
		ctx:     ctx,
		widget:  w,
		changes: changes,
		input:   ti,
	}
	m.unsubscribe = w.Subscribe(func(c widget.Change) {
		select {
		case changes <- c:
		default:
		}
	})
	m.refresh()
	return m
}

// Close stops listening for widget changes.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// Run starts a full-screen program over w and blocks until the user quits.
func Run(ctx context.Context, w *widget.Widget) error {
	m := NewModel(ctx, w)
	defer m.Close()
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// Init implements tea.Model. Mounts the widget and starts listening for the
// load result and subsequent changes.
func (m *Model) Init() tea.Cmd {
	m.widget.Mount(m.ctx)
	return tea.Batch(
		WaitForLoadCmd(m.widget),
		WaitForChangeCmd(m.changes),
	)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case LoadedMsg:
		if msg.Err != nil {
			m.status = fmt.Sprintf("load failed: %v", msg.Err)
		}
		m.refresh()
		return m, nil

	case ChangeMsg:
		m.refresh()
		return m, WaitForChangeCmd(m.changes)

	case SavedMsg:
		m.saving = false
		m.status = ""
		if msg.Err != nil && !flashedSaveError(msg.Err) {
			m.status = msg.Err.Error()
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if m.editing {
			return m.handleEditorKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

// flashedSaveError reports whether the widget already reports err in its flash.
func flashedSaveError(err error) bool {
	var verr *pipeline.ValidationError
	return errors.As(err, &verr) || errors.Is(err, widget.ErrConflict)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j", "tab":
		m.moveCursor(1)
	case "enter":
		return m.activate(true)
	case " ":
		return m.activate(false)
	case "a":
		m.startAdd()
	case "d":
		m.removeRow()
	case "ctrl+s":
		return m.save()
	}
	return m, nil
}

func (m *Model) handleEditorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.submit()
		return m, nil
	case tea.KeyEsc:
		m.stopEditing()
		return m, nil
	case tea.KeyCtrlC:
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// activate handles enter (open editors) and space (toggles only) on the focused row.
func (m *Model) activate(enter bool) (tea.Model, tea.Cmd) {
	row, ok := m.current()
	if !ok {
		return m, nil
	}
	var err error
	switch row.Kind {
	case RowSection:
		err = m.widget.ToggleSection(row.Section)
	case RowCheckbox:
		err = m.widget.Click(row.Target)
	case RowText:
		if enter {
			m.startEdit(row)
		}
	case RowReadOnly:
		m.status = fmt.Sprintf("%s is read-only", row.Label)
		return m, nil
	}
	m.report(err)
	return m, nil
}

func (m *Model) startEdit(row Row) {
	m.editing = true
	m.editTarget = row.Target
	m.adding = ""
	m.input.Placeholder = ""
	m.input.EchoMode = textinput.EchoNormal
	m.input.SetValue(row.Value)
	if row.Secret {
		m.input.EchoMode = textinput.EchoPassword
		m.input.SetValue("")
	}
	m.input.CursorEnd()
	m.input.Focus()
}

// startAdd opens the editor for a new row in the focused parameters or
// environment variables section.
func (m *Model) startAdd() {
	row, ok := m.current()
	if !ok || !m.view.Loaded {
		return
	}
	if row.Section != widget.SectionParameters && row.Section != widget.SectionVariables {
		m.status = "rows can only be added to parameters and environment variables"
		return
	}
	m.editing = true
	m.editTarget = widget.Target{}
	m.adding = row.Section
	m.input.EchoMode = textinput.EchoNormal
	m.input.Placeholder = "NAME=value"
	m.input.SetValue("")
	m.input.Focus()
}

func (m *Model) submit() {
	value := m.input.Value()
	var err error
	switch m.adding {
	case widget.SectionParameters, widget.SectionVariables:
		name, val, _ := strings.Cut(value, "=")
		name = strings.TrimSpace(name)
		if m.adding == widget.SectionParameters {
			err = m.widget.AddParameter(name, val)
		} else {
			err = m.widget.AddVariable(name, val, false)
		}
	default:
		err = m.widget.Input(m.editTarget, value)
	}
	m.stopEditing()
	m.report(err)
}

func (m *Model) stopEditing() {
	m.editing = false
	m.adding = ""
	m.editTarget = widget.Target{}
	m.input.Reset()
	m.input.Blur()
}

func (m *Model) removeRow() {
	row, ok := m.current()
	if !ok || row.Target.Key == "" {
		return
	}
	var err error
	switch row.Target.ModelType {
	case widget.ModelParameter:
		err = m.widget.RemoveParameter(row.Target.Key)
	case widget.ModelVariable:
		err = m.widget.RemoveVariable(row.Target.Key)
	default:
		return
	}
	m.report(err)
}

func (m *Model) save() (tea.Model, tea.Cmd) {
	if m.saving {
		return m, nil
	}
	m.saving = true
	m.status = "saving..."
	w, ctx := m.widget, m.ctx
	return m, func() tea.Msg {
		return SavedMsg{Err: w.Save(ctx)}
	}
}

// report records err in the status line and redraws from the widget.
func (m *Model) report(err error) {
	m.status = ""
	if err != nil {
		m.status = err.Error()
	}
	m.refresh()
}

func (m *Model) refresh() {
	m.view = m.widget.View()
	m.rows = BuildRows(m.view)
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if row, ok := m.rowAt(m.cursor); ok && !row.Focusable() {
		m.moveCursor(-1)
	}
}

func (m *Model) rowAt(i int) (Row, bool) {
	if i < 0 || i >= len(m.rows) {
		return Row{}, false
	}
	return m.rows[i], true
}

func (m *Model) current() (Row, bool) {
	return m.rowAt(m.cursor)
}

// moveCursor steps to the next focusable row in direction dir, staying put at the ends.
func (m *Model) moveCursor(dir int) {
	for i := m.cursor + dir; i >= 0 && i < len(m.rows); i += dir {
		if m.rows[i].Focusable() {
			m.cursor = i
			return
		}
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	switch {
	case m.view.LoadError != "":
		b.WriteString(ErrorStyle.Render("Could not load pipeline: " + m.view.LoadError))
	case !m.view.Loaded:
		b.WriteString(TitleStyle.Render("Loading…"))
	default:
		b.WriteString(TitleStyle.Render(m.view.Heading))
	}
	b.WriteString("\n\n")

	for i, row := range m.rows {
		b.WriteString(m.renderRow(row, i == m.cursor))
		b.WriteString("\n")
		if row.Field != "" {
			for _, msg := range m.view.FieldErrs[row.Field] {
				b.WriteString("    ")
				b.WriteString(ErrorStyle.Render(msg))
				b.WriteString("\n")
			}
		}
	}

	if m.editing {
		b.WriteString("\n")
		title := m.editTarget.String()
		if m.adding != "" {
			title = "add to " + string(m.adding)
		}
		b.WriteString(EditorStyle.Render(title + "\n" + m.input.View()))
		b.WriteString("\n")
	}

	if m.view.Flash != "" {
		b.WriteString("\n")
		b.WriteString(StyleForFlash(m.view.FlashError).Render(m.view.Flash))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.statusLine())
	return b.String()
}

func (m *Model) renderRow(row Row, focused bool) string {
	prefix := "  "
	if focused {
		prefix = CursorStyle.Render("> ")
	}

	switch row.Kind {
	case RowSection:
		return prefix + SectionStyle.Render(row.Label)
	case RowInfo:
		if row.Label == "" {
			return prefix + "  " + InfoStyle.Render(row.Value)
		}
		return prefix + "  " + LabelStyle.Render(row.Label) + InfoStyle.Render(row.Value)
	case RowCheckbox:
		box := "[ ]"
		if row.Checked {
			box = "[x]"
		}
		return prefix + "  " + LabelStyle.Render(row.Label) + ValueStyle.Render(box)
	case RowReadOnly:
		return prefix + "  " + LabelStyle.Render(row.Label) + ReadOnlyStyle.Render(row.Value)
	default:
		value := row.Value
		if row.Secret {
			value = "********"
		}
		return prefix + "  " + LabelStyle.Render(row.Label) + ValueStyle.Render(value)
	}
}

func (m *Model) statusLine() string {
	parts := []string{"↑/↓ move", "enter edit/toggle", "a add", "d delete", "ctrl+s save", "q quit"}
	if m.view.Dirty {
		parts = append([]string{"modified"}, parts...)
	}
	line := strings.Join(parts, " · ")
	if m.status != "" {
		line = m.status + " · " + line
	}
	if m.width > 0 {
		return StatusBarStyle.Width(m.width).Render(line)
	}
	return StatusBarStyle.Render(line)
}
