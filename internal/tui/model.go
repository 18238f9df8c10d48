// Package tui implements the interactive terminal interface. It renders
// controller snapshots and turns key presses into controller calls; all state
// lives in the controllers.
package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tasksync/internal/controller"
	"tasksync/internal/errors"
	"tasksync/internal/output"
	"tasksync/internal/service"
)

type viewMode int

const (
	modeList viewMode = iota
	modeForm
	modeDiagnostics
)

func (v viewMode) String() string {
	switch v {
	case modeForm:
		return "New task"
	case modeDiagnostics:
		return "Connection"
	}
	return "Tasks"
}

var modes = []viewMode{modeList, modeForm, modeDiagnostics}

// Form fields, in focus order.
const (
	fieldTitle = iota
	fieldDescription
	fieldDue
	fieldCount
)

// Model is the bubbletea model for the task UI.
type Model struct {
	ctx  context.Context
	coll *controller.Collection
	form *controller.Creation
	diag *controller.Diagnostics

	mode   viewMode
	cursor int

	list   controller.CollectionState
	create controller.CreationState
	probes controller.DiagnosticsState

	inputs  []textinput.Model
	focus   int
	dueErr  string
	notice  string
	baseURL string

	width    int
	height   int
	quitting bool
}

// New builds a Model around the three controllers.
func New(ctx context.Context, coll *controller.Collection, form *controller.Creation, diag *controller.Diagnostics) Model {
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.Width = 48
		switch i {
		case fieldTitle:
			ti.Placeholder = "What needs doing?"
			ti.CharLimit = 200
			ti.Focus()
		case fieldDescription:
			ti.Placeholder = "Optional details"
			ti.CharLimit = 1000
		case fieldDue:
			ti.Placeholder = "YYYY-MM-DD"
			ti.CharLimit = 10
			ti.Width = 12
		}
		inputs[i] = ti
	}
	return Model{
		ctx:    ctx,
		coll:   coll,
		form:   form,
		diag:   diag,
		list:   coll.State(),
		create: form.State(),
		probes: diag.State(),
		inputs: inputs,
	}
}

// WithBaseURL sets the store address shown in the connection view.
func (m Model) WithBaseURL(u string) Model {
	m.baseURL = u
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, refreshCmd(m.ctx, m.coll))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case stateChangedMsg:
		m.sync()
		return m, nil

	case opDoneMsg:
		m.sync()
		if errors.Is(msg.err, errors.ErrOperationInProgress) || errors.Is(msg.err, errors.ErrProbeInProgress) {
			m.notice = "still working, try again in a moment"
		}
		if msg.op == opSubmit && msg.err == nil {
			m.clearInputs()
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		m.notice = ""
		switch m.mode {
		case modeForm:
			return m.handleFormKey(msg)
		case modeDiagnostics:
			return m.handleDiagnosticsKey(msg)
		default:
			return m.handleListKey(msg)
		}
	}
	return m, nil
}

// sync pulls fresh snapshots from every controller.
func (m *Model) sync() {
	m.list = m.coll.State()
	m.create = m.form.State()
	m.probes = m.diag.State()
	m.clampCursor()
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.list.Tasks) {
		m.cursor = len(m.list.Tasks) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) current() (service.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.list.Tasks) {
		return service.Task{}, false
	}
	return m.list.Tasks[m.cursor], true
}

func (m Model) switchMode(next viewMode) (tea.Model, tea.Cmd) {
	m.mode = next
	if next == modeForm {
		return m, m.focusField(m.focus)
	}
	return m, nil
}

func (m Model) nextMode() viewMode {
	i := slices.Index(modes, m.mode)
	return modes[(i+1)%len(modes)]
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.list.Tasks)-1 {
			m.cursor++
		}
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = max(len(m.list.Tasks)-1, 0)
	case " ", "x":
		if t, ok := m.current(); ok {
			m.coll.ToggleSelect(t.ID)
			m.list = m.coll.State()
		}
	case "a":
		m.coll.ToggleAll()
		m.list = m.coll.State()
	case "esc":
		if m.list.Err != nil {
			m.coll.ClearError()
		} else {
			m.coll.DeselectAll()
		}
		m.list = m.coll.State()
	case "c":
		if t, ok := m.current(); ok {
			next := service.StatusCompleted
			if t.Status == service.StatusCompleted {
				next = service.StatusPending
			}
			return m, setStatusCmd(m.ctx, m.coll, t.ID, next)
		}
	case "p":
		if t, ok := m.current(); ok {
			return m, setStatusCmd(m.ctx, m.coll, t.ID, service.StatusInProgress)
		}
	case "d", "delete":
		if m.list.Busy {
			m.notice = "delete already running"
			return m, nil
		}
		return m, deleteSelectedCmd(m.ctx, m.coll)
	case "r":
		if m.list.CanRetry {
			return m, retryCmd(m.ctx, m.coll)
		}
		return m, refreshCmd(m.ctx, m.coll)
	case "n":
		return m.switchMode(modeForm)
	case "D":
		return m.switchMode(modeDiagnostics)
	case "tab":
		return m.switchMode(m.nextMode())
	}
	return m, nil
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m.switchMode(modeList)
	case "tab", "down":
		return m, m.focusField((m.focus + 1) % fieldCount)
	case "shift+tab", "up":
		return m, m.focusField((m.focus + fieldCount - 1) % fieldCount)
	case "ctrl+t":
		i := slices.Index(service.Statuses, m.create.Status)
		_ = m.form.SetStatus(service.Statuses[(i+1)%len(service.Statuses)])
		m.create = m.form.State()
		return m, nil
	case "ctrl+r":
		m.form.Reset()
		m.clearInputs()
		m.create = m.form.State()
		return m, m.focusField(fieldTitle)
	case "enter":
		if m.create.Submitting {
			m.notice = "already submitting"
			return m, nil
		}
		if m.dueErr != "" {
			return m, nil
		}
		return m, submitCmd(m.ctx, m.form)
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	m.pushDraft()
	return m, cmd
}

// pushDraft copies the input values into the creation controller.
func (m *Model) pushDraft() {
	switch m.focus {
	case fieldTitle:
		m.form.SetTitle(m.inputs[fieldTitle].Value())
	case fieldDescription:
		m.form.SetDescription(m.inputs[fieldDescription].Value())
	case fieldDue:
		raw := strings.TrimSpace(m.inputs[fieldDue].Value())
		m.dueErr = ""
		if raw == "" {
			m.form.SetDueDate(nil)
			break
		}
		due, err := time.ParseInLocation(output.DateLayout, raw, time.UTC)
		if err != nil {
			m.dueErr = "due date must be YYYY-MM-DD"
			break
		}
		m.form.SetDueDate(&due)
	}
	m.create = m.form.State()
}

func (m *Model) focusField(i int) tea.Cmd {
	m.focus = i
	var cmd tea.Cmd
	for j := range m.inputs {
		if j == i {
			cmd = m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
	return cmd
}

func (m *Model) clearInputs() {
	for i := range m.inputs {
		m.inputs[i].SetValue("")
	}
	m.dueErr = ""
}

func (m Model) handleDiagnosticsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "esc":
		return m.switchMode(modeList)
	case "tab":
		return m.switchMode(m.nextMode())
	case "enter", "r":
		if m.probes.Testing() {
			m.notice = "a probe is still running"
			return m, nil
		}
		return m, runAllProbesCmd(m.ctx, m.diag)
	case "1", "2", "3":
		kind := controller.ProbeKinds[int(msg.String()[0]-'1')]
		if m.probes.Probe(kind).Status == controller.StatusTesting {
			m.notice = kind.Title() + " is still running"
			return m, nil
		}
		return m, runProbeCmd(m.ctx, m.diag, kind)
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")
	switch m.mode {
	case modeForm:
		b.WriteString(m.renderForm())
	case modeDiagnostics:
		b.WriteString(m.renderDiagnostics())
	default:
		b.WriteString(m.renderList())
	}
	if m.notice != "" {
		b.WriteString("\n" + mutedStyle.Render(m.notice))
	}
	b.WriteString("\n" + helpStyle.Render(m.helpLine()))
	return b.String()
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, len(modes))
	for _, v := range modes {
		if v == m.mode {
			tabs = append(tabs, tabActiveStyle.Render(v.String()))
		} else {
			tabs = append(tabs, tabInactiveStyle.Render(v.String()))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderList() string {
	var b strings.Builder
	c := m.list.Counts()
	summary := fmt.Sprintf("%d tasks: %d pending, %d in progress, %d completed", c.Total, c.Pending, c.InProgress, c.Completed)
	if n := len(m.list.Selection); n > 0 {
		summary += fmt.Sprintf(", %d selected", n)
	}
	b.WriteString(titleStyle.Render(summary))
	b.WriteString("\n")

	switch {
	case m.list.Loading && len(m.list.Tasks) == 0:
		b.WriteString(mutedStyle.Render("loading..."))
		b.WriteString("\n")
	case len(m.list.Tasks) == 0:
		b.WriteString(mutedStyle.Render("no tasks yet, press n to add one"))
		b.WriteString("\n")
	}

	for i, t := range m.list.Tasks {
		prefix := "  "
		if i == m.cursor {
			prefix = cursorStyle.Render("> ")
		}
		check := " "
		if m.list.IsSelected(t.ID) {
			check = selectedStyle.Render("*")
		}
		line := fmt.Sprintf("%s %s", output.StatusMark(t.Status), t.Title)
		if t.DueDate != nil {
			line += "  (due " + t.DueDate.Format(output.DateLayout) + ")"
		}
		switch t.Status {
		case service.StatusCompleted:
			line = doneStyle.Render(line)
		case service.StatusInProgress:
			line = activeStyle.Render(line)
		}
		fmt.Fprintf(&b, "%s%s %s\n", prefix, check, line)
	}

	switch {
	case m.list.Busy:
		b.WriteString("\n" + mutedStyle.Render("deleting..."))
	case m.list.Loading && len(m.list.Tasks) > 0:
		b.WriteString("\n" + mutedStyle.Render("refreshing..."))
	}
	if m.list.Err != nil {
		msg := m.list.Message
		if m.list.CanRetry {
			msg += " (r to retry)"
		} else {
			msg += " (r to refresh)"
		}
		b.WriteString("\n" + errorStyle.Render(msg))
	}
	return b.String()
}

func (m Model) renderForm() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Create a task"))
	b.WriteString("\n")
	labels := [fieldCount]string{"Title", "Description", "Due"}
	for i, in := range m.inputs {
		b.WriteString(labelStyle.Render(labels[i]))
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	b.WriteString(labelStyle.Render("Status"))
	b.WriteString(string(m.create.Status))
	b.WriteString("\n\n")

	switch {
	case m.dueErr != "":
		b.WriteString(errorStyle.Render(m.dueErr))
	case m.create.Submitting:
		b.WriteString(mutedStyle.Render("creating..."))
	case m.create.Err != nil:
		b.WriteString(errorStyle.Render(m.create.Message + " (enter to retry)"))
	case m.create.JustSucceeded && m.create.LastCreated != nil:
		b.WriteString(successStyle.Render(fmt.Sprintf("created task %d", m.create.LastCreated.ID)))
	}
	return b.String()
}

func (m Model) renderDiagnostics() string {
	var b strings.Builder
	title := "Connection"
	if m.baseURL != "" {
		title += ": " + m.baseURL
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	for i, kind := range controller.ProbeKinds {
		p := m.probes.Probe(kind)
		var status string
		switch p.Status {
		case controller.StatusSuccess:
			status = successStyle.Render("ok")
		case controller.StatusError:
			status = errorStyle.Render("error")
		case controller.StatusTesting:
			status = mutedStyle.Render("testing...")
		default:
			status = mutedStyle.Render("idle")
		}
		fmt.Fprintf(&b, "%d. %s %s", i+1, labelStyle.Width(18).Render(kind.Title()), status)
		if p.Message != "" && p.Status != controller.StatusTesting {
			fmt.Fprintf(&b, "  %s", p.Message)
			if p.Latency > 0 {
				fmt.Fprintf(&b, " (%s)", p.Latency.Round(time.Millisecond))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) helpLine() string {
	switch m.mode {
	case modeForm:
		return "tab next field  ctrl+t status  enter create  ctrl+r clear  esc back"
	case modeDiagnostics:
		return "enter run all  1-3 run one  tab switch  esc back  q quit"
	}
	return "space select  a all  c complete  p in progress  d delete  r refresh  n new  D connection  q quit"
}
