// Package tui is the terminal rendition of the popup: a source text area,
// two language selectors with a swap control, and a read-only result field.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/entrhq/tiptranslate/pkg/popup"
	"github.com/entrhq/tiptranslate/pkg/prompts"
	"github.com/entrhq/tiptranslate/pkg/types"
)

// Form is the popup state the model drives. *popup.Client implements it.
type Form interface {
	Languages() (source, target types.Language)
	SetLanguages(source, target types.Language)
	Swap()
	SubmitSelected(ctx context.Context, text string) error
	Result() string
	Updates() <-chan struct{}
}

var _ Form = (*popup.Client)(nil)

// languages offered by the selectors, in cycling order.
var languages = []types.Language{types.LanguageEnglish, types.LanguageChinese}

type focus int

const (
	focusText focus = iota
	focusSource
	focusTarget
	focusCount
)

type (
	resultMsg    struct{}
	submittedMsg struct{ err error }
	copiedMsg    struct{ err error }
)

// Model is the bubbletea model of the popup.
type Model struct {
	ctx      context.Context
	form     Form
	textarea textarea.Model
	focus    focus
	copy     func(string) error

	alert  string
	status string
	width  int
}

// Option configures a Model.
type Option func(*Model)

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copy = write
		}
	}
}

// New creates the popup model.
func New(ctx context.Context, form Form, opts ...Option) *Model {
	ta := textarea.New()
	ta.Placeholder = "Enter text to translate..."
	ta.ShowLineNumbers = false
	ta.SetHeight(4)
	ta.Focus()

	m := &Model{
		ctx:      ctx,
		form:     form,
		textarea: ta,
		copy:     clipboard.WriteAll,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run shows the popup until the user quits or ctx is done.
func Run(ctx context.Context, form Form, opts ...Option) error {
	p := tea.NewProgram(New(ctx, form, opts...), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run popup: %w", err)
	}
	return nil
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, waitForResult(m.form.Updates()))
}

func waitForResult(updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return nil
		}
		return resultMsg{}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if msg.Width > 4 {
			m.textarea.SetWidth(msg.Width - 4)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case resultMsg:
		m.status = ""
		return m, waitForResult(m.form.Updates())

	case submittedMsg:
		switch {
		case errors.Is(msg.err, popup.ErrEmptyText):
			m.alert = popup.EmptyTextAlert
		case msg.err != nil:
			m.alert = msg.err.Error()
		default:
			m.alert = ""
			m.status = "Translating..."
		}
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.alert = fmt.Sprintf("Copy failed: %v", msg.err)
		} else {
			m.status = "Copied to clipboard"
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyTab:
		m.focus = (m.focus + 1) % focusCount
		if m.focus == focusText {
			m.textarea.Focus()
		} else {
			m.textarea.Blur()
		}
		return m, nil

	case tea.KeyCtrlS:
		m.form.Swap()
		return m, nil

	case tea.KeyCtrlT:
		m.alert = ""
		return m, m.submit(m.textarea.Value())

	case tea.KeyCtrlY:
		result := m.form.Result()
		if result == "" {
			return m, nil
		}
		return m, func() tea.Msg { return copiedMsg{err: m.copy(result)} }
	}

	if m.focus != focusText {
		switch msg.Type {
		case tea.KeyLeft, tea.KeyUp:
			m.cycleLanguage(-1)
		case tea.KeyRight, tea.KeyDown, tea.KeySpace:
			m.cycleLanguage(1)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// submit rejects blank text without touching the form.
func (m *Model) submit(text string) tea.Cmd {
	if strings.TrimSpace(text) == "" {
		m.alert = popup.EmptyTextAlert
		return nil
	}
	return func() tea.Msg {
		return submittedMsg{err: m.form.SubmitSelected(m.ctx, text)}
	}
}

func (m *Model) cycleLanguage(step int) {
	source, target := m.form.Languages()
	if m.focus == focusSource {
		source = nextLanguage(source, step)
	} else {
		target = nextLanguage(target, step)
	}
	m.form.SetLanguages(source, target)
}

func nextLanguage(current types.Language, step int) types.Language {
	idx := 0
	for i, l := range languages {
		if l == current {
			idx = i
			break
		}
	}
	n := len(languages)
	return languages[((idx+step)%n+n)%n]
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("tiptranslate"))
	b.WriteString("\n\n")

	source, target := m.form.Languages()
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Center,
		"From ",
		m.selector(prompts.Label(source), m.focus == focusSource),
		" ⇄ ",
		"To ",
		m.selector(prompts.Label(target), m.focus == focusTarget),
	))
	b.WriteString("\n\n")

	b.WriteString(m.textarea.View())
	b.WriteString("\n")

	result := m.form.Result()
	if result == "" {
		result = statusStyle.Render("Translation will appear here")
	}
	box := resultBoxStyle
	if m.width > 4 {
		box = box.Width(m.width - 4)
	}
	b.WriteString(box.Render(result))
	b.WriteString("\n")

	if m.alert != "" {
		b.WriteString(alertStyle.Render(m.alert))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("tab: focus • ←/→: language • ctrl+s: swap • ctrl+t: translate • ctrl+y: copy • esc: quit"))
	return b.String()
}

func (m *Model) selector(label string, focused bool) string {
	if focused {
		return focusedSelectorStyle.Render("[" + label + "]")
	}
	return selectorStyle.Render("[" + label + "]")
}
