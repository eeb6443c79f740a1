package results

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type phase int

const (
	phasePrompt phase = iota
	phaseMatches
	phaseCard
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#6BCB77")).
			MarginBottom(1)
	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1)
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4D96FF")).
			Padding(0, 1)
)

// matchItem wraps a sample for the list display.
type matchItem struct {
	key    string
	sample Sample
}

func (i matchItem) Title() string       { return "Sample " + i.key }
func (i matchItem) Description() string { return summary(i.sample.Result) }
func (i matchItem) FilterValue() string { return i.key }

// summary picks the headline scores of a result.
func summary(result map[string]any) string {
	var parts []string
	for _, k := range []string{"accuracy", "patient_accuracy", "auc_micro"} {
		if v, ok := result[k]; ok {
			parts = append(parts, fmt.Sprintf("%s %s", k, FormatValue(v)))
		}
	}
	return strings.Join(parts, "  ")
}

// Model asks for a value per filterable parameter, then lists the
// matching samples and shows their cards.
type Model struct {
	doc    *Document
	keys   []string
	inputs []textinput.Model
	focus  int

	phase   phase
	matches list.Model
	found   []string
	current int

	width    int
	height   int
	quitting bool
}

// NewModel builds the search model for doc.
func NewModel(doc *Document) *Model {
	m := &Model{doc: doc, keys: doc.PromptKeys(), width: 80, height: 24}
	params := doc.Parameters()
	for i, k := range m.keys {
		in := textinput.New()
		in.Prompt = ">> "
		in.Placeholder = "blank ignores " + k
		in.CharLimit = 32
		in.Width = 40
		choices := make([]string, len(params[k]))
		for j, v := range params[k] {
			choices[j] = FormatValue(v)
		}
		in.SetSuggestions(choices)
		in.ShowSuggestions = true
		if i == 0 {
			in.Focus()
		}
		m.inputs = append(m.inputs, in)
	}

	delegate := list.NewDefaultDelegate()
	delegate.SetHeight(2)
	delegate.SetSpacing(0)
	m.matches = list.New([]list.Item{}, delegate, m.width, m.height-6)
	m.matches.Title = "Matching samples"
	m.matches.SetShowStatusBar(false)
	m.matches.SetFilteringEnabled(false)

	if len(m.inputs) == 0 {
		m.search()
	}
	return m
}

// Values returns the typed filter values by parameter key.
func (m *Model) Values() map[string]string {
	out := make(map[string]string, len(m.keys))
	for i, k := range m.keys {
		out[k] = strings.TrimSpace(m.inputs[i].Value())
	}
	return out
}

// Found returns the keys of the matching samples once the prompts are done.
func (m *Model) Found() []string { return m.found }

func (m *Model) Init() tea.Cmd {
	if m.phase == phasePrompt {
		return textinput.Blink
	}
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		listHeight := msg.Height - 6
		if listHeight < 5 {
			listHeight = msg.Height
		}
		m.matches.SetSize(msg.Width, listHeight)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		switch m.phase {
		case phasePrompt:
			return m.updatePrompt(msg)
		case phaseMatches:
			switch msg.String() {
			case "q", "esc":
				m.quitting = true
				return m, tea.Quit
			case "enter":
				if len(m.found) > 0 {
					m.current = m.matches.Index()
					m.phase = phaseCard
				}
				return m, nil
			}
		case phaseCard:
			switch msg.String() {
			case "enter":
				if m.current+1 < len(m.found) {
					m.current++
					m.matches.Select(m.current)
				} else {
					m.phase = phaseMatches
				}
			case "esc", "q":
				m.phase = phaseMatches
			}
			return m, nil
		}
	}

	if m.phase == phaseMatches {
		var cmd tea.Cmd
		m.matches, cmd = m.matches.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.quitting = true
		return m, tea.Quit
	case "enter", "down":
		if m.focus == len(m.inputs)-1 && msg.String() == "enter" {
			m.search()
			return m, nil
		}
		return m, m.setFocus(m.focus + 1)
	case "shift+tab", "up":
		return m, m.setFocus(m.focus - 1)
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *Model) setFocus(i int) tea.Cmd {
	if i < 0 || i >= len(m.inputs) {
		return nil
	}
	m.inputs[m.focus].Blur()
	m.focus = i
	return m.inputs[i].Focus()
}

// search applies the typed values and fills the match list.
func (m *Model) search() {
	m.found = m.doc.Filter(m.Values())
	items := make([]list.Item, len(m.found))
	for i, k := range m.found {
		items[i] = matchItem{key: k, sample: m.doc.Samples[k]}
	}
	m.matches.SetItems(items)
	m.matches.Title = fmt.Sprintf("%d matching samples", len(m.found))
	m.phase = phaseMatches
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	switch m.phase {
	case phasePrompt:
		return m.viewPrompt()
	case phaseCard:
		return m.viewCard()
	}
	if len(m.found) == 0 {
		return titleStyle.Render("No sample matches the search.") + "\n" + hintStyle.Render("q to quit")
	}
	return m.matches.View() + "\n" + hintStyle.Render("enter shows a sample, q quits")
}

func (m *Model) viewPrompt() string {
	params := m.doc.Parameters()
	var b strings.Builder
	b.WriteString(titleStyle.Render("Select the search values for every parameter."))
	b.WriteString("\nLeave blank (press ENTER) to ignore a parameter.\n\n")
	for i, k := range m.keys {
		choices := make([]string, len(params[k]))
		for j, v := range params[k] {
			choices[j] = FormatValue(v)
		}
		fmt.Fprintf(&b, "Value for %s. Possible values: [%s]\n", k, strings.Join(choices, ", "))
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n\n")
	}
	b.WriteString(hintStyle.Render("enter next, shift+tab back, esc quits"))
	return b.String()
}

func (m *Model) viewCard() string {
	key := m.found[m.current]
	var b strings.Builder
	Format(&b, key, m.doc.Samples[key])
	hint := "Press ENTER to see next result"
	if m.current+1 == len(m.found) {
		hint = "Press ENTER to return to the list"
	}
	return cardStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n" + hintStyle.Render(hint)
}

// Run drives the interactive search on the given terminal streams.
func Run(doc *Document, in io.Reader, out io.Writer) error {
	p := tea.NewProgram(NewModel(doc), tea.WithInput(in), tea.WithOutput(out))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("results: search: %w", err)
	}
	return nil
}
