package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// ---------- messages sent from the chat loop via program.Send() ----------

type readInputMsg struct{}

type inputResult struct {
	text string
	err  error
}

type userMsg struct{ text string }
type thinkingStartMsg struct{}
type assistantMsg struct{ text string }
type sessionStartMsg struct{ title string }
type systemMsg struct{ text string }
type errorMsg struct{ text string }
type statusMsg struct{ status Status }
type loopDoneMsg struct{ err error }

// maxTitleWidth is the display width a chat title keeps before it is cut.
const maxTitleWidth = 30

// DisplayTitle cuts a chat title longer than 30 cells and appends "...".
func DisplayTitle(title string) string {
	if runewidth.StringWidth(title) <= maxTitleWidth {
		return title
	}
	return runewidth.Truncate(title, maxTitleWidth, "") + "..."
}

// TUIConfig carries version/provider info for the welcome page and status bar.
type TUIConfig struct {
	Version     string
	Theme       string // glamour standard style: "dark" or "light"
	Status      Status
	ShowWelcome bool
}

// ---------- styles ----------

var (
	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("2")).
				Bold(true)

	sessionHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("220")).
				Bold(true).
				Underline(true)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	// Status bar
	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))

	statusBarBgStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("235"))

	statusProviderStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("235")).
				Foreground(lipgloss.Color("2")).
				Bold(true)

	// Welcome box
	welcomeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("8")).
				Padding(0, 1)

	welcomeTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("2")).
				Bold(true)

	welcomeLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("8"))

	welcomeValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	welcomeHintStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	previewStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

var waveSpinner = spinner.Spinner{
	Frames: []string{"·", "∙", "•", "●", "•", "∙"},
	FPS:    120 * time.Millisecond,
}

// ---------- Model ----------

// Model is the bubbletea model managing the full TUI state.
type Model struct {
	textinput textinput.Model
	spinner   spinner.Model
	width     int
	height    int
	inputMode bool
	thinking  bool

	inputCh chan inputResult

	noiseDropCount int

	quitting bool

	slashItems []SlashMenuItem
	slashSel   int

	cancelLoopFn func() bool

	cfg    TUIConfig
	status Status

	mdRenderer      *glamour.TermRenderer
	mdRendererWidth int
}

// NewModel creates the initial bubbletea model.
func NewModel(inputCh chan inputResult, cfg TUIConfig) Model {
	ti := textinput.New()
	ti.Prompt = "❯ "
	ti.Placeholder = "Type a message or /help"
	ti.CharLimit = 8192

	sp := spinner.New()
	sp.Spinner = waveSpinner
	sp.Style = spinnerStyle

	return Model{
		textinput:  ti,
		spinner:    sp,
		inputCh:    inputCh,
		slashItems: BuiltinSlashCommands(),
		cfg:        cfg,
		status:     cfg.Status,
	}
}

func (m Model) Init() tea.Cmd {
	if m.cfg.ShowWelcome {
		return tea.Println(renderWelcome(m.cfg))
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textinput.Width = m.width - 4

	case spinner.TickMsg:
		if m.thinking {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.KeyMsg:
		s := msg.String()
		if isTerminalNoiseKey(s) {
			m.noiseDropCount = 4
			return m, nil
		}
		if m.noiseDropCount > 0 && len(s) <= 2 {
			m.noiseDropCount--
			return m, nil
		}
		switch s {
		case "ctrl+c":
			if m.inputMode {
				m.inputCh <- inputResult{err: fmt.Errorf("interrupted")}
				m.inputMode = false
				m.textinput.Blur()
			}
			if m.cancelLoopFn != nil {
				m.cancelLoopFn()
			}
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if m.inputMode {
				text := m.textinput.Value()
				m.textinput.SetValue("")
				m.slashSel = 0
				m.inputCh <- inputResult{text: text}
				m.inputMode = false
				m.textinput.Blur()
			}
			return m, nil
		case "tab":
			if items := m.visibleSlashItems(); len(items) > 0 {
				m.textinput.SetValue(items[m.slashSel].Name + " ")
				m.textinput.CursorEnd()
				m.slashSel = 0
			}
			return m, nil
		case "up":
			if items := m.visibleSlashItems(); len(items) > 0 {
				if m.slashSel > 0 {
					m.slashSel--
				}
				return m, nil
			}
		case "down":
			if items := m.visibleSlashItems(); len(items) > 0 {
				if m.slashSel < len(items)-1 {
					m.slashSel++
				}
				return m, nil
			}
		case "esc":
			if m.thinking && m.cancelLoopFn != nil {
				m.cancelLoopFn()
				m.thinking = false
				return m, tea.Println(systemStyle.Render("  [cancelled]"))
			}
			if m.inputMode {
				m.textinput.SetValue("")
				m.slashSel = 0
				m.noiseDropCount = 4
			}
			return m, nil
		}

		if m.inputMode {
			if isControlKeyMsg(msg.String()) {
				return m, nil
			}
			var cmd tea.Cmd
			m.textinput, cmd = m.textinput.Update(msg)
			cmds = append(cmds, cmd)
			if n := len(m.visibleSlashItems()); m.slashSel >= n {
				m.slashSel = 0
			}
		}

	// ---------- custom messages from the chat loop ----------

	case readInputMsg:
		m.inputMode = true
		m.textinput.Focus()

	case userMsg:
		cmds = append(cmds, tea.Println(userStyle.Render("You: ")+msg.text))

	case thinkingStartMsg:
		m.thinking = true
		cmds = append(cmds, m.spinner.Tick)

	case assistantMsg:
		m.thinking = false
		rendered := m.renderMarkdown(msg.text)
		cmds = append(cmds, tea.Println(assistantLabelStyle.Render("AI:")+"\n"+rendered))

	case sessionStartMsg:
		m.thinking = false
		cmds = append(cmds, tea.Sequence(tea.ClearScreen, tea.Println(sessionHeaderStyle.Render(msg.title))))

	case systemMsg:
		cmds = append(cmds, tea.Println(systemStyle.Render(msg.text)))

	case errorMsg:
		m.thinking = false
		cmds = append(cmds, tea.Println(errorStyle.Render("Error: "+msg.text)))

	case statusMsg:
		m.status = msg.status

	case loopDoneMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var parts []string
	if m.thinking {
		parts = append(parts, m.spinner.View()+hintStyle.Render(" Thinking… (esc to cancel)"))
	}

	if items := m.visibleSlashItems(); len(items) > 0 {
		parts = append(parts, renderSlashMenu(items, m.slashSel, m.width))
	}

	if m.inputMode {
		if preview := renderWrappedInputPreview(m.textinput.Value(), m.width-4, 6); preview != "" {
			parts = append(parts, preview)
		}
		parts = append(parts, m.textinput.View())
	} else {
		parts = append(parts, systemStyle.Render("❯"))
	}

	parts = append(parts, m.renderStatusBar())
	return strings.Join(parts, "\n")
}

// visibleSlashItems returns the menu entries matching the current input, or
// nil when the menu should be hidden.
func (m *Model) visibleSlashItems() []SlashMenuItem {
	if !m.inputMode {
		return nil
	}
	v := m.textinput.Value()
	if !strings.HasPrefix(v, "/") || strings.ContainsAny(v, " \t") {
		return nil
	}
	return filterSlashItems(m.slashItems, v)
}

// renderStatusBar renders "provider │ model │ chat title".
func (m *Model) renderStatusBar() string {
	provider := m.status.Provider
	if provider == "" {
		provider = "no provider"
	}
	status := statusProviderStyle.Render(" " + provider)
	if m.status.Model != "" {
		status += statusBarStyle.Render(" │ " + m.status.Model)
	}
	if m.status.Session != "" {
		status += statusBarStyle.Render(" │ " + DisplayTitle(m.status.Session))
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	return separatorStyle.Width(width).Render(strings.Repeat("─", width)) + "\n" +
		statusBarBgStyle.Width(width).Render(status)
}

func (m *Model) getMarkdownRenderer() *glamour.TermRenderer {
	width := m.width
	if width <= 0 {
		width = 80
	}
	wrapWidth := width - 4
	if m.mdRenderer != nil && m.mdRendererWidth == wrapWidth {
		return m.mdRenderer
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(glamourStyle(m.cfg.Theme)),
		glamour.WithWordWrap(wrapWidth),
	)
	if err != nil {
		return nil
	}
	m.mdRenderer = r
	m.mdRendererWidth = wrapWidth
	return r
}

func (m *Model) renderMarkdown(text string) string {
	r := m.getMarkdownRenderer()
	if r == nil {
		return text
	}
	rendered, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n")
}

func glamourStyle(theme string) string {
	if strings.EqualFold(theme, "light") {
		return "light"
	}
	return "dark"
}

func renderWelcome(cfg TUIConfig) string {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	lines := []string{
		welcomeLabelStyle.Render("Provider: ") + welcomeValueStyle.Render(cfg.Status.Provider),
		welcomeLabelStyle.Render("Model:    ") + welcomeValueStyle.Render(cfg.Status.Model),
		welcomeLabelStyle.Render("Session:  ") + welcomeValueStyle.Render(cfg.Status.Session),
		"",
		welcomeHintStyle.Render("/help commands  /new new chat  /provider switch  /sessions history"),
	}

	title := welcomeTitleStyle.Render(fmt.Sprintf("termwave %s", version))
	return title + "\n" + welcomeBorderStyle.Render(strings.Join(lines, "\n"))
}

// wrapByDisplayWidth splits s into lines no wider than width terminal cells.
func wrapByDisplayWidth(s string, width int) []string {
	if width <= 0 {
		return []string{s}
	}
	var lines []string
	var cur strings.Builder
	curWidth := 0
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if curWidth+w > width && cur.Len() > 0 {
			lines = append(lines, cur.String())
			cur.Reset()
			curWidth = 0
		}
		cur.WriteRune(r)
		curWidth += w
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

// renderWrappedInputPreview shows the tail of an input that no longer fits
// on one line. Returns "" when the input fits.
func renderWrappedInputPreview(text string, width, maxLines int) string {
	if width <= 0 || runewidth.StringWidth(text) <= width {
		return ""
	}
	lines := wrapByDisplayWidth(text, width)
	if maxLines > 1 && len(lines) > maxLines {
		hidden := len(lines) - (maxLines - 1)
		lines = append([]string{fmt.Sprintf("… +%d lines", hidden)}, lines[hidden:]...)
	}
	return previewStyle.Render(strings.Join(lines, "\n"))
}

// isTerminalNoiseKey reports key strings that are really fragments of
// terminal responses (color queries, mouse reports, CSI sequences).
func isTerminalNoiseKey(s string) bool {
	if strings.Contains(s, ";rgb:") || strings.HasPrefix(s, "]") || strings.HasPrefix(s, "alt+]") {
		return true
	}
	if (strings.HasSuffix(s, "M") || strings.HasSuffix(s, "m")) && strings.Contains(s, ";") {
		return true
	}
	if strings.HasPrefix(s, "[<") || strings.HasPrefix(s, "alt+[<") {
		return true
	}
	if strings.HasPrefix(s, "[?") || strings.HasPrefix(s, "alt+[?") {
		return true
	}
	if len(s) > 1 && s[0] == '[' && s[1] >= '0' && s[1] <= '9' {
		return true
	}
	return false
}

func isControlKeyMsg(s string) bool {
	for _, r := range s {
		if r == '\x1b' || (r < 0x20 && r != '\t' && r != '\n' && r != '\r') {
			return true
		}
	}
	return false
}
