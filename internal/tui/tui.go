// Package tui is the terminal front end for a blackjack engine.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/deck"
)

// Sender delivers messages into a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// eventMsg carries an engine event into Update
type eventMsg struct {
	event blackjack.Event
}

// opDoneMsg is returned when an engine operation finishes
type opDoneMsg struct {
	op    string
	table blackjack.Table
	err   error
}

// Model is the Bubble Tea model for a blackjack table
type Model struct {
	engine *blackjack.Engine
	logger *log.Logger
	ctx    context.Context
	sender Sender

	// UI components
	logViewport viewport.Model
	actionInput textinput.Model

	// Display state, only ever replaced from an opDoneMsg
	table   blackjack.Table
	gameLog []string

	busy        bool
	quitting    bool
	focusedPane int // 0 = log, 1 = input

	width       int
	height      int
	initialized bool
}

// New creates a model driving engine. The engine must not be used by
// anything else while the model runs.
func New(engine *blackjack.Engine, logger *log.Logger) *Model {
	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 40
	ti.Width = 60
	ti.PromptStyle = lipgloss.NewStyle().Foreground(promptColour).Bold(true)
	ti.Prompt = "> "

	return &Model{
		engine:      engine,
		logger:      logger.WithPrefix("tui"),
		ctx:         context.Background(),
		logViewport: vp,
		actionInput: ti,
		focusedPane: 1,
	}
}

// Run plays in the terminal until the player quits or ctx is cancelled
func Run(ctx context.Context, engine *blackjack.Engine, logger *log.Logger) error {
	m := New(engine, logger)
	m.ctx = ctx

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	m.sender = p

	bus := engine.EventBus()
	bus.Subscribe(m)
	defer bus.Unsubscribe(m)

	_, err := p.Run()
	return err
}

// OnEvent forwards engine events into the program. It runs on the goroutine
// executing the engine operation.
func (m *Model) OnEvent(event blackjack.Event) {
	if m.sender != nil {
		m.sender.Send(eventMsg{event: event})
	}
}

// Init resumes a saved round or deals a fresh game
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.start())
}

func (m *Model) start() tea.Cmd {
	return m.begin("start", func(ctx context.Context) error {
		// already dealt by the caller, e.g. play --new
		if m.engine.State() != blackjack.StateInitial {
			return nil
		}
		ok, err := m.engine.Resume(ctx)
		if err != nil {
			m.logger.Warn("Discarding saved game", "error", err)
		}
		if ok {
			m.logger.Info("Resumed saved game")
			return nil
		}
		return m.engine.NewGame(ctx, true)
	})
}

// begin marks the model busy and runs fn off the update loop
func (m *Model) begin(op string, fn func(context.Context) error) tea.Cmd {
	m.busy = true
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		err := fn(ctx)
		return opDoneMsg{op: op, table: engine.Table(), err: err}
	}
}

// Update handles messages in the TUI
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case opDoneMsg:
		m.busy = false
		m.table = msg.table
		if msg.err != nil {
			m.logger.Debug("Operation failed", "op", msg.op, "error", msg.err)
			m.AddLogEntry(ErrorStyle.Render("✗ " + msg.err.Error()))
		}

	case eventMsg:
		if line := m.formatEvent(msg.event); line != "" {
			m.AddLogEntry(line)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "tab":
			if m.focusedPane == 0 {
				m.focusedPane = 1
				m.actionInput.Focus()
			} else {
				m.focusedPane = 0
				m.actionInput.Blur()
			}
		case "enter":
			if m.focusedPane == 1 {
				input := m.actionInput.Value()
				m.actionInput.SetValue("")
				if cmd := m.submit(input); cmd != nil {
					return m, cmd
				}
			}
		case "h", "s":
			if cmd := m.shortcut(msg.String()); cmd != nil {
				return m, cmd
			}
		case "up", "k", "down", "j", "pgup", "pgdown", "home", "end":
			if m.focusedPane == 0 {
				m.scrollLog(msg.String())
			}
		}
	}

	var cmd tea.Cmd
	if m.focusedPane == 1 {
		m.actionInput, cmd = m.actionInput.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) scrollLog(key string) {
	switch key {
	case "up", "k":
		m.logViewport.ScrollUp(1)
	case "down", "j":
		m.logViewport.ScrollDown(1)
	case "pgup":
		m.logViewport.HalfPageUp()
	case "pgdown":
		m.logViewport.HalfPageDown()
	case "home":
		m.logViewport.GotoTop()
	case "end":
		m.logViewport.GotoBottom()
	}
}

// shortcut turns h or s into hit or stand while the log has focus and the
// player is acting. With the input focused the keys are typed as usual.
func (m *Model) shortcut(key string) tea.Cmd {
	if m.focusedPane != 0 || m.busy || m.table.State != blackjack.StatePlaying {
		return nil
	}
	return m.submit(key)
}

// submit parses one line of input. Nothing happens while an operation is
// in flight.
func (m *Model) submit(input string) tea.Cmd {
	if m.busy {
		return nil
	}

	parts := strings.Fields(strings.ToLower(strings.TrimSpace(input)))
	if len(parts) == 0 {
		parts = m.defaultAction()
		if parts == nil {
			return nil
		}
	}

	// a bare number is a bet
	if _, err := strconv.Atoi(parts[0]); err == nil {
		parts = append([]string{"bet"}, parts...)
	}

	switch parts[0] {
	case "quit", "q", "exit":
		m.quitting = true
		return tea.Quit
	case "help", "?":
		m.AddLogEntry(InfoStyle.Render(helpText))
		return nil
	case "new":
		reset := len(parts) < 2 || parts[1] != "keep"
		return m.begin("new", func(ctx context.Context) error {
			return m.engine.NewGame(ctx, reset)
		})
	case "shuffle":
		return m.begin("shuffle", m.engine.Reshuffle)
	case "bet", "b":
		if len(parts) < 2 {
			m.AddLogEntry(ErrorStyle.Render("Usage: bet <amount>"))
			return nil
		}
		amount, err := strconv.Atoi(parts[1])
		if err != nil {
			m.AddLogEntry(ErrorStyle.Render(fmt.Sprintf("Invalid amount %q", parts[1])))
			return nil
		}
		return m.begin("bet", func(ctx context.Context) error {
			_, err := m.engine.AddToBet(ctx, amount)
			return err
		})
	case "clear", "c":
		return m.begin("clear", m.engine.ClearBet)
	case "deal", "d":
		return m.begin("deal", m.engine.ConfirmBet)
	case "hit", "h":
		return m.begin("hit", m.engine.Hit)
	case "stand", "s":
		return m.begin("stand", m.engine.Stand)
	case "next", "n":
		return m.begin("next", m.engine.NextRound)
	default:
		m.AddLogEntry(ErrorStyle.Render(fmt.Sprintf("Unknown command %q, type help", parts[0])))
		return nil
	}
}

// defaultAction is what Enter on an empty line does
func (m *Model) defaultAction() []string {
	switch m.table.State {
	case blackjack.StateBetting:
		if m.table.Bet > 0 {
			return []string{"deal"}
		}
	case blackjack.StateResult:
		return []string{"next"}
	}
	return nil
}

const helpText = `Commands:
  bet <n> (or just <n>)  add to your bet
  clear                  clear your bet
  deal                   confirm the bet and deal
  hit / h, stand / s     play your hand
  next                   next round after a result
  shuffle                fresh shoe before the deal, bank and bet kept
  new [keep]             new shoe; "keep" keeps your bank
  quit                   leave the table`

// formatEvent picks the events worth a log line. Cards and settlements are
// logged; the table view already shows state and bet changes.
func (m *Model) formatEvent(event blackjack.Event) string {
	switch e := event.(type) {
	case blackjack.CardShownEvent:
		return blackjack.FormatEvent(e)
	case blackjack.RoundSettledEvent:
		line := blackjack.FormatEvent(e)
		switch e.Outcome {
		case blackjack.OutcomePlayerWin:
			return SuccessStyle.Render(line)
		case blackjack.OutcomeDealerWin:
			return ErrorStyle.Render(line)
		default:
			return WarningStyle.Render(line)
		}
	default:
		return ""
	}
}

// View renders the TUI
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := HeaderStyle.Render("♠ Blackjack")

	actionContent := m.renderActionPane()
	actionHeight := lipgloss.Height(actionContent)
	actionPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(focusBorder).
		Width(max(m.width-2, 1)).
		Render(actionContent)

	sidebarContent := m.renderSidebar()
	sidebarWidth := max(lipgloss.Width(sidebarContent), 22)

	tableContent := m.renderTable()
	tableHeight := lipgloss.Height(tableContent)
	leftWidth := max(m.width-sidebarWidth-4, 1)

	tablePane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(paneBorder).
		Width(leftWidth).
		Render(tableContent)

	logHeight := max(m.height-lipgloss.Height(header)-actionHeight-tableHeight-6, 1)
	m.logViewport.Width = leftWidth
	m.logViewport.Height = logHeight
	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	if !m.initialized && leftWidth > 1 && logHeight > 1 {
		m.logViewport.GotoBottom()
		m.initialized = true
	}

	logBorder := paneBorder
	if m.focusedPane == 0 {
		logBorder = focusBorder
	}
	logPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(logBorder).
		Width(leftWidth).
		Height(logHeight).
		Render(m.logViewport.View())

	left := lipgloss.JoinVertical(lipgloss.Left, tablePane, logPane)
	sidebar := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(paneBorder).
		Width(sidebarWidth).
		Height(max(lipgloss.Height(left)-2, 1)).
		Render(sidebarContent)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.JoinHorizontal(lipgloss.Top, left, sidebar),
		actionPane)
}

func (m *Model) renderTable() string {
	t := m.table
	var b strings.Builder

	dealerLabel := fmt.Sprintf("Dealer (%d)", t.DealerTotal)
	for _, c := range t.Dealer {
		if !c.FaceUp {
			dealerLabel = fmt.Sprintf("Dealer (%d+?)", t.DealerTotal)
			break
		}
	}
	b.WriteString(HandLabelStyle.Render(dealerLabel))
	b.WriteString(formatCards(t.Dealer))
	b.WriteString("\n")
	b.WriteString(HandLabelStyle.Render(fmt.Sprintf("You (%d)", t.PlayerTotal)))
	b.WriteString(formatCards(t.Player))

	if t.State == blackjack.StateResult && t.Result != "" {
		b.WriteString("\n\n")
		b.WriteString(ResultStyle.Render(t.Result))
	}
	return b.String()
}

func (m *Model) renderSidebar() string {
	t := m.table
	var b strings.Builder
	b.WriteString(WarningStyle.Render(fmt.Sprintf("Bank: $%d", t.Bank)))
	b.WriteString("\n")
	b.WriteString(WarningStyle.Render(fmt.Sprintf("Bet:  $%d", t.Bet)))
	b.WriteString("\n\n")
	b.WriteString(InfoStyle.Render(fmt.Sprintf("State: %s", t.State)))
	b.WriteString("\n")
	b.WriteString(InfoStyle.Render(fmt.Sprintf("Min bet: $%d", t.MinBet)))
	if t.ShoeID != "" {
		shoe := t.ShoeID
		if len(shoe) > 12 {
			shoe = shoe[:12]
		}
		b.WriteString("\n")
		b.WriteString(InfoStyle.Render("Shoe: " + shoe))
	}
	if m.busy {
		b.WriteString("\n\n")
		b.WriteString(WarningStyle.Render("Dealing..."))
	}
	return b.String()
}

func (m *Model) renderActionPane() string {
	var b strings.Builder

	switch m.table.State {
	case blackjack.StateBetting:
		b.WriteString(SuccessStyle.Render("[bet N] [clear] [deal] [shuffle] [new]"))
		m.actionInput.Placeholder = "bet 10, then deal"
	case blackjack.StatePlaying:
		b.WriteString(SuccessStyle.Render("[h]it [s]tand"))
		m.actionInput.Placeholder = "hit or stand"
	case blackjack.StateResult:
		b.WriteString(SuccessStyle.Render("[next] [new]"))
		m.actionInput.Placeholder = "Enter for the next round"
	default:
		b.WriteString(InfoStyle.Render("Shuffling..."))
	}
	b.WriteString("\n")
	b.WriteString(m.actionInput.View())
	b.WriteString("\n")

	if m.focusedPane == 0 {
		b.WriteString(InfoStyle.Render("Log focused: ↑↓ scroll, PgUp/PgDn half page, Home/End, h/s hit or stand, Tab to input"))
	} else {
		b.WriteString(InfoStyle.Render("Tab to scroll log • help for commands • Ctrl+C to quit"))
	}
	return b.String()
}

// formatCards renders cards with suit colours; face-down cards show as ??
func formatCards(cards []deck.Card) string {
	if len(cards) == 0 {
		return InfoStyle.Render("-")
	}

	formatted := make([]string, len(cards))
	for i, card := range cards {
		switch {
		case !card.FaceUp:
			formatted[i] = HiddenCardStyle.Render("??")
		case card.IsRed():
			formatted[i] = RedCardStyle.Render(card.String())
		default:
			formatted[i] = BlackCardStyle.Render(card.String())
		}
	}
	return "[" + strings.Join(formatted, " ") + "]"
}

// AddLogEntry adds an entry to the game log
func (m *Model) AddLogEntry(entry string) {
	m.gameLog = append(m.gameLog, entry)
	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	if m.logViewport.Height > 0 && m.logViewport.Width > 0 {
		m.logViewport.GotoBottom()
	}
}

// Log returns a copy of the log entries
func (m *Model) Log() []string {
	out := make([]string, len(m.gameLog))
	copy(out, m.gameLog)
	return out
}
