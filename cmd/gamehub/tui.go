package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	gamehub "github.com/sportsmo/gamehub-go"
	"github.com/sportsmo/gamehub-go/feed"
	"github.com/sportsmo/gamehub-go/notify"
	"github.com/sportsmo/gamehub-go/session"
	"github.com/sportsmo/gamehub-go/viewmodel"
)

var (
	tuiUser string
	tuiGame string
)

func init() {
	tuiCmd.Flags().StringVar(&tuiUser, "user", "", "initial user ID")
	tuiCmd.Flags().StringVar(&tuiGame, "game", "", "initial game ID")
	rootCmd.AddCommand(tuiCmd)
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Full-screen live view of a game",
	Long: "Open a terminal view with the live game, score, virtual field, donations, all live\n" +
		"games and the raw message log. Press ? inside for key bindings.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		s := resolveSettings(cfg)

		// Log lines written to the terminal would tear the alt screen.
		logFile, logPath, err := openTUILog()
		if err != nil {
			return err
		}
		prevLogger := log.Logger
		defer func() {
			log.Logger = prevLogger
			logFile.Close()
		}()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		m := newTUIModel(ctx, newSession(s), s.token)
		_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()

		stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if derr := m.sess.Disconnect(stopCtx); derr != nil {
			log.Warn().Err(derr).Msg("disconnect failed")
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "See %s for details.\n", logPath)
		}
		return err
	},
}

// openTUILog points the global logger at ~/.gamehub/tui.log and returns
// the open file with its path.
func openTUILog() (io.Closer, string, error) {
	dir, err := configDir()
	if err != nil {
		return nil, "", err
	}
	path := filepath.Join(dir, "tui.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open log file: %w", err)
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return f, path, nil
}

// ============================================================================
// Styles
// ============================================================================

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")).MarginTop(1)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	toastStyles = map[notify.Severity]lipgloss.Style{
		notify.Error:   lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1")),
		notify.Info:    lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11")),
		notify.Success: lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("10")),
	}
	stateStyles = map[gamehub.State]lipgloss.Style{
		gamehub.StateConnected:    lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		gamehub.StateConnecting:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		gamehub.StateReconnecting: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		gamehub.StateDisconnected: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
)

// ============================================================================
// Model
// ============================================================================

const (
	focusUser = iota
	focusGame
	focusNone
)

// refreshMsg asks the view to re-read the session.
type refreshMsg struct{}

// commandDoneMsg reports a finished connect or group command. Outcomes
// are already in the view model and the toast; err is kept for the log.
type commandDoneMsg struct{ err error }

type tuiModel struct {
	ctx   context.Context
	sess  *session.Session
	token string

	inputs   []textinput.Model
	focus    int
	viewport viewport.Model
	showHelp bool
	width    int
	height   int

	// updates coalesces store and toast changes into one pending refresh.
	updates chan struct{}
}

func newTUIModel(ctx context.Context, sess *session.Session, token string) *tuiModel {
	user := textinput.New()
	user.Prompt = "User ID: "
	user.Placeholder = "e.g. 7"
	user.CharLimit = 12
	user.SetValue(tuiUser)

	game := textinput.New()
	game.Prompt = "Game ID: "
	game.Placeholder = "e.g. 42"
	game.CharLimit = 12
	game.SetValue(tuiGame)

	m := &tuiModel{
		ctx:      ctx,
		sess:     sess,
		token:    token,
		inputs:   []textinput.Model{user, game},
		focus:    focusNone,
		viewport: viewport.New(80, 20),
		updates:  make(chan struct{}, 1),
	}
	sess.Store().Subscribe(func(viewmodel.ViewModel) { m.signal() })
	sess.Toaster().OnChange(func(*notify.Toast) { m.signal() })
	return m
}

func (m *tuiModel) signal() {
	select {
	case m.updates <- struct{}{}:
	default:
	}
}

func (m *tuiModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.updates:
			return refreshMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *tuiModel) Init() tea.Cmd {
	return tea.Batch(m.waitForUpdate(), textinput.Blink)
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.refresh()
		return m, nil

	case refreshMsg:
		m.refresh()
		return m, m.waitForUpdate()

	case commandDoneMsg:
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.focus != focusNone {
			return m.updateInput(msg)
		}
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// refresh re-renders the body and fits the viewport under the header,
// whose height changes with the toast and the help text.
func (m *tuiModel) refresh() {
	if m.height > 0 {
		m.viewport.Height = max(m.height-lipgloss.Height(m.header()), 3)
	}
	m.viewport.SetContent(m.body())
}

func (m *tuiModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyEnter:
		m.setFocus(focusNone)
		return m, nil
	case tea.KeyTab:
		m.setFocus((m.focus + 1) % (focusNone + 1))
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *tuiModel) setFocus(i int) {
	m.focus = i
	for j := range m.inputs {
		if j == i {
			m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
}

func (m *tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	user := m.inputs[focusUser].Value()
	game := m.inputs[focusGame].Value()

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "?":
		m.showHelp = !m.showHelp
		m.refresh()
		return m, nil
	case "tab":
		m.setFocus(focusUser)
		return m, nil
	case "c":
		return m, m.run(func(ctx context.Context) error { return m.sess.Connect(ctx, m.token) })
	case "d":
		return m, m.run(m.sess.Disconnect)
	case "u":
		return m, m.run(func(ctx context.Context) error { return m.sess.JoinUserToGame(ctx, user, game) })
	case "U":
		return m, m.run(func(ctx context.Context) error { return m.sess.LeaveUserFromGame(ctx, user, game) })
	case "g":
		return m, m.run(func(ctx context.Context) error { return m.sess.JoinGame(ctx, game) })
	case "G":
		return m, m.run(func(ctx context.Context) error { return m.sess.LeaveGame(ctx, game) })
	case "o":
		return m, m.run(m.sess.JoinOpenChannelForLiveScore)
	case "O":
		return m, m.run(m.sess.LeaveOpenChannelForLiveScore)
	case "w":
		return m, m.run(func(ctx context.Context) error { return m.sess.JoinUserToWalletUpdationChannel(ctx, user) })
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// run executes a session call off the UI goroutine.
func (m *tuiModel) run(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 30*time.Second)
		defer cancel()
		return commandDoneMsg{err: fn(ctx)}
	}
}

// ============================================================================
// View
// ============================================================================

func (m *tuiModel) View() string {
	return m.header() + "\n" + m.viewport.View()
}

func (m *tuiModel) header() string {
	var b strings.Builder

	state := m.sess.State()
	b.WriteString(titleStyle.Render("SportsMo Game Hub"))
	b.WriteString("  ")
	b.WriteString(stateStyles[state].Render(string(state)))
	b.WriteString("\n")

	b.WriteString(m.inputs[focusUser].View())
	b.WriteString("   ")
	b.WriteString(m.inputs[focusGame].View())
	b.WriteString("\n")

	flags := m.sess.Store().Snapshot().Flags
	fmt.Fprintf(&b, "%s %s   %s %s   %s %s\n",
		labelStyle.Render("user+game:"), joined(flags.UserGameJoined),
		labelStyle.Render("game:"), joined(flags.GameJoined),
		labelStyle.Render("open channel:"), joined(flags.OpenChannelJoined))

	if t, ok := m.sess.Toaster().Current(); ok {
		b.WriteString(toastStyles[t.Severity].Render(t.Message))
		b.WriteString("\n")
	}

	if m.showHelp {
		b.WriteString(helpStyle.Render(
			"c connect  d disconnect  tab edit ids  u/U join/leave user+game  g/G join/leave game\n" +
				"o/O join/leave open channel  w wallet  ↑/↓ scroll  q quit"))
	} else {
		b.WriteString(helpStyle.Render("? help  q quit"))
	}
	return b.String()
}

func joined(v bool) string {
	if v {
		return "Joined"
	}
	return "Not joined"
}

func (m *tuiModel) body() string {
	vm := m.sess.Store().Snapshot()
	var b strings.Builder

	section(&b, "Live Game")
	if len(vm.LiveGame) == 0 {
		b.WriteString("No live game data yet.\n")
	}
	for _, d := range vm.LiveGame {
		if !d.Valid {
			writeFields(&b, []feed.Field{{Label: "Raw", Value: d.String()}})
			continue
		}
		b.WriteString(d.Value.Title())
		b.WriteString("\n")
		for _, p := range d.Value.Plays {
			for _, f := range p.Fields(d.Value) {
				fmt.Fprintf(&b, "    %s %s\n", labelStyle.Render(f.Label+":"), f.Value)
			}
			if total := p.DonationTotal(); total > 0 {
				fmt.Fprintf(&b, "    %s %.2f\n", labelStyle.Render("Donations:"), total)
			}
			b.WriteString("\n")
		}
	}

	section(&b, "Live Score")
	if vm.LiveScore == nil {
		b.WriteString("No score yet.\n")
	} else {
		writeFields(&b, feed.SnapshotFields(*vm.LiveScore))
	}

	section(&b, "Virtual Field")
	if vm.VirtualField == nil {
		b.WriteString("No virtual field yet.\n")
	} else {
		writeFields(&b, feed.SnapshotFields(*vm.VirtualField))
	}

	section(&b, "Total Donations")
	if vm.TotalDonations == nil {
		b.WriteString("No donations yet.\n")
	} else {
		writeFields(&b, feed.SnapshotFields(*vm.TotalDonations))
	}

	section(&b, "Wallet Balance")
	if vm.WalletBalance == nil {
		b.WriteString(feed.Placeholder + "\n")
	} else {
		b.WriteString(vm.WalletBalance.String() + "\n")
	}

	section(&b, "All Live Games")
	scores := vm.OpenChannelScores()
	if len(scores) == 0 {
		b.WriteString("No open channel scores yet.\n")
	}
	for _, s := range scores {
		writeFields(&b, feed.SnapshotFields(s))
		b.WriteString("\n")
	}

	section(&b, "Raw Messages")
	for _, line := range vm.MessageLog {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func section(b *strings.Builder, title string) {
	b.WriteString(sectionStyle.Render(title))
	b.WriteString("\n")
}

func writeFields(b *strings.Builder, fields []feed.Field) {
	for _, f := range fields {
		fmt.Fprintf(b, "  %s %s\n", labelStyle.Render(f.Label+":"), f.Value)
	}
}
