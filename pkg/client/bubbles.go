package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/savioxavier/termlink"

	"github.com/integrail/webtest/pkg/driver"
)

// ShellWorker is the worker id the interactive shell acquires its session under.
const ShellWorker = "shell"

type (
	errMsg error
)

var headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF88")).Background(lipgloss.Color("#444444"))

// SessionManager is the part of driver.Manager the shell uses.
type SessionManager interface {
	Acquire(ctx context.Context, worker string) (*driver.Session, error)
	Release(worker string) error
}

type CliClient struct {
	viewport              viewport.Model
	mu                    sync.Mutex
	messages              []string
	textarea              textarea.Model
	senderStyle           lipgloss.Style
	responseStyle         lipgloss.Style
	errorStyle            lipgloss.Style
	err                   error
	sessions              SessionManager
	session               *driver.Session
	program               Program
	ctx                   context.Context
	cancel                context.CancelFunc
	outDir                string
	loader                spinner.Model
	inProgress            atomic.Bool
	programHistory        []string
	programHistoryPointer int
	timeout               time.Duration
}

func BubbleClient(ctx context.Context, sessions SessionManager, timeout time.Duration) (*CliClient, error) {
	ta := textarea.New()
	ta.Placeholder = "Type a command, e.g. navigate('https://www.google.com')... (Ctrl^C to exit, Up and Down to navigate)"
	ta.Focus()

	ta.Prompt = "┃ "
	ta.CharLimit = 1024

	ta.SetWidth(128)
	ta.SetHeight(6)

	// Remove cursor line styling
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()

	ta.ShowLineNumbers = false

	vp := viewport.New(160, 30)
	vp.SetContent("Welcome to the webtest shell! Commands: " + strings.Join(Commands(), ", "))

	ta.KeyMap.InsertNewline.SetEnabled(false)

	loader := spinner.New(
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("205"))),
		spinner.WithSpinner(spinner.Dot),
	)
	ctx, cancel := context.WithCancel(ctx)
	c := &CliClient{
		ctx:           ctx,
		cancel:        cancel,
		sessions:      sessions,
		textarea:      ta,
		messages:      []string{},
		viewport:      vp,
		senderStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
		responseStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		errorStyle:    lipgloss.NewStyle().Background(lipgloss.Color("330000")).Foreground(lipgloss.Color("#FF3333")),
		loader:        loader,
		timeout:       timeout,
	}

	if outDir, err := os.MkdirTemp(os.TempDir(), "webtest-shell"); err == nil {
		c.outDir = outDir
	} else {
		cancel()
		return nil, errors.Wrapf(err, "failed to init temp dir")
	}

	c.inProgress.Store(true)
	go func() {
		defer c.inProgress.Store(false)
		defer c.updateMessages()
		session, err := sessions.Acquire(ctx, ShellWorker)
		if err != nil {
			c.addMessage(c.errorStyle.Render("Browser: ") + "Failed to start session: " + err.Error())
			c.setErr(errors.Wrapf(err, "failed to start session"))
			return
		}
		c.mu.Lock()
		c.session = session
		c.program = ForSession(session, Discard, WithTimeout(timeout))
		c.mu.Unlock()
		c.addMessage(c.responseStyle.Render("Browser: ") + fmt.Sprintf("Started %s session %s", session.Kind, session.ID))
	}()
	c.displaySpinner()

	return c, nil
}

// Close releases the shell's browser session.
func (m *CliClient) Close() error {
	m.cancel()
	return m.sessions.Release(ShellWorker)
}

func (m *CliClient) Init() tea.Cmd {
	return textarea.Blink
}

func (m *CliClient) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)

	if m.ctx.Err() != nil {
		return m, tea.Quit
	}
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.loader, cmd = m.loader.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyUp:
			if m.programHistoryPointer < len(m.programHistory) {
				m.programHistoryPointer++
				m.textarea.SetValue(m.programHistory[len(m.programHistory)-m.programHistoryPointer])
			}
		case tea.KeyDown:
			if m.programHistoryPointer > 0 {
				m.programHistoryPointer--
				m.textarea.SetValue(m.programHistory[len(m.programHistory)-m.programHistoryPointer-1])
			} else {
				m.textarea.SetValue("")
			}
		case tea.KeyEnter:
			if m.inProgress.Load() {
				break
			}
			currentValue := m.textarea.Value()
			m.mu.Lock()
			program := m.program
			m.mu.Unlock()
			if program == nil {
				m.addMessage(m.errorStyle.Render("ERROR: no browser session"))
				m.updateMessages()
				break
			}
			m.inProgress.Store(true)
			m.loader.Tick()
			go func() {
				defer m.inProgress.Store(false)
				cmd, err := ParseCommand(currentValue)
				if err != nil {
					m.processResponse(Output{}, err)
					return
				}
				m.processResponse(Execute(program, cmd))
			}()
			m.displaySpinner()
			m.programHistory = append(m.programHistory, currentValue)
			m.programHistoryPointer = 0
			m.addMessage(m.senderStyle.Render("You: ") + currentValue)
			m.updateMessages()
		}

	// We handle errors just like any other message
	case errMsg:
		m.setErr(msg)
		return m, nil
	}

	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *CliClient) displaySpinner() {
	go func() {
		for m.inProgress.Load() {
			time.Sleep(50 * time.Millisecond)
			m.Update(m.loader.Tick())
		}
	}()
}

func (m *CliClient) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Err returns the last failure reported by the session start or a command.
func (m *CliClient) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *CliClient) addMessage(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

func (m *CliClient) updateMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) > 10 {
		m.messages = m.messages[len(m.messages)-10:]
	}
	m.viewport.SetContent(strings.Join(m.messages, "\n"))
	m.textarea.Reset()
	m.viewport.GotoBottom()
}

func (m *CliClient) processResponse(out Output, err error) {
	defer m.updateMessages()
	if err != nil {
		m.setErr(err)
		m.addMessage(m.errorStyle.Render("ERROR: " + err.Error()))
		return
	}
	m.addMessage(m.responseStyle.Render("Browser: ") + fmt.Sprintf("%v", out.Value))
	for name, screenshot := range out.Screenshots {
		m.saveFile(m.outDir, name, screenshot)
	}
}

func (m *CliClient) saveFile(outDir string, name string, screenshot []byte) {
	fileName := filepath.Join(outDir, fmt.Sprintf("%s.png", name))
	var message string
	if err := os.WriteFile(fileName, screenshot, 0o644); err != nil {
		message = fmt.Sprintf("failed to save screenshot %q to %s: %q", name, fileName, err.Error())
	} else {
		message = fmt.Sprintf("screenshot %q saved to ", name) +
			termlink.ColorLink(name, fmt.Sprintf("file://%s", fileName), "italic green")
	}
	m.addMessage(m.responseStyle.Render("Browser: ") + message)
}

func (m *CliClient) View() string {
	dialogView := m.textarea.View()
	if m.inProgress.Load() {
		dialogView = m.loader.View()
	}
	header := headerStyle.Render("Session: starting...")
	m.mu.Lock()
	if m.session != nil {
		header = headerStyle.Render(fmt.Sprintf("Session: %s (%s); up %s",
			m.session.ID, m.session.Kind, time.Since(m.session.CreatedAt).Round(time.Second)))
	}
	m.mu.Unlock()
	return header + fmt.Sprintf(
		"\n\n%s\n\n%s",
		m.viewport.View(),
		dialogView,
	) + "\n\n"
}
