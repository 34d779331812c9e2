// Package tui is the interactive workspace: a login form until a session
// is established, then a shell with one page per workspace feature.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/strrl/aurora-cli/internal/api"
	"github.com/strrl/aurora-cli/internal/chat"
	"github.com/strrl/aurora-cli/internal/session"
	"github.com/strrl/aurora-cli/internal/ui"
	"github.com/strrl/aurora-cli/pkg/models"
)

const (
	sidebarWidth  = 22
	auditPageSize = 20
)

// Workspace is the part of the backend client the TUI uses
type Workspace interface {
	chat.Streamer
	chat.HistoryLister
	Login(ctx context.Context, email, password string) (models.TokenPair, error)
	Usage(ctx context.Context) (models.UsageMetrics, error)
	Documents(ctx context.Context) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	Team(ctx context.Context) (models.MemberList, error)
	AuditLog(ctx context.Context, filter api.AuditFilter) (models.AuditLogPage, error)
	CheckoutSession(ctx context.Context, plan models.Plan) (string, error)
	BillingPortal(ctx context.Context) (string, error)
	UpdateOrganization(ctx context.Context, name string) error
}

// Deps are the collaborators of the TUI
type Deps struct {
	Client   Workspace
	Sessions *session.Manager
	Archive  chat.Archiver
}

// confirmation is a destructive action waiting for y/n
type confirmation struct {
	prompt string
	cmd    tea.Cmd
}

type model struct {
	ctx  context.Context
	deps Deps

	snap        session.Snapshot
	sessionSubs chan struct{}
	loading     *LoadingIndicator

	login     loginForm
	page      session.Page
	sidebar   bool // keys go to the navigation instead of the page
	assistant *assistantPage
	pages     *pageData
	confirm   *confirmation

	status    string
	statusErr bool

	width  int
	height int
}

func initialModel(ctx context.Context, deps Deps) model {
	subs := make(chan struct{}, 1)
	deps.Sessions.Subscribe(func(session.Snapshot) { signal(subs) })

	return model{
		ctx:         ctx,
		deps:        deps,
		snap:        deps.Sessions.Current(),
		sessionSubs: subs,
		loading:     NewLoadingIndicator("Loading workspace…"),
		login:       newLoginForm(),
		page:        session.PageDashboard,
		sidebar:     true,
		assistant:   newAssistantPage(ctx, deps),
		pages:       newPageData(),
		width:       100,
		height:      30,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		loadSessionCmd(m.ctx, m.deps.Sessions),
		waitForSignal(m.sessionSubs, sessionChangedMsg{}),
		waitForSignal(m.assistant.changes, chatChangedMsg{}),
		tickCmd(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.assistant.resize(m.contentWidth(), m.contentHeight())
		return m, nil

	case TickMsg:
		m.loading.Tick()
		if m.assistant.state().Busy {
			m.assistant.indicator.Tick()
			m.assistant.refresh()
		}
		return m, tickCmd()

	case chatChangedMsg:
		m.assistant.changed()
		return m, waitForSignal(m.assistant.changes, chatChangedMsg{})

	case chatDoneMsg:
		m.assistant.done(msg.Err)
		return m, nil

	case sessionChangedMsg:
		return m.onSession(m.deps.Sessions.Current(), waitForSignal(m.sessionSubs, sessionChangedMsg{}))

	case loginDoneMsg:
		m.login.submitting = false
		if msg.Err != nil {
			m.login.err = loginError(msg.Err)
			return m, nil
		}
		m.login = newLoginForm()
		return m.onSession(m.deps.Sessions.Current(), nil)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.assistant.cancel()
			return m, tea.Quit
		}
	}

	switch session.Guard(m.snap) {
	case session.Wait:
		return m, nil
	case session.RedirectLogin:
		var cmd tea.Cmd
		m, cmd = m.updateLogin(msg)
		return m, cmd
	}
	return m.updateShell(msg)
}

// onSession applies a new snapshot. Reaching the shell loads the current page.
func (m model) onSession(snap session.Snapshot, next tea.Cmd) (tea.Model, tea.Cmd) {
	prev := m.snap
	m.snap = snap

	cmds := []tea.Cmd{next}
	switch session.Guard(snap) {
	case session.Allow:
		m.assistant.setPlan(snap.Plan())
		if session.Guard(prev) != session.Allow || prev.Me.User.ID != snap.Me.User.ID {
			m.page = session.PageDashboard
			m.pages = newPageData()
			cmds = append(cmds, m.enterPage(session.PageDashboard))
		}
	case session.RedirectLogin:
		m.assistant.cancel()
		m.assistant.reset()
		m.pages = newPageData()
		cmds = append(cmds, m.login.focus())
	}
	return m, tea.Batch(cmds...)
}

func (m model) updateShell(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.confirm != nil {
			c := m.confirm
			m.confirm = nil
			if msg.String() == "y" || msg.String() == "Y" {
				m.setStatus("Working…", false)
				return m, c.cmd
			}
			m.setStatus("Cancelled", false)
			return m, nil
		}

		if msg.String() == "esc" {
			m.sidebar = !m.sidebar
			return m, m.focusPage()
		}
		if m.sidebar {
			return m.updateSidebar(msg)
		}

	case ActionDoneMsg:
		if msg.Error != nil {
			m.setStatus(errorText(msg.Error, "Request failed"), true)
			return m, nil
		}
		m.setStatus(msg.Message, false)
		return m, msg.Reload
	}

	return m.updatePage(msg)
}

func (m model) updateSidebar(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := session.NavItems(m.snap.Plan())
	switch msg.String() {
	case "q":
		m.assistant.cancel()
		return m, tea.Quit
	case "up", "k":
		return m.navigate(items, -1)
	case "down", "j":
		return m.navigate(items, 1)
	case "enter", "right", "l":
		m.sidebar = false
		return m, m.focusPage()
	case "L":
		m.assistant.cancel()
		if err := m.deps.Sessions.Logout(); err != nil {
			m.setStatus(err.Error(), true)
		}
		return m, nil
	default:
		if len(msg.Runes) == 1 && msg.Runes[0] >= '1' && msg.Runes[0] <= '9' {
			i := int(msg.Runes[0] - '1')
			if i < len(items) && !items[i].Disabled {
				return m.switchPage(items[i].Page)
			}
			if i < len(items) {
				m.setStatus(items[i].Label+" requires the Pro plan", true)
			}
		}
	}
	return m, nil
}

// navigate moves to the next enabled entry in direction dir
func (m model) navigate(items []session.NavItem, dir int) (tea.Model, tea.Cmd) {
	cur := 0
	for i, it := range items {
		if it.Page == m.page {
			cur = i
		}
	}
	for i := cur + dir; i >= 0 && i < len(items); i += dir {
		if !items[i].Disabled {
			return m.switchPage(items[i].Page)
		}
	}
	return m, nil
}

func (m model) switchPage(p session.Page) (tea.Model, tea.Cmd) {
	if p == m.page {
		return m, nil
	}
	if m.page == session.PageAssistant {
		// leaving the page aborts a reply that is still streaming
		m.assistant.cancel()
	}
	m.page = p
	m.status = ""
	m.confirm = nil
	return m, m.enterPage(p)
}

func (m *model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

func (m model) focusPage() tea.Cmd {
	if m.page == session.PageAssistant && !m.sidebar {
		return m.assistant.focus()
	}
	m.assistant.blur()
	if m.page == session.PageSettings && !m.sidebar {
		return m.pages.settings.focus()
	}
	m.pages.settings.blur()
	return nil
}

func (m model) contentWidth() int {
	w := m.width - sidebarWidth - 3
	if w < 20 {
		w = 20
	}
	return w
}

func (m model) contentHeight() int {
	h := m.height - 4
	if h < 5 {
		h = 5
	}
	return h
}

func (m model) View() string {
	switch session.Guard(m.snap) {
	case session.Wait:
		return LoadingOverlay(m.width, m.height, m.loading)
	case session.RedirectLogin:
		return m.login.view(m.width, m.height)
	}

	header := m.renderHeader()
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderSidebar(),
		lipgloss.NewStyle().Foreground(ui.ColorFaint).Render(divider(m.contentHeight())),
		" ",
		lipgloss.NewStyle().Width(m.contentWidth()).Height(m.contentHeight()).Render(m.renderPage()),
	)
	return fmt.Sprintf("%s\n%s\n%s", header, body, m.renderFooter())
}

func (m model) renderHeader() string {
	me := m.snap.Me
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229")).
		Background(ui.ColorBrand).
		Padding(0, 1)
	left := style.Render("Aurora Workspace")
	right := ui.MutedStyle.Render(fmt.Sprintf(" %s · %s · %s plan", me.Organization.Name, me.User.Email, m.snap.Plan().Label()))
	return left + right
}

func (m model) renderSidebar() string {
	var s strings.Builder
	for i, item := range session.NavItems(m.snap.Plan()) {
		label := fmt.Sprintf("%d %s", i+1, item.Label)
		style := lipgloss.NewStyle().Foreground(ui.ColorText)
		cursor := "  "
		switch {
		case item.Disabled:
			style = style.Foreground(ui.ColorFaint)
		case item.Page == m.page:
			cursor = "> "
			style = style.Foreground(ui.ColorAccent).Bold(true)
		}
		line := cursor + style.Render(label)
		if item.Badge != "" {
			line += " " + ui.BadgeStyle.Render(item.Badge)
		}
		s.WriteString(line + "\n")
	}
	return lipgloss.NewStyle().Width(sidebarWidth).Height(m.contentHeight()).Render(s.String())
}

func divider(height int) string {
	return strings.TrimSuffix(strings.Repeat("│\n", height), "\n")
}

func (m model) renderFooter() string {
	if m.confirm != nil {
		return ui.WarningStyle.Render(m.confirm.prompt + " [y/N]")
	}
	if m.status != "" {
		if m.statusErr {
			return ui.ErrorStyle.Render(m.status)
		}
		return ui.SuccessStyle.Render(m.status)
	}

	info := "esc: focus page"
	if m.sidebar {
		info = "↑/↓ or 1-7: navigate • enter: open • L: log out • q: quit"
	} else if hint := m.pageHint(); hint != "" {
		info = hint + " • esc: menu"
	}
	return ui.MutedStyle.Render(info)
}

// errorText prefers the backend detail of an API error
func errorText(err error, fallback string) string {
	if api.StatusOf(err) != 0 {
		return api.Detail(err, fallback)
	}
	return fallback + ": " + err.Error()
}

// Run shows the workspace until the user quits or ctx is cancelled
func Run(ctx context.Context, deps Deps) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(
		initialModel(ctx, deps),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	return err
}
