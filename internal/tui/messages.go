package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/strrl/aurora-cli/internal/api"
	"github.com/strrl/aurora-cli/internal/session"
	"github.com/strrl/aurora-cli/pkg/models"
)

// Message types for async operations
type (
	// sessionChangedMsg signals a session transition; read Manager.Current
	sessionChangedMsg struct{}

	// chatChangedMsg signals new chat state or notices
	chatChangedMsg struct{}

	// chatDoneMsg is sent when a Send call returns
	chatDoneMsg struct {
		Err error
	}

	// loginDoneMsg is the result of the login form
	loginDoneMsg struct {
		Err error
	}

	// UsageLoadedMsg contains the dashboard metrics
	UsageLoadedMsg struct {
		Usage models.UsageMetrics
		Error error
	}

	// DocumentsLoadedMsg contains the document list
	DocumentsLoadedMsg struct {
		Documents []models.Document
		Error     error
	}

	// TeamLoadedMsg contains members and seats
	TeamLoadedMsg struct {
		Team  models.MemberList
		Error error
	}

	// AuditLoadedMsg contains one audit log page
	AuditLoadedMsg struct {
		Page  models.AuditLogPage
		Index int
		Error error
	}

	// ConversationsLoadedMsg contains the assistant history
	ConversationsLoadedMsg struct {
		Conversations []models.Conversation
		Error         error
	}

	// ActionDoneMsg reports a finished mutation. Reload, when set, is run
	// to refresh the page afterwards.
	ActionDoneMsg struct {
		Page    session.Page
		Message string
		Error   error
		Reload  tea.Cmd
	}

	// TickMsg is sent periodically for spinner animation
	TickMsg time.Time
)

// waitForSignal turns the next value on ch into msg
func waitForSignal(ch <-chan struct{}, msg tea.Msg) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return msg
	}
}

// signal wakes a waitForSignal without blocking; pending signals coalesce
func signal(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// loadSessionCmd resolves the identity behind the stored tokens
func loadSessionCmd(ctx context.Context, m *session.Manager) tea.Cmd {
	return func() tea.Msg {
		m.Load(ctx)
		return sessionChangedMsg{}
	}
}

// loginCmd exchanges credentials for tokens and loads the identity
func loginCmd(ctx context.Context, ws Workspace, m *session.Manager, email, password string) tea.Cmd {
	return func() tea.Msg {
		pair, err := ws.Login(ctx, email, password)
		if err != nil {
			return loginDoneMsg{Err: err}
		}
		_, err = m.Login(ctx, pair)
		return loginDoneMsg{Err: err}
	}
}

// loadUsageCmd loads the dashboard metrics asynchronously
func loadUsageCmd(ctx context.Context, ws Workspace) tea.Cmd {
	return func() tea.Msg {
		usage, err := ws.Usage(ctx)
		return UsageLoadedMsg{Usage: usage, Error: err}
	}
}

// loadDocumentsCmd loads the document list asynchronously
func loadDocumentsCmd(ctx context.Context, ws Workspace) tea.Cmd {
	return func() tea.Msg {
		docs, err := ws.Documents(ctx)
		return DocumentsLoadedMsg{Documents: docs, Error: err}
	}
}

// loadTeamCmd loads members asynchronously
func loadTeamCmd(ctx context.Context, ws Workspace) tea.Cmd {
	return func() tea.Msg {
		team, err := ws.Team(ctx)
		return TeamLoadedMsg{Team: team, Error: err}
	}
}

// loadAuditCmd loads one audit log page asynchronously
func loadAuditCmd(ctx context.Context, ws Workspace, page int) tea.Cmd {
	return func() tea.Msg {
		res, err := ws.AuditLog(ctx, api.AuditFilter{Page: page, PageSize: auditPageSize})
		return AuditLoadedMsg{Page: res, Index: page, Error: err}
	}
}

// loadConversationsCmd lists past conversations asynchronously
func loadConversationsCmd(ctx context.Context, ws Workspace) tea.Cmd {
	return func() tea.Msg {
		convs, err := ws.Conversations(ctx)
		return ConversationsLoadedMsg{Conversations: convs, Error: err}
	}
}

// actionCmd runs a mutation for page and reports it as ActionDoneMsg
func actionCmd(page session.Page, success string, reload tea.Cmd, fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return ActionDoneMsg{Page: page, Error: err}
		}
		return ActionDoneMsg{Page: page, Message: success, Reload: reload}
	}
}

// redirectCmd fetches a billing URL; it is shown rather than opened
func redirectCmd(label string, fn func() (string, error)) tea.Cmd {
	return func() tea.Msg {
		url, err := fn()
		if err != nil {
			return ActionDoneMsg{Page: session.PageBilling, Error: err}
		}
		return ActionDoneMsg{Page: session.PageBilling, Message: label + " " + url}
	}
}

// tickCmd creates a ticker for spinner animation
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
