package tui

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/strrl/aurora-cli/internal/chat"
	"github.com/strrl/aurora-cli/internal/logger"
	"github.com/strrl/aurora-cli/internal/ui"
	"github.com/strrl/aurora-cli/pkg/models"
)

const inputHeight = 3

// assistantPage owns the chat session. It is shared by every copy of the
// model, so it is only touched from Update.
type assistantPage struct {
	ctx  context.Context
	deps Deps

	sess    *chat.Session
	changes chan struct{}

	mu      sync.Mutex
	notices []chat.Notice

	input      textarea.Model
	transcript viewport.Model
	indicator  *LoadingIndicator
	stop       context.CancelFunc
	notice     *chat.Notice

	history       bool
	conversations []models.Conversation
	historyCursor int
	historyErr    string
}

func newAssistantPage(ctx context.Context, deps Deps) *assistantPage {
	input := textarea.New()
	input.Placeholder = "Ask anything about your documents…"
	input.ShowLineNumbers = false
	input.SetHeight(inputHeight)
	input.KeyMap.InsertNewline.SetKeys("ctrl+j")

	p := &assistantPage{
		ctx:        ctx,
		deps:       deps,
		changes:    make(chan struct{}, 1),
		input:      input,
		transcript: viewport.New(60, 10),
		indicator:  NewLoadingIndicator("Assistant is thinking…"),
	}
	p.reset()
	return p
}

// reset starts over with a new session, e.g. after logout
func (p *assistantPage) reset() {
	p.sess = chat.NewSession(p.deps.Client, chat.Options{
		History:  p.deps.Client,
		Archiver: p.deps.Archive,
		Notifier: chat.NotifyFunc(func(n chat.Notice) {
			p.mu.Lock()
			p.notices = append(p.notices, n)
			p.mu.Unlock()
			signal(p.changes)
		}),
		OnChange: func(chat.State) { signal(p.changes) },
	})
	p.notice = nil
	p.history = false
	p.conversations = nil
	p.input.Reset()
	p.refresh()
}

func (p *assistantPage) state() chat.State {
	return p.sess.State()
}

func (p *assistantPage) setPlan(plan models.Plan) {
	if enabled := plan.Allows(models.FeatureHistory); enabled != p.state().HistoryEnabled {
		p.sess.SetHistoryEnabled(enabled)
	}
}

func (p *assistantPage) resize(width, height int) {
	p.input.SetWidth(width)
	p.transcript.Width = width
	p.transcript.Height = height - inputHeight - 3
	if p.transcript.Height < 3 {
		p.transcript.Height = 3
	}
	p.refresh()
}

func (p *assistantPage) focus() tea.Cmd {
	return p.input.Focus()
}

func (p *assistantPage) blur() {
	p.input.Blur()
}

// cancel aborts the reply that is streaming, if any
func (p *assistantPage) cancel() {
	if p.stop != nil {
		p.stop()
		p.stop = nil
	}
}

// send submits the input and streams the reply in the background
func (p *assistantPage) send() tea.Cmd {
	text := strings.TrimSpace(p.input.Value())
	if text == "" || !p.state().InputEnabled() {
		return nil
	}
	p.input.Reset()
	p.notice = nil

	ctx, stop := context.WithCancel(p.ctx)
	p.stop = stop
	sess := p.sess
	return func() tea.Msg {
		defer stop()
		return chatDoneMsg{Err: sess.Send(ctx, text)}
	}
}

// changed picks up new state and notices after a chatChangedMsg
func (p *assistantPage) changed() {
	p.mu.Lock()
	if n := len(p.notices); n > 0 {
		last := p.notices[n-1]
		p.notice = &last
		p.notices = nil
	}
	p.mu.Unlock()
	p.refresh()
}

func (p *assistantPage) done(err error) {
	p.stop = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.LogDebug("assistant reply failed", "err", err)
	}
	p.refresh()
}

func (p *assistantPage) refresh() {
	p.transcript.SetContent(p.renderTranscript())
	p.transcript.GotoBottom()
}

func (p *assistantPage) renderTranscript() string {
	st := p.state()
	if len(st.Messages) == 0 {
		return ui.MutedStyle.Render("Ask a question to get started. Answers are grounded on your uploaded documents.")
	}

	width := p.transcript.Width - 2
	if width < 10 {
		width = 10
	}
	body := lipgloss.NewStyle().Width(width).Foreground(ui.ColorText)
	var s strings.Builder
	for i, msg := range st.Messages {
		if msg.Role == models.RoleUser {
			s.WriteString(ui.AccentStyle.Render("You") + "\n")
		} else {
			s.WriteString(ui.InfoStyle.Render("Assistant") + "\n")
		}
		s.WriteString(body.Render(msg.Content) + "\n")
		for _, src := range msg.Sources {
			s.WriteString(ui.MutedStyle.Render("  ↳ "+src.Filename) + "\n")
		}
		if i < len(st.Messages)-1 {
			s.WriteString("\n")
		}
	}
	if st.Busy && st.Messages[len(st.Messages)-1].Role == models.RoleUser {
		s.WriteString("\n" + p.indicator.View())
	}
	return s.String()
}

func (p *assistantPage) update(m model, msg tea.Msg) (model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		if p.history {
			return p.updateHistory(m, key)
		}
		switch key.String() {
		case "enter":
			return m, p.send()
		case "ctrl+n":
			if err := p.sess.NewConversation(); err != nil {
				m.setStatus(err.Error(), true)
			}
			return m, nil
		case "ctrl+o":
			if !p.state().HistoryEnabled {
				m.setStatus(chat.ErrHistoryUnavailable.Error(), true)
				return m, nil
			}
			p.history = true
			p.historyErr = ""
			return m, loadConversationsCmd(p.ctx, p.deps.Client)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			p.transcript, cmd = p.transcript.Update(msg)
			return m, cmd
		}
	}

	if conv, ok := msg.(ConversationsLoadedMsg); ok {
		p.conversations = conv.Conversations
		p.historyCursor = 0
		p.historyErr = ""
		if conv.Error != nil {
			p.historyErr = errorText(conv.Error, "Unable to load conversations")
		}
		return m, nil
	}

	if !p.state().InputEnabled() {
		return m, nil
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return m, cmd
}

func (p *assistantPage) updateHistory(m model, key tea.KeyMsg) (model, tea.Cmd) {
	switch key.String() {
	case "ctrl+o", "q":
		p.history = false
	case "up", "k":
		if p.historyCursor > 0 {
			p.historyCursor--
		}
	case "down", "j":
		if p.historyCursor < len(p.conversations)-1 {
			p.historyCursor++
		}
	case "enter":
		if p.historyCursor < len(p.conversations) {
			c := p.conversations[p.historyCursor]
			if err := p.sess.SelectConversation(c.ID); err != nil {
				m.setStatus(err.Error(), true)
				return m, nil
			}
			p.history = false
			m.setStatus("Continuing "+ui.Truncate(c.Title, 40), false)
		}
	}
	return m, nil
}

func (p *assistantPage) view() string {
	if p.history {
		return p.historyView()
	}

	st := p.state()
	var s strings.Builder
	title := "AI Assistant"
	if st.ConversationID != "" {
		title += ui.MutedStyle.Render(" · continuing conversation")
	}
	s.WriteString(ui.TitleStyle.Render(title) + "\n")
	s.WriteString(p.transcript.View() + "\n")

	status := ""
	if p.notice != nil && p.notice.Level == chat.NoticeError {
		status = ui.ErrorStyle.Render(p.notice.Message)
	}
	if st.AtLimit {
		status = strings.TrimSpace(status + " " + ui.WarningStyle.Render("Upgrade your plan on the Billing page to keep asking."))
	}
	s.WriteString(status + "\n")
	s.WriteString(p.input.View())
	return s.String()
}

func (p *assistantPage) historyView() string {
	var s strings.Builder
	s.WriteString(ui.TitleStyle.Render("Conversation history") + "\n\n")
	switch {
	case p.historyErr != "":
		s.WriteString(ui.ErrorStyle.Render(p.historyErr))
	case len(p.conversations) == 0:
		s.WriteString(ui.MutedStyle.Render("No conversations yet"))
	default:
		for i, c := range p.conversations {
			cursor := "  "
			style := lipgloss.NewStyle().Foreground(ui.ColorText)
			if i == p.historyCursor {
				cursor = "> "
				style = style.Foreground(ui.ColorAccent).Bold(true)
			}
			s.WriteString(cursor + style.Render(ui.Truncate(c.Title, 50)) + " " + ui.MutedStyle.Render(ui.Ago(c.UpdatedAt)) + "\n")
		}
	}
	return s.String()
}

func (p *assistantPage) hint() string {
	if p.history {
		return "↑/↓: choose • enter: continue • ctrl+o: close"
	}
	hint := "enter: send • ctrl+j: newline • ctrl+n: new chat"
	if p.state().HistoryEnabled {
		hint += " • ctrl+o: history"
	}
	return hint
}
