package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/strrl/aurora-cli/internal/api"
	"github.com/strrl/aurora-cli/internal/ui"
)

type loginForm struct {
	email      textinput.Model
	password   textinput.Model
	onPassword bool
	submitting bool
	err        string
}

func newLoginForm() loginForm {
	email := textinput.New()
	email.Placeholder = "you@company.com"
	email.Prompt = "Email     "
	email.CharLimit = 254

	password := textinput.New()
	password.Placeholder = "••••••••"
	password.Prompt = "Password  "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	return loginForm{email: email, password: password}
}

func (f *loginForm) focus() tea.Cmd {
	if f.onPassword {
		f.email.Blur()
		return f.password.Focus()
	}
	f.password.Blur()
	return f.email.Focus()
}

func loginError(err error) string {
	if api.IsUnauthorized(err) {
		return api.Detail(err, "Invalid credentials")
	}
	if api.StatusOf(err) != 0 {
		return api.Detail(err, "Login failed")
	}
	return "Unable to reach the workspace: " + err.Error()
}

func (m model) updateLogin(msg tea.Msg) (model, tea.Cmd) {
	f := &m.login
	if key, ok := msg.(tea.KeyMsg); ok && !f.submitting {
		switch key.String() {
		case "esc":
			return m, tea.Quit
		case "tab", "shift+tab", "up", "down":
			f.onPassword = !f.onPassword
			return m, f.focus()
		case "enter":
			if !f.onPassword {
				f.onPassword = true
				return m, f.focus()
			}
			email := strings.TrimSpace(f.email.Value())
			if email == "" || f.password.Value() == "" {
				f.err = "Email and password are required"
				return m, nil
			}
			f.err = ""
			f.submitting = true
			return m, loginCmd(m.ctx, m.deps.Client, m.deps.Sessions, email, f.password.Value())
		}
	}

	var cmd tea.Cmd
	if f.onPassword {
		f.password, cmd = f.password.Update(msg)
	} else {
		f.email, cmd = f.email.Update(msg)
	}
	return m, cmd
}

func (f loginForm) view(width, height int) string {
	var s strings.Builder
	s.WriteString(ui.TitleStyle.Render("Sign in to Aurora Workspace") + "\n\n")
	s.WriteString(f.email.View() + "\n")
	s.WriteString(f.password.View() + "\n\n")

	switch {
	case f.submitting:
		s.WriteString(ui.MutedStyle.Render("Signing in…") + "\n")
	case f.err != "":
		s.WriteString(ui.ErrorStyle.Render(f.err) + "\n")
	default:
		s.WriteString("\n")
	}
	s.WriteString("\n" + ui.MutedStyle.Render(fmt.Sprintf("%s • %s",
		"tab: switch field • enter: sign in • esc: quit",
		"no account? run `aurora register`")))

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ui.ColorBrand).
		Padding(1, 2).
		Render(s.String())

	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(box)
}
