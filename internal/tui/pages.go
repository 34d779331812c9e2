package tui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/strrl/aurora-cli/internal/api"
	"github.com/strrl/aurora-cli/internal/session"
	"github.com/strrl/aurora-cli/internal/ui"
	"github.com/strrl/aurora-cli/pkg/models"
)

const meterWidth = 24

// pageData holds what each page loaded. Each page keeps its own error so a
// failure never affects the shell or the other pages.
type pageData struct {
	usage    *models.UsageMetrics
	usageErr string

	documents []models.Document
	docsErr   string
	docCursor int

	team    *models.MemberList
	teamErr string

	audit       *models.AuditLogPage
	auditPage   int
	auditErr    string
	auditDenied bool

	settings *settingsForm
	loading  map[session.Page]bool
}

func newPageData() *pageData {
	return &pageData{
		auditPage: 1,
		settings:  newSettingsForm(),
		loading:   make(map[session.Page]bool),
	}
}

type settingsForm struct {
	name textinput.Model
}

func newSettingsForm() *settingsForm {
	name := textinput.New()
	name.Prompt = "Organization name  "
	name.CharLimit = 120
	return &settingsForm{name: name}
}

func (f *settingsForm) focus() tea.Cmd {
	return f.name.Focus()
}

func (f *settingsForm) blur() {
	f.name.Blur()
}

// enterPage starts loading what page p shows
func (m model) enterPage(p session.Page) tea.Cmd {
	d := m.pages
	switch p {
	case session.PageDashboard, session.PageBilling:
		d.loading[session.PageDashboard] = true
		m.loading.SetMessage("Loading usage…")
		return loadUsageCmd(m.ctx, m.deps.Client)
	case session.PageAssistant:
		m.assistant.refresh()
	case session.PageDocuments:
		d.loading[p] = true
		m.loading.SetMessage("Loading documents…")
		return loadDocumentsCmd(m.ctx, m.deps.Client)
	case session.PageTeam:
		d.loading[p] = true
		m.loading.SetMessage("Loading team…")
		return loadTeamCmd(m.ctx, m.deps.Client)
	case session.PageSettings:
		if m.snap.Me != nil {
			d.settings.name.SetValue(m.snap.Me.Organization.Name)
		}
	case session.PageAuditLog:
		if !m.snap.Plan().Allows(models.FeatureAuditLog) {
			d.auditDenied = true
			return nil
		}
		d.loading[p] = true
		m.loading.SetMessage("Loading audit log…")
		return loadAuditCmd(m.ctx, m.deps.Client, d.auditPage)
	}
	return nil
}

func (m model) updatePage(msg tea.Msg) (tea.Model, tea.Cmd) {
	d := m.pages
	switch msg := msg.(type) {
	case UsageLoadedMsg:
		d.loading[session.PageDashboard] = false
		d.usageErr = ""
		if msg.Error != nil {
			d.usageErr = errorText(msg.Error, "Unable to load usage")
		} else {
			u := msg.Usage
			d.usage = &u
		}
		return m, nil

	case DocumentsLoadedMsg:
		d.loading[session.PageDocuments] = false
		d.docsErr = ""
		if msg.Error != nil {
			d.docsErr = errorText(msg.Error, "Unable to load documents")
		} else {
			d.documents = msg.Documents
			if d.docCursor >= len(d.documents) {
				d.docCursor = max(len(d.documents)-1, 0)
			}
		}
		return m, nil

	case TeamLoadedMsg:
		d.loading[session.PageTeam] = false
		d.teamErr = ""
		if msg.Error != nil {
			d.teamErr = errorText(msg.Error, "Unable to load team")
		} else {
			t := msg.Team
			d.team = &t
		}
		return m, nil

	case AuditLoadedMsg:
		d.loading[session.PageAuditLog] = false
		d.auditErr = ""
		switch {
		case api.IsForbidden(msg.Error):
			d.auditDenied = true
		case msg.Error != nil:
			d.auditErr = errorText(msg.Error, "Unable to load audit log")
		default:
			p := msg.Page
			d.audit = &p
			d.auditPage = msg.Index
		}
		return m, nil

	case ConversationsLoadedMsg:
		var cmd tea.Cmd
		m, cmd = m.assistant.update(m, msg)
		return m, cmd
	}

	key, isKey := msg.(tea.KeyMsg)
	switch m.page {
	case session.PageAssistant:
		var cmd tea.Cmd
		m, cmd = m.assistant.update(m, msg)
		return m, cmd
	case session.PageSettings:
		if isKey && key.String() == "enter" {
			return m.saveSettings()
		}
		var cmd tea.Cmd
		d.settings.name, cmd = d.settings.name.Update(msg)
		return m, cmd
	}
	if !isKey {
		return m, nil
	}

	switch key.String() {
	case "r":
		return m, m.enterPage(m.page)
	}

	switch m.page {
	case session.PageDocuments:
		return m.updateDocuments(key)
	case session.PageBilling:
		return m.updateBilling(key)
	case session.PageAuditLog:
		return m.updateAudit(key)
	}
	return m, nil
}

func (m model) updateDocuments(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := m.pages
	switch key.String() {
	case "up", "k":
		if d.docCursor > 0 {
			d.docCursor--
		}
	case "down", "j":
		if d.docCursor < len(d.documents)-1 {
			d.docCursor++
		}
	case "d", "delete":
		if d.docCursor >= len(d.documents) {
			return m, nil
		}
		doc := d.documents[d.docCursor]
		reload := loadDocumentsCmd(m.ctx, m.deps.Client)
		m.confirm = &confirmation{
			prompt: fmt.Sprintf("Delete %s?", doc.Filename),
			cmd: actionCmd(session.PageDocuments, "Deleted "+doc.Filename, reload, func() error {
				return m.deps.Client.DeleteDocument(m.ctx, doc.ID)
			}),
		}
	}
	return m, nil
}

func (m model) updateBilling(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	current := m.snap.Plan()
	checkout := func(plan models.Plan) tea.Cmd {
		if plan == current {
			m.setStatus("Already on the "+plan.Label()+" plan", false)
			return nil
		}
		return redirectCmd("Complete the upgrade at", func() (string, error) {
			return m.deps.Client.CheckoutSession(m.ctx, plan)
		})
	}

	var cmd tea.Cmd
	switch key.String() {
	case "p":
		cmd = checkout(models.PlanPro)
	case "e":
		cmd = checkout(models.PlanEnterprise)
	case "o":
		cmd = redirectCmd("Manage your subscription at", func() (string, error) {
			return m.deps.Client.BillingPortal(m.ctx)
		})
	}
	return m, cmd
}

func (m model) updateAudit(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := m.pages
	if d.auditDenied || d.audit == nil {
		return m, nil
	}
	pages := (d.audit.Total + auditPageSize - 1) / auditPageSize
	switch key.String() {
	case "n", "right":
		if d.auditPage < pages {
			d.loading[session.PageAuditLog] = true
			m.loading.SetMessage(fmt.Sprintf("Loading page %d of %d…", d.auditPage+1, pages))
			return m, loadAuditCmd(m.ctx, m.deps.Client, d.auditPage+1)
		}
	case "p", "left":
		if d.auditPage > 1 {
			d.loading[session.PageAuditLog] = true
			m.loading.SetMessage(fmt.Sprintf("Loading page %d of %d…", d.auditPage-1, pages))
			return m, loadAuditCmd(m.ctx, m.deps.Client, d.auditPage-1)
		}
	}
	return m, nil
}

func (m model) saveSettings() (tea.Model, tea.Cmd) {
	name := strings.TrimSpace(m.pages.settings.name.Value())
	if name == "" {
		m.setStatus("Organization name must not be empty", true)
		return m, nil
	}
	m.setStatus("Saving…", false)
	return m, actionCmd(session.PageSettings, "Organization renamed", loadSessionCmd(m.ctx, m.deps.Sessions), func() error {
		return m.deps.Client.UpdateOrganization(m.ctx, name)
	})
}

func (m model) pageHint() string {
	switch m.page {
	case session.PageAssistant:
		return m.assistant.hint()
	case session.PageDocuments:
		return "↑/↓: select • d: delete • r: refresh"
	case session.PageBilling:
		return "p: upgrade to Pro • e: upgrade to Enterprise • o: billing portal"
	case session.PageSettings:
		return "enter: save"
	case session.PageAuditLog:
		return "n/p: next/previous page • r: refresh"
	}
	return "r: refresh"
}

func (m model) renderPage() string {
	switch m.page {
	case session.PageAssistant:
		return m.assistant.view()
	case session.PageDocuments:
		return m.renderDocuments()
	case session.PageTeam:
		return m.renderTeam()
	case session.PageBilling:
		return m.renderBilling()
	case session.PageSettings:
		return m.renderSettings()
	case session.PageAuditLog:
		return m.renderAudit()
	}
	return m.renderDashboard()
}

func (m model) loadingOr(p session.Page, errText string) (string, bool) {
	if m.pages.loading[p] {
		return m.loading.View(), true
	}
	if errText != "" {
		return ui.ErrorStyle.Render(errText), true
	}
	return "", false
}

func (m model) renderDashboard() string {
	var s strings.Builder
	s.WriteString(ui.TitleStyle.Render("Dashboard") + "\n")
	s.WriteString(ui.MutedStyle.Render(fmt.Sprintf("Welcome back, %s", m.snap.Me.User.Email)) + "\n\n")
	s.WriteString(m.renderUsage())
	return s.String()
}

func (m model) renderUsage() string {
	d := m.pages
	if d.usage == nil {
		if text, ok := m.loadingOr(session.PageDashboard, d.usageErr); ok {
			return text + "\n"
		}
		return ""
	}
	out := ui.RenderUsage(*d.usage, meterWidth)
	if d.usageErr != "" {
		out += ui.ErrorStyle.Render(d.usageErr) + "\n"
	}
	return out
}

func (m model) renderDocuments() string {
	d := m.pages
	var s strings.Builder
	s.WriteString(ui.TitleStyle.Render("Documents") + "\n\n")
	if text, ok := m.loadingOr(session.PageDocuments, d.docsErr); ok && len(d.documents) == 0 {
		return s.String() + text
	}
	if len(d.documents) == 0 {
		s.WriteString(ui.MutedStyle.Render("No documents yet. Upload with `aurora documents upload <file>`."))
		return s.String()
	}
	for i, doc := range d.documents {
		cursor := "  "
		style := lipgloss.NewStyle().Foreground(ui.ColorText)
		if i == d.docCursor {
			cursor = "> "
			style = style.Foreground(ui.ColorAccent).Bold(true)
		}
		status := doc.Status
		switch doc.Status {
		case models.DocumentReady:
			status = ui.SuccessStyle.Render(status)
		case models.DocumentFailed:
			status = ui.ErrorStyle.Render(status)
		default:
			status = ui.WarningStyle.Render(status)
		}
		fmt.Fprintf(&s, "%s%s  %s  %s  %s\n", cursor, style.Render(ui.Truncate(doc.Filename, 32)),
			ui.MutedStyle.Render(ui.Bytes(doc.SizeBytes)), status, ui.MutedStyle.Render(ui.Ago(doc.CreatedAt)))
	}
	if d.docsErr != "" {
		s.WriteString("\n" + ui.ErrorStyle.Render(d.docsErr))
	}
	return s.String()
}

func (m model) renderTeam() string {
	d := m.pages
	var s strings.Builder
	s.WriteString(ui.TitleStyle.Render("Team") + "\n\n")
	if d.team == nil {
		text, _ := m.loadingOr(session.PageTeam, d.teamErr)
		return s.String() + text
	}
	seats := models.Meter{Label: "Team Seats", Used: d.team.SeatsUsed, Limit: d.team.SeatsLimit}
	s.WriteString(ui.RenderMeter(seats, meterWidth) + "\n\n")
	for _, member := range d.team.Members {
		fmt.Fprintf(&s, "  %-32s %s\n", member.Email, ui.BadgeStyle.Render(string(member.Role)))
	}
	s.WriteString("\n" + ui.MutedStyle.Render("Invite with `aurora team invite <email> --role member`."))
	if d.teamErr != "" {
		s.WriteString("\n" + ui.ErrorStyle.Render(d.teamErr))
	}
	return s.String()
}

func (m model) renderBilling() string {
	var s strings.Builder
	s.WriteString(ui.TitleStyle.Render("Billing") + "\n\n")
	current := m.snap.Plan()
	for _, p := range models.Plans {
		marker := "  "
		label := lipgloss.NewStyle().Width(12).Render(p.Label())
		if p == current {
			marker = "● "
			label = ui.AccentStyle.Width(12).Render(p.Label())
		}
		s.WriteString(marker + label + ui.MutedStyle.Render(p.Summary()) + "\n")
	}
	s.WriteString("\n" + m.renderUsage())
	return s.String()
}

func (m model) renderSettings() string {
	var s strings.Builder
	s.WriteString(ui.TitleStyle.Render("Settings") + "\n\n")
	s.WriteString(m.pages.settings.name.View() + "\n\n")
	s.WriteString(ui.MutedStyle.Render("Change your password with `aurora settings password`.") + "\n")
	s.WriteString(ui.ErrorStyle.Render("Danger zone: ") + ui.MutedStyle.Render("delete the organization with `aurora settings delete-org`."))
	return s.String()
}

func (m model) renderAudit() string {
	d := m.pages
	var s strings.Builder
	s.WriteString(ui.TitleStyle.Render("Audit Log") + "\n\n")
	if d.auditDenied {
		box := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.ColorWarning).
			Padding(1, 2).
			Render("Audit Log is available on Pro and Enterprise plans.\nUpgrade on the Billing page to unlock it.")
		return s.String() + box
	}
	if d.audit == nil {
		text, _ := m.loadingOr(session.PageAuditLog, d.auditErr)
		return s.String() + text
	}
	if len(d.audit.Items) == 0 {
		return s.String() + ui.MutedStyle.Render("No audit entries yet")
	}
	for _, item := range d.audit.Items {
		fmt.Fprintf(&s, "%s  %-22s %s\n",
			ui.MutedStyle.Render(item.CreatedAt.Local().Format("2006-01-02 15:04")),
			item.Action,
			ui.MutedStyle.Render(ui.Truncate(detailsText(item.Details), 40)))
	}
	pages := max((d.audit.Total+auditPageSize-1)/auditPageSize, 1)
	s.WriteString("\n" + ui.MutedStyle.Render("Page "+strconv.Itoa(d.auditPage)+" of "+strconv.Itoa(pages)))
	if d.auditErr != "" {
		s.WriteString("\n" + ui.ErrorStyle.Render(d.auditErr))
	}
	return s.String()
}

func detailsText(details map[string]interface{}) string {
	parts := make([]string, 0, len(details))
	for k, v := range details {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
