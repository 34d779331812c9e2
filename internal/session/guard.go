package session

import "github.com/strrl/aurora-cli/pkg/models"

// Decision is what a protected view does with a snapshot
type Decision int

const (
	Wait Decision = iota
	Allow
	RedirectLogin
)

func (d Decision) String() string {
	switch d {
	case Wait:
		return "wait"
	case Allow:
		return "allow"
	default:
		return "redirect-login"
	}
}

// Guard decides whether protected content may be shown
func Guard(s Snapshot) Decision {
	switch {
	case s.State == StateLoading:
		return Wait
	case s.State == StateAuthenticated && s.Me != nil:
		return Allow
	default:
		return RedirectLogin
	}
}

// Page is a section of the workspace shell
type Page int

const (
	PageDashboard Page = iota
	PageAssistant
	PageDocuments
	PageTeam
	PageBilling
	PageSettings
	PageAuditLog
)

// NavItem is one entry of the shell navigation
type NavItem struct {
	Page     Page
	Label    string
	Disabled bool
	Badge    string
}

// NavItems returns the shell navigation for a plan. Gated entries stay
// visible but disabled.
func NavItems(plan models.Plan) []NavItem {
	items := []NavItem{
		{Page: PageDashboard, Label: "Dashboard"},
		{Page: PageAssistant, Label: "AI Assistant"},
		{Page: PageDocuments, Label: "Documents"},
		{Page: PageTeam, Label: "Team"},
		{Page: PageBilling, Label: "Billing"},
		{Page: PageSettings, Label: "Settings"},
		{Page: PageAuditLog, Label: "Audit Log"},
	}
	if !plan.Allows(models.FeatureAuditLog) {
		items[len(items)-1].Disabled = true
		items[len(items)-1].Badge = "Pro+"
	}
	return items
}
