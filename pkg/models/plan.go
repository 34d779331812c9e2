package models

import "strings"

// Plan is the subscription tier of an organization
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Plans lists the tiers in upgrade order
var Plans = []Plan{PlanFree, PlanPro, PlanEnterprise}

// Feature is a capability that only some plans include
type Feature int

const (
	FeatureHistory Feature = iota
	FeatureAuditLog
)

// ParsePlan converts user input into a Plan
func ParsePlan(s string) (Plan, bool) {
	p := Plan(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Plans {
		if p == known {
			return p, true
		}
	}
	return "", false
}

// Allows reports whether the plan includes a feature.
// The backend enforces the same rule; this only drives what the UI offers.
func (p Plan) Allows(f Feature) bool {
	switch f {
	case FeatureHistory, FeatureAuditLog:
		return p == PlanPro || p == PlanEnterprise
	}
	return false
}

// Label returns the display name of the plan
func (p Plan) Label() string {
	switch p {
	case PlanEnterprise:
		return "Enterprise"
	case PlanPro:
		return "Pro"
	default:
		return "Free"
	}
}

// Summary is a one-line description of what the plan includes
func (p Plan) Summary() string {
	switch p {
	case PlanEnterprise:
		return "Unlimited usage."
	case PlanPro:
		return "Higher limits and conversation history."
	default:
		return "Limited usage."
	}
}
