package models

// UsageMetrics holds the current billing period's consumption.
// A nil limit means the metric is unbounded on the current plan.
type UsageMetrics struct {
	Period            string   `json:"period"`
	AIQueriesUsed     int      `json:"ai_queries_used"`
	AIQueriesLimit    *int     `json:"ai_queries_limit"`
	DocumentsUploaded int      `json:"documents_uploaded"`
	DocumentsLimit    *int     `json:"documents_limit"`
	SeatsUsed         int      `json:"seats_used"`
	SeatsLimit        *int     `json:"seats_limit"`
	Warnings          []string `json:"warnings"`
}

// MeterLevel is the severity color of a usage meter
type MeterLevel int

const (
	LevelNormal MeterLevel = iota
	LevelWarning
	LevelCritical
)

func (l MeterLevel) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Meter is one used/limit pair rendered as a bar
type Meter struct {
	Label string
	Used  int
	Limit *int
}

// Meters returns the three plan meters in display order
func (u UsageMetrics) Meters() []Meter {
	return []Meter{
		{Label: "AI Queries", Used: u.AIQueriesUsed, Limit: u.AIQueriesLimit},
		{Label: "Documents", Used: u.DocumentsUploaded, Limit: u.DocumentsLimit},
		{Label: "Team Seats", Used: u.SeatsUsed, Limit: u.SeatsLimit},
	}
}

// Bounded reports whether the meter has a usable limit
func (m Meter) Bounded() bool {
	return m.Limit != nil && *m.Limit != 0
}

// Level classifies the used/limit ratio
func (m Meter) Level() MeterLevel {
	if !m.Bounded() {
		return LevelNormal
	}
	ratio := float64(m.Used) / float64(*m.Limit)
	switch {
	case ratio >= 1:
		return LevelCritical
	case ratio >= 0.8:
		return LevelWarning
	default:
		return LevelNormal
	}
}

// Percent returns the filled share of the bar, capped at 100
func (m Meter) Percent() float64 {
	if !m.Bounded() {
		return 0
	}
	ratio := float64(m.Used) / float64(*m.Limit)
	if ratio > 1 {
		ratio = 1
	}
	return ratio * 100
}
