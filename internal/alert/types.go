package alert

import "time"

// Severity grades how urgent an alert is.
type Severity string

// Supported severities.
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Valid reports whether the severity is recognised.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

// Alert is a durable notification for a home.
// This matches the database schema in migrations/20260815_120000_initial_schema.up.sql.
type Alert struct {
	ID           string    `json:"id"`
	HomeID       string    `json:"home_id"`
	Severity     Severity  `json:"severity"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	Source       *string   `json:"source,omitempty"`
	Acknowledged bool      `json:"acknowledged"`
	CreatedAt    time.Time `json:"created_at"`
}
