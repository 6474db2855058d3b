package messages

import "time"

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityMedium   Severity = "medium"
)

// Embed colours as used by the notification webhook.
const (
	ColorCritical = 0xFF0000
	ColorWarning  = 0xF39C12
	ColorWatering = 0x3498DB
)

// Alert is a human-facing notification produced by the control loop.
type Alert struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Color     int       `json:"severityColor"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}
