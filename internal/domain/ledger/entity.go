package ledger

import (
	"encoding/json"
	"strings"
	"time"
)

// EventID identifier type
type EventID string

// Event is an immutable record of one completed analysis, kept for auditing.
// Criticality is stored exactly as the service sent it; "" means absent.
type Event struct {
	ID          EventID   `json:"id"`
	SessionID   string    `json:"session_id"`
	Log         string    `json:"log"`
	IsAnomaly   bool      `json:"is_anomaly"`
	Confidence  float64   `json:"confidence"`
	Criticality string    `json:"criticality,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Actions     []string  `json:"actions"`
	CreatedAt   time.Time `json:"created_at"`
}

// Rejection is a failed submission. Stored apart from events so the
// analysis record never contains failed attempts.
type Rejection struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Reason    string    `json:"reason"`
	Message   string    `json:"message"`
	Log       string    `json:"log,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Page represents a paginated response with data and metadata
type Page struct {
	Data     []*Event `json:"data"`
	Page     int      `json:"page"`
	PageSize int      `json:"pageSize"`
}

// EncodeActions serializes actions for a text column; nil becomes "[]".
func EncodeActions(actions []string) string {
	if len(actions) == 0 {
		return "[]"
	}
	b, err := json.Marshal(actions)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// DecodeActions is the inverse of EncodeActions. Invalid text yields an empty list.
func DecodeActions(s string) []string {
	out := []string{}
	if strings.TrimSpace(s) == "" {
		return out
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}
