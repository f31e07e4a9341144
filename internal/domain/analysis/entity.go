package analysis

import "time"

// Criticality enum as reported by the analysis service
type Criticality string

const (
	CriticalityNone     Criticality = ""
	CriticalityBasse    Criticality = "basse"
	CriticalityMoyenne  Criticality = "moyenne"
	CriticalityHaute    Criticality = "haute"
	CriticalityCritique Criticality = "critique"
)

// Request is the payload sent to the analysis service. Log is already trimmed.
type Request struct {
	Log string `json:"log"`
}

// Result is the normalized verdict. Empty Criticality, Summary and Mode mean "absent".
type Result struct {
	IsAnomaly   bool        `json:"is_anomaly"`
	Confidence  float64     `json:"confidence"`
	Criticality Criticality `json:"criticality,omitempty"`
	Summary     string      `json:"summary,omitempty"`
	Actions     []string    `json:"actions"`
	Mode        string      `json:"mode,omitempty"`
}

// EntryID identifier type
type EntryID string

// TimestampLayout is the local time format stored on history entries.
const TimestampLayout = "2006-01-02 15:04:05"

// HistoryEntry records one successful analysis.
type HistoryEntry struct {
	ID          EntryID   `json:"id"`
	Log         string    `json:"log"`
	Result      Result    `json:"result"`
	Timestamp   string    `json:"timestamp"`
	CompletedAt time.Time `json:"-"`
}

// clone returns a copy that shares no slices with r
func (r Result) clone() Result {
	out := r
	out.Actions = append([]string{}, r.Actions...)
	return out
}

// Clone returns a deep copy of the entry.
func (e HistoryEntry) Clone() HistoryEntry {
	out := e
	out.Result = e.Result.clone()
	return out
}
