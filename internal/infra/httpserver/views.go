package httpserver

import (
	"github.com/bryanwahyu/logsentinel/internal/domain/analysis"
	"github.com/bryanwahyu/logsentinel/internal/domain/ledger"
)

// ResultView is a Result plus the display strings the UI renders.
type ResultView struct {
	IsAnomaly        bool     `json:"is_anomaly"`
	Confidence       float64  `json:"confidence"`
	ConfidencePct    string   `json:"confidence_pct"`
	Criticality      string   `json:"criticality,omitempty"`
	CriticalityLabel string   `json:"criticality_label"`
	Tier             string   `json:"tier"`
	Summary          string   `json:"summary,omitempty"`
	SummaryDisplay   string   `json:"summary_display"`
	Actions          []string `json:"actions"`
	Mode             string   `json:"mode,omitempty"`
	Verdict          string   `json:"verdict"`
}

func newResultView(r analysis.Result) ResultView {
	actions := r.Actions
	if actions == nil {
		actions = []string{}
	}
	return ResultView{
		IsAnomaly:        r.IsAnomaly,
		Confidence:       r.Confidence,
		ConfidencePct:    analysis.FormatConfidence(r.Confidence),
		Criticality:      string(r.Criticality),
		CriticalityLabel: analysis.CriticalityLabel(r.Criticality),
		Tier:             analysis.TierOf(r.Criticality).String(),
		Summary:          r.Summary,
		SummaryDisplay:   analysis.SummaryOrDefault(r),
		Actions:          actions,
		Mode:             r.Mode,
		Verdict:          analysis.Verdict(r),
	}
}

type StateView struct {
	Session string      `json:"session"`
	Phase   string      `json:"phase"`
	Reason  string      `json:"reason,omitempty"`
	Message string      `json:"message,omitempty"`
	Result  *ResultView `json:"result,omitempty"`
}

func newStateView(id string, st analysis.State) StateView {
	v := StateView{Session: id, Phase: string(st.Phase)}
	if st.Failure != nil {
		v.Reason = st.Failure.Reason()
		v.Message = st.Failure.Message()
	}
	if st.Result != nil {
		rv := newResultView(*st.Result)
		v.Result = &rv
	}
	return v
}

type HistoryEntryView struct {
	ID        string     `json:"id"`
	Log       string     `json:"log"`
	Timestamp string     `json:"timestamp"`
	Result    ResultView `json:"result"`
}

type HistoryView struct {
	Session  string             `json:"session"`
	Capacity int                `json:"capacity"`
	Entries  []HistoryEntryView `json:"entries"`
}

func newHistoryView(id string, capacity int, entries []analysis.HistoryEntry) HistoryView {
	v := HistoryView{Session: id, Capacity: capacity, Entries: make([]HistoryEntryView, 0, len(entries))}
	for _, e := range entries {
		v.Entries = append(v.Entries, HistoryEntryView{
			ID:        string(e.ID),
			Log:       e.Log,
			Timestamp: e.Timestamp,
			Result:    newResultView(e.Result),
		})
	}
	return v
}

type StatsView struct {
	Session string `json:"session"`
	analysis.Stats
	DetectionRatePct string `json:"detection_rate_pct"`
}

func newStatsView(id string, st analysis.Stats) StatsView {
	return StatsView{
		Session:          id,
		Stats:            st,
		DetectionRatePct: analysis.FormatConfidence(st.DetectionRate / 100),
	}
}

// LedgerEventView is a stored event plus the tier derived from the
// criticality the service reported.
type LedgerEventView struct {
	*ledger.Event
	Tier             string `json:"tier"`
	CriticalityLabel string `json:"criticality_label"`
}

type LedgerPageView struct {
	Data     []LedgerEventView `json:"data"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
}

func newLedgerPageView(p ledger.Page) LedgerPageView {
	v := LedgerPageView{Page: p.Page, PageSize: p.PageSize, Data: make([]LedgerEventView, 0, len(p.Data))}
	for _, e := range p.Data {
		c := analysis.Criticality(e.Criticality)
		v.Data = append(v.Data, LedgerEventView{
			Event:            e,
			Tier:             analysis.TierOf(c).String(),
			CriticalityLabel: analysis.CriticalityLabel(c),
		})
	}
	return v
}
