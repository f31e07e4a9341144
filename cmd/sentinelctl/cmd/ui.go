package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bryanwahyu/logsentinel/internal/domain/analysis"
)

var (
	tierStyles = map[analysis.Tier]lipgloss.Style{
		analysis.TierCritique: lipgloss.NewStyle().Foreground(lipgloss.Color("#DC2626")).Bold(true),
		analysis.TierHaute:    lipgloss.NewStyle().Foreground(lipgloss.Color("#EA580C")).Bold(true),
		analysis.TierMoyenne:  lipgloss.NewStyle().Foreground(lipgloss.Color("#CA8A04")),
		analysis.TierBasse:    lipgloss.NewStyle().Foreground(lipgloss.Color("#16A34A")),
	}

	anomalyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171")).Bold(true)
	normalStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#64748B")).Italic(true)
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6")).Bold(true)
)

// stateRecord is the -o json shape of one submission.
type stateRecord struct {
	Log     string           `json:"log"`
	Phase   analysis.Phase   `json:"phase"`
	Reason  string           `json:"reason,omitempty"`
	Message string           `json:"message,omitempty"`
	Result  *analysis.Result `json:"result,omitempty"`
	Tier    string           `json:"tier,omitempty"`
}

func writeJSONLine(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// printState renders one terminal state.
func printState(w io.Writer, log string, st analysis.State) error {
	if jsonOutput() {
		rec := stateRecord{Log: log, Phase: st.Phase, Reason: st.Reason(), Result: st.Result}
		if st.Failure != nil {
			rec.Message = st.Failure.Message()
		}
		if st.Result != nil {
			rec.Tier = analysis.TierOf(st.Result.Criticality).String()
		}
		return writeJSONLine(w, rec)
	}

	fmt.Fprintln(w, mutedStyle.Render(shorten(log, 100)))
	if st.Failure != nil {
		fmt.Fprintf(w, "  %s %s\n", failStyle.Render("✗ "+st.Failure.Reason()), st.Failure.Message())
		return nil
	}
	if st.Result == nil {
		return nil
	}
	r := *st.Result
	tier := analysis.TierOf(r.Criticality)
	verdict := normalStyle.Render(analysis.Verdict(r))
	if r.IsAnomaly {
		verdict = anomalyStyle.Render(analysis.Verdict(r))
	}
	fmt.Fprintf(w, "  %s  confiance %s  criticité %s\n",
		verdict,
		analysis.FormatConfidence(r.Confidence),
		tierStyles[tier].Render(analysis.CriticalityLabel(r.Criticality)),
	)
	fmt.Fprintf(w, "  %s\n", analysis.SummaryOrDefault(r))
	for _, a := range r.Actions {
		fmt.Fprintf(w, "    • %s\n", a)
	}
	return nil
}

// printStats renders the aggregate statistics of a history.
func printStats(w io.Writer, st analysis.Stats) error {
	if jsonOutput() {
		return writeJSONLine(w, map[string]any{"stats": st})
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Statistiques"))
	fmt.Fprintf(w, "  analyses   %d\n", st.Total)
	fmt.Fprintf(w, "  anomalies  %d (%s)\n", st.Anomalies, analysis.FormatConfidence(st.DetectionRate/100))
	fmt.Fprintf(w, "  confiance  %s\n", analysis.FormatConfidence(st.MeanConfidence))
	parts := make([]string, 0, len(analysis.Tiers))
	for i := len(analysis.Tiers) - 1; i >= 0; i-- {
		t := analysis.Tiers[i]
		parts = append(parts, tierStyles[t].Render(fmt.Sprintf("%s %d", t, st.ByTier[t])))
	}
	fmt.Fprintf(w, "  tiers      %s\n", strings.Join(parts, "  "))
	return nil
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
