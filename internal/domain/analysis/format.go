package analysis

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultSummary is shown when the service sent no summary.
const DefaultSummary = "Aucune suggestion"

// FormatConfidence renders a [0,1] confidence as a percentage with one decimal.
func FormatConfidence(c float64) string {
	return strconv.FormatFloat(c*100, 'f', 1, 64) + "%"
}

// CriticalityLabel capitalizes the criticality for display; absent reads "Basse".
func CriticalityLabel(c Criticality) string {
	s := strings.TrimSpace(string(c))
	if s == "" {
		s = string(CriticalityBasse)
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// SummaryOrDefault returns the summary or the placeholder text.
func SummaryOrDefault(r Result) string {
	if strings.TrimSpace(r.Summary) == "" {
		return DefaultSummary
	}
	return r.Summary
}

// Verdict is the headline classification line.
func Verdict(r Result) string {
	if r.IsAnomaly {
		return "Anomalie détectée"
	}
	return "Trafic normal"
}
