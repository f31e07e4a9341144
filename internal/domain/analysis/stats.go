package analysis

// Stats is derived from a History Log on every read and never stored.
type Stats struct {
	Total          int          `json:"total"`
	Anomalies      int          `json:"anomalies"`
	DetectionRate  float64      `json:"detection_rate"`
	MeanConfidence float64      `json:"mean_confidence"`
	ByTier         map[Tier]int `json:"by_tier"`
}

// ComputeStats aggregates the given entries.
func ComputeStats(entries []HistoryEntry) Stats {
	st := Stats{ByTier: make(map[Tier]int, len(Tiers))}
	for _, t := range Tiers {
		st.ByTier[t] = 0
	}
	if len(entries) == 0 {
		return st
	}

	var conf float64
	for _, e := range entries {
		st.Total++
		if e.Result.IsAnomaly {
			st.Anomalies++
		}
		conf += e.Result.Confidence
		st.ByTier[TierOf(e.Result.Criticality)]++
	}
	st.DetectionRate = float64(st.Anomalies) / float64(st.Total) * 100
	st.MeanConfidence = conf / float64(st.Total)
	return st
}
