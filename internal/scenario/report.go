package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Report summarizes a campaign run.
type Report struct {
	ID                     string                    `json:"id"`
	Timestamp              time.Time                 `json:"timestamp"`
	TotalLogsAnalyzed      int                       `json:"total_logs_analyzed"`
	TotalAnomaliesDetected int                       `json:"total_anomalies_detected"`
	DetectionRate          string                    `json:"detection_rate"`
	AverageResponseTime    string                    `json:"average_response_time"`
	MinResponseTime        string                    `json:"min_response_time"`
	MaxResponseTime        string                    `json:"max_response_time"`
	SuccessRate            string                    `json:"success_rate"`
	Order                  []string                  `json:"scenario_order"`
	Scenarios              map[string]ScenarioReport `json:"scenarios"`
}

type ScenarioReport struct {
	Total           int    `json:"total"`
	Detected        int    `json:"detected"`
	Failed          int    `json:"failed"`
	DetectionRate   string `json:"detection_rate"`
	AvgResponseTime string `json:"avg_response_time"`
}

type tally struct {
	total, detected, failed int
	sum                     time.Duration
	min, max                time.Duration
	timed                   int
}

func (t *tally) add(s Sample) {
	t.total++
	t.sum += s.Duration
	if s.Detected {
		t.detected++
	}
	if s.Status != StatusSuccess {
		t.failed++
		return
	}
	if t.timed == 0 || s.Duration < t.min {
		t.min = s.Duration
	}
	if s.Duration > t.max {
		t.max = s.Duration
	}
	t.timed++
}

// BuildReport aggregates samples. Averages run over all samples, failed ones
// counting as zero latency; min and max only look at successful ones.
func BuildReport(id string, at time.Time, samples []Sample) Report {
	rep := Report{
		ID:        id,
		Timestamp: at,
		Order:     []string{},
		Scenarios: map[string]ScenarioReport{},
	}

	var all tally
	per := map[string]*tally{}
	for _, s := range samples {
		all.add(s)
		t, ok := per[s.Scenario]
		if !ok {
			t = &tally{}
			per[s.Scenario] = t
			rep.Order = append(rep.Order, s.Scenario)
		}
		t.add(s)
	}

	rep.TotalLogsAnalyzed = all.total
	rep.TotalAnomaliesDetected = all.detected
	rep.DetectionRate = percent(all.detected, all.total)
	rep.SuccessRate = percent(all.total-all.failed, all.total)
	rep.AverageResponseTime = seconds(mean(all.sum, all.total))
	rep.MinResponseTime = seconds(all.min)
	rep.MaxResponseTime = seconds(all.max)

	for name, t := range per {
		rep.Scenarios[name] = ScenarioReport{
			Total:           t.total,
			Detected:        t.detected,
			Failed:          t.failed,
			DetectionRate:   percent(t.detected, t.total),
			AvgResponseTime: seconds(mean(t.sum, t.total)),
		}
	}
	return rep
}

// FileName returns test_report_<YYYYMMDD_HHMMSS>.json.
func (r Report) FileName() string {
	return "test_report_" + r.Timestamp.Format("20060102_150405") + ".json"
}

// Write saves the report as indented JSON under dir and returns the path.
func (r Report) Write(dir string) (string, error) {
	return writeJSONFile(dir, r.FileName(), r)
}

func writeJSONFile(dir, name string, v any) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir %q: %w", dir, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func percent(n, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(n)*100/float64(total))
}

func mean(sum time.Duration, n int) time.Duration {
	if n == 0 {
		return 0
	}
	return sum / time.Duration(n)
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}
