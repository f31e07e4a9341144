package scenario

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/logsentinel/internal/domain/analysis"
)

// DefaultObjective is the accuracy (in percent) a labelled run must reach.
const DefaultObjective = 80.0

// Verdict values of a CaseResult
const (
	VerdictPass  = "PASS"
	VerdictFail  = "FAIL"
	VerdictError = "ERROR"
)

// Case is one labelled log line: Expected says whether it is an attack.
type Case struct {
	Name     string `yaml:"name" json:"name"`
	Log      string `yaml:"log" json:"log"`
	Expected bool   `yaml:"expected" json:"expected"`
}

var labelledCases = []Case{
	{"Connexion SSH normale", "Jan 03 10:15:23 sshd[1234]: Accepted password for alice from 192.168.1.10 port 50000 ssh2", false},
	{"Brute Force SSH", "Jan 03 11:00:00 sshd[5678]: Failed password for invalid user admin from 91.200.12.74 port 40000 ssh2 [attempt 25/50]", true},
	{"Scan de ports", "Jan 03 11:15:00 firewall[9999]: BLOCKED connection from 176.10.99.200 to port 22 (scan detected)", true},
	{"SQL Injection", "Jan 03 12:00:00 web-app[5678]: Suspicious query from 45.142.212.61: SELECT * FROM users WHERE username='admin'--'", true},
	{"DDoS", "Jan 03 12:30:00 nginx[6789]: WARNING - 1500 requests/sec from 185.220.101.45 (threshold: 100 req/sec)", true},
}

// Dataset returns a copy of the built-in labelled cases.
func Dataset() []Case {
	return append([]Case(nil), labelledCases...)
}

// LoadCases reads a YAML list of cases:
//
//   - name: Brute Force SSH
//     log: "sshd[1]: Failed password for root"
//     expected: true
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var cases []Case
	if err := yaml.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parse dataset %q: %w", path, err)
	}
	for i, c := range cases {
		if strings.TrimSpace(c.Log) == "" {
			return nil, fmt.Errorf("dataset %q: case %d has no log", path, i+1)
		}
		if c.Name == "" {
			cases[i].Name = fmt.Sprintf("case %d", i+1)
		}
	}
	return cases, nil
}

// CaseResult is the outcome of one labelled case.
type CaseResult struct {
	Name        string        `json:"name"`
	Log         string        `json:"log"`
	Expected    bool          `json:"expected"`
	Detected    bool          `json:"detected"`
	Confidence  float64       `json:"confidence"`
	Criticality string        `json:"criticality"`
	Duration    time.Duration `json:"duration_ns"`
	Verdict     string        `json:"verdict"`
	Reason      string        `json:"reason,omitempty"`
}

// Correct reports whether the service agreed with the label.
func (c CaseResult) Correct() bool { return c.Verdict == VerdictPass }

// Evaluate submits each case once and compares the verdict with its label.
// Cases whose analysis failed get VerdictError and never count as correct.
func (r *Runner) Evaluate(ctx context.Context, cases []Case) ([]CaseResult, error) {
	clock, logger, limiter := r.deps()

	results := make([]CaseResult, 0, len(cases))
	for _, c := range cases {
		if err := limiter.Wait(ctx); err != nil {
			return results, err
		}
		start := clock.Now()
		st := r.Submitter.Submit(ctx, c.Log)
		res := caseResultOf(c, clock.Now().Sub(start), st)
		results = append(results, res)

		switch res.Verdict {
		case VerdictError:
			logger.Warn("labelled case failed", "case", c.Name, "reason", res.Reason)
		case VerdictFail:
			logger.Info("labelled case mismatch", "case", c.Name, "expected", c.Expected, "detected", res.Detected)
		}
	}
	return results, nil
}

func caseResultOf(c Case, d time.Duration, st analysis.State) CaseResult {
	res := CaseResult{Name: c.Name, Log: truncate(c.Log, 200), Expected: c.Expected}
	if st.Result == nil {
		res.Verdict = VerdictError
		res.Criticality = "unknown"
		res.Reason = st.Reason()
		return res
	}
	res.Duration = d
	res.Detected = st.Result.IsAnomaly
	res.Confidence = st.Result.Confidence
	res.Criticality = analysis.TierOf(st.Result.Criticality).String()
	res.Verdict = VerdictFail
	if res.Detected == c.Expected {
		res.Verdict = VerdictPass
	}
	return res
}

// Evaluation summarizes a labelled run. Accuracy is correct over successful
// cases, in percent; errored cases are left out of both sides.
type Evaluation struct {
	ID                  string       `json:"id"`
	Timestamp           time.Time    `json:"timestamp"`
	Total               int          `json:"total"`
	Successful          int          `json:"successful"`
	Correct             int          `json:"correct"`
	Accuracy            float64      `json:"accuracy"`
	AverageResponseTime string       `json:"average_response_time"`
	Objective           float64      `json:"objective"`
	ObjectiveMet        bool         `json:"objective_met"`
	Cases               []CaseResult `json:"cases"`
}

// BuildEvaluation aggregates results against objective (percent).
func BuildEvaluation(id string, at time.Time, objective float64, results []CaseResult) Evaluation {
	ev := Evaluation{
		ID:        id,
		Timestamp: at,
		Total:     len(results),
		Objective: objective,
		Cases:     append([]CaseResult{}, results...),
	}
	var sum time.Duration
	for _, res := range results {
		if res.Verdict == VerdictError {
			continue
		}
		ev.Successful++
		sum += res.Duration
		if res.Correct() {
			ev.Correct++
		}
	}
	if ev.Successful > 0 {
		ev.Accuracy = float64(ev.Correct) * 100 / float64(ev.Successful)
	}
	ev.AverageResponseTime = seconds(mean(sum, ev.Successful))
	ev.ObjectiveMet = ev.Successful > 0 && ev.Accuracy >= objective
	return ev
}

// FileName returns evaluation_<YYYYMMDD_HHMMSS>.json.
func (e Evaluation) FileName() string {
	return "evaluation_" + e.Timestamp.Format("20060102_150405") + ".json"
}

// Write saves the evaluation as indented JSON under dir and returns the path.
func (e Evaluation) Write(dir string) (string, error) {
	return writeJSONFile(dir, e.FileName(), e)
}
