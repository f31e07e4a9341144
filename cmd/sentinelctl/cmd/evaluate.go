package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/logsentinel/internal/scenario"
)

var (
	evaluateDataset     string
	evaluateInterval    time.Duration
	evaluateMinAccuracy float64
	evaluateStrict      bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Check the service against labelled logs and report its accuracy",
	Long: `Submit labelled log lines and compare each verdict with the expected one.

Every case is marked PASS, FAIL or ERROR. Accuracy is correct verdicts over
successful analyses; errored cases count on neither side. The evaluation is
written to scenarios.report_dir as evaluation_<timestamp>.json.

The built-in dataset holds one normal SSH login and four attacks (SSH brute
force, port scan, SQL injection, DDoS). Use --dataset to load a YAML list of
{name, log, expected} entries instead.

Examples:
  sentinelctl evaluate
  sentinelctl evaluate --dataset cases.yaml --min-accuracy 90 --strict`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().StringVar(&evaluateDataset, "dataset", "", "YAML file of labelled cases (default built-in)")
	evaluateCmd.Flags().DurationVar(&evaluateInterval, "interval", 0, "delay between submissions (default from config)")
	evaluateCmd.Flags().Float64Var(&evaluateMinAccuracy, "min-accuracy", scenario.DefaultObjective, "accuracy objective in percent")
	evaluateCmd.Flags().BoolVar(&evaluateStrict, "strict", false, "exit with an error when the objective is missed")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cases := scenario.Dataset()
	if evaluateDataset != "" {
		var err error
		if cases, err = scenario.LoadCases(evaluateDataset); err != nil {
			return err
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.Must(uuid.NewV7()).String()
	ctl, cleanup, err := openController(ctx, cfg, logger, "evaluation-"+runID)
	if err != nil {
		return err
	}
	defer cleanup()

	interval := cfg.Scenarios.Interval
	if cmd.Flags().Changed("interval") {
		interval = evaluateInterval
	}
	runner := &scenario.Runner{
		Submitter: ctl,
		Limiter:   scenario.NewLimiter(interval),
		Logger:    logger,
	}
	results, runErr := runner.Evaluate(ctx, cases)
	if runErr != nil && ctx.Err() == nil {
		return runErr
	}

	ev := scenario.BuildEvaluation(runID, time.Now(), evaluateMinAccuracy, results)
	path, err := ev.Write(cfg.Scenarios.ReportDir)
	if err != nil {
		return err
	}
	if err := printEvaluation(out, ev, path); err != nil {
		return err
	}

	if runErr != nil {
		return fmt.Errorf("evaluation interrupted after %d cases: %w", len(results), runErr)
	}
	if evaluateStrict && !ev.ObjectiveMet {
		return fmt.Errorf("accuracy %.1f%% below objective %.1f%%", ev.Accuracy, ev.Objective)
	}
	return nil
}

func printEvaluation(w io.Writer, ev scenario.Evaluation, path string) error {
	if jsonOutput() {
		return writeJSONLine(w, map[string]any{"evaluation": ev, "path": path})
	}
	for _, c := range ev.Cases {
		verdict := normalStyle.Render(c.Verdict)
		switch c.Verdict {
		case scenario.VerdictFail:
			verdict = anomalyStyle.Render(c.Verdict)
		case scenario.VerdictError:
			verdict = failStyle.Render(c.Verdict)
		}
		if c.Verdict == scenario.VerdictError {
			fmt.Fprintf(w, "%-5s %-28s %s\n", verdict, shorten(c.Name, 28), c.Reason)
			continue
		}
		fmt.Fprintf(w, "%-5s %-28s attendu %-5t détecté %-5t %5.1f%%  %s\n",
			verdict, shorten(c.Name, 28), c.Expected, c.Detected, c.Confidence*100, c.Criticality)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Évaluation"))
	fmt.Fprintf(w, "  cas                 %d (%d réussis)\n", ev.Total, ev.Successful)
	fmt.Fprintf(w, "  corrects            %d\n", ev.Correct)
	fmt.Fprintf(w, "  précision           %.1f%% (objectif %.1f%%)\n", ev.Accuracy, ev.Objective)
	fmt.Fprintf(w, "  temps moyen         %s\n", ev.AverageResponseTime)
	if ev.ObjectiveMet {
		fmt.Fprintln(w, normalStyle.Render("  objectif atteint"))
	} else {
		fmt.Fprintln(w, anomalyStyle.Render("  objectif non atteint"))
	}
	fmt.Fprintf(w, "\nÉvaluation sauvegardée: %s\n", path)
	return nil
}
