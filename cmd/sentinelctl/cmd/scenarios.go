package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/logsentinel/internal/config"
	"github.com/bryanwahyu/logsentinel/internal/infra/storage"
	"github.com/bryanwahyu/logsentinel/internal/scenario"
)

var (
	scenariosOnly     []string
	scenariosInterval time.Duration
	scenariosUpload   bool
	scenariosCleanup  bool
	scenariosList     bool
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Run the built-in attack campaigns and write a detection report",
	Long: `Run controlled campaigns against the analysis service and measure detection:

  Trafic Normal (Baseline)           5 accepted SSH logins
  Brute Force SSH                    5 failed root/admin logins from one IP
  Port Scanning                      5 firewall drops on common ports
  Trafic Mixte (Normal + Attaques)   11 interleaved lines

Lines are submitted one at a time, paced by scenarios.interval. The report is
written to scenarios.report_dir as test_report_<timestamp>.json and can be
uploaded to MinIO with --upload.

Examples:
  sentinelctl scenarios
  sentinelctl scenarios --only "Brute Force SSH" --interval 0
  sentinelctl scenarios --upload --cleanup`,
	Args: cobra.NoArgs,
	RunE: runScenarios,
}

func init() {
	rootCmd.AddCommand(scenariosCmd)
	scenariosCmd.Flags().StringSliceVar(&scenariosOnly, "only", nil, "run only the named scenario(s)")
	scenariosCmd.Flags().DurationVar(&scenariosInterval, "interval", 0, "delay between submissions (default from config)")
	scenariosCmd.Flags().BoolVar(&scenariosUpload, "upload", false, "upload the report to MinIO")
	scenariosCmd.Flags().BoolVar(&scenariosCleanup, "cleanup", false, "remove the local report after a successful upload")
	scenariosCmd.Flags().BoolVar(&scenariosList, "list", false, "list the built-in scenarios and exit")
}

func runScenarios(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if scenariosList {
		for _, sc := range scenario.Builtin() {
			fmt.Fprintf(out, "%-36s %d logs\n", sc.Name, len(sc.Logs))
		}
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	selected, err := selectScenarios(scenariosOnly)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.Must(uuid.NewV7()).String()
	ctl, cleanup, err := openController(ctx, cfg, logger, "campaign-"+runID)
	if err != nil {
		return err
	}
	defer cleanup()

	interval := cfg.Scenarios.Interval
	if cmd.Flags().Changed("interval") {
		interval = scenariosInterval
	}

	runner := &scenario.Runner{
		Submitter: ctl,
		Limiter:   scenario.NewLimiter(interval),
		Logger:    logger,
		OnSample:  func(s scenario.Sample) { printSample(out, s) },
	}
	samples, runErr := runner.Run(ctx, selected)
	if runErr != nil && ctx.Err() == nil {
		return runErr
	}

	rep := scenario.BuildReport(runID, time.Now(), samples)
	reportPath, err := rep.Write(cfg.Scenarios.ReportDir)
	if err != nil {
		return err
	}

	if err := printReport(out, rep, reportPath); err != nil {
		return err
	}

	if scenariosUpload {
		url, err := uploadReport(context.WithoutCancel(ctx), cfg, reportPath, rep.FileName())
		if err != nil {
			return fmt.Errorf("upload report: %w", err)
		}
		if !jsonOutput() {
			fmt.Fprintf(out, "Rapport envoyé: %s\n", url)
		}
	}
	if runErr != nil {
		return fmt.Errorf("campaign interrupted after %d logs: %w", len(samples), runErr)
	}
	return nil
}

func selectScenarios(names []string) ([]scenario.Scenario, error) {
	if len(names) == 0 {
		return scenario.Builtin(), nil
	}
	out := make([]scenario.Scenario, 0, len(names))
	for _, name := range names {
		sc, ok := scenario.Find(name)
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q (see --list)", name)
		}
		out = append(out, sc)
	}
	return out, nil
}

func uploadReport(ctx context.Context, cfg *config.Config, localPath, name string) (string, error) {
	if !cfg.MinioEnabled() {
		return "", fmt.Errorf("minio is not configured")
	}
	store, err := storage.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		return "", err
	}
	key := path.Join("reports", name)
	if scenariosCleanup {
		return store.UploadAndCleanup(ctx, localPath, key)
	}
	return store.Upload(ctx, localPath, key)
}

func printSample(w io.Writer, s scenario.Sample) {
	if jsonOutput() {
		writeJSONLine(w, s)
		return
	}
	symbol := normalStyle.Render("✓")
	if s.Detected {
		symbol = anomalyStyle.Render("!")
	}
	if s.Status != scenario.StatusSuccess {
		fmt.Fprintf(w, "%s %-34s %s\n", failStyle.Render("✗"), shorten(s.Scenario, 34), s.Reason)
		return
	}
	fmt.Fprintf(w, "%s %-34s %6.2fs  détecté %-5t  %s\n",
		symbol, shorten(s.Scenario, 34), s.Duration.Seconds(), s.Detected, s.Criticality)
}

func printReport(w io.Writer, rep scenario.Report, reportPath string) error {
	if jsonOutput() {
		return writeJSONLine(w, map[string]any{"report": rep, "path": reportPath})
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Rapport final"))
	fmt.Fprintf(w, "  logs analysés       %d\n", rep.TotalLogsAnalyzed)
	fmt.Fprintf(w, "  anomalies           %d (%s)\n", rep.TotalAnomaliesDetected, rep.DetectionRate)
	fmt.Fprintf(w, "  réussite            %s\n", rep.SuccessRate)
	fmt.Fprintf(w, "  temps moyen         %s (min %s, max %s)\n", rep.AverageResponseTime, rep.MinResponseTime, rep.MaxResponseTime)

	names := append([]string(nil), rep.Order...)
	if len(names) == 0 {
		for name := range rep.Scenarios {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	for _, name := range names {
		sr := rep.Scenarios[name]
		fmt.Fprintf(w, "  %-34s %d/%d %s  %s\n", name, sr.Detected, sr.Total, sr.DetectionRate, sr.AvgResponseTime)
	}
	fmt.Fprintf(w, "\nRapport sauvegardé: %s\n", reportPath)
	return nil
}
