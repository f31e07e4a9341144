package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/logsentinel/internal/domain/analysis"
)

var analyzeSession string

var analyzeCmd = &cobra.Command{
	Use:   "analyze [log...]",
	Short: "Analyze log lines one at a time",
	Long: `Submit each argument to the analysis service, in order, waiting for each
verdict before sending the next. Use "-" to read one line per submission
from stdin; blank stdin lines are skipped.

The last 10 successful analyses are kept and summarized at the end.

Examples:
  sentinelctl analyze "Failed password for root from 203.0.113.45 port 22 ssh2"
  tail -n 50 /var/log/auth.log | sentinelctl analyze -
  sentinelctl analyze -o json "PORT SCAN DROP from 185.216.34.99 to port 22"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeSession, "session", "cli", "session id recorded in the ledger")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctl, cleanup, err := openController(ctx, cfg, logger, analyzeSession)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	submit := func(line string) error {
		st := ctl.Submit(ctx, line)
		return printState(out, strings.TrimSpace(line), st)
	}

	if len(args) == 1 && args[0] == "-" {
		if err := eachLine(ctx, cmd.InOrStdin(), submit); err != nil {
			return err
		}
	} else {
		for _, a := range args {
			if ctx.Err() != nil {
				break
			}
			if err := submit(a); err != nil {
				return err
			}
		}
	}

	history := ctl.History()
	if err := printStats(out, ctl.Stats()); err != nil {
		return err
	}
	if !jsonOutput() && len(history) > 0 {
		results := make([]analysis.Result, len(history))
		for i, e := range history {
			results[i] = e.Result
		}
		top := analysis.MaxTier(results...)
		fmt.Fprintf(out, "  max        %s\n", tierStyles[top].Render(top.String()))
	}
	return nil
}

// eachLine calls fn for every non-blank line of r until EOF or ctx is done.
func eachLine(ctx context.Context, r io.Reader, fn func(string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return sc.Err()
}
