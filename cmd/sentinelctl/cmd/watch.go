package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/logsentinel/internal/tailer"
)

var (
	watchFromStart bool
	watchSession   string
)

var watchCmd = &cobra.Command{
	Use:   "watch FILE",
	Short: "Follow a log file and analyze each new line",
	Long: `Follow a log file and submit every appended non-blank line, one at a
time. Lines written while an analysis is in flight wait their turn.
Rotation and truncation are handled.

Examples:
  sentinelctl watch /var/log/auth.log
  sentinelctl watch --from-start ./logs/all_logs.log -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchFromStart, "from-start", false, "analyze existing content before following")
	watchCmd.Flags().StringVar(&watchSession, "session", "watch", "session id recorded in the ledger")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	follower, err := tailer.New(args[0])
	if err != nil {
		return err
	}
	follower.FromStart = watchFromStart
	follower.Logger = logger

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctl, cleanup, err := openController(ctx, cfg, logger, watchSession)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	if !jsonOutput() {
		fmt.Fprintln(out, mutedStyle.Render("following "+follower.Path()+" (ctrl+c to stop)"))
	}

	err = follower.Run(ctx, func(line string) {
		st := ctl.Submit(ctx, line)
		printState(out, line, st)
	})
	if err != nil {
		return err
	}
	return printStats(out, ctl.Stats())
}
