package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"checkweigher/internal/config"
	"checkweigher/internal/feed"
	"checkweigher/internal/logging"
	"checkweigher/internal/order"
	"checkweigher/internal/preflight"
	"checkweigher/internal/simrun"
)

type runFlags struct {
	ticks      int
	realtime   bool
	machines   []string
	seed       uint64
	jsonOut    bool
	follow     bool
	diagnostic bool
	swaps      []string
	swapMode   string
	pauseAt    []string
	resumeAt   []string
	speeds     []string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the packaging line simulation",
		Long: `Run every configured machine (or those named with --machine) for a number of
ticks, then print the verdict feed, the journal summary and order progress.

Control input is scripted by tick number. Prefix a value with MACHINE: to
address a single machine:

  checkweigher run --swap 600=large --swap-mode safe
  checkweigher run --pause-at A:100 --resume-at A:400 --speed B:200=1.5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runSimulation(cmd, ctx, cfg, flags)
		},
	}

	cmd.Flags().IntVar(&flags.ticks, "ticks", 0, "Number of ticks to run (default simulation.ticks)")
	cmd.Flags().BoolVar(&flags.realtime, "realtime", false, "Pace ticks at line.tick_rate instead of running flat out")
	cmd.Flags().StringSliceVarP(&flags.machines, "machine", "m", nil, "Machine to run (repeatable; default all)")
	cmd.Flags().Uint64Var(&flags.seed, "seed", 0, "Random seed (default simulation.seed, then the clock)")
	cmd.Flags().BoolVar(&flags.jsonOut, "json", false, "Print the run result as JSON")
	cmd.Flags().BoolVarP(&flags.follow, "follow", "f", false, "Print verdicts as they happen")
	cmd.Flags().BoolVar(&flags.diagnostic, "diagnostic", false, "Write a debug-level JSON log under the log directory")
	cmd.Flags().StringArrayVar(&flags.swaps, "swap", nil, "Swap profile at a tick: [MACHINE:]TICK=PROFILE (repeatable)")
	cmd.Flags().StringVar(&flags.swapMode, "swap-mode", string(simrun.SwapSafe), "How swaps apply: safe or immediate")
	cmd.Flags().StringArrayVar(&flags.pauseAt, "pause-at", nil, "Pause bagging at a tick: [MACHINE:]TICK (repeatable)")
	cmd.Flags().StringArrayVar(&flags.resumeAt, "resume-at", nil, "Resume bagging at a tick: [MACHINE:]TICK (repeatable)")
	cmd.Flags().StringArrayVar(&flags.speeds, "speed", nil, "Set line speed: [MACHINE:][TICK=]SPEED (repeatable)")

	return cmd
}

func (f runFlags) actions() ([]simrun.Action, error) {
	groups := []struct {
		values []string
		parse  func(string) (simrun.Action, error)
	}{
		{f.swaps, simrun.ParseSwap},
		{f.pauseAt, simrun.ParsePause},
		{f.resumeAt, simrun.ParseResume},
		{f.speeds, simrun.ParseSpeed},
	}
	var actions []simrun.Action
	for _, g := range groups {
		for _, v := range g.values {
			a, err := g.parse(v)
			if err != nil {
				return nil, err
			}
			actions = append(actions, a)
		}
	}
	return actions, nil
}

func runSimulation(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, flags runFlags) error {
	actions, err := flags.actions()
	if err != nil {
		return err
	}
	mode, err := simrun.ParseSwapMode(flags.swapMode)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	if failed := preflight.Failed(preflight.RunAll(cfg)); len(failed) > 0 {
		for _, r := range failed {
			fmt.Fprintln(cmd.ErrOrStderr(), renderStatusLine(r.Name, statusError, r.Detail, shouldColorize(cmd.ErrOrStderr())))
		}
		return fmt.Errorf("preflight failed: %d check(s)", len(failed))
	}

	logger, debugPath, err := ctx.newLogger(cfg, flags.diagnostic)
	if err != nil {
		return err
	}
	if debugPath != "" {
		logger.Info("diagnostic mode enabled",
			logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
			logging.String("debug_log_path", debugPath),
		)
	}

	opts := simrun.Options{
		Ticks:    flags.ticks,
		Realtime: flags.realtime,
		Machines: flags.machines,
		Seed:     flags.seed,
		SwapMode: mode,
		Actions:  actions,
		Logger:   logger,
	}
	if flags.follow && !flags.jsonOut {
		opts.Follow = newFeedFollower(out, colorize).follow
	}

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := simrun.Run(signalCtx, cfg, opts)
	if err != nil {
		return err
	}
	if flags.jsonOut {
		return writeJSON(cmd, res)
	}
	printResult(out, cfg, res, colorize)
	return nil
}

// feedFollower prints each machine's verdict feed as it fills. Verdicts
// evicted before the follower catches up are skipped.
type feedFollower struct {
	mu       sync.Mutex
	out      io.Writer
	colorize bool
}

func newFeedFollower(out io.Writer, colorize bool) *feedFollower {
	return &feedFollower{out: out, colorize: colorize}
}

func (f *feedFollower) follow(ctx context.Context, _ string, hub *feed.Hub) {
	var since uint64
	for {
		entries, next, err := hub.Fetch(ctx, since, true)
		f.print(entries)
		since = next
		if err != nil {
			break
		}
	}
	// The last tick may have published after the final wakeup.
	entries, _, _ := hub.Fetch(context.Background(), since, false)
	f.print(entries)
}

func (f *feedFollower) print(entries []feed.Entry) {
	if len(entries) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range entries {
		msg := fmt.Sprintf("#%d %s %s %s", e.ItemID, e.Profile, weightLabel(e.MeasuredWeight, " kg"), verdictLabel(e.Verdict, e.RejectReason))
		fmt.Fprintln(f.out, renderStatusLine("Line "+e.Line, verdictStatus(e.Verdict), msg, f.colorize))
	}
}

func weightLabel(weight *float64, unit string) string {
	if weight == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f%s", *weight, unit)
}

func printResult(out io.Writer, cfg *config.Config, res *simrun.Result, colorize bool) {
	status := statusOK
	note := "complete"
	if res.Interrupted {
		status, note = statusWarn, "interrupted"
	}
	fmt.Fprintln(out, renderStatusLine("Run", status, fmt.Sprintf("%s %s (seed %d, %d ticks, %s simulated)",
		res.RunID, note, res.Seed, res.Ticks, res.Elapsed.Round(time.Millisecond)), colorize))

	for _, m := range res.Machines {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderStatusLine("Machine "+m.Name, statusInfo,
			fmt.Sprintf("%s, every %d ticks, %d produced, %d on belt", m.Profile, m.SpawnInterval, m.Stats.Produced, m.Stats.Active), colorize))
		fmt.Fprintln(out, renderBelt(m.Items, simrun.Settings(cfg, m.Name)))
		for _, s := range m.Swaps {
			kind := statusOK
			if !s.Drained {
				kind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("Swap", kind, fmt.Sprintf("%s (drained %s, waited %s)", s.Profile, yesNo(s.Drained), s.Waited.Round(time.Millisecond)), colorize))
		}
		rows := make([][]string, 0, len(m.Feed))
		for _, e := range m.Feed {
			rows = append(rows, []string{
				fmt.Sprintf("%d", e.ItemID),
				e.Profile,
				weightLabel(e.MeasuredWeight, ""),
				verdictLabel(e.Verdict, e.RejectReason),
				contaminantLabel(e.Contaminant),
			})
		}
		if len(rows) > 0 {
			fmt.Fprintln(out, renderTable("Recent verdicts, line "+m.Name,
				[]string{"Item", "Profile", "Weight (kg)", "Verdict", "Contaminant"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft}))
		}
		if len(m.Rejects) > 0 {
			rows := make([][]string, 0, len(m.Rejects))
			for _, e := range m.Rejects {
				rows = append(rows, []string{
					fmt.Sprintf("%d", e.ItemID),
					e.Profile,
					weightLabel(e.MeasuredWeight, ""),
					displayLabel(string(e.RejectReason)),
					displayLabel(string(e.ExitDirection)),
				})
			}
			fmt.Fprintln(out, renderTable("Recent rejects, line "+m.Name,
				[]string{"Item", "Profile", "Weight (kg)", "Reason", "Exit"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft}))
		}
	}

	if len(res.Summary) > 0 {
		rows := make([][]string, 0, len(res.Summary))
		for _, s := range res.Summary {
			rows = append(rows, []string{
				s.Line, s.Profile,
				fmt.Sprintf("%d", s.Weighed),
				fmt.Sprintf("%d", s.Passed),
				fmt.Sprintf("%d", s.RejectedContaminant),
				fmt.Sprintf("%d", s.RejectedRange),
				fmt.Sprintf("%d", s.RejectedTolerance),
				fmt.Sprintf("%d", s.Discarded),
				fmt.Sprintf("%.1f%%", s.PassRate()*100),
				fmt.Sprintf("%.3f", s.MeanWeight),
			})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable("Journal summary",
			[]string{"Line", "Profile", "Weighed", "Passed", "Contaminant", "Range", "Tolerance", "Discarded", "Pass rate", "Mean (kg)"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}))
	}

	if len(res.Orders) > 0 {
		rows := make([][]string, 0, len(res.Orders))
		for _, p := range res.Orders {
			rows = append(rows, orderRow(p))
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable("Production orders",
			[]string{"Profile", "Lot", "Silo", "Lines", "Product", "Bags", "Progress", "Remaining", "ETA"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}))
	}
}

func orderRow(p order.Progress) []string {
	eta := p.ETA.Local().Format("2006-01-02 15:04")
	if p.Complete() {
		eta = "complete"
	}
	return []string{
		p.Profile, p.Lot, p.Silo, p.Lines,
		strings.TrimSpace(p.ProductType + " " + p.Grade),
		fmt.Sprintf("%d / %d", p.ProducedBags, p.TotalBags),
		fmt.Sprintf("%.2f%%", p.Fraction*100),
		fmt.Sprintf("%.3f t", p.RemainingKg/1000),
		eta,
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
