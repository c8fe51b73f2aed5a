package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"roast-tracker/internal/monitor"
	"roast-tracker/internal/roast"
)

func monitorCommand(e *env) *cobra.Command {
	var name, label string
	var target float64
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run a live monitoring session",
		Long: `Run a live monitoring session until the duration passes or the process is interrupted.
While it runs, enter p to pause, r to resume and q to stop.`,
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			targetLabel := e.app.Store.Settings().DefaultRoastLevel
			if label != "" {
				var err error
				if targetLabel, err = roast.ParseLabel(label); err != nil {
					return err
				}
			}
			if target <= 0 {
				target = math.Max(targetLabel.MinIndex(), roast.SimMinIndex) + 5
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			out := cmd.OutOrStdout()
			e.app.Engine.OnSample(func(s monitor.Sample) {
				mark := ""
				if s.NearTarget {
					mark = "  <- near target"
				}
				fmt.Fprintf(out, "%s  index %.0f  %s  %.1f%%%s\n", s.Timestamp.Local().Format(time.TimeOnly), s.Index, s.Label, s.Confidence*100, mark)
			})
			defer e.app.Engine.OnSample(nil)

			session, err := e.app.Engine.Start(cmd.Context(), name, target, targetLabel)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "monitoring %q (%s) towards %.0f %s\n", session.Name, session.ID, target, targetLabel)

			ctx, quit := context.WithCancel(ctx)
			defer quit()
			go readControls(ctx, cmd.InOrStdin(), out, e.app.Engine, quit)

			<-ctx.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			summary, _ := e.app.Engine.Stop(stopCtx)
			fmt.Fprintf(out, "stopped after %s: %d sample(s), %d saved\n", summary.Elapsed, summary.Samples, summary.Persisted)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "Session name")
	cmd.Flags().StringVar(&label, "label", "", "Target roast level (default from settings)")
	cmd.Flags().Float64Var(&target, "target", 0, "Target roast index")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (default: until interrupted)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// readControls applies the pause, resume and quit commands typed on in to
// the running session. End of input leaves the session running.
func readControls(ctx context.Context, in io.Reader, out io.Writer, engine *monitor.Engine, quit context.CancelFunc) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		switch cmd := strings.ToLower(strings.TrimSpace(scanner.Text())); cmd {
		case "":
		case "p", "pause":
			if engine.Pause(ctx) {
				fmt.Fprintln(out, "paused")
			} else {
				fmt.Fprintln(out, "not running")
			}
		case "r", "resume":
			if engine.Resume(ctx) {
				fmt.Fprintln(out, "resumed")
			} else {
				fmt.Fprintln(out, "not paused")
			}
		case "q", "quit", "stop":
			quit()
			return
		default:
			fmt.Fprintf(out, "unknown command %q (p, r or q)\n", cmd)
		}
	}
}

func sessionsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List monitoring sessions",
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			sessions, err := e.app.Store.LoadMonitorSessions(cmd.Context()).Get()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTARGET\tSTATUS\tSTARTED\tSNAPSHOTS")
			for _, s := range sessions {
				fmt.Fprintf(tw, "%s\t%s\t%.0f %s\t%s\t%s\t%d\n", s.ID, s.Name, s.TargetRoastIndex, s.TargetRoastLabel,
					s.Status, s.StartTime.Local().Format(time.DateTime), len(s.Snapshots))
			}
			return tw.Flush()
		}),
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show the snapshots of a session",
		Args:  cobra.ExactArgs(1),
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			snaps, err := e.app.Store.LoadSnapshots(cmd.Context(), args[0]).Get()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tINDEX\tLEVEL\tCONFIDENCE\tTEMP")
			for _, s := range snaps {
				temp := "-"
				if s.Temperature != nil {
					temp = fmt.Sprintf("%.0f°C", *s.Temperature)
				}
				fmt.Fprintf(tw, "%s\t%.0f\t%s\t%.1f%%\t%s\n", s.Timestamp.Local().Format(time.DateTime), s.RoastIndex, s.RoastLabel, s.Confidence*100, temp)
			}
			return tw.Flush()
		}),
	})
	return cmd
}
