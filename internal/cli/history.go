package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"roast-tracker/internal/history"
	"roast-tracker/internal/model"
	"roast-tracker/internal/roast"
)

func detectCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "detect <image>",
		Short: "Score a bean image",
		Long:  "Score a bean image. The result is added to the history when auto-save is on.",
		Args:  cobra.ExactArgs(1),
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			est, record, err := e.app.Detect(cmd.Context(), args[0], image)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "roast index: %.0f\nroast level: %s\nconfidence:  %.1f%%\n", est.Index, est.Label, est.Confidence*100)
			if est.Advisory != "" {
				fmt.Fprintf(out, "advice:      %s\n", est.Advisory)
			}
			if record != nil {
				fmt.Fprintf(out, "saved as %s\n", record.ID)
			}
			return nil
		}),
	}
}

func historyCommand(e *env) *cobra.Command {
	var search, label, sort string
	var asCSV bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List detection records",
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			f := history.Filter{Search: search}
			var err error
			if f.Sort, err = history.ParseSort(sort); err != nil {
				return err
			}
			if label != "" {
				if f.Label, err = roast.ParseLabel(label); err != nil {
					return err
				}
			}
			records := e.app.Store.Query(f)
			if asCSV {
				return history.WriteCSV(cmd.OutOrStdout(), records)
			}
			printRecords(cmd.OutOrStdout(), records)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Match label, advice or index")
	cmd.Flags().StringVarP(&label, "label", "l", "", "Only this roast level (name or slug)")
	cmd.Flags().StringVar(&sort, "sort", "newest", "newest, oldest, index_asc, index_desc or confidence")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "Write CSV instead of a table")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "rm <id>...",
			Short: "Delete records",
			Args:  cobra.MinimumNArgs(1),
			RunE: e.run(func(cmd *cobra.Command, args []string) error {
				for _, id := range args {
					if err := e.app.Store.RemoveDetectionRecord(cmd.Context(), id).Err; err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d record(s)\n", len(args))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Clear the local history",
			RunE: e.run(func(cmd *cobra.Command, args []string) error {
				n := e.app.Store.ClearDetectionRecords().Value
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %d record(s)\n", n)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Summarize the history",
			RunE: e.run(func(cmd *cobra.Command, args []string) error {
				st := e.app.Store.Stats()
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "total:          %d\n", st.Total)
				fmt.Fprintf(out, "average index:  %.1f\n", st.AvgIndex)
				fmt.Fprintf(out, "most common:    %s\n", st.MostCommon)
				fmt.Fprintf(out, "avg confidence: %.1f%%\n", st.AvgConfidence*100)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "sync",
			Short: "Reload records from the backend",
			RunE: e.run(func(cmd *cobra.Command, args []string) error {
				records, err := e.app.Store.LoadDetectionRecords(cmd.Context()).Get()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d record(s)\n", len(records))
				return nil
			}),
		},
	)
	return cmd
}

func printRecords(w io.Writer, records []model.DetectionRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tINDEX\tLEVEL\tCONFIDENCE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%.0f\t%s\t%.1f%%\n", r.ID, r.CreatedAt.Local().Format(time.DateTime), r.RoastIndex, r.RoastLabel, r.Confidence*100)
	}
	tw.Flush()
}
