package cli

import (
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"roast-tracker/internal/model"
	"roast-tracker/internal/persist"
	"roast-tracker/internal/roast"
)

func settingsCommand(e *env) *cobra.Command {
	var language, theme, level string
	var autoSave, notifications, reset bool
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change local settings",
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			var patch model.SettingsPatch
			if reset {
				patch = model.DefaultSettings().Patch()
			}
			flags := cmd.Flags()
			if flags.Changed("language") {
				patch.Language = &language
			}
			if flags.Changed("theme") {
				patch.Theme = &theme
			}
			if flags.Changed("auto-save") {
				patch.AutoSave = &autoSave
			}
			if flags.Changed("notifications") {
				patch.Notifications = &notifications
			}
			if flags.Changed("default-level") {
				l, err := roast.ParseLabel(level)
				if err != nil {
					return err
				}
				patch.DefaultRoastLevel = &l
			}

			settings := e.app.Store.Settings()
			if patch != (model.SettingsPatch{}) {
				var err error
				if settings, err = e.app.Store.UpdateSettings(patch).Get(); err != nil {
					return err
				}
			}
			printSettings(cmd.OutOrStdout(), settings)
			return nil
		}),
	}
	cmd.Flags().StringVar(&language, "language", "", "zh or en")
	cmd.Flags().StringVar(&theme, "theme", "", "light or dark")
	cmd.Flags().BoolVar(&autoSave, "auto-save", true, "Save detections to the history")
	cmd.Flags().BoolVar(&notifications, "notifications", true, "Allow near-target notifications")
	cmd.Flags().StringVar(&level, "default-level", "", "Default target roast level")
	cmd.Flags().BoolVar(&reset, "reset", false, "Restore the default settings before applying other flags")

	cmd.AddCommand(&cobra.Command{
		Use:   "export <file>",
		Short: "Write the settings to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := persist.ExportSettings(f, e.app.Store.Settings(), time.Now()); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "settings exported to %s\n", args[0])
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Apply the settings from an exported file",
		Args:  cobra.ExactArgs(1),
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			patch, err := persist.ImportSettings(f)
			if err != nil {
				return err
			}
			settings, err := e.app.Store.UpdateSettings(patch).Get()
			if err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), settings)
			return nil
		}),
	})
	return cmd
}

func printSettings(w io.Writer, s model.Settings) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "language\t%s\n", s.Language)
	fmt.Fprintf(tw, "theme\t%s\n", s.Theme)
	fmt.Fprintf(tw, "auto-save\t%t\n", s.AutoSave)
	fmt.Fprintf(tw, "notifications\t%t\n", s.Notifications)
	fmt.Fprintf(tw, "default-level\t%s\n", s.DefaultRoastLevel)
	tw.Flush()
}

func levelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "levels",
		Short:       "List the roast levels",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "LEVEL\tSLUG\tMIN INDEX")
			for _, l := range roast.Labels() {
				floor := "-"
				if m := l.MinIndex(); !math.IsInf(m, -1) {
					floor = fmt.Sprintf("%.0f", m)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", l, l.Slug(), floor)
			}
			return tw.Flush()
		},
	}
}
