// Package cli implements the roastctl command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"roast-tracker/config"
	"roast-tracker/internal/app"
)

type env struct {
	base       app.Options
	configPath string
	offline    bool
	app        *app.App
}

// Root returns the roastctl command. base supplies collaborators that would
// otherwise be built from the configuration.
func Root(base app.Options) *cobra.Command {
	e := &env{base: base}

	root := &cobra.Command{
		Use:           "roastctl",
		Short:         "Track coffee roast levels",
		Long:          `roastctl scores bean images, keeps a detection history and runs live roast monitoring sessions, synced to a roast backend when signed in.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&e.configPath, "config", "c", "", "Path to the YAML config (default $CONFIG_PATH)")
	root.PersistentFlags().BoolVar(&e.offline, "offline", false, "Keep everything local and never contact the backend")

	root.AddCommand(
		signUpCommand(e),
		signInCommand(e),
		signOutCommand(e),
		whoamiCommand(e),
		profileCommand(e),
		detectCommand(e),
		historyCommand(e),
		monitorCommand(e),
		sessionsCommand(e),
		settingsCommand(e),
		levelsCommand(),
	)
	return root
}

// run opens the app around fn and closes it afterwards, whatever fn returns.
func (e *env) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		if err := e.open(cmd.Context()); err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, e.app.Close())
			e.app = nil
		}()
		return fn(cmd, args)
	}
}

func (e *env) open(ctx context.Context) error {
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	opts := e.base
	opts.Config = cfg.Client
	opts.Offline = opts.Offline || e.offline
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	e.app = a
	return nil
}

func (e *env) loadConfig() (*config.Config, error) {
	path := e.configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}
	return cfg, nil
}

// Execute runs roastctl with the process arguments.
func Execute(ctx context.Context) int {
	root := Root(app.Options{})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
