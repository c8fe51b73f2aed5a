package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"roast-tracker/internal/model"
)

func signUpCommand(e *env) *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			var namePtr *string
			if name != "" {
				namePtr = &name
			}
			identity, err := e.app.Store.SignUp(cmd.Context(), email, password, namePtr).Get()
			if err != nil {
				return err
			}
			printIdentity(cmd.OutOrStdout(), identity)
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (at least 6 characters)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func signInCommand(e *env) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and load your history",
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			identity, err := e.app.Store.SignIn(cmd.Context(), email, password).Get()
			if err != nil {
				return err
			}
			printIdentity(cmd.OutOrStdout(), identity)
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func signOutCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out",
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			if _, err := e.app.Logout(cmd.Context()).Get(); err != nil {
				// The local sign-out already happened.
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: backend sign-out failed: %v\n", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		}),
	}
}

func whoamiCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current identity",
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			printIdentity(cmd.OutOrStdout(), e.app.Store.Identity())
			return nil
		}),
	}
}

func printIdentity(w io.Writer, identity model.Identity) {
	if !identity.Authenticated {
		fmt.Fprintln(w, "anonymous")
		return
	}
	line := *identity.ID
	if identity.Email != nil {
		line = fmt.Sprintf("%s <%s>", line, *identity.Email)
	}
	if identity.Name != nil {
		line = fmt.Sprintf("%s (%s)", line, *identity.Name)
	}
	fmt.Fprintln(w, line)
}

func profileCommand(e *env) *cobra.Command {
	var name string
	var notifications, fromSettings bool
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or change your backend profile",
		Long: `Show or change the profile stored on the roast backend. Its preferences
decide whether near-target push notifications are sent; --from-settings copies
the local settings over them.`,
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			profile, err := e.app.Store.LoadUserProfile(ctx).Get()
			if err != nil {
				return err
			}

			var patch model.ProfilePatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.Name = &name
			}
			prefs := profile.Preferences
			if fromSettings {
				prefs = e.app.Store.Settings().Preferences()
			}
			if flags.Changed("notifications") {
				prefs.Notifications = notifications
			}
			if prefs != profile.Preferences {
				patch.Preferences = &prefs
			}

			if patch != (model.ProfilePatch{}) {
				if profile, err = e.app.Store.UpdateUserProfile(ctx, patch).Get(); err != nil {
					return err
				}
			}
			printProfile(cmd.OutOrStdout(), profile)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().BoolVar(&notifications, "notifications", true, "Receive near-target push notifications")
	cmd.Flags().BoolVar(&fromSettings, "from-settings", false, "Replace the preferences with the local settings")
	return cmd
}

func printProfile(w io.Writer, p model.UserProfile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", p.ID)
	fmt.Fprintf(tw, "email\t%s\n", p.Email)
	if p.Name != nil {
		fmt.Fprintf(tw, "name\t%s\n", *p.Name)
	}
	fmt.Fprintf(tw, "notifications\t%t\n", p.Preferences.Notifications)
	fmt.Fprintf(tw, "language\t%s\n", p.Preferences.Language)
	fmt.Fprintf(tw, "theme\t%s\n", p.Preferences.Theme)
	fmt.Fprintf(tw, "auto-save\t%t\n", p.Preferences.AutoSave)
	fmt.Fprintf(tw, "default-level\t%s\n", p.Preferences.DefaultRoastLevel)
	tw.Flush()
}
