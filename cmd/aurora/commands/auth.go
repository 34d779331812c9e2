package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/strrl/aurora-cli/internal/session"
	"github.com/strrl/aurora-cli/internal/ui"
	"github.com/strrl/aurora-cli/pkg/models"
)

func newLoginCommand(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to your workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			email, err := a.prompt(cmd, email, "Email")
			if err != nil {
				return err
			}
			password, err := a.prompt(cmd, password, "Password")
			if err != nil {
				return err
			}

			pair, err := a.client.Login(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			return a.finishLogin(cmd, pair)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when omitted)")
	return cmd
}

func newRegisterCommand(a *app) *cobra.Command {
	var org, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an organization and its owner account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			org, err := a.prompt(cmd, org, "Organization name")
			if err != nil {
				return err
			}
			email, err := a.prompt(cmd, email, "Email")
			if err != nil {
				return err
			}
			password, err := a.prompt(cmd, password, "Password")
			if err != nil {
				return err
			}

			pair, err := a.client.Register(cmd.Context(), org, email, password)
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}
			return a.finishLogin(cmd, pair)
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "Organization name")
	cmd.Flags().StringVar(&email, "email", "", "Owner email")
	cmd.Flags().StringVar(&password, "password", "", "Owner password (prompted when omitted)")
	return cmd
}

// finishLogin stores the pair and greets the identity it resolves to
func (a *app) finishLogin(cmd *cobra.Command, pair models.TokenPair) error {
	snap, err := a.sessions.Login(cmd.Context(), pair)
	if err != nil {
		return err
	}
	ui.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Logged in as %s (%s, %s plan)",
		snap.Me.User.Email, snap.Me.Organization.Name, snap.Plan().Label()))
	return nil
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			if err := a.sessions.Logout(); err != nil {
				return err
			}
			ui.PrintSuccess(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user and organization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.requireSession(cmd.Context())
			if err != nil {
				return err
			}
			a.printIdentity(cmd, snap)
			return nil
		},
	}
}

func (a *app) printIdentity(cmd *cobra.Command, snap session.Snapshot) {
	out := cmd.OutOrStdout()
	me := snap.Me
	fmt.Fprintf(out, "User:         %s (%s)\n", me.User.Email, me.User.Role)
	fmt.Fprintf(out, "Organization: %s [%s]\n", me.Organization.Name, me.Organization.Slug)
	fmt.Fprintf(out, "Plan:         %s\n", snap.Plan().Label())
	fmt.Fprintf(out, "Backend:      %s\n", a.cfg.APIBaseURL)
}

func newPasswordResetCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password-reset",
		Short: "Reset a forgotten password",
	}

	var email string
	request := &cobra.Command{
		Use:   "request",
		Short: "Email a password reset token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			email, err := a.prompt(cmd, email, "Email")
			if err != nil {
				return err
			}
			if err := a.client.RequestPasswordReset(cmd.Context(), email); err != nil {
				return fmt.Errorf("failed to request password reset: %w", err)
			}
			ui.PrintSuccess(cmd.OutOrStdout(), "If the account exists, a reset token was sent to "+email)
			return nil
		},
	}
	request.Flags().StringVar(&email, "email", "", "Account email")

	var token, password string
	confirm := &cobra.Command{
		Use:   "confirm",
		Short: "Set a new password with a reset token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			token, err := a.prompt(cmd, token, "Reset token")
			if err != nil {
				return err
			}
			password, err := a.prompt(cmd, password, "New password")
			if err != nil {
				return err
			}
			if err := a.client.ConfirmPasswordReset(cmd.Context(), token, password); err != nil {
				return fmt.Errorf("failed to reset password: %w", err)
			}
			ui.PrintSuccess(cmd.OutOrStdout(), "Password updated, run `aurora login`")
			return nil
		},
	}
	confirm.Flags().StringVar(&token, "token", "", "Reset token from the email")
	confirm.Flags().StringVar(&password, "password", "", "New password (prompted when omitted)")

	cmd.AddCommand(request, confirm)
	return cmd
}
