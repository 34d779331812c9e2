package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/strrl/aurora-cli/internal/ui"
	"github.com/strrl/aurora-cli/pkg/models"
)

const meterWidth = 30

func newUsageCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "usage",
		Aliases: []string{"dashboard"},
		Short:   "Show usage against the plan limits",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.requireSession(cmd.Context())
			if err != nil {
				return err
			}
			usage, err := a.client.Usage(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load usage: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s plan\n\n", ui.TitleStyle.Render(snap.Me.Organization.Name), snap.Plan().Label())
			fmt.Fprint(out, ui.RenderUsage(usage, meterWidth))
			return nil
		},
	}
}

func newBillingCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "billing",
		Short: "Show plans and manage the subscription",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.requireSession(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			current := snap.Plan()
			for _, p := range models.Plans {
				marker := "  "
				label := p.Label()
				if p == current {
					marker = "● "
					label = ui.AccentStyle.Render(label)
				}
				fmt.Fprintf(out, "%s%-12s %s\n", marker, label, ui.MutedStyle.Render(p.Summary()))
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, ui.MutedStyle.Render("Upgrade with `aurora billing checkout <plan>`, manage invoices with `aurora billing portal`."))
			return nil
		},
	}

	checkout := &cobra.Command{
		Use:   "checkout <pro|enterprise>",
		Short: "Start a checkout session for a paid plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, ok := models.ParsePlan(args[0])
			if !ok {
				return fmt.Errorf("unknown plan %q, choose one of pro or enterprise", args[0])
			}
			snap, err := a.requireSession(cmd.Context())
			if err != nil {
				return err
			}
			if snap.Plan() == plan {
				ui.PrintInfo(cmd.OutOrStdout(), "Already on the "+plan.Label()+" plan")
				return nil
			}
			url, err := a.client.CheckoutSession(cmd.Context(), plan)
			if err != nil {
				return fmt.Errorf("unable to start checkout: %w", err)
			}
			printRedirect(cmd, "Complete the upgrade at", url)
			return nil
		},
	}

	portal := &cobra.Command{
		Use:   "portal",
		Short: "Open the billing portal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			url, err := a.client.BillingPortal(cmd.Context())
			if err != nil {
				return fmt.Errorf("unable to open billing portal: %w", err)
			}
			printRedirect(cmd, "Manage your subscription at", url)
			return nil
		},
	}

	cmd.AddCommand(checkout, portal)
	return cmd
}

func printRedirect(cmd *cobra.Command, label, url string) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s:\n  %s\n", label, url)
}

func newSettingsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Organization and profile settings",
	}

	rename := &cobra.Command{
		Use:   "rename <name>",
		Short: "Rename the organization",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			name := strings.TrimSpace(strings.Join(args, " "))
			if name == "" {
				return fmt.Errorf("organization name must not be empty")
			}
			if err := a.client.UpdateOrganization(cmd.Context(), name); err != nil {
				return fmt.Errorf("failed to rename organization: %w", err)
			}
			ui.PrintSuccess(cmd.OutOrStdout(), "Organization renamed to "+name)
			return nil
		},
	}

	var current, next string
	password := &cobra.Command{
		Use:   "password",
		Short: "Change your password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			current, err := a.prompt(cmd, current, "Current password")
			if err != nil {
				return err
			}
			next, err := a.prompt(cmd, next, "New password")
			if err != nil {
				return err
			}
			if err := a.client.ChangePassword(cmd.Context(), current, next); err != nil {
				return fmt.Errorf("failed to change password: %w", err)
			}
			ui.PrintSuccess(cmd.OutOrStdout(), "Password changed")
			return nil
		},
	}
	password.Flags().StringVar(&current, "current", "", "Current password (prompted when omitted)")
	password.Flags().StringVar(&next, "new", "", "New password (prompted when omitted)")

	deleteOrg := &cobra.Command{
		Use:   "delete-org",
		Short: "Delete the organization and all of its data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.requireSession(cmd.Context())
			if err != nil {
				return err
			}
			ok, err := a.confirm(cmd, fmt.Sprintf("Delete organization %q and all of its data? This cannot be undone.", snap.Me.Organization.Name))
			if err != nil {
				return err
			}
			if !ok {
				ui.PrintInfo(cmd.ErrOrStderr(), "Cancelled")
				return nil
			}
			if err := a.client.DeleteOrganization(cmd.Context()); err != nil {
				return fmt.Errorf("failed to delete organization: %w", err)
			}
			if err := a.sessions.Logout(); err != nil {
				return err
			}
			ui.PrintSuccess(cmd.OutOrStdout(), "Organization deleted")
			return nil
		},
	}

	cmd.AddCommand(rename, password, deleteOrg)
	return cmd
}
