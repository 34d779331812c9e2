package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/strrl/aurora-cli/internal/api"
	"github.com/strrl/aurora-cli/internal/ui"
	"github.com/strrl/aurora-cli/pkg/models"
)

func newTeamCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Manage members and invitations",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List members and seat usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			team, err := a.client.Team(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load team: %w", err)
			}

			out := cmd.OutOrStdout()
			seats := models.Meter{Label: "Seats", Used: team.SeatsUsed, Limit: team.SeatsLimit}
			fmt.Fprintf(out, "Seats: %s\n\n", ui.MeterValue(seats))

			t := ui.NewTable(out, "ID", "EMAIL", "ROLE", "JOINED")
			for _, m := range team.Members {
				t.Row(m.ID, m.Email, string(m.Role), ui.Ago(m.CreatedAt))
			}
			return t.Flush()
		},
	}

	var role string
	invite := &cobra.Command{
		Use:   "invite <email>",
		Short: "Invite someone to the organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := models.Role(strings.ToLower(role))
			if !r.Invitable() {
				return fmt.Errorf("invalid role %q, use admin or member", role)
			}
			if _, err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			if err := a.client.Invite(cmd.Context(), args[0], r); err != nil {
				if api.IsQuotaLimit(err) {
					return fmt.Errorf("%s", api.Detail(err, "Seat limit reached for current plan."))
				}
				return fmt.Errorf("failed to invite %s: %w", args[0], err)
			}
			ui.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Invited %s as %s", args[0], r))
			return nil
		},
	}
	invite.Flags().StringVar(&role, "role", string(models.RoleMember), "Role of the new member (admin or member)")

	var token, password string
	accept := &cobra.Command{
		Use:   "accept",
		Short: "Join an organization with an invite token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			token, err := a.prompt(cmd, token, "Invite token")
			if err != nil {
				return err
			}
			password, err := a.prompt(cmd, password, "Password")
			if err != nil {
				return err
			}
			pair, err := a.client.AcceptInvite(cmd.Context(), token, password)
			if err != nil {
				return fmt.Errorf("failed to accept invite: %w", err)
			}
			return a.finishLogin(cmd, pair)
		},
	}
	accept.Flags().StringVar(&token, "token", "", "Invite token")
	accept.Flags().StringVar(&password, "password", "", "Password for the new account (prompted when omitted)")

	setRole := &cobra.Command{
		Use:   "role <member-id> <owner|admin|member>",
		Short: "Change a member's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := models.Role(strings.ToLower(args[1]))
			if !r.Valid() {
				return fmt.Errorf("invalid role %q", args[1])
			}
			if _, err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			if err := a.client.UpdateMemberRole(cmd.Context(), args[0], r); err != nil {
				return fmt.Errorf("failed to update role: %w", err)
			}
			ui.PrintSuccess(cmd.OutOrStdout(), "Role updated to "+string(r))
			return nil
		},
	}

	remove := &cobra.Command{
		Use:     "remove <member-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a member",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.requireSession(cmd.Context())
			if err != nil {
				return err
			}
			if args[0] == snap.Me.User.ID {
				return fmt.Errorf("you cannot remove yourself")
			}
			ok, err := a.confirm(cmd, fmt.Sprintf("Remove member %s from the organization?", args[0]))
			if err != nil {
				return err
			}
			if !ok {
				ui.PrintInfo(cmd.ErrOrStderr(), "Cancelled")
				return nil
			}
			if err := a.client.RemoveMember(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to remove member: %w", err)
			}
			ui.PrintSuccess(cmd.OutOrStdout(), "Member removed")
			return nil
		},
	}

	cmd.AddCommand(list, invite, accept, setRole, remove)
	return cmd
}
