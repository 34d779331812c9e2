package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/strrl/aurora-cli/internal/api"
	"github.com/strrl/aurora-cli/internal/ui"
	"github.com/strrl/aurora-cli/pkg/models"
)

var errAuditLocked = errors.New("the audit log is available on Pro and Enterprise plans, upgrade with `aurora billing checkout pro`")

type auditFlags struct {
	action   string
	userID   string
	start    string
	end      string
	since    time.Duration
	page     int
	pageSize int
}

func newAuditCommand(a *app) *cobra.Command {
	var f auditFlags

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Browse the organization's audit log (Pro+)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := f.filter(time.Now())
			if err != nil {
				return err
			}
			snap, err := a.requireSession(cmd.Context())
			if err != nil {
				return err
			}
			if !snap.Plan().Allows(models.FeatureAuditLog) {
				return errAuditLocked
			}

			page, err := a.client.AuditLog(cmd.Context(), filter)
			if err != nil {
				if api.IsForbidden(err) {
					return errAuditLocked
				}
				return fmt.Errorf("failed to load audit log: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(page.Items) == 0 {
				fmt.Fprintln(out, "No audit entries match")
				return nil
			}
			t := ui.NewTable(out, "TIME", "ACTION", "USER", "DETAILS")
			for _, item := range page.Items {
				user := "-"
				if item.UserID != nil {
					user = *item.UserID
				}
				t.Row(item.CreatedAt.Local().Format("2006-01-02 15:04:05"), item.Action, user, ui.Truncate(details(item.Details), 60))
			}
			if err := t.Flush(); err != nil {
				return err
			}

			size := filter.PageSize
			if size <= 0 {
				size = api.DefaultAuditPageSize
			}
			pages := (page.Total + size - 1) / size
			fmt.Fprintln(out, ui.MutedStyle.Render(fmt.Sprintf("Page %d of %d, %s entries", max(filter.Page, 1), max(pages, 1), ui.Count(page.Total))))
			return nil
		},
	}

	cmd.Flags().StringVar(&f.action, "action", "", "Only entries with this action, e.g. document_uploaded")
	cmd.Flags().StringVar(&f.userID, "user", "", "Only entries by this user id")
	cmd.Flags().StringVar(&f.start, "start", "", "Entries at or after this time (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "Entries before this time (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().DurationVar(&f.since, "since", 0, "Entries from the last duration, e.g. 24h; overrides --start")
	cmd.Flags().IntVar(&f.page, "page", 1, "Page number")
	cmd.Flags().IntVar(&f.pageSize, "page-size", api.DefaultAuditPageSize, "Entries per page (max 100)")
	return cmd
}

func (f auditFlags) filter(now time.Time) (api.AuditFilter, error) {
	filter := api.AuditFilter{
		Action:   f.action,
		UserID:   f.userID,
		Page:     f.page,
		PageSize: f.pageSize,
	}
	var err error
	if filter.Start, err = parseTime(f.start); err != nil {
		return filter, fmt.Errorf("invalid --start: %w", err)
	}
	if filter.End, err = parseTime(f.end); err != nil {
		return filter, fmt.Errorf("invalid --end: %w", err)
	}
	if f.since > 0 {
		filter.Start = now.Add(-f.since)
	}
	if !filter.Start.IsZero() && !filter.End.IsZero() && filter.End.Before(filter.Start) {
		return filter, errors.New("--end is before --start")
	}
	if filter.PageSize > api.MaxAuditPageSize {
		filter.PageSize = api.MaxAuditPageSize
	}
	return filter, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", s, time.Local)
}

func details(d map[string]interface{}) string {
	if len(d) == 0 {
		return ""
	}
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Sprint(d)
	}
	return string(b)
}
