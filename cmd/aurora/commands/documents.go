package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/strrl/aurora-cli/internal/api"
	"github.com/strrl/aurora-cli/internal/ui"
	"github.com/strrl/aurora-cli/pkg/models"
)

const statusPollInterval = 2 * time.Second

func newDocumentsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "Manage the documents the assistant answers from",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List uploaded documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			docs, err := a.client.Documents(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load documents: %w", err)
			}
			if len(docs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No documents yet, upload one with `aurora documents upload <file>`")
				return nil
			}

			t := ui.NewTable(cmd.OutOrStdout(), "ID", "FILENAME", "SIZE", "STATUS", "CHUNKS", "UPLOADED")
			for _, d := range docs {
				t.Row(d.ID, ui.Truncate(d.Filename, 40), ui.Bytes(d.SizeBytes), d.Status,
					strconv.Itoa(d.ChunkCount), ui.Ago(d.CreatedAt))
			}
			return t.Flush()
		},
	}

	var wait bool
	var waitTimeout time.Duration
	upload := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file for indexing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()

			status, err := a.client.UploadDocument(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				if api.IsQuotaLimit(err) {
					return fmt.Errorf("%s", api.Detail(err, "Document limit reached for current plan."))
				}
				return fmt.Errorf("upload failed: %w", err)
			}
			ui.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Uploaded %s (%s, %s)", filepath.Base(args[0]), status.ID, status.Status))

			if !wait {
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), waitTimeout)
			defer cancel()
			var final models.DocumentStatus
			err = ui.ShowProgress(ctx, cmd.ErrOrStderr(), "Indexing "+filepath.Base(args[0]), func() error {
				var err error
				final, err = a.waitIndexed(ctx, status.ID)
				return err
			})
			if err != nil {
				return fmt.Errorf("document %s is still %s: %w", status.ID, status.Status, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", final.ID, final.Status)
			return nil
		},
	}
	upload.Flags().BoolVar(&wait, "wait", false, "Wait until indexing finishes")
	upload.Flags().DurationVar(&waitTimeout, "wait-timeout", 5*time.Minute, "Give up waiting after this long")

	status := &cobra.Command{
		Use:   "status <id>",
		Short: "Show the indexing status of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			st, err := a.client.DocumentStatus(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to load status of %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", st.ID, st.Status)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a document",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			ok, err := a.confirm(cmd, fmt.Sprintf("Delete document %s?", args[0]))
			if err != nil {
				return err
			}
			if !ok {
				ui.PrintInfo(cmd.ErrOrStderr(), "Cancelled")
				return nil
			}
			if err := a.client.DeleteDocument(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete document: %w", err)
			}
			ui.PrintSuccess(cmd.OutOrStdout(), "Document deleted")
			return nil
		},
	}

	cmd.AddCommand(list, upload, status, remove)
	return cmd
}

// waitIndexed polls until the document leaves the pending states
func (a *app) waitIndexed(ctx context.Context, id string) (models.DocumentStatus, error) {
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()
	for {
		st, err := a.client.DocumentStatus(ctx, id)
		if err != nil {
			return st, err
		}
		if !st.Pending() {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ticker.C:
		}
	}
}
