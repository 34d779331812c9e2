package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/strrl/aurora-cli/internal/transcript"
	"github.com/strrl/aurora-cli/internal/ui"
)

// newHistoryCommand browses the transcripts archived on this machine
func newHistoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse assistant transcripts archived locally",
		Long: `Browse assistant transcripts archived on this machine.

Transcripts are stored as JSONL under <data_dir>/transcripts when
archive_transcripts is enabled, and do not need a connection to the backend.`,
	}

	var grep string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List archived transcripts, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := transcript.NewArchive(a.cfg.TranscriptDir())
			if err != nil {
				return err
			}
			summaries, err := archive.List(cmd.Context(), grep, limit)
			if err != nil {
				return fmt.Errorf("failed to list transcripts: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No transcripts found")
				return nil
			}
			t := ui.NewTable(out, "ID", "FIRST QUESTION", "MESSAGES", "UPDATED")
			for _, s := range summaries {
				t.Row(s.ID, ui.Truncate(s.Title, 50), fmt.Sprint(s.MessageCount), ui.Ago(s.UpdatedAt))
			}
			return t.Flush()
		},
	}
	list.Flags().StringVarP(&grep, "grep", "g", "", "Only transcripts with a message containing this text")
	list.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of transcripts")

	var format, output string
	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print or export one transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exporter, err := transcript.NewExporter(format)
			if err != nil {
				return err
			}
			archive, err := transcript.NewArchive(a.cfg.TranscriptDir())
			if err != nil {
				return err
			}
			t, err := archive.Get(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, transcript.ErrNotFound) {
					return fmt.Errorf("transcript %s not found", args[0])
				}
				return fmt.Errorf("failed to load transcript: %w", err)
			}

			if output == "" {
				return exporter.Export(t, cmd.OutOrStdout())
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			if err := exporter.Export(t, f); err != nil {
				f.Close()
				return fmt.Errorf("failed to export transcript: %w", err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			ui.PrintSuccess(cmd.ErrOrStderr(), fmt.Sprintf("Exported %d messages to %s", t.MessageCount, output))
			return nil
		},
	}
	show.Flags().StringVarP(&format, "format", "f", "md", "Output format: md, json or yaml")
	show.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")

	remove := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an archived transcript",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := transcript.NewArchive(a.cfg.TranscriptDir())
			if err != nil {
				return err
			}
			ok, err := a.confirm(cmd, fmt.Sprintf("Delete transcript %s?", args[0]))
			if err != nil || !ok {
				return err
			}
			if err := archive.Delete(args[0]); err != nil {
				if errors.Is(err, transcript.ErrNotFound) {
					return fmt.Errorf("transcript %s not found", args[0])
				}
				return fmt.Errorf("failed to delete transcript: %w", err)
			}
			ui.PrintSuccess(cmd.OutOrStdout(), "Transcript deleted")
			return nil
		},
	}

	cmd.AddCommand(list, show, remove)
	return cmd
}
