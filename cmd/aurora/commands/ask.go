package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/strrl/aurora-cli/internal/api"
	"github.com/strrl/aurora-cli/internal/chat"
	"github.com/strrl/aurora-cli/internal/transcript"
	"github.com/strrl/aurora-cli/internal/ui"
	"github.com/strrl/aurora-cli/pkg/models"
)

func newAskCommand(a *app) *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Ask the AI assistant about your documents",
		Long: `Ask the AI assistant a question. The answer is streamed to stdout.

Without a message, ask reads one question per line from stdin until EOF.
Type /new to start a new conversation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.requireSession(cmd.Context())
			if err != nil {
				return err
			}

			archive, err := a.archive()
			if err != nil {
				ui.PrintWarning(cmd.ErrOrStderr(), "transcripts will not be archived: "+err.Error())
			}

			printer := newStreamPrinter(cmd.OutOrStdout())
			var notices noticeLog
			sess := chat.NewSession(a.client, chat.Options{
				HistoryEnabled: snap.Plan().Allows(models.FeatureHistory),
				History:        a.client,
				Notifier:       &notices,
				Archiver:       archiveOrNil(archive),
				OnChange:       printer.onChange,
			})
			if conversationID != "" {
				if err := sess.SelectConversation(conversationID); err != nil {
					return err
				}
			}

			if len(args) > 0 {
				err := sess.Send(cmd.Context(), strings.Join(args, " "))
				printer.finish()
				if err != nil {
					if n, ok := notices.last(); ok {
						return errors.New(n.Message)
					}
					return err
				}
				return nil
			}
			return a.repl(cmd, sess, printer, &notices)
		},
	}

	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Continue a past conversation (Pro+)")
	return cmd
}

// repl asks one question per input line
func (a *app) repl(cmd *cobra.Command, sess *chat.Session, printer *streamPrinter, notices *noticeLog) error {
	errOut := cmd.ErrOrStderr()
	interactive := ui.IsTerminal(errOut)
	for {
		if interactive {
			fmt.Fprint(errOut, ui.AccentStyle.Render("> "))
		}
		line, err := a.in.ReadString('\n')
		text := strings.TrimSpace(line)

		switch {
		case text == "/new":
			if err := sess.NewConversation(); err != nil {
				return err
			}
			ui.PrintInfo(errOut, "Started a new conversation")
		case text != "":
			sendErr := sess.Send(cmd.Context(), text)
			printer.finish()
			if sendErr != nil {
				if n, ok := notices.last(); ok {
					ui.PrintError(errOut, n.Message)
				} else if !errors.Is(sendErr, chat.ErrEmptyInput) {
					ui.PrintError(errOut, sendErr.Error())
				}
				if cmd.Context().Err() != nil {
					return cmd.Context().Err()
				}
			}
			if sess.State().AtLimit {
				return nil
			}
		}

		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
	}
}

// streamPrinter writes the growing assistant message as deltas
type streamPrinter struct {
	w io.Writer

	mu      sync.Mutex
	index   int
	printed int
	open    bool
}

func newStreamPrinter(w io.Writer) *streamPrinter {
	return &streamPrinter{w: w, index: -1}
}

func (p *streamPrinter) onChange(st chat.State) {
	n := len(st.Messages)
	if n == 0 || st.Messages[n-1].Role != models.RoleAssistant {
		return
	}
	content := st.Messages[n-1].Content

	p.mu.Lock()
	defer p.mu.Unlock()
	if n-1 != p.index {
		p.index = n - 1
		p.printed = 0
	}
	if len(content) > p.printed {
		fmt.Fprint(p.w, content[p.printed:])
		p.printed = len(content)
		p.open = true
	}
}

// finish ends the current answer line
func (p *streamPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		fmt.Fprintln(p.w)
		p.open = false
	}
}

// noticeLog keeps the latest error notice of a send
type noticeLog struct {
	mu     sync.Mutex
	notice *chat.Notice
}

func (l *noticeLog) Notify(n chat.Notice) {
	if n.Level != chat.NoticeError {
		return
	}
	l.mu.Lock()
	l.notice = &n
	l.mu.Unlock()
}

// last returns and forgets the latest notice
func (l *noticeLog) last() (chat.Notice, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.notice == nil {
		return chat.Notice{}, false
	}
	n := *l.notice
	l.notice = nil
	return n, true
}

func archiveOrNil(a *transcript.Archive) chat.Archiver {
	if a == nil {
		return nil
	}
	return a
}

func newConversationsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "conversations",
		Short: "List past assistant conversations (Pro+)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.requireSession(cmd.Context())
			if err != nil {
				return err
			}
			if !snap.Plan().Allows(models.FeatureHistory) {
				return chat.ErrHistoryUnavailable
			}
			convs, err := a.client.Conversations(cmd.Context())
			if err != nil {
				if api.IsForbidden(err) {
					return chat.ErrHistoryUnavailable
				}
				return fmt.Errorf("failed to load conversations: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(convs) == 0 {
				fmt.Fprintln(out, "No conversations yet")
				return nil
			}
			t := ui.NewTable(out, "ID", "TITLE", "UPDATED")
			for _, c := range convs {
				t.Row(c.ID, ui.Truncate(c.Title, 50), ui.Ago(c.UpdatedAt))
			}
			if err := t.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(out, ui.MutedStyle.Render("Continue one with `aurora ask --conversation <id>`"))
			return nil
		},
	}
}
