package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/strrl/aurora-cli/internal/api"
	"github.com/strrl/aurora-cli/internal/config"
	"github.com/strrl/aurora-cli/internal/credentials"
	"github.com/strrl/aurora-cli/internal/logger"
	"github.com/strrl/aurora-cli/internal/session"
	"github.com/strrl/aurora-cli/internal/transcript"
	"github.com/strrl/aurora-cli/internal/tui"
	"github.com/strrl/aurora-cli/internal/ui"
)

// app carries the state shared by every command of one invocation.
// Everything past the config is opened on first use.
type app struct {
	configPath string
	apiURL     string
	verbose    bool
	yes        bool

	cfg      config.Config
	in       *bufio.Reader
	store    *credentials.SQLiteStore
	client   *api.Client
	sessions *session.Manager
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "aurora",
		Short: "Aurora Workspace from the terminal",
		Long: `aurora is a client for Aurora Workspace: chat with the AI assistant over your
documents, manage the team, billing and settings, and browse the audit log.

Run without a subcommand to open the interactive workspace.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.SetVerbose(a.verbose)
			logger.SetOutput(cmd.ErrOrStderr())
			a.in = bufio.NewReader(cmd.InOrStdin())
			return a.loadConfig()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
		RunE: a.runTUI,
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&a.configPath, "config", "", "Config file (default ~/.config/aurora/config.yaml)")
	flags.StringVar(&a.apiURL, "api-url", "", "Backend base URL, overrides the config file and environment")
	flags.BoolVarP(&a.yes, "yes", "y", false, "Do not ask for confirmation")

	rootCmd.AddCommand(
		newLoginCommand(a),
		newRegisterCommand(a),
		newLogoutCommand(a),
		newWhoamiCommand(a),
		newPasswordResetCommand(a),
		newUsageCommand(a),
		newAskCommand(a),
		newConversationsCommand(a),
		newDocumentsCommand(a),
		newTeamCommand(a),
		newBillingCommand(a),
		newSettingsCommand(a),
		newAuditCommand(a),
		newHistoryCommand(a),
		newConfigCommand(a),
	)

	return rootCmd
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) loadConfig() error {
	path := a.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			logger.LogDebug("no default config path", "err", err)
		}
		path = p
	}
	a.configPath = path

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.APIBaseURL = a.apiURL
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg
	logger.LogDebug("config loaded", "path", path, "api", cfg.APIBaseURL, "data_dir", cfg.DataDir)
	return nil
}

// open creates the credentials store, API client and session manager
func (a *app) open() error {
	if a.client != nil {
		return nil
	}

	store, err := credentials.OpenSQLite(a.cfg.CredentialsPath())
	if err != nil {
		return fmt.Errorf("failed to open credentials: %w", err)
	}

	client, err := api.New(api.Options{
		BaseURL:     a.cfg.APIBaseURL,
		Credentials: store,
		Timeout:     a.cfg.RequestTimeout,
	})
	if err != nil {
		store.Close()
		return err
	}

	a.store = store
	a.client = client
	a.sessions = session.NewManager(client, store)
	client.SetAuthExpiredHook(a.sessions.Expire)
	return nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.LogWarn("failed to close credentials store", "err", err)
		}
		a.store = nil
	}
	a.client = nil
	a.sessions = nil
}

// requireSession loads the identity behind the stored tokens and fails
// unless the guard lets protected content through
func (a *app) requireSession(ctx context.Context) (session.Snapshot, error) {
	if err := a.open(); err != nil {
		return session.Snapshot{}, err
	}
	snap := a.sessions.Load(ctx)
	if session.Guard(snap) != session.Allow {
		return snap, session.ErrNotLoggedIn
	}
	return snap, nil
}

// archive returns the transcript archive, or nil when archiving is off
func (a *app) archive() (*transcript.Archive, error) {
	if !a.cfg.ArchiveTranscripts {
		return nil, nil
	}
	return transcript.NewArchive(a.cfg.TranscriptDir())
}

// confirm asks before a destructive action unless --yes was given
func (a *app) confirm(cmd *cobra.Command, prompt string) (bool, error) {
	if a.yes {
		return true, nil
	}
	return ui.Confirm(a.in, cmd.ErrOrStderr(), prompt)
}

// prompt returns value, or asks for it on stdin when it is empty
func (a *app) prompt(cmd *cobra.Command, value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	v, err := ui.Prompt(a.in, cmd.ErrOrStderr(), label)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", fmt.Errorf("%s is required", label)
	}
	return v, nil
}

func (a *app) runTUI(cmd *cobra.Command, args []string) error {
	if err := a.open(); err != nil {
		return err
	}

	logPath := filepath.Join(a.cfg.DataDir, "aurora.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		logger.LogWarn("failed to open log file, logging disabled while the UI runs", "path", logPath, "err", err)
		logger.SetOutput(io.Discard)
	} else {
		defer logFile.Close()
		logger.SetOutput(logFile)
	}
	defer logger.SetOutput(cmd.ErrOrStderr())

	archive, err := a.archive()
	if err != nil {
		logger.LogWarn("transcript archive disabled", "err", err)
	}

	err = tui.Run(cmd.Context(), tui.Deps{
		Client:   a.client,
		Sessions: a.sessions,
		Archive:  archiveOrNil(archive),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
