package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/termwave/termwave/internal/chat"
	"github.com/termwave/termwave/internal/config"
	"github.com/termwave/termwave/internal/logging"
	"github.com/termwave/termwave/internal/provider"
	"github.com/termwave/termwave/internal/session"
)

var (
	cfgFile      string
	providerFlag string
	dbFlag       string
	useTUI       bool
	debugFlag    bool

	// Package-level version info, set by Execute().
	appVersion string
	appCommit  string
	appDate    string
)

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "termwave",
		Short: "Terminal chat client",
		Long:  "termwave is a terminal chat client with pluggable providers and a local SQLite chat history.",
		// Running termwave with no subcommand starts chat mode.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Default TUI on when stdin and stdout are terminals and --tui was not explicitly set.
			if !cmd.Root().PersistentFlags().Changed("tui") &&
				term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())) {
				useTUI = true
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ~/.config/termwave/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&providerFlag, "provider", "p", "", "override provider")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "chat history database (default ~/.local/share/termwave/chat_history.db)")
	rootCmd.PersistentFlags().BoolVar(&useTUI, "tui", false, "use bubbletea TUI mode (default: auto-detect terminal)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "log at debug level")

	// Subcommands
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newVersionCmd(appVersion, appCommit, appDate))
	rootCmd.AddCommand(newInitCmd())
	return rootCmd
}

// displayVersion returns a formatted version string for the TUI welcome page,
// e.g. "v0.1.0 (abc1234)".
func displayVersion() string {
	v := "v" + appVersion
	if appCommit != "" && appCommit != "none" {
		v += " (" + appCommit + ")"
	}
	return v
}

// app bundles what every command needs: config, logger, store and the
// provider registry.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     *session.SQLiteStore
	providers *provider.Registry
}

// setup loads configuration, applying CLI flag overrides, then opens the
// logger and the chat store.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// CLI flags override config values
	if providerFlag != "" {
		cfg.DefaultProvider = providerFlag
	}
	if dbFlag != "" {
		cfg.Storage.DBPath = dbFlag
	}
	if debugFlag {
		cfg.Log.Level = "debug"
	}

	logger, err := logging.New(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	dbPath := cfg.Storage.DBPath
	if dbPath == "" {
		if dbPath, err = session.DefaultDBPath(); err != nil {
			logger.Sync()
			return nil, fmt.Errorf("session db path: %w", err)
		}
	}
	store, err := session.Open(ctx, dbPath)
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("open chat history: %w", err)
	}
	logger.Debug("store opened", zap.String("path", dbPath), zap.String("config", cfg.Path()))

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		providers: provider.DefaultRegistry(config.Endpoints(config.LoadProviderDefaults(cfg.Path()))),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// controller builds a chat.Controller with the configured default provider.
func (a *app) controller() (*chat.Controller, error) {
	name := a.cfg.DefaultProvider
	p, err := a.providers.New(name, a.cfg.ProviderSettings(name))
	if err != nil {
		if errors.Is(err, provider.ErrUnknownProvider) {
			return nil, fmt.Errorf("%w\nAvailable providers: %v", err, a.providers.Names())
		}
		return nil, err
	}
	a.logger.Info("provider ready", zap.String("provider", name))
	return chat.NewController(a.store, a.providers, p, a.logger), nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
