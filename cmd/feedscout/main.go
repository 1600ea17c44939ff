package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pders01/feedscout/internal/config"
	"github.com/pders01/feedscout/internal/debuglog"
	"github.com/pders01/feedscout/internal/scout"
	"github.com/pders01/feedscout/internal/storage"
	"github.com/pders01/feedscout/internal/tui"
)

// Version is the version of the application, set at build time
var Version = "dev"

var (
	configPath string
	dbPath     string
	logLevel   string
	logFile    string
	quiet      bool
	jsonOutput bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "feedscout",
	Short: "Validate, discover and deduplicate RSS/Atom feeds",
	Long: `feedscout resolves any address to a subscribable feed: it validates feed
addresses directly or through relays, discovers feeds on ordinary websites,
and finds duplicates in a feed collection.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		debuglog.Close()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to configuration file")
	flags.StringVar(&dbPath, "db", "", "Path to database file (overrides config)")
	flags.StringVar(&logLevel, "log-level", "", "Log level: off, error, warn, info, debug (overrides config)")
	flags.StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Skip banner and decorations")
	flags.BoolVar(&jsonOutput, "json", false, "Print results as JSON")

	rootCmd.AddCommand(
		validateCmd,
		discoverCmd,
		addCmd,
		listCmd,
		removeCmd,
		dedupeCmd,
		serveCmd,
		configGenCmd,
		versionCmd,
	)
}

// setup loads configuration and logging for every command except those
// that must work without a readable config.
func setup(cmd *cobra.Command, _ []string) error {
	if cmd == versionCmd || cmd == configGenCmd {
		return nil
	}

	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		loaded.Database.Path = dbPath
	}
	if logLevel != "" {
		loaded.Log.Level = logLevel
	}
	if logFile != "" {
		loaded.Log.File = logFile
	}
	cfg = loaded

	level := debuglog.ParseLogLevel(cfg.Log.Level)
	if cfg.Log.File != "" {
		return debuglog.Setup(level, cfg.Log.File)
	}
	debuglog.SetupWriter(level, cmd.ErrOrStderr())
	return nil
}

func newService() *scout.Service {
	return scout.New(cfg)
}

func openStore() (*storage.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	store, err := storage.NewStore(cfg.Database.Path, cfg.Database.Timeout)
	if err != nil {
		return nil, fmt.Errorf("opening collection: %w", err)
	}
	return store, nil
}

func showBanner(cmd *cobra.Command) {
	if quiet || jsonOutput {
		return
	}
	tui.ShowBanner(cmd.ErrOrStderr(), Version)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, tui.StatusErrorStyle.Render("Error: "+err.Error()))
		stop()
		os.Exit(1)
	}
}
