package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dastanaron/bookmarktree/internal/config"
	"github.com/dastanaron/bookmarktree/internal/remote"
	"github.com/dastanaron/bookmarktree/internal/remote/httpstore"
	"github.com/dastanaron/bookmarktree/internal/remote/push"
	"github.com/dastanaron/bookmarktree/internal/repository"
	"github.com/dastanaron/bookmarktree/internal/search"
	"github.com/dastanaron/bookmarktree/internal/ui"
)

// cli carries what every subcommand shares once flags are parsed.
type cli struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	bindErr error
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}
	root := &cobra.Command{
		Use:   "bookmarks-cli",
		Short: "Terminal bookmark manager",
		Long: `Browse and edit a bookmark tree in the terminal.

Without --server the tree lives in a local SQLite file. With --server the
TUI edits a remote tree served by "bookmarks-cli serve" and follows changes
made elsewhere.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTUI(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default: <user config dir>/bookmarks/config.yaml)")
	flags.String("db", "", "path to database file (default: ~/.bookmarks/bookmarks.db)")
	flags.String("server", "", "bookmark server URL; empty uses the local database")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	c.bind("db_path", flags.Lookup("db"))
	c.bind("server_url", flags.Lookup("server"))
	c.bind("log_level", flags.Lookup("log-level"))

	root.AddCommand(
		newTUICmd(c),
		newServeCmd(c),
		newImportCmd(c),
		newExportCmd(c),
		newClearDoublesCmd(c),
	)
	return root
}

func (c *cli) load() error {
	if c.bindErr != nil {
		return c.bindErr
	}
	// A missing .env is fine.
	_ = godotenv.Load()
	cfg, err := config.Load(c.v, c.cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	c.cfg = cfg
	return nil
}

// bind ties a config key to a flag. Failures surface when a command runs.
func (c *cli) bind(key string, flag *pflag.Flag) {
	if err := c.v.BindPFlag(key, flag); err != nil {
		c.bindErr = errors.Join(c.bindErr, fmt.Errorf("binding %s: %w", key, err))
	}
}

func newTUICmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the interactive tree (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTUI(cmd.Context())
		},
	}
}

// openRepo opens the local database, creating its directory on first use.
func (c *cli) openRepo() (*repository.SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(c.cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	repo, err := repository.NewSQLiteRepository(c.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return repo, nil
}

func (c *cli) stderrLogger() (*logrus.Logger, error) {
	return config.NewLogger(c.cfg, os.Stderr)
}

// runTUI logs to a file because the terminal belongs to the UI.
func (c *cli) runTUI(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logFile, err := config.OpenLogFile(c.cfg, time.Now())
	if err != nil {
		return err
	}
	defer logFile.Close()
	log, err := config.NewLogger(c.cfg, logFile)
	if err != nil {
		return err
	}

	var (
		store    remote.Store
		notifier remote.Notifier
	)
	if c.cfg.Remote() {
		store = httpstore.New(c.cfg.ServerURL, c.cfg.RequestTimeout, log)
		if notifier, err = push.New(c.cfg.ServerURL, log); err != nil {
			return err
		}
		log.WithField("server_url", c.cfg.ServerURL).Info("starting in remote mode")
	} else {
		repo, err := c.openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()
		store = repo
		log.WithField("db_path", c.cfg.DBPath).Info("starting in local mode")
	}

	app := ui.New(ctx, store, ui.Options{
		Log: log,
		Search: search.Options{
			Debounce:  c.cfg.SearchDebounce,
			MinLength: c.cfg.SearchMinLength,
		},
		NoticeDuration: c.cfg.NoticeDuration,
		Notifier:       notifier,
	})
	return app.Run()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
