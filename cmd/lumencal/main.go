// Command lumencal serves and inspects a Lumen calendar.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cyp0633/lumencal/calendar/layout"
	"github.com/cyp0633/lumencal/calendar/recurrence"
	"github.com/cyp0633/lumencal/calendar/storage/memory"
	"github.com/cyp0633/lumencal/calendar/view"
	"github.com/cyp0633/lumencal/internal/config"
	"github.com/spf13/cobra"
)

const (
	defaultConfigPath = "lumencal.yaml"
	defaultEnvPath    = ".env"
)

type app struct {
	configPath string
	envPath    string

	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "lumencal",
		Short:        "Calendar views, live activity and iCalendar export",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath, "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&a.envPath, "env", defaultEnvPath, "path to an optional .env file")

	root.AddCommand(newServeCommand(a), newAgendaCommand(a), newExportCommand(a))
	return root
}

func (a *app) load(logOut io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ApplyEnv(a.envPath); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	a.cfg = cfg
	a.logger = newLogger(logOut, cfg.Log)
	return nil
}

func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(lc.Level)}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(value) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// engine builds the recurrence engine described by the configuration.
func (a *app) engine() (*recurrence.Engine, error) {
	rc := a.cfg.Recurrence
	policy, err := recurrence.ParseMonthPolicy(rc.MonthPolicy)
	if err != nil {
		return nil, err
	}
	return recurrence.NewEngineWithConfig(recurrence.EngineConfig{
		CacheEnabled: rc.CacheEnabled,
		CacheConfig: recurrence.CacheConfig{
			TTL:        rc.CacheTTL,
			MaxEntries: rc.CacheMaxEntries,
		},
		MaxIterations: rc.MaxIterations,
		MonthPolicy:   policy,
	}, recurrence.WithLogger(a.logger)), nil
}

// viewOptions carries the view settings of the configuration.
func (a *app) viewOptions() ([]view.Option, error) {
	weekStart, err := view.ParseWeekday(a.cfg.WeekStart)
	if err != nil {
		return nil, err
	}
	mode, err := view.ParseMode(a.cfg.DefaultView)
	if err != nil {
		return nil, err
	}
	return []view.Option{
		view.WithWeekStart(weekStart),
		view.WithMode(mode),
		view.WithSnapMinutes(a.cfg.SnapMinutes),
		view.WithStoreTimeout(a.cfg.StoreTimeout),
		view.WithLayout(layout.Options{MinEventMinutes: a.cfg.MinEventMinutes}),
	}, nil
}

// seed imports the configured seed file, if any, into store.
func (a *app) seed(cmd *cobra.Command, store *memory.Store, path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	n, err := store.Import(cmd.Context(), f)
	if err != nil && n == 0 {
		return fmt.Errorf("import %s: %w", path, err)
	}
	if err != nil {
		a.logger.Warn("some seed events were skipped", "file", path, "error", err)
	}
	a.logger.Info("seed file imported", "file", path, "events", n)
	return nil
}
