package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/taxilian/envlog/internal/auth"
	"github.com/taxilian/envlog/internal/db"
	"github.com/taxilian/envlog/internal/history"
	"github.com/taxilian/envlog/internal/records"
	"github.com/taxilian/envlog/internal/remote"
)

var version = "dev"

func init() {
	// Try to get version from build info if not set via ldflags
	if version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
	}
	rootCmd.Version = version
}

// scriptURLKey is the KV key holding the endpoint URL.
const scriptURLKey = "scriptUrl"

var (
	flagVerbose bool
	flagPIN     string
	flagJSON    bool
)

func openDB() (*db.DB, error) {
	path, err := db.DefaultPath()
	if err != nil {
		return nil, err
	}
	database, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w (try running 'envlog init' first)", err)
	}
	if err := database.Init(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return database, nil
}

// loadConfig reads the project config. With ENVLOG_DB pointing outside a
// project, config.json is looked for next to the database.
func loadConfig() (*db.Config, error) {
	_, err := db.FindProject()
	if envPath := os.Getenv(db.EnvDB); errors.Is(err, db.ErrNoProject) && envPath != "" {
		return db.LoadConfigAt(filepath.Dir(envPath))
	}
	if err != nil {
		return nil, err
	}
	return db.LoadConfig()
}

// scriptURL returns the endpoint URL: ENVLOG_SCRIPT_URL, else the stored one.
func scriptURL(database *db.DB) (string, error) {
	if u := strings.TrimSpace(os.Getenv("ENVLOG_SCRIPT_URL")); u != "" {
		return u, nil
	}
	u, ok, err := database.Get(scriptURLKey)
	if err != nil {
		return "", fmt.Errorf("failed to read script URL: %w", err)
	}
	if !ok || strings.TrimSpace(u) == "" {
		return "", remote.ErrNoScriptURL
	}
	return u, nil
}

// app is everything a command needs, opened once per invocation.
type app struct {
	db      *db.DB
	config  *db.Config
	client  *remote.Client // nil when opened without the endpoint
	history *history.Manager
	svc     *records.Service
	guard   *auth.Guard
}

func (a *app) Close() {
	_ = a.db.Close()
}

// openApp opens the database, config and change history. When needRemote
// is set the endpoint client and record service are built too, and a
// missing script URL is an error.
func openApp(needRemote bool) (*app, error) {
	database, err := openDB()
	if err != nil {
		return nil, err
	}
	config, err := loadConfig()
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	a := &app{db: database, config: config, guard: auth.NewGuard(database)}

	if needRemote {
		u, err := scriptURL(database)
		if err != nil {
			_ = database.Close()
			return nil, err
		}
		opts := []remote.Option{
			remote.WithTimeout(config.Timeout()),
			remote.WithRateLimit(config.RateLimit, config.RateBurst),
		}
		if flagVerbose {
			opts = append(opts, remote.WithTrace(os.Stderr))
		}
		a.client, err = remote.New(u, opts...)
		if err != nil {
			_ = database.Close()
			return nil, err
		}
	}

	var store history.RemoteStore
	if a.client != nil {
		store = a.client
	}
	a.history = history.New(store, database, history.WithCallTimeout(config.Timeout()))
	if err := a.history.Load(); err != nil {
		if !errors.Is(err, history.ErrCorruptHistory) {
			_ = database.Close()
			return nil, err
		}
		log.Printf("warning: %v (starting with an empty history)", err)
	}
	if a.client != nil {
		a.svc = records.New(a.client, a.history, database)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:     "envlog",
	Short:   "Temperature and humidity log with undo/redo",
	Version: version,
	Long: `envlog records temperature and humidity readings on a spreadsheet
endpoint and keeps a local undo/redo history of every change.

Run 'envlog init' in a project directory, then point it at the endpoint:
  envlog init
  envlog config set-url https://script.google.com/macros/s/<id>/exec`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the envlog database",
	Long:  "Creates the .envlog directory in the current directory with a default config and the database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := db.InitProject()
		if err != nil {
			return err
		}
		database, err := db.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()

		if err := database.Init(); err != nil {
			return err
		}
		fmt.Printf("Initialized envlog database at %s\n", path)
		fmt.Println("\nNext: run 'envlog config set-url <url>' with the web app URL")
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()
		config, err := loadConfig()
		if err != nil {
			return err
		}

		u, err := scriptURL(database)
		switch {
		case errors.Is(err, remote.ErrNoScriptURL):
			u = "<not set>"
		case err != nil:
			return err
		}
		fmt.Printf("%-24s %s\n", "script_url", u)
		for _, f := range db.GetConfigFields(config) {
			fmt.Printf("%-24s %s\n", f.Path, db.FormatConfigValue(f.Value))
		}
		return nil
	},
}

var configSetURLCmd = &cobra.Command{
	Use:   "set-url <url>",
	Short: "Set the endpoint URL",
	Long: `Store the web app URL of the spreadsheet script.

The URL must point to script.google.com and end in /exec.
ENVLOG_SCRIPT_URL overrides the stored value.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u := strings.TrimSpace(args[0])
		if err := remote.ValidateScriptURL(u); err != nil {
			return err
		}
		database, err := openDB()
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()

		if err := database.Set(scriptURLKey, u); err != nil {
			return fmt.Errorf("failed to save script URL: %w", err)
		}
		fmt.Println("Script URL saved")
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Long: `Set a value in .envlog/config.json.

Examples:
  envlog config set temperature.max 26
  envlog config set required_monthly 60
  envlog config set operator "Ana"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := db.LoadConfig()
		if err != nil {
			return err
		}
		if err := db.SetConfigField(config, args[0], args[1]); err != nil {
			return err
		}
		if err := db.SaveConfig(config); err != nil {
			return err
		}
		value, err := db.GetConfigField(config, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", args[0], db.FormatConfigValue(value))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Trace endpoint requests to stderr")

	configCmd.AddCommand(configShowCmd, configSetURLCmd, configSetCmd)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
