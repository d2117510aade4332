package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/taxilian/envlog/internal/auth"
	"github.com/taxilian/envlog/internal/db"
	"github.com/taxilian/envlog/internal/format"
	"github.com/taxilian/envlog/internal/server"
	"github.com/taxilian/envlog/internal/tui"
)

var (
	flagBackupQuiet bool
	flagServeAddr   string
	flagServeOrigin []string
)

var pinCmd = &cobra.Command{
	Use:   "pin",
	Short: "Manage the operator PIN",
	Long: `Manage the optional operator PIN.

When a PIN is set, migrate, restore-month, history clear and restore
require --pin. The PIN is stored hashed in the local database.`,
}

var pinSetCmd = &cobra.Command{
	Use:   "set <new-pin>",
	Short: "Set or change the operator PIN",
	Long: `Set the operator PIN (4 to 12 digits). Changing an existing PIN
requires the current one with --pin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.guard.Set(flagPIN, args[0]); err != nil {
			return err
		}
		fmt.Println("Operator PIN set")
		return nil
	},
}

var pinClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the operator PIN",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		enabled, err := a.guard.Enabled()
		if err != nil {
			return err
		}
		if !enabled {
			fmt.Println("No operator PIN set")
			return nil
		}
		if err := a.guard.Clear(flagPIN); err != nil {
			return err
		}
		fmt.Println("Operator PIN cleared")
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup [path]",
	Short: "Create a backup of the database",
	Long: `Create a backup of the envlog database.

Backups are stored in .envlog/backups/ by default with timestamped names.
The last 10 backups are kept; older ones are automatically pruned.

Optionally specify a custom path for the backup file.

Examples:
  envlog backup                    # Create backup in .envlog/backups/
  envlog backup ~/envlog.db        # Create backup at custom path
  envlog backup --quiet            # Silent backup (for cron)`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()

		var backupPath string
		if len(args) > 0 {
			backupPath = args[0]
			if _, err := database.Exec(`VACUUM INTO ?`, backupPath); err != nil {
				return fmt.Errorf("failed to create backup: %w", err)
			}
		} else {
			backupPath, err = database.Backup()
			if err != nil {
				return err
			}
		}

		if !flagBackupQuiet {
			fmt.Printf("Backup created: %s\n", backupPath)
		}
		return nil
	},
}

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List available backups",
	Long: `List all available database backups.

Shows backups in .envlog/backups/, newest first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := db.DefaultPath()
		if err != nil {
			return err
		}
		backups, err := db.ListBackups(path)
		if err != nil {
			return err
		}

		if len(backups) == 0 {
			fmt.Println("No backups found")
			return nil
		}

		fmt.Printf("%-40s  %10s  %s\n", "BACKUP", "SIZE", "CREATED")
		t := now()
		for _, b := range backups {
			fmt.Printf("%-40s  %10s  %s\n", b.Name, formatSize(b.Size), format.Age(b.ModTime, t))
		}
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <path>",
	Short: "Restore database from a backup",
	Long: `Restore the envlog database from a backup file.

This replaces the current database, including the change history, with
the backup. A backup of the current database is created first.
Requires --pin when an operator PIN is set.

Examples:
  envlog restore .envlog/backups/envlog-2024-01-09T12-00-00.000-1a2b3c4d.db
  envlog restore ~/envlog.db --pin 1234`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backupPath := args[0]
		if _, err := os.Stat(backupPath); err != nil {
			return fmt.Errorf("backup file not found: %w", err)
		}

		dbPath, err := db.DefaultPath()
		if err != nil {
			return err
		}

		database, err := openDB()
		if err != nil {
			// Nothing to protect or back up; just restore.
			fmt.Println("Note: Could not backup current database (may not exist)")
		} else {
			if err := auth.NewGuard(database).Require(flagPIN); err != nil {
				_ = database.Close()
				return err
			}
			preRestorePath, err := database.Backup()
			_ = database.Close()
			if err != nil {
				fmt.Printf("Warning: Could not backup current database: %v\n", err)
			} else {
				fmt.Printf("Current database backed up to: %s\n", preRestorePath)
			}
		}

		if err := db.Restore(backupPath, dbPath); err != nil {
			return err
		}

		fmt.Printf("Restored from: %s\n", backupPath)
		return nil
	},
}

var tuiCmd = &cobra.Command{
	Use:     "tui",
	Aliases: []string{"ui"},
	Short:   "Launch interactive terminal UI",
	Long: `Launch an interactive terminal UI over the readings.

Navigation:
  j/k or arrows    Move cursor up/down
  g/G or home/end  Jump to first/last reading

Actions:
  d         Delete the selected reading (asks to confirm)
  u         Undo the most recent change
  U/ctrl+r  Redo the most recently undone change
  H         Toggle the history pane
  r         Refresh from the endpoint

Filtering:
  /       Fuzzy search by date, time, shift, person or notes
  esc     Clear the search, or quit if none set

The list refreshes on its own every refresh_seconds (config).
Press q to quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		return tui.Run(a.svc, *a.config)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API for a browser front end",
	Long: `Serve the record service over HTTP so a browser front end shares the
same change history as the CLI.

Routes:
  GET    /api/records         list readings (oldest first)
  POST   /api/records         create a reading
  PUT    /api/records/{id}    update a reading
  DELETE /api/records/{id}    delete a reading
  POST   /api/undo            undo the most recent change
  POST   /api/redo            redo the most recently undone change
  GET    /api/history         undo and redo stacks
  GET    /api/dashboard       endpoint aggregates

Examples:
  envlog serve
  envlog serve --addr 127.0.0.1:9000 --origin http://localhost:5173`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		logger := log.New(os.Stderr, "", log.LstdFlags)
		h := server.New(a.svc, server.Options{
			AllowedOrigins: flagServeOrigin,
			Logger:         logger,
		})
		return server.Serve(cmd.Context(), flagServeAddr, h, logger)
	},
}

func init() {
	pinSetCmd.Flags().StringVar(&flagPIN, "pin", "", "Current operator PIN")
	pinClearCmd.Flags().StringVar(&flagPIN, "pin", "", "Current operator PIN")
	pinCmd.AddCommand(pinSetCmd, pinClearCmd)

	backupCmd.Flags().BoolVarP(&flagBackupQuiet, "quiet", "q", false, "Suppress output")
	restoreCmd.Flags().StringVar(&flagPIN, "pin", "", "Operator PIN")

	serveCmd.Flags().StringVar(&flagServeAddr, "addr", server.DefaultAddr, "Listen address")
	serveCmd.Flags().StringSliceVar(&flagServeOrigin, "origin", nil, "Allowed CORS origin (repeatable, default any)")

	rootCmd.AddCommand(pinCmd, backupCmd, backupsCmd, restoreCmd, tuiCmd, serveCmd)
}
