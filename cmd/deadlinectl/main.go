package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/deadline-engine/internal/app"
	"github.com/noah-isme/deadline-engine/internal/repository"
	"github.com/noah-isme/deadline-engine/pkg/config"
	"github.com/noah-isme/deadline-engine/pkg/database"
	"github.com/noah-isme/deadline-engine/pkg/logger"
)

var (
	cfg  *config.Config
	logr *zap.Logger
	db   *sqlx.DB

	eventsLimit int
	runTimeout  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "deadlinectl",
	Short: "Operator tooling for the deadline engine",
	Long:  `Runs one-shot passes of the engine's periodic tasks and schema migrations against the configured database.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logr, err = logger.New(cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		db, err = database.NewPostgres(cfg.Database)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			_ = db.Close()
		}
		if logr != nil {
			_ = logr.Sync()
		}
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return database.RunMigrations(db.DB, logr)
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one period scheduler pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
		defer cancel()
		report := app.New(cfg, logr, db, nil, app.WithInlineNotifications()).Scheduler.Tick(ctx)
		return printJSON(report)
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one calendar reconciliation pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
		defer cancel()
		report, err := app.New(cfg, logr, db, nil, app.WithInlineNotifications()).Reconciler.Reconcile(ctx)
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the most recent outbox events",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := repository.NewNotificationRepository(db).ListRecent(cmd.Context(), eventsLimit)
		if err != nil {
			return err
		}
		return printJSON(records)
	},
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&runTimeout, "timeout", 2*time.Minute, "deadline for a single pass")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 20, "number of events to show")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tickCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(eventsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
