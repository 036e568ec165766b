// Package main provides the main entry point for the AIP review admin CLI tool.
package main

import (
	"context"
	"fmt"
	"os"

	"aipreview/cmd/adm/commands"
	"aipreview/internal/config"
	"aipreview/internal/database"
	"aipreview/internal/observability"
	"aipreview/internal/services"

	"github.com/spf13/cobra"
)

func main() {
	ctx := context.Background()

	// Set default config file if not already set
	if os.Getenv("AIPREVIEW_CONFIG_FILE") == "" {
		defaultPaths := []string{
			"../config.yaml",
			"../../config.yaml",
			"config.yaml",
		}

		for _, path := range defaultPaths {
			if _, err := os.Stat(path); err == nil {
				if err := os.Setenv("AIPREVIEW_CONFIG_FILE", path); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to set AIPREVIEW_CONFIG_FILE environment variable: %v\n", err)
					os.Exit(1)
				}
				break
			}
		}
	}

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Quiet logging and no exporters for the admin tool
	cfg.Server.LogLevel = "error"
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableLogging = false

	_, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "aip-review-adm")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}

	// Initialize database connection (no migrations for admin tool)
	dbManager := database.NewManager(logger)
	db, err := dbManager.InitDBWithoutMigrations(cfg.Database)
	if err != nil {
		logger.Error(ctx, "Failed to connect to database", err, map[string]interface{}{"db_url": cfg.Database.URL})
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Warning: failed to close database connection", map[string]interface{}{"error": err.Error()})
		}
	}()

	// Postgres stores and services
	submissionStore := database.NewSubmissionStore(db, logger)
	reviewActionStore := database.NewReviewActionStore(db, logger)
	activityStore := database.NewActivityLogStore(db, logger)
	profileStore := database.NewProfileStore(db, logger)
	directoryStore := database.NewDirectoryStore(db, logger)

	activityService := services.NewActivityService(activityStore, profileStore, directoryStore, cfg.Audit, logger)
	caseService := services.NewCaseService(submissionStore, reviewActionStore, activityService, logger)

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "AIP Review Administration Tool",
		Long: `AIP Review Administration Tool

A CLI tool for administering the AIP review service.
Provides commands for the administrative case track, audit inspection,
and database operations.`,

		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.CaseCommands(caseService, logger))
	rootCmd.AddCommand(commands.ActivityCommands(activityService, logger))
	rootCmd.AddCommand(commands.DatabaseCommands(dbManager, logger, db))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
