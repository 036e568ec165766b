package commands

import (
	"context"
	"database/sql"
	"fmt"

	"aipreview/internal/database"
	"aipreview/internal/observability"
	contextutils "aipreview/internal/utils"

	"github.com/spf13/cobra"
)

// DatabaseCommands returns the database management commands
func DatabaseCommands(dbManager *database.Manager, logger *observability.Logger, db *sql.DB) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the AIP review service.

Available commands:
  stats   - Show database statistics
  migrate - Apply the schema and any pending migrations`,
	}

	dbCmd.AddCommand(statsCmd(logger, db))
	dbCmd.AddCommand(migrateCmd(dbManager, logger, db))

	return dbCmd
}

// statsCmd shows row counts for the main tables
func statsCmd(logger *observability.Logger, db *sql.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			logger.Info(ctx, "Showing database statistics", map[string]interface{}{"database": getDatabaseInfo(db)})

			tables := []string{"submissions", "review_actions", "feedback", "activity_log"}
			for _, table := range tables {
				var count int
				if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
					return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to count %s: %v", table, err)
				}
				fmt.Printf("%-16s %d\n", table, count)
			}
			return nil
		},
	}
}

// migrateCmd applies schema.sql and pending golang-migrate migrations
func migrateCmd(dbManager *database.Manager, logger *observability.Logger, db *sql.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema and any pending migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			if err := dbManager.RunMigrations(db); err != nil {
				logger.Error(ctx, "Migration failed", err, nil)
				return err
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}
