package commands

import (
	"context"
	"fmt"

	"aipreview/internal/observability"
	"aipreview/internal/services"
	contextutils "aipreview/internal/utils"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// ActivityCommands returns the audit inspection commands
func ActivityCommands(activityService *services.ActivityService, logger *observability.Logger) *cobra.Command {
	activityCmd := &cobra.Command{
		Use:   "activity",
		Short: "Audit log inspection commands",
		Long: `Audit log inspection commands for the AIP review service.

Available commands:
  history - Show the deduplicated audit trail of one record`,
	}

	activityCmd.AddCommand(historyCmd(activityService, logger))

	return activityCmd
}

// historyCmd prints the deduplicated audit trail of a single record
func historyCmd(activityService *services.ActivityService, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "history <entity-table> <entity-id>",
		Short: "Show the deduplicated audit trail of one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx := context.Background()
			table := args[0]
			id, err := uuid.Parse(args[1])
			if err != nil {
				return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid entity id %q", args[1])
			}

			entries, err := activityService.EntityHistory(ctx, table, id)
			if err != nil {
				logger.Error(ctx, "Failed to load entity history", err, map[string]interface{}{
					"entity_table": table,
					"entity_id":    id.String(),
				})
				return err
			}

			if len(entries) == 0 {
				fmt.Println("no activity recorded")
				return nil
			}
			for _, entry := range entries {
				actor := entry.Metadata.ActorName
				if actor == "" {
					actor = entry.ActorID.String()
				}
				fmt.Printf("%s  %-28s  %s", entry.CreatedAt.Format("2006-01-02 15:04:05"), entry.Action, actor)
				if entry.Metadata.Details != "" {
					fmt.Printf("  (%s)", entry.Metadata.Details)
				}
				fmt.Println()
			}
			return nil
		},
	}
}
