// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"fmt"

	"aipreview/internal/models"
	"aipreview/internal/observability"
	"aipreview/internal/services"
	contextutils "aipreview/internal/utils"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// CaseCommands returns the administrative case track commands
func CaseCommands(caseService *services.CaseService, logger *observability.Logger) *cobra.Command {
	caseCmd := &cobra.Command{
		Use:   "case",
		Short: "Administrative case track commands",
		Long: `Administrative case track commands for the AIP review service.

Available commands:
  force-unclaim - Release a stuck review claim
  cancel        - Cancel a submission
  archive       - Archive a submission
  unarchive     - Restore an archived submission
  claim         - Show who currently holds the review claim`,
	}

	caseCmd.PersistentFlags().String("admin-id", "", "acting administrator's id (required for mutations)")

	caseCmd.AddCommand(claimCmd(caseService, logger))
	caseCmd.AddCommand(caseActionCmd(logger, "force-unclaim", "Release a stuck review claim",
		func(ctx context.Context, id uuid.UUID, admin models.ActorContext, reason string) error {
			return caseService.ForceUnclaim(ctx, id, admin, reason)
		}))
	caseCmd.AddCommand(caseActionCmd(logger, "cancel", "Cancel a submission",
		func(ctx context.Context, id uuid.UUID, admin models.ActorContext, reason string) error {
			return caseService.Cancel(ctx, id, admin, reason)
		}))
	caseCmd.AddCommand(caseActionCmd(logger, "archive", "Archive a submission",
		func(ctx context.Context, id uuid.UUID, admin models.ActorContext, reason string) error {
			return caseService.Archive(ctx, id, admin, reason)
		}))
	caseCmd.AddCommand(caseActionCmd(logger, "unarchive", "Restore an archived submission",
		func(ctx context.Context, id uuid.UUID, admin models.ActorContext, reason string) error {
			return caseService.Unarchive(ctx, id, admin, reason)
		}))

	return caseCmd
}

// claimCmd shows the current review claim holder of a submission
func claimCmd(caseService *services.CaseService, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "claim <submission-id>",
		Short: "Show who currently holds the review claim",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx := context.Background()
			id, err := uuid.Parse(args[0])
			if err != nil {
				return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid submission id %q", args[0])
			}

			holder, err := caseService.ClaimedBy(ctx, id)
			if err != nil {
				logger.Error(ctx, "Failed to resolve claim", err, map[string]interface{}{"submission_id": id.String()})
				return err
			}
			if holder == nil {
				fmt.Println("unclaimed")
				return nil
			}
			fmt.Printf("claimed by %s\n", holder)
			return nil
		},
	}
}

// caseActionCmd builds one admin mutation command with the shared
// submission-id argument, reason flag and admin identity handling.
func caseActionCmd(logger *observability.Logger, use, short string, run func(context.Context, uuid.UUID, models.ActorContext, string) error) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   use + " <submission-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			id, err := uuid.Parse(args[0])
			if err != nil {
				return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid submission id %q", args[0])
			}

			admin, err := adminActorFromFlags(cmd)
			if err != nil {
				return err
			}

			if err := run(ctx, id, admin, reason); err != nil {
				logger.Error(ctx, "Case action failed", err, map[string]interface{}{
					"action":        use,
					"submission_id": id.String(),
				})
				return err
			}

			fmt.Printf("%s: ok\n", use)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the audit log (required)")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}

// adminActorFromFlags builds the acting admin identity from the persistent
// admin-id flag.
func adminActorFromFlags(cmd *cobra.Command) (models.ActorContext, error) {
	raw, err := cmd.Flags().GetString("admin-id")
	if err != nil || raw == "" {
		return models.ActorContext{}, contextutils.WrapError(contextutils.ErrMissingRequired, "--admin-id is required")
	}
	adminID, err := uuid.Parse(raw)
	if err != nil {
		return models.ActorContext{}, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid admin id %q", raw)
	}
	return models.ActorContext{
		ID:    adminID,
		Role:  models.RoleAdmin,
		Scope: models.Scope{Kind: models.ScopeNone},
	}, nil
}
