// Package serviceinterfaces defines service interfaces for dependency injection and testing.
package serviceinterfaces

import (
	"context"

	"aipreview/internal/models"
	"aipreview/internal/services"

	"github.com/google/uuid"
)

// WorkflowService is the handler-facing contract of the submission workflow.
type WorkflowService interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	ListByScope(ctx context.Context, scope models.Scope, filter services.SubmissionFilter) ([]*models.Submission, error)
	CreateDraft(ctx context.Context, actor models.ActorContext, title string, fiscalYear int) (*models.Submission, error)
	Submit(ctx context.Context, id uuid.UUID, actor models.ActorContext, revisionReply string) (*models.Submission, error)
	StartReview(ctx context.Context, id uuid.UUID, actor models.ActorContext) (*models.Submission, error)
	RequestRevision(ctx context.Context, id uuid.UUID, actor models.ActorContext, note string) (*models.Submission, error)
	Publish(ctx context.Context, id uuid.UUID, actor models.ActorContext, note string) (*models.Submission, error)
	Withdraw(ctx context.Context, id uuid.UUID, actor models.ActorContext) (*models.Submission, error)
	PostRevisionReply(ctx context.Context, id uuid.UUID, actor models.ActorContext, body string) (*models.FeedbackRecord, error)
	DeleteDraft(ctx context.Context, id uuid.UUID, actor models.ActorContext) error
}

// CaseService is the handler-facing contract of the administrative case track.
type CaseService interface {
	ClaimedBy(ctx context.Context, submissionID uuid.UUID) (*uuid.UUID, error)
	ForceUnclaim(ctx context.Context, submissionID uuid.UUID, admin models.ActorContext, reason string) error
	Cancel(ctx context.Context, submissionID uuid.UUID, admin models.ActorContext, reason string) error
	Archive(ctx context.Context, submissionID uuid.UUID, admin models.ActorContext, reason string) error
	Unarchive(ctx context.Context, submissionID uuid.UUID, admin models.ActorContext, reason string) error
}

// ActivityService is the handler-facing contract of the audit feed.
type ActivityService interface {
	Feed(ctx context.Context, actor models.ActorContext, req services.FeedRequest) (*services.FeedPage, error)
	EntityHistory(ctx context.Context, entityTable string, entityID uuid.UUID) ([]models.ActivityLogEntry, error)
}

// FeedbackService is the handler-facing contract for feedback and revision cycles.
type FeedbackService interface {
	RevisionCycles(ctx context.Context, submissionID uuid.UUID) ([]services.RevisionCycle, error)
	RevisionCyclePage(ctx context.Context, submissionID uuid.UUID, page int) (*services.RevisionCycle, int, error)
	ListForSubmission(ctx context.Context, submissionID uuid.UUID) ([]models.FeedbackRecord, error)
	Thread(ctx context.Context, rootID uuid.UUID) ([]models.FeedbackRecord, error)
	PostCitizenFeedback(ctx context.Context, submissionID uuid.UUID, actor models.ActorContext, kind models.FeedbackKind, body string, lineItemID, parentID *uuid.UUID) (*models.FeedbackRecord, error)
	RespondToFeedback(ctx context.Context, parentID uuid.UUID, actor models.ActorContext, body string) (*models.FeedbackRecord, error)
}

// AccountabilityService is the handler-facing contract for accountability facts.
type AccountabilityService interface {
	Resolve(ctx context.Context, submissionID uuid.UUID) (*services.Accountability, error)
}

// Compile-time checks that the concrete services satisfy these contracts.
var (
	_ WorkflowService       = (*services.WorkflowService)(nil)
	_ CaseService           = (*services.CaseService)(nil)
	_ ActivityService       = (*services.ActivityService)(nil)
	_ FeedbackService       = (*services.FeedbackService)(nil)
	_ AccountabilityService = (*services.AccountabilityService)(nil)
)
