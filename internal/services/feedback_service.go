package services

import (
	"context"
	"strings"

	"aipreview/internal/models"
	"aipreview/internal/observability"
	contextutils "aipreview/internal/utils"

	"github.com/google/uuid"
)

// citizenFeedbackKinds are the kinds a citizen may post. The oversight_note
// kind is reserved for officials and the revision-reply path.
var citizenFeedbackKinds = map[models.FeedbackKind]bool{
	models.FeedbackQuestion:     true,
	models.FeedbackConcern:      true,
	models.FeedbackSuggestion:   true,
	models.FeedbackCommendation: true,
}

// FeedbackService serves citizen feedback on published submissions and the
// reconstructed revision-cycle view of the remark/reply history.
type FeedbackService struct {
	subs     SubmissionRepo
	actions  ReviewActionRepo
	feedback FeedbackRepo
	activity *ActivityService
	logger   *observability.Logger
}

// NewFeedbackService creates a new feedback service
func NewFeedbackService(subs SubmissionRepo, actions ReviewActionRepo, feedback FeedbackRepo, activity *ActivityService, logger *observability.Logger) *FeedbackService {
	if subs == nil || actions == nil || feedback == nil {
		panic("stores are required for FeedbackService")
	}
	if activity == nil {
		panic("activity service is required for FeedbackService")
	}
	if logger == nil {
		panic("logger is required for FeedbackService")
	}
	return &FeedbackService{subs: subs, actions: actions, feedback: feedback, activity: activity, logger: logger}
}

// RevisionCycles rebuilds the full remark/reply cycle history of a
// submission from its flat action and feedback streams.
func (s *FeedbackService) RevisionCycles(ctx context.Context, submissionID uuid.UUID) (result0 []RevisionCycle, err error) {
	ctx, span := observability.TraceRevisionFunction(ctx, "RevisionCycles",
		observability.AttributeSubmissionID(submissionID),
	)
	defer observability.FinishSpan(span, &err)

	sub, err := s.subs.GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	actions, err := s.actions.ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	records, err := s.feedback.ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	return BuildRevisionCycles(actions, records, sub.LegacyRevisionReply.String), nil
}

// RevisionCyclePage returns one cycle by 1-based page number plus the total
// cycle count. A nil cycle with a non-zero total means the page is out of
// range.
func (s *FeedbackService) RevisionCyclePage(ctx context.Context, submissionID uuid.UUID, page int) (result0 *RevisionCycle, total int, err error) {
	ctx, span := observability.TraceRevisionFunction(ctx, "RevisionCyclePage",
		observability.AttributeSubmissionID(submissionID),
		observability.AttributePage(page),
	)
	defer observability.FinishSpan(span, &err)

	cycles, err := s.RevisionCycles(ctx, submissionID)
	if err != nil {
		return nil, 0, err
	}
	cycle, total := CyclePage(cycles, page)
	return cycle, total, nil
}

// ListForSubmission returns every feedback record of a submission, oldest
// first.
func (s *FeedbackService) ListForSubmission(ctx context.Context, submissionID uuid.UUID) (result0 []models.FeedbackRecord, err error) {
	ctx, span := observability.TraceFeedbackFunction(ctx, "ListForSubmission",
		observability.AttributeSubmissionID(submissionID),
	)
	defer observability.FinishSpan(span, &err)

	if _, err = s.subs.GetByID(ctx, submissionID); err != nil {
		return nil, err
	}
	return s.feedback.ListBySubmission(ctx, submissionID)
}

// Thread returns a root record and its full reply tree flattened oldest
// first.
func (s *FeedbackService) Thread(ctx context.Context, rootID uuid.UUID) (result0 []models.FeedbackRecord, err error) {
	ctx, span := observability.TraceFeedbackFunction(ctx, "Thread")
	defer observability.FinishSpan(span, &err)

	root, err := s.feedback.GetByID(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if root.ParentFeedbackID != nil {
		return nil, contextutils.WrapError(contextutils.ErrValidationFailed, "record is a reply, not a thread root")
	}
	return s.feedback.ListByRoot(ctx, rootID)
}

// PostCitizenFeedback records a citizen question, concern, suggestion or
// commendation on a published submission, optionally pinned to a line item
// or threaded under an existing record.
func (s *FeedbackService) PostCitizenFeedback(ctx context.Context, submissionID uuid.UUID, actor models.ActorContext, kind models.FeedbackKind, body string, lineItemID, parentID *uuid.UUID) (result0 *models.FeedbackRecord, err error) {
	ctx, span := observability.TraceFeedbackFunction(ctx, "PostCitizenFeedback",
		observability.AttributeSubmissionID(submissionID),
		observability.AttributeActorID(actor.ID),
	)
	defer observability.FinishSpan(span, &err)

	if actor.Role != models.RoleCitizen {
		return nil, contextutils.WrapError(contextutils.ErrForbidden, "only citizens may post public feedback")
	}
	if !citizenFeedbackKinds[kind] {
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "unsupported feedback kind %q", kind)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, contextutils.WrapError(contextutils.ErrValidationFailed, "a feedback body is required")
	}

	sub, err := s.subs.GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != models.StatusPublished {
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "submission is %q, feedback applies to published submissions", sub.Status)
	}

	record := &models.FeedbackRecord{
		ID:               uuid.New(),
		SubmissionID:     sub.ID,
		LineItemID:       lineItemID,
		ParentFeedbackID: parentID,
		Kind:             kind,
		Body:             body,
		AuthorID:         actor.ID,
		AuthorRole:       actor.Role,
		IsPublic:         true,
	}
	if err = s.feedback.Append(ctx, record); err != nil {
		return nil, err
	}

	if err = s.recordFeedback(ctx, actor, sub, record); err != nil {
		return nil, err
	}
	return record, nil
}

// RespondToFeedback posts an official public answer under a citizen feedback
// record. The responder must be the submitter for the submission's own unit,
// an oversight official for its parent unit, or an admin.
func (s *FeedbackService) RespondToFeedback(ctx context.Context, parentID uuid.UUID, actor models.ActorContext, body string) (result0 *models.FeedbackRecord, err error) {
	ctx, span := observability.TraceFeedbackFunction(ctx, "RespondToFeedback",
		observability.AttributeActorID(actor.ID),
	)
	defer observability.FinishSpan(span, &err)

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, contextutils.WrapError(contextutils.ErrValidationFailed, "a response body is required")
	}

	parent, err := s.feedback.GetByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	sub, err := s.subs.GetByID(ctx, parent.SubmissionID)
	if err != nil {
		return nil, err
	}

	switch {
	case actor.Role == models.RoleAdmin:
	case actor.Role == submitterRoleFor(sub.Scope().Kind):
		if err = authorize(actor, []models.Role{actor.Role}, sub.Scope()); err != nil {
			return nil, err
		}
	case actor.Role.IsOversight():
		if err = authorize(actor, []models.Role{actor.Role}, sub.ParentScope()); err != nil {
			return nil, err
		}
	default:
		return nil, contextutils.WrapError(contextutils.ErrForbidden, "actor may not respond to feedback on this submission")
	}

	reply := &models.FeedbackRecord{
		ID:               uuid.New(),
		SubmissionID:     sub.ID,
		ParentFeedbackID: &parent.ID,
		Kind:             models.FeedbackOversightNote,
		Body:             body,
		AuthorID:         actor.ID,
		AuthorRole:       actor.Role,
		IsPublic:         true,
	}
	if err = s.feedback.Append(ctx, reply); err != nil {
		return nil, err
	}

	if err = s.recordFeedback(ctx, actor, sub, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// recordFeedback writes the raw CRUD audit entry for a new feedback record.
// Feedback has no workflow counterpart, so nothing supersedes it on the feed.
func (s *FeedbackService) recordFeedback(ctx context.Context, actor models.ActorContext, sub *models.Submission, record *models.FeedbackRecord) error {
	return s.activity.Record(ctx, &models.ActivityLogEntry{
		ID:          uuid.New(),
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		Action:      models.ActivityFeedbackCreated,
		EntityTable: "feedback",
		EntityID:    record.ID,
		Scope:       models.SnapshotScope(sub.Scope()),
		Metadata: models.ActivityMetadata{
			Source:  models.ActivitySourceCRUD,
			Details: string(record.Kind),
			Extra:   map[string]interface{}{"fiscal_year": sub.FiscalYear},
		},
	})
}
