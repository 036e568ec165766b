package services

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"aipreview/internal/models"
	"aipreview/internal/observability"
	contextutils "aipreview/internal/utils"

	"github.com/google/uuid"
)

// CaseService coordinates reviewer ownership and the administrative case
// track. The claimed-by fact is always derived from the action log; nothing
// here stores a claim column.
type CaseService struct {
	subs     SubmissionRepo
	actions  ReviewActionRepo
	activity *ActivityService
	logger   *observability.Logger
	now      func() time.Time
}

// NewCaseService creates a new case service
func NewCaseService(subs SubmissionRepo, actions ReviewActionRepo, activity *ActivityService, logger *observability.Logger) *CaseService {
	if subs == nil || actions == nil {
		panic("submission and review action repos are required for CaseService")
	}
	if activity == nil {
		panic("activity service is required for CaseService")
	}
	if logger == nil {
		panic("logger is required for CaseService")
	}
	return &CaseService{subs: subs, actions: actions, activity: activity, logger: logger, now: time.Now}
}

// claimedBy derives the current claim holder from the newest decisive
// action: claim, approve and request_revision set it, unclaim clears it.
func claimedBy(ctx context.Context, repo ReviewActionRepo, submissionID uuid.UUID) (*uuid.UUID, error) {
	actions, err := repo.ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	for i := len(actions) - 1; i >= 0; i-- {
		switch actions[i].Kind {
		case models.ActionClaim, models.ActionApprove, models.ActionRequestRevision:
			reviewer := actions[i].ReviewerID
			return &reviewer, nil
		case models.ActionUnclaim:
			return nil, nil
		}
	}
	return nil, nil
}

// ClaimedBy returns the reviewer currently holding the submission, or nil
// when unclaimed.
func (s *CaseService) ClaimedBy(ctx context.Context, submissionID uuid.UUID) (result0 *uuid.UUID, err error) {
	ctx, span := observability.TraceCaseFunction(ctx, "ClaimedBy",
		observability.AttributeSubmissionID(submissionID),
	)
	defer observability.FinishSpan(span, &err)
	return claimedBy(ctx, s.actions, submissionID)
}

// ForceUnclaim releases a stuck claim. Admin-only; the release is recorded
// as an unclaim action so the derivation above observes it.
func (s *CaseService) ForceUnclaim(ctx context.Context, submissionID uuid.UUID, admin models.ActorContext, reason string) (err error) {
	ctx, span := observability.TraceCaseFunction(ctx, "ForceUnclaim",
		observability.AttributeSubmissionID(submissionID),
		observability.AttributeActorID(admin.ID),
	)
	defer observability.FinishSpan(span, &err)

	sub, err := s.requireAdmin(ctx, submissionID, admin, reason)
	if err != nil {
		return err
	}

	holder, err := claimedBy(ctx, s.actions, submissionID)
	if err != nil {
		return err
	}
	if holder == nil {
		return contextutils.WrapError(contextutils.ErrConflict, "submission is not claimed")
	}

	action := &models.ReviewAction{
		ID:           uuid.New(),
		SubmissionID: submissionID,
		ReviewerID:   *holder,
		Kind:         models.ActionUnclaim,
		Note:         sql.NullString{String: reason, Valid: true},
	}
	if err = s.actions.Append(ctx, action); err != nil {
		return err
	}

	return s.recordCase(ctx, admin, sub, models.ActivityReviewForceUnclaim, reason, "")
}

// Cancel retires a submission from any non-terminal status.
func (s *CaseService) Cancel(ctx context.Context, submissionID uuid.UUID, admin models.ActorContext, reason string) (err error) {
	ctx, span := observability.TraceCaseFunction(ctx, "Cancel",
		observability.AttributeSubmissionID(submissionID),
		observability.AttributeActorID(admin.ID),
	)
	defer observability.FinishSpan(span, &err)

	sub, err := s.requireAdmin(ctx, submissionID, admin, reason)
	if err != nil {
		return err
	}
	if sub.Status.IsTerminal() {
		return invalidTransition(sub.Status, models.StatusCancelled)
	}

	if err = s.subs.CompareAndSetStatus(ctx, submissionID, sub.Status, models.StatusCancelled, s.now().UTC()); err != nil {
		if contextutils.GetErrorCode(err) == contextutils.ErrorCodeConflict {
			current, readErr := s.subs.GetByID(ctx, submissionID)
			if readErr != nil {
				return readErr
			}
			if current.Status.IsTerminal() {
				return invalidTransition(current.Status, models.StatusCancelled)
			}
			// Racing workflow moved it to another live status; cancel that one.
			if err = s.subs.CompareAndSetStatus(ctx, submissionID, current.Status, models.StatusCancelled, s.now().UTC()); err != nil {
				return err
			}
		} else {
			return err
		}
	}

	return s.recordCase(ctx, admin, sub, models.ActivitySubmissionCancelled, reason, models.ActivitySubmissionUpdated)
}

// Archive hides a submission from active queue listings. Status untouched.
func (s *CaseService) Archive(ctx context.Context, submissionID uuid.UUID, admin models.ActorContext, reason string) (err error) {
	ctx, span := observability.TraceCaseFunction(ctx, "Archive",
		observability.AttributeSubmissionID(submissionID),
	)
	defer observability.FinishSpan(span, &err)
	return s.setArchived(ctx, submissionID, admin, reason, true)
}

// Unarchive returns a submission to active queue listings.
func (s *CaseService) Unarchive(ctx context.Context, submissionID uuid.UUID, admin models.ActorContext, reason string) (err error) {
	ctx, span := observability.TraceCaseFunction(ctx, "Unarchive",
		observability.AttributeSubmissionID(submissionID),
	)
	defer observability.FinishSpan(span, &err)
	return s.setArchived(ctx, submissionID, admin, reason, false)
}

func (s *CaseService) setArchived(ctx context.Context, submissionID uuid.UUID, admin models.ActorContext, reason string, archived bool) error {
	sub, err := s.requireAdmin(ctx, submissionID, admin, reason)
	if err != nil {
		return err
	}
	if sub.IsArchived == archived {
		return contextutils.WrapErrorf(contextutils.ErrConflict, "submission archive flag is already %t", archived)
	}

	if err := s.subs.SetArchived(ctx, submissionID, archived); err != nil {
		return err
	}
	sub.IsArchived = archived

	action := models.ActivitySubmissionArchived
	if !archived {
		action = models.ActivitySubmissionRestored
	}
	return s.recordCase(ctx, admin, sub, action, reason, models.ActivitySubmissionUpdated)
}

// requireAdmin loads the submission and checks the admin-only gate plus the
// non-empty reason every case action demands.
func (s *CaseService) requireAdmin(ctx context.Context, submissionID uuid.UUID, admin models.ActorContext, reason string) (*models.Submission, error) {
	if err := authorize(admin, []models.Role{models.RoleAdmin}, models.Scope{}); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, contextutils.WrapError(contextutils.ErrValidationFailed, "a reason is required for case actions")
	}
	return s.subs.GetByID(ctx, submissionID)
}

// recordCase writes the case-track audit trail: the workflow entry always,
// preceded by a raw CRUD entry when the action mutated the submission row.
func (s *CaseService) recordCase(ctx context.Context, admin models.ActorContext, sub *models.Submission, workflowAction, reason, crudAction string) error {
	buildEntry := func(action string, meta models.ActivityMetadata) *models.ActivityLogEntry {
		meta.Extra = map[string]interface{}{"fiscal_year": sub.FiscalYear}
		return &models.ActivityLogEntry{
			ID:          uuid.New(),
			ActorID:     admin.ID,
			ActorRole:   admin.Role,
			Action:      action,
			EntityTable: "submissions",
			EntityID:    sub.ID,
			Scope:       models.SnapshotScope(sub.Scope()),
			Metadata:    meta,
		}
	}

	if crudAction != "" {
		if err := s.activity.Record(ctx, buildEntry(crudAction, models.ActivityMetadata{
			Source: models.ActivitySourceCRUD,
		})); err != nil {
			return err
		}
	}
	return s.activity.Record(ctx, buildEntry(workflowAction, models.ActivityMetadata{
		Source:     models.ActivitySourceWorkflow,
		Supersedes: crudAction,
		Reason:     reason,
	}))
}
