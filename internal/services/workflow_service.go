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

// WorkflowService gates every submission mutation by current state, actor
// role, and jurisdiction scope. All state moves go through the store's
// conditional write; a lost race surfaces as InvalidTransition after a
// re-read, never as silent double-apply.
type WorkflowService struct {
	subs     SubmissionRepo
	actions  ReviewActionRepo
	feedback FeedbackRepo
	activity *ActivityService
	logger   *observability.Logger
	now      func() time.Time
}

// NewWorkflowService creates a new workflow service
func NewWorkflowService(subs SubmissionRepo, actions ReviewActionRepo, feedback FeedbackRepo, activity *ActivityService, logger *observability.Logger) *WorkflowService {
	if subs == nil || actions == nil || feedback == nil {
		panic("submission, review action and feedback repos are required for WorkflowService")
	}
	if activity == nil {
		panic("activity service is required for WorkflowService")
	}
	if logger == nil {
		panic("logger is required for WorkflowService")
	}
	return &WorkflowService{
		subs:     subs,
		actions:  actions,
		feedback: feedback,
		activity: activity,
		logger:   logger,
		now:      time.Now,
	}
}

// submitterRoleFor maps a submission scope tier to the role allowed to
// submit for it.
func submitterRoleFor(kind models.ScopeKind) models.Role {
	switch kind {
	case models.ScopeBarangay:
		return models.RoleBarangayOfficial
	case models.ScopeCity:
		return models.RoleCityOfficial
	case models.ScopeMunicipality:
		return models.RoleMunicipalOfficial
	}
	return ""
}

// authorize is the single permission gate. The actor's role must appear in
// roles; admins skip the scope-equality check but never the role check.
func authorize(actor models.ActorContext, roles []models.Role, scope models.Scope) error {
	roleOK := false
	for _, r := range roles {
		if actor.Role == r {
			roleOK = true
			break
		}
	}
	if !roleOK {
		return contextutils.WrapErrorf(contextutils.ErrUnauthorized, "role %q may not perform this operation", actor.Role)
	}
	if actor.Role == models.RoleAdmin {
		return nil
	}
	if actor.Scope.Kind != scope.Kind || actor.Scope.ID != scope.ID {
		return contextutils.WrapError(contextutils.ErrUnauthorized, "operation is outside the actor's jurisdiction")
	}
	return nil
}

// Get fetches one submission
func (s *WorkflowService) Get(ctx context.Context, id uuid.UUID) (result0 *models.Submission, err error) {
	ctx, span := observability.TraceWorkflowFunction(ctx, "Get",
		observability.AttributeSubmissionID(id),
	)
	defer observability.FinishSpan(span, &err)
	return s.subs.GetByID(ctx, id)
}

// ListByScope lists submissions visible within one jurisdiction unit
func (s *WorkflowService) ListByScope(ctx context.Context, scope models.Scope, filter SubmissionFilter) (result0 []*models.Submission, err error) {
	ctx, span := observability.TraceWorkflowFunction(ctx, "ListByScope")
	defer observability.FinishSpan(span, &err)
	return s.subs.ListByScope(ctx, scope, filter)
}

// CreateDraft creates a new draft submission in the actor's own scope
func (s *WorkflowService) CreateDraft(ctx context.Context, actor models.ActorContext, title string, fiscalYear int) (result0 *models.Submission, err error) {
	ctx, span := observability.TraceWorkflowFunction(ctx, "CreateDraft",
		observability.AttributeActorID(actor.ID),
		observability.AttributeFiscalYear(fiscalYear),
	)
	defer observability.FinishSpan(span, &err)

	if err = authorize(actor, []models.Role{
		models.RoleBarangayOfficial, models.RoleCityOfficial, models.RoleMunicipalOfficial,
	}, actor.Scope); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, contextutils.WrapError(contextutils.ErrValidationFailed, "title is required")
	}
	if fiscalYear <= 0 {
		return nil, contextutils.WrapError(contextutils.ErrValidationFailed, "fiscal year is required")
	}

	sub := &models.Submission{
		ID:         uuid.New(),
		Title:      title,
		FiscalYear: fiscalYear,
		Status:     models.StatusDraft,
		CreatedBy:  actor.ID,
	}
	scopeID := actor.Scope.ID
	switch actor.Scope.Kind {
	case models.ScopeBarangay:
		if actor.ParentCityID == nil {
			return nil, contextutils.WrapError(contextutils.ErrValidationFailed, "a barangay submission requires a parent city")
		}
		sub.BarangayID = &scopeID
		sub.ParentCityID = actor.ParentCityID
	case models.ScopeCity:
		sub.CityID = &scopeID
	case models.ScopeMunicipality:
		sub.MunicipalityID = &scopeID
	default:
		return nil, contextutils.WrapError(contextutils.ErrValidationFailed, "actor has no jurisdiction to create a submission in")
	}

	if err = s.subs.Create(ctx, sub); err != nil {
		return nil, err
	}

	if err = s.recordCRUD(ctx, actor, sub, models.ActivitySubmissionCreated, ""); err != nil {
		return nil, err
	}
	return sub, nil
}

// Submit moves a draft or returned submission into the review queue. A
// resubmission from for_revision requires a reply to the latest reviewer
// remark, either already saved since that remark or supplied inline.
func (s *WorkflowService) Submit(ctx context.Context, id uuid.UUID, actor models.ActorContext, revisionReply string) (result0 *models.Submission, err error) {
	ctx, span := observability.TraceWorkflowFunction(ctx, "Submit",
		observability.AttributeSubmissionID(id),
		observability.AttributeActorID(actor.ID),
	)
	defer observability.FinishSpan(span, &err)

	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = authorize(actor, []models.Role{submitterRoleFor(sub.Scope().Kind)}, sub.Scope()); err != nil {
		return nil, err
	}
	if sub.Status != models.StatusDraft && sub.Status != models.StatusForRevision {
		return nil, invalidTransition(sub.Status, models.StatusPendingReview)
	}

	if sub.Status == models.StatusForRevision {
		if err = s.ensureRevisionReply(ctx, sub, actor, revisionReply); err != nil {
			return nil, err
		}
	}

	if err = s.transition(ctx, sub, models.StatusPendingReview); err != nil {
		return nil, err
	}

	if err = s.recordPair(ctx, actor, sub, models.ActivitySubmissionUpdated, models.ActivitySubmissionSubmitted, ""); err != nil {
		return nil, err
	}
	return sub, nil
}

// ensureRevisionReply enforces the resubmission rule: a reply to the latest
// request_revision must exist or be supplied with the call.
func (s *WorkflowService) ensureRevisionReply(ctx context.Context, sub *models.Submission, actor models.ActorContext, inline string) error {
	actions, err := s.actions.ListBySubmission(ctx, sub.ID)
	if err != nil {
		return err
	}
	var latestRequest *models.ReviewAction
	for i := range actions {
		if actions[i].Kind == models.ActionRequestRevision {
			latestRequest = &actions[i]
		}
	}
	if latestRequest == nil {
		// for_revision with no request on record; nothing to reply to.
		return nil
	}

	records, err := s.feedback.ListBySubmission(ctx, sub.ID)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if rec.Kind == models.FeedbackOversightNote && rec.AuthorID == actor.ID && rec.CreatedAt.After(latestRequest.CreatedAt) {
			return nil
		}
	}

	inline = strings.TrimSpace(inline)
	if inline == "" {
		return contextutils.WrapError(contextutils.ErrValidationFailed, "a reply to the latest reviewer remark is required before resubmitting")
	}
	reply := &models.FeedbackRecord{
		ID:           uuid.New(),
		SubmissionID: sub.ID,
		Kind:         models.FeedbackOversightNote,
		Body:         inline,
		AuthorID:     actor.ID,
		AuthorRole:   actor.Role,
		IsPublic:     true,
	}
	return s.feedback.Append(ctx, reply)
}

// StartReview claims a queued submission for the acting reviewer. Calling
// it again while the same reviewer holds the claim is a no-op.
func (s *WorkflowService) StartReview(ctx context.Context, id uuid.UUID, actor models.ActorContext) (result0 *models.Submission, err error) {
	ctx, span := observability.TraceWorkflowFunction(ctx, "StartReview",
		observability.AttributeSubmissionID(id),
		observability.AttributeActorID(actor.ID),
	)
	defer observability.FinishSpan(span, &err)

	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = authorize(actor, []models.Role{
		models.RoleCityOfficial, models.RoleMunicipalOfficial, models.RoleAdmin,
	}, sub.ParentScope()); err != nil {
		return nil, err
	}

	if sub.Status == models.StatusUnderReview {
		claimer, claimErr := claimedBy(ctx, s.actions, sub.ID)
		if claimErr != nil {
			return nil, claimErr
		}
		if claimer != nil && *claimer == actor.ID {
			return sub, nil
		}
		return nil, invalidTransition(sub.Status, models.StatusUnderReview)
	}
	if sub.Status != models.StatusPendingReview {
		return nil, invalidTransition(sub.Status, models.StatusUnderReview)
	}

	if err = s.transition(ctx, sub, models.StatusUnderReview); err != nil {
		return nil, err
	}

	if err = s.appendAction(ctx, sub.ID, actor.ID, models.ActionClaim, ""); err != nil {
		return nil, err
	}
	if err = s.recordPair(ctx, actor, sub, models.ActivitySubmissionUpdated, models.ActivityReviewStarted, ""); err != nil {
		return nil, err
	}
	return sub, nil
}

// RequestRevision returns a claimed submission to its submitter with a
// remark that roots a new feedback cycle.
func (s *WorkflowService) RequestRevision(ctx context.Context, id uuid.UUID, actor models.ActorContext, note string) (result0 *models.Submission, err error) {
	ctx, span := observability.TraceWorkflowFunction(ctx, "RequestRevision",
		observability.AttributeSubmissionID(id),
		observability.AttributeActorID(actor.ID),
	)
	defer observability.FinishSpan(span, &err)

	note = strings.TrimSpace(note)
	if note == "" {
		return nil, contextutils.WrapError(contextutils.ErrValidationFailed, "a revision note is required")
	}

	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = authorize(actor, []models.Role{
		models.RoleCityOfficial, models.RoleMunicipalOfficial, models.RoleAdmin,
	}, sub.ParentScope()); err != nil {
		return nil, err
	}
	if sub.Status != models.StatusUnderReview {
		return nil, invalidTransition(sub.Status, models.StatusForRevision)
	}

	if err = s.transition(ctx, sub, models.StatusForRevision); err != nil {
		return nil, err
	}

	if err = s.appendAction(ctx, sub.ID, actor.ID, models.ActionRequestRevision, note); err != nil {
		return nil, err
	}
	if err = s.recordPair(ctx, actor, sub, models.ActivitySubmissionUpdated, models.ActivityRevisionRequested, note); err != nil {
		return nil, err
	}
	return sub, nil
}

// Publish approves a claimed submission into the published record.
func (s *WorkflowService) Publish(ctx context.Context, id uuid.UUID, actor models.ActorContext, note string) (result0 *models.Submission, err error) {
	ctx, span := observability.TraceWorkflowFunction(ctx, "Publish",
		observability.AttributeSubmissionID(id),
		observability.AttributeActorID(actor.ID),
	)
	defer observability.FinishSpan(span, &err)

	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = authorize(actor, []models.Role{
		models.RoleCityOfficial, models.RoleMunicipalOfficial, models.RoleAdmin,
	}, sub.ParentScope()); err != nil {
		return nil, err
	}
	if sub.Status != models.StatusUnderReview {
		return nil, invalidTransition(sub.Status, models.StatusPublished)
	}

	if err = s.transition(ctx, sub, models.StatusPublished); err != nil {
		return nil, err
	}

	if err = s.appendAction(ctx, sub.ID, actor.ID, models.ActionApprove, note); err != nil {
		return nil, err
	}
	if err = s.recordPair(ctx, actor, sub, models.ActivitySubmissionUpdated, models.ActivitySubmissionPublished, note); err != nil {
		return nil, err
	}
	return sub, nil
}

// Withdraw pulls a queued submission back before any reviewer claims it.
// It returns to for_revision when revision history exists, else to draft.
func (s *WorkflowService) Withdraw(ctx context.Context, id uuid.UUID, actor models.ActorContext) (result0 *models.Submission, err error) {
	ctx, span := observability.TraceWorkflowFunction(ctx, "Withdraw",
		observability.AttributeSubmissionID(id),
		observability.AttributeActorID(actor.ID),
	)
	defer observability.FinishSpan(span, &err)

	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = authorize(actor, []models.Role{submitterRoleFor(sub.Scope().Kind)}, sub.Scope()); err != nil {
		return nil, err
	}
	if sub.Status != models.StatusPendingReview {
		return nil, invalidTransition(sub.Status, models.StatusDraft)
	}

	target := models.StatusDraft
	hasHistory, err := s.hasRevisionHistory(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if hasHistory {
		target = models.StatusForRevision
	}

	if err = s.transition(ctx, sub, target); err != nil {
		return nil, err
	}

	if err = s.recordPair(ctx, actor, sub, models.ActivitySubmissionUpdated, models.ActivitySubmissionWithdrawn, ""); err != nil {
		return nil, err
	}
	return sub, nil
}

// PostRevisionReply saves a submitter reply to the current reviewer remark.
// Allowed while the submission sits in for_revision, or in draft when
// revision history exists.
func (s *WorkflowService) PostRevisionReply(ctx context.Context, id uuid.UUID, actor models.ActorContext, body string) (result0 *models.FeedbackRecord, err error) {
	ctx, span := observability.TraceWorkflowFunction(ctx, "PostRevisionReply",
		observability.AttributeSubmissionID(id),
		observability.AttributeActorID(actor.ID),
	)
	defer observability.FinishSpan(span, &err)

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, contextutils.WrapError(contextutils.ErrValidationFailed, "a reply body is required")
	}

	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = authorize(actor, []models.Role{submitterRoleFor(sub.Scope().Kind)}, sub.Scope()); err != nil {
		return nil, err
	}

	switch sub.Status {
	case models.StatusForRevision:
		// always allowed
	case models.StatusDraft:
		hasHistory, histErr := s.hasRevisionHistory(ctx, sub.ID)
		if histErr != nil {
			return nil, histErr
		}
		if !hasHistory {
			return nil, invalidTransition(sub.Status, sub.Status)
		}
	default:
		return nil, invalidTransition(sub.Status, sub.Status)
	}

	reply := &models.FeedbackRecord{
		ID:           uuid.New(),
		SubmissionID: sub.ID,
		Kind:         models.FeedbackOversightNote,
		Body:         body,
		AuthorID:     actor.ID,
		AuthorRole:   actor.Role,
		IsPublic:     true,
	}
	if err = s.feedback.Append(ctx, reply); err != nil {
		return nil, err
	}

	if err = s.recordPair(ctx, actor, sub, models.ActivityFeedbackCreated, models.ActivityRevisionReplyPosted, ""); err != nil {
		return nil, err
	}
	return reply, nil
}

// DeleteDraft removes a never-reviewed draft. A draft with any
// request_revision history is part of the audit record and stays.
func (s *WorkflowService) DeleteDraft(ctx context.Context, id uuid.UUID, actor models.ActorContext) (err error) {
	ctx, span := observability.TraceWorkflowFunction(ctx, "DeleteDraft",
		observability.AttributeSubmissionID(id),
		observability.AttributeActorID(actor.ID),
	)
	defer observability.FinishSpan(span, &err)

	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err = authorize(actor, []models.Role{submitterRoleFor(sub.Scope().Kind)}, sub.Scope()); err != nil {
		return err
	}
	if sub.Status != models.StatusDraft {
		return invalidTransition(sub.Status, models.StatusDraft)
	}
	hasHistory, err := s.hasRevisionHistory(ctx, sub.ID)
	if err != nil {
		return err
	}
	if hasHistory {
		return contextutils.WrapError(contextutils.ErrConflict, "draft has review history and cannot be deleted")
	}

	if err = s.subs.DeleteDraft(ctx, id); err != nil {
		return err
	}

	return s.recordPair(ctx, actor, sub, models.ActivitySubmissionDeleted, models.ActivityDraftDeleted, "")
}

// hasRevisionHistory reports whether any request_revision action exists.
func (s *WorkflowService) hasRevisionHistory(ctx context.Context, id uuid.UUID) (bool, error) {
	actions, err := s.actions.ListBySubmission(ctx, id)
	if err != nil {
		return false, err
	}
	for _, a := range actions {
		if a.Kind == models.ActionRequestRevision {
			return true, nil
		}
	}
	return false, nil
}

// transition performs the conditional status write and converts a lost race
// into InvalidTransition against the freshest state. The passed submission
// is updated in place on success.
func (s *WorkflowService) transition(ctx context.Context, sub *models.Submission, next models.SubmissionStatus) error {
	at := s.now().UTC()
	err := s.subs.CompareAndSetStatus(ctx, sub.ID, sub.Status, next, at)
	if err == nil {
		if next == models.StatusPendingReview && !sub.SubmittedAt.Valid {
			sub.SubmittedAt = sql.NullTime{Time: at, Valid: true}
		}
		if next == models.StatusPublished && !sub.PublishedAt.Valid {
			sub.PublishedAt = sql.NullTime{Time: at, Valid: true}
		}
		sub.Status = next
		sub.StatusChanged = at
		return nil
	}
	if contextutils.GetErrorCode(err) == contextutils.ErrorCodeConflict {
		current, readErr := s.subs.GetByID(ctx, sub.ID)
		if readErr != nil {
			return readErr
		}
		return invalidTransition(current.Status, next)
	}
	return err
}

func (s *WorkflowService) appendAction(ctx context.Context, submissionID, reviewerID uuid.UUID, kind models.ReviewActionKind, note string) error {
	action := &models.ReviewAction{
		ID:           uuid.New(),
		SubmissionID: submissionID,
		ReviewerID:   reviewerID,
		Kind:         kind,
	}
	if note != "" {
		action.Note = sql.NullString{String: note, Valid: true}
	}
	return s.actions.Append(ctx, action)
}

// recordCRUD writes the raw record-mutation audit entry.
func (s *WorkflowService) recordCRUD(ctx context.Context, actor models.ActorContext, sub *models.Submission, action, details string) error {
	return s.activity.Record(ctx, s.buildEntry(actor, sub, action, models.ActivityMetadata{
		Source:  models.ActivitySourceCRUD,
		Details: details,
	}))
}

// recordPair writes the raw CRUD entry plus the workflow entry that
// supersedes it on the feed read path.
func (s *WorkflowService) recordPair(ctx context.Context, actor models.ActorContext, sub *models.Submission, crudAction, workflowAction, details string) error {
	if err := s.recordCRUD(ctx, actor, sub, crudAction, ""); err != nil {
		return err
	}
	return s.activity.Record(ctx, s.buildEntry(actor, sub, workflowAction, models.ActivityMetadata{
		Source:     models.ActivitySourceWorkflow,
		Supersedes: crudAction,
		Details:    details,
		ToStatus:   sub.Status,
	}))
}

func (s *WorkflowService) buildEntry(actor models.ActorContext, sub *models.Submission, action string, meta models.ActivityMetadata) *models.ActivityLogEntry {
	meta.Extra = map[string]interface{}{"fiscal_year": sub.FiscalYear}
	return &models.ActivityLogEntry{
		ID:          uuid.New(),
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		Action:      action,
		EntityTable: "submissions",
		EntityID:    sub.ID,
		Scope:       models.SnapshotScope(sub.Scope()),
		Metadata:    meta,
	}
}

// invalidTransition builds the taxonomy error naming both states.
func invalidTransition(current, attempted models.SubmissionStatus) error {
	return contextutils.WrapErrorf(contextutils.ErrInvalidTransition, "cannot move from %q to %q", current, attempted)
}
