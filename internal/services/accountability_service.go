package services

import (
	"context"
	"time"

	"aipreview/internal/models"
	"aipreview/internal/observability"
	contextutils "aipreview/internal/utils"

	"github.com/google/uuid"
)

// Accountability is the who-did-what record for a published submission.
// ApprovalDate is the approve action's own timestamp and may legitimately
// differ from the published-at column.
type Accountability struct {
	SubmissionID uuid.UUID      `json:"submission_id"`
	UploadedBy   *models.Person `json:"uploaded_by,omitempty"`
	UploadedAt   *time.Time     `json:"uploaded_at,omitempty"`
	ReviewedBy   *models.Person `json:"reviewed_by,omitempty"`
	ApprovedBy   *models.Person `json:"approved_by,omitempty"`
	ApprovalDate *time.Time     `json:"approval_date,omitempty"`
	PublishedAt  *time.Time     `json:"published_at,omitempty"`
}

// AccountabilityService resolves accountability facts from the document
// store, the action log and the identity lookups.
type AccountabilityService struct {
	subs      SubmissionRepo
	actions   ReviewActionRepo
	docs      DocumentStore
	primary   NameLookup
	secondary NameLookup
	logger    *observability.Logger
}

// NewAccountabilityService creates a new accountability service
func NewAccountabilityService(subs SubmissionRepo, actions ReviewActionRepo, docs DocumentStore, primary, secondary NameLookup, logger *observability.Logger) *AccountabilityService {
	if subs == nil || actions == nil || docs == nil {
		panic("submission repo, review action repo and document store are required for AccountabilityService")
	}
	if primary == nil {
		panic("primary name lookup is required for AccountabilityService")
	}
	if logger == nil {
		panic("logger is required for AccountabilityService")
	}
	return &AccountabilityService{
		subs:      subs,
		actions:   actions,
		docs:      docs,
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

// Resolve computes the accountability record for a published submission.
// UploadedBy is the author of the current document artifact, which need not
// be the submission's creator. ApprovedBy comes from the most recent approve
// action, ReviewedBy from the most recent action of any kind.
func (s *AccountabilityService) Resolve(ctx context.Context, submissionID uuid.UUID) (result0 *Accountability, err error) {
	ctx, span := observability.TraceAccountabilityFunction(ctx, "Resolve",
		observability.AttributeSubmissionID(submissionID),
	)
	defer observability.FinishSpan(span, &err)

	sub, err := s.subs.GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != models.StatusPublished {
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "submission is %q, accountability applies to published submissions", sub.Status)
	}

	out := &Accountability{SubmissionID: submissionID}
	if sub.PublishedAt.Valid {
		published := sub.PublishedAt.Time
		out.PublishedAt = &published
	}

	fact, err := s.docs.CurrentFile(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	actions, err := s.actions.ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	var lastAny, lastApprove *models.ReviewAction
	for i := range actions {
		lastAny = &actions[i]
		if actions[i].Kind == models.ActionApprove {
			lastApprove = &actions[i]
		}
	}

	var ids []uuid.UUID
	if fact.HasCurrent && fact.AuthorID != nil {
		ids = append(ids, *fact.AuthorID)
	}
	if lastAny != nil {
		ids = append(ids, lastAny.ReviewerID)
	}
	if lastApprove != nil {
		ids = append(ids, lastApprove.ReviewerID)
	}
	names := s.resolveNames(ctx, ids)

	if fact.HasCurrent && fact.AuthorID != nil {
		out.UploadedBy = personFor(names, *fact.AuthorID)
		out.UploadedAt = fact.UploadedAt
	}
	if lastAny != nil {
		out.ReviewedBy = personFor(names, lastAny.ReviewerID)
	}
	if lastApprove != nil {
		out.ApprovedBy = personFor(names, lastApprove.ReviewerID)
		approvedAt := lastApprove.CreatedAt
		out.ApprovalDate = &approvedAt
	}

	return out, nil
}

// resolveNames uses the primary lookup and falls back to the secondary
// directory only when the primary errors. A missing id is not an error;
// the caller renders the bare id.
func (s *AccountabilityService) resolveNames(ctx context.Context, ids []uuid.UUID) map[uuid.UUID]models.Person {
	if len(ids) == 0 {
		return map[uuid.UUID]models.Person{}
	}
	names, err := s.primary.GetNames(ctx, ids)
	if err == nil {
		return names
	}
	s.logger.Warn(ctx, "Primary name lookup failed, using directory fallback", map[string]interface{}{"error": err.Error()})

	if s.secondary != nil {
		names, err = s.secondary.GetNames(ctx, ids)
		if err == nil {
			return names
		}
		s.logger.Error(ctx, "Secondary name lookup failed", err)
	}
	return map[uuid.UUID]models.Person{}
}

// personFor returns the resolved person, or an id-only placeholder when the
// lookups had nothing.
func personFor(names map[uuid.UUID]models.Person, id uuid.UUID) *models.Person {
	if person, ok := names[id]; ok {
		return &person
	}
	return &models.Person{ID: id}
}
