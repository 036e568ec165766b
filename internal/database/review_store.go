package database

import (
	"context"
	"database/sql"

	"aipreview/internal/models"
	"aipreview/internal/observability"
	contextutils "aipreview/internal/utils"

	"github.com/google/uuid"
)

// ReviewActionStore is a Postgres-backed services.ReviewActionRepo.
// Rows are write-once; there is no update or delete path.
type ReviewActionStore struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewReviewActionStore creates a new review action store
func NewReviewActionStore(db *sql.DB, logger *observability.Logger) *ReviewActionStore {
	if logger == nil {
		panic("logger is required for ReviewActionStore")
	}
	return &ReviewActionStore{db: db, logger: logger}
}

// Append inserts one reviewer decision
func (s *ReviewActionStore) Append(ctx context.Context, action *models.ReviewAction) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "AppendReviewAction",
		observability.AttributeSubmissionID(action.SubmissionID),
		observability.AttributeAction(string(action.Kind)),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		INSERT INTO review_actions (id, submission_id, reviewer_id, action, note, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at`

	err = s.db.QueryRowContext(ctx, query,
		action.ID, action.SubmissionID, action.ReviewerID, string(action.Kind), action.Note,
	).Scan(&action.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return contextutils.WrapError(contextutils.ErrRecordNotFound, "submission does not exist")
		}
		return contextutils.WrapError(err, "failed to insert review action")
	}
	return nil
}

// ListBySubmission returns all actions for a submission, oldest first
func (s *ReviewActionStore) ListBySubmission(ctx context.Context, submissionID uuid.UUID) (result0 []models.ReviewAction, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "ListReviewActions",
		observability.AttributeSubmissionID(submissionID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT id, submission_id, reviewer_id, action, note, created_at
		FROM review_actions
		WHERE submission_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, submissionID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to list review actions")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()

	var actions []models.ReviewAction
	for rows.Next() {
		var a models.ReviewAction
		var kind string
		if err = rows.Scan(&a.ID, &a.SubmissionID, &a.ReviewerID, &kind, &a.Note, &a.CreatedAt); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan review action")
		}
		a.Kind = models.ReviewActionKind(kind)
		actions = append(actions, a)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate review actions")
	}
	return actions, nil
}
