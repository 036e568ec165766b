package database

import (
	"context"
	"database/sql"

	"aipreview/internal/models"
	"aipreview/internal/observability"
	contextutils "aipreview/internal/utils"

	"github.com/google/uuid"
)

// FeedbackStore is a Postgres-backed services.FeedbackRepo. Records are
// immutable; corrections are appended as new records.
type FeedbackStore struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewFeedbackStore creates a new feedback store
func NewFeedbackStore(db *sql.DB, logger *observability.Logger) *FeedbackStore {
	if logger == nil {
		panic("logger is required for FeedbackStore")
	}
	return &FeedbackStore{db: db, logger: logger}
}

// Append inserts a feedback record. Replies must point at a parent whose
// root targets the same submission; the chain is resolved before insert.
func (s *FeedbackStore) Append(ctx context.Context, record *models.FeedbackRecord) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "AppendFeedback",
		observability.AttributeSubmissionID(record.SubmissionID),
		observability.AttributeAction(string(record.Kind)),
	)
	defer observability.FinishSpan(span, &err)

	if record.ParentFeedbackID != nil {
		root, resolveErr := s.resolveRoot(ctx, *record.ParentFeedbackID)
		if resolveErr != nil {
			return resolveErr
		}
		if root.SubmissionID != record.SubmissionID {
			return contextutils.WrapError(contextutils.ErrValidationFailed, "reply target does not match its thread root")
		}
	}

	query := `
		INSERT INTO feedback (id, submission_id, line_item_id, parent_feedback_id, kind, body, author_id, author_role, is_public, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING created_at`

	err = s.db.QueryRowContext(ctx, query,
		record.ID, record.SubmissionID, record.LineItemID, record.ParentFeedbackID,
		string(record.Kind), record.Body, record.AuthorID, string(record.AuthorRole), record.IsPublic,
	).Scan(&record.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return contextutils.WrapError(contextutils.ErrRecordNotFound, "submission or parent feedback does not exist")
		}
		return contextutils.WrapError(err, "failed to insert feedback")
	}
	return nil
}

// resolveRoot walks the parent chain up to the thread root.
func (s *FeedbackStore) resolveRoot(ctx context.Context, id uuid.UUID) (*models.FeedbackRecord, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// Chains are shallow in practice; bound the walk anyway.
	for depth := 0; current.ParentFeedbackID != nil; depth++ {
		if depth > 64 {
			return nil, contextutils.WrapError(contextutils.ErrValidationFailed, "feedback parent chain too deep")
		}
		current, err = s.GetByID(ctx, *current.ParentFeedbackID)
		if err != nil {
			return nil, err
		}
	}
	return current, nil
}

const feedbackColumns = `id, submission_id, line_item_id, parent_feedback_id, kind, body, author_id, author_role, is_public, created_at`

// GetByID fetches one feedback record
func (s *FeedbackStore) GetByID(ctx context.Context, id uuid.UUID) (result0 *models.FeedbackRecord, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "GetFeedbackByID")
	defer observability.FinishSpan(span, &err)

	var rec models.FeedbackRecord
	var kind, role string
	err = s.db.QueryRowContext(ctx, `SELECT `+feedbackColumns+` FROM feedback WHERE id = $1`, id).Scan(
		&rec.ID, &rec.SubmissionID, &rec.LineItemID, &rec.ParentFeedbackID,
		&kind, &rec.Body, &rec.AuthorID, &role, &rec.IsPublic, &rec.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, contextutils.ErrRecordNotFound
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get feedback")
	}
	rec.Kind = models.FeedbackKind(kind)
	rec.AuthorRole = models.Role(role)
	return &rec, nil
}

// ListBySubmission returns all records for a submission, oldest first
func (s *FeedbackStore) ListBySubmission(ctx context.Context, submissionID uuid.UUID) (result0 []models.FeedbackRecord, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "ListFeedbackBySubmission",
		observability.AttributeSubmissionID(submissionID),
	)
	defer observability.FinishSpan(span, &err)

	return s.list(ctx, `SELECT `+feedbackColumns+` FROM feedback WHERE submission_id = $1 ORDER BY created_at ASC, id ASC`, submissionID)
}

// ListByRoot returns the records whose parent chain starts at rootID,
// oldest first. The root itself is not included.
func (s *FeedbackStore) ListByRoot(ctx context.Context, rootID uuid.UUID) (result0 []models.FeedbackRecord, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "ListFeedbackByRoot")
	defer observability.FinishSpan(span, &err)

	query := `
		WITH RECURSIVE thread AS (
			SELECT ` + feedbackColumns + ` FROM feedback WHERE parent_feedback_id = $1
			UNION ALL
			SELECT f.id, f.submission_id, f.line_item_id, f.parent_feedback_id, f.kind, f.body, f.author_id, f.author_role, f.is_public, f.created_at
			FROM feedback f JOIN thread t ON f.parent_feedback_id = t.id
		)
		SELECT * FROM thread ORDER BY created_at ASC, id ASC`

	return s.list(ctx, query, rootID)
}

func (s *FeedbackStore) list(ctx context.Context, query string, args ...interface{}) ([]models.FeedbackRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to list feedback")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()

	var records []models.FeedbackRecord
	for rows.Next() {
		var rec models.FeedbackRecord
		var kind, role string
		if err = rows.Scan(
			&rec.ID, &rec.SubmissionID, &rec.LineItemID, &rec.ParentFeedbackID,
			&kind, &rec.Body, &rec.AuthorID, &role, &rec.IsPublic, &rec.CreatedAt,
		); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan feedback")
		}
		rec.Kind = models.FeedbackKind(kind)
		rec.AuthorRole = models.Role(role)
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate feedback")
	}
	return records, nil
}
