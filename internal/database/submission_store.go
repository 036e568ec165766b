package database

import (
	"context"
	"database/sql"
	"time"

	"aipreview/internal/models"
	"aipreview/internal/observability"
	"aipreview/internal/services"
	contextutils "aipreview/internal/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// SubmissionStore is a Postgres-backed services.SubmissionRepo.
type SubmissionStore struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewSubmissionStore creates a new submission store
func NewSubmissionStore(db *sql.DB, logger *observability.Logger) *SubmissionStore {
	if logger == nil {
		panic("logger is required for SubmissionStore")
	}
	return &SubmissionStore{db: db, logger: logger}
}

const submissionColumns = `id, title, fiscal_year, barangay_id, city_id, municipality_id, parent_city_id,
	status, status_changed_at, submitted_at, published_at, is_archived, legacy_revision_reply, created_by, created_at, updated_at`

// Create inserts a new submission row
func (s *SubmissionStore) Create(ctx context.Context, sub *models.Submission) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "CreateSubmission",
		observability.AttributeSubmissionID(sub.ID),
		observability.AttributeFiscalYear(sub.FiscalYear),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		INSERT INTO submissions (id, title, fiscal_year, barangay_id, city_id, municipality_id, parent_city_id,
			status, status_changed_at, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), $9, NOW(), NOW())
		RETURNING status_changed_at, created_at, updated_at`

	err = s.db.QueryRowContext(ctx, query,
		sub.ID, sub.Title, sub.FiscalYear,
		sub.BarangayID, sub.CityID, sub.MunicipalityID, sub.ParentCityID,
		sub.Status, sub.CreatedBy,
	).Scan(&sub.StatusChanged, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return contextutils.WrapError(contextutils.ErrRecordExists, "a submission already exists for this unit and fiscal year")
		}
		return contextutils.WrapError(err, "failed to insert submission")
	}
	return nil
}

// GetByID fetches one submission
func (s *SubmissionStore) GetByID(ctx context.Context, id uuid.UUID) (result0 *models.Submission, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "GetSubmissionByID",
		observability.AttributeSubmissionID(id),
	)
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`

	var sub models.Submission
	err = s.db.QueryRowContext(ctx, query, id).Scan(
		&sub.ID, &sub.Title, &sub.FiscalYear,
		&sub.BarangayID, &sub.CityID, &sub.MunicipalityID, &sub.ParentCityID,
		&sub.Status, &sub.StatusChanged, &sub.SubmittedAt, &sub.PublishedAt,
		&sub.IsArchived, &sub.LegacyRevisionReply, &sub.CreatedBy, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, contextutils.ErrRecordNotFound
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get submission")
	}
	return &sub, nil
}

// ListByScope lists submissions belonging to a jurisdiction unit. For a city
// scope this includes barangay submissions whose parent city matches, so
// oversight queues see their whole review workload.
func (s *SubmissionStore) ListByScope(ctx context.Context, scope models.Scope, filter services.SubmissionFilter) (result0 []*models.Submission, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "ListSubmissionsByScope",
		attribute.String("scope.kind", string(scope.Kind)),
	)
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE 1=1`
	args := []interface{}{}

	switch scope.Kind {
	case models.ScopeBarangay:
		args = append(args, scope.ID)
		query += ` AND barangay_id = $1`
	case models.ScopeCity:
		args = append(args, scope.ID)
		query += ` AND (city_id = $1 OR parent_city_id = $1)`
	case models.ScopeMunicipality:
		args = append(args, scope.ID)
		query += ` AND municipality_id = $1`
	}

	if len(filter.Statuses) > 0 {
		query += ` AND status IN (`
		for i, st := range filter.Statuses {
			if i > 0 {
				query += `, `
			}
			args = append(args, string(st))
			query += placeholder(len(args))
		}
		query += `)`
	}
	if filter.FiscalYear != 0 {
		args = append(args, filter.FiscalYear)
		query += ` AND fiscal_year = ` + placeholder(len(args))
	}
	if !filter.IncludeArchived {
		query += ` AND is_archived = FALSE`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to list submissions")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()

	var subs []*models.Submission
	for rows.Next() {
		var sub models.Submission
		if err = rows.Scan(
			&sub.ID, &sub.Title, &sub.FiscalYear,
			&sub.BarangayID, &sub.CityID, &sub.MunicipalityID, &sub.ParentCityID,
			&sub.Status, &sub.StatusChanged, &sub.SubmittedAt, &sub.PublishedAt,
			&sub.IsArchived, &sub.LegacyRevisionReply, &sub.CreatedBy, &sub.CreatedAt, &sub.UpdatedAt,
		); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan submission")
		}
		subs = append(subs, &sub)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate submissions")
	}
	return subs, nil
}

// CompareAndSetStatus moves status only when the stored status equals
// expected. submitted_at is set once on the first move to pending_review and
// published_at on the move to published; both survive later transitions.
func (s *SubmissionStore) CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next models.SubmissionStatus, at time.Time) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "CompareAndSetStatus",
		observability.AttributeSubmissionID(id),
		attribute.String("status.expected", string(expected)),
		attribute.String("status.next", string(next)),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		UPDATE submissions
		SET status = $1,
			status_changed_at = $2,
			submitted_at = CASE WHEN $1 = 'pending_review' THEN COALESCE(submitted_at, $2) ELSE submitted_at END,
			published_at = CASE WHEN $1 = 'published' THEN COALESCE(published_at, $2) ELSE published_at END,
			updated_at = NOW()
		WHERE id = $3 AND status = $4`

	res, err := s.db.ExecContext(ctx, query, string(next), at, id, string(expected))
	if err != nil {
		return contextutils.WrapError(err, "failed to update submission status")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to read rows affected")
	}
	if affected == 0 {
		// Distinguish a lost race from a missing row.
		var current string
		scanErr := s.db.QueryRowContext(ctx, `SELECT status FROM submissions WHERE id = $1`, id).Scan(&current)
		if scanErr == sql.ErrNoRows {
			return contextutils.ErrRecordNotFound
		}
		if scanErr != nil {
			return contextutils.WrapError(scanErr, "failed to re-read submission status")
		}
		return contextutils.WrapErrorf(contextutils.ErrConflict, "submission status is %q, expected %q", current, expected)
	}
	return nil
}

// SetArchived toggles the archive flag without touching status
func (s *SubmissionStore) SetArchived(ctx context.Context, id uuid.UUID, archived bool) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "SetSubmissionArchived",
		observability.AttributeSubmissionID(id),
		attribute.Bool("archived", archived),
	)
	defer observability.FinishSpan(span, &err)

	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET is_archived = $1, updated_at = NOW() WHERE id = $2`,
		archived, id)
	if err != nil {
		return contextutils.WrapError(err, "failed to set archive flag")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to read rows affected")
	}
	if affected == 0 {
		return contextutils.ErrRecordNotFound
	}
	return nil
}

// DeleteDraft removes a submission row. The workflow layer has already
// verified the no-review-history precondition; the status guard here is a
// backstop against racing submits.
func (s *SubmissionStore) DeleteDraft(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "DeleteDraft",
		observability.AttributeSubmissionID(id),
	)
	defer observability.FinishSpan(span, &err)

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM submissions WHERE id = $1 AND status = 'draft'`, id)
	if err != nil {
		return contextutils.WrapError(err, "failed to delete draft")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to read rows affected")
	}
	if affected == 0 {
		var current string
		scanErr := s.db.QueryRowContext(ctx, `SELECT status FROM submissions WHERE id = $1`, id).Scan(&current)
		if scanErr == sql.ErrNoRows {
			return contextutils.ErrRecordNotFound
		}
		if scanErr != nil {
			return contextutils.WrapError(scanErr, "failed to re-read submission status")
		}
		return contextutils.WrapErrorf(contextutils.ErrConflict, "submission status is %q, only drafts can be deleted", current)
	}
	return nil
}
