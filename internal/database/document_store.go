package database

import (
	"context"
	"database/sql"
	"time"

	"aipreview/internal/models"
	"aipreview/internal/observability"
	contextutils "aipreview/internal/utils"

	"github.com/google/uuid"
)

// UploadedFileStore reads document facts from the uploaded_files metadata
// table. File contents live in external storage and are never read here.
type UploadedFileStore struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewUploadedFileStore creates a new uploaded file store
func NewUploadedFileStore(db *sql.DB, logger *observability.Logger) *UploadedFileStore {
	if logger == nil {
		panic("logger is required for UploadedFileStore")
	}
	return &UploadedFileStore{db: db, logger: logger}
}

// CurrentFile returns the fact about the newest current document for a
// submission. A submission with no current file yields HasCurrent=false,
// not an error.
func (s *UploadedFileStore) CurrentFile(ctx context.Context, submissionID uuid.UUID) (result0 *models.DocumentFact, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "CurrentFile",
		observability.AttributeSubmissionID(submissionID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT author_id, uploaded_at
		FROM uploaded_files
		WHERE submission_id = $1 AND is_current = TRUE
		ORDER BY uploaded_at DESC
		LIMIT 1`

	var authorID uuid.UUID
	var uploadedAt time.Time
	err = s.db.QueryRowContext(ctx, query, submissionID).Scan(&authorID, &uploadedAt)
	if err == sql.ErrNoRows {
		return &models.DocumentFact{HasCurrent: false}, nil
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query current file")
	}
	return &models.DocumentFact{
		HasCurrent: true,
		AuthorID:   &authorID,
		UploadedAt: &uploadedAt,
	}, nil
}
