// Package services contains the review workflow business logic. Storage is
// reached through the narrow repository contracts defined here and
// implemented in internal/database.
package services

import (
	"context"
	"time"

	"aipreview/internal/models"

	"github.com/google/uuid"
)

// SubmissionFilter narrows submission listings.
type SubmissionFilter struct {
	Statuses        []models.SubmissionStatus
	FiscalYear      int // 0 = any
	IncludeArchived bool
}

// SubmissionRepo is the persistence contract for submissions. Status moves
// only through CompareAndSetStatus so concurrent writers race on the store's
// conditional write, never on read-modify-write in memory.
type SubmissionRepo interface {
	Create(ctx context.Context, sub *models.Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	ListByScope(ctx context.Context, scope models.Scope, filter SubmissionFilter) ([]*models.Submission, error)
	// CompareAndSetStatus updates status and status-changed-at only when the
	// current status equals expected. submitted-at is set once on the first
	// move to pending_review; published-at on the move to published. Returns
	// ErrConflict when the row exists with a different status and
	// ErrRecordNotFound when it does not exist.
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next models.SubmissionStatus, at time.Time) error
	SetArchived(ctx context.Context, id uuid.UUID, archived bool) error
	// DeleteDraft removes a submission row. Callers must have verified the
	// draft-with-no-review-history precondition first.
	DeleteDraft(ctx context.Context, id uuid.UUID) error
}

// ReviewActionRepo is the append-only store of reviewer decisions.
type ReviewActionRepo interface {
	Append(ctx context.Context, action *models.ReviewAction) error
	// ListBySubmission returns actions ordered by created-at ascending.
	ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]models.ReviewAction, error)
}

// FeedbackRepo is the append-only store of remarks and replies.
type FeedbackRepo interface {
	// Append rejects replies whose parent chain does not resolve to a root
	// with the same submission target.
	Append(ctx context.Context, record *models.FeedbackRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.FeedbackRecord, error)
	// ListBySubmission returns records ordered by created-at ascending.
	ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]models.FeedbackRecord, error)
	ListByRoot(ctx context.Context, rootID uuid.UUID) ([]models.FeedbackRecord, error)
}

// ActivityFilter narrows the audit feed before read-time dedup.
type ActivityFilter struct {
	Roles          []models.Role
	Action         string
	ActorID        *uuid.UUID
	EntityTable    string
	EntityID       *uuid.UUID
	BarangayID     *uuid.UUID
	CityID         *uuid.UUID
	MunicipalityID *uuid.UUID
	FiscalYear     int // 0 = any; matched against metadata
	// Search matches case-insensitively against actor name and details.
	Search string
}

// ActivityLogRepo is the append-only audit store.
type ActivityLogRepo interface {
	Append(ctx context.Context, entry *models.ActivityLogEntry) error
	// List returns the full filtered set ordered by created-at descending.
	// Display dedup and pagination happen above this contract so the total
	// stays stable across pages.
	List(ctx context.Context, filter ActivityFilter) ([]models.ActivityLogEntry, error)
}

// DocumentStore exposes the slice of the external file store the core
// consumes. Document contents are never read here.
type DocumentStore interface {
	CurrentFile(ctx context.Context, submissionID uuid.UUID) (*models.DocumentFact, error)
}

// NameLookup resolves user ids to display identities. The primary
// implementation reads profiles; the secondary reads the user directory and
// is used only when the primary errors.
type NameLookup interface {
	GetNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Person, error)
}
