// Package models defines data structures used throughout the AIP review service.
package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role identifies the kind of authenticated actor.
type Role string

const (
	// RoleCitizen is an end-user with read-only access to published records
	RoleCitizen Role = "citizen"
	// RoleBarangayOfficial is a submitter official for a local unit
	RoleBarangayOfficial Role = "barangay_official"
	// RoleCityOfficial is an oversight official for a city
	RoleCityOfficial Role = "city_official"
	// RoleMunicipalOfficial is an oversight official for a municipality
	RoleMunicipalOfficial Role = "municipal_official"
	// RoleAdmin is a system administrator
	RoleAdmin Role = "admin"
)

// IsOversight reports whether the role reviews submissions from a parent scope.
func (r Role) IsOversight() bool {
	return r == RoleCityOfficial || r == RoleMunicipalOfficial
}

// ScopeKind identifies a jurisdiction tier.
type ScopeKind string

const (
	// ScopeBarangay is the local unit tier
	ScopeBarangay ScopeKind = "barangay"
	// ScopeCity is the oversight unit tier
	ScopeCity ScopeKind = "city"
	// ScopeMunicipality is the intermediate unit tier
	ScopeMunicipality ScopeKind = "municipality"
	// ScopeNone is used for actors without a jurisdiction (citizens, admins)
	ScopeNone ScopeKind = "none"
)

// Scope is a jurisdiction tier plus unit identifier.
type Scope struct {
	Kind ScopeKind `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

// ActorContext is the authenticated actor derived from the identity provider.
// The core never issues or validates credentials itself.
type ActorContext struct {
	ID    uuid.UUID `json:"id"`
	Role  Role      `json:"role"`
	Scope Scope     `json:"scope"`
	// ParentCityID is the parent city of a barangay official's unit. It is
	// copied onto barangay submissions so reviewer jurisdiction checks can
	// match against it.
	ParentCityID *uuid.UUID `json:"parent_city_id,omitempty"`
}

// SubmissionStatus is the review-workflow status of a submission.
type SubmissionStatus string

const (
	// StatusDraft is the initial editable status
	StatusDraft SubmissionStatus = "draft"
	// StatusPendingReview means the submission is waiting in the review queue
	StatusPendingReview SubmissionStatus = "pending_review"
	// StatusUnderReview means a reviewer has claimed the submission
	StatusUnderReview SubmissionStatus = "under_review"
	// StatusForRevision means the reviewer returned the submission for changes
	StatusForRevision SubmissionStatus = "for_revision"
	// StatusPublished is the terminal status of the normal flow
	StatusPublished SubmissionStatus = "published"
	// StatusCancelled is set by the administrative case track
	StatusCancelled SubmissionStatus = "cancelled"
)

// IsTerminal reports whether no further workflow transition is allowed.
func (s SubmissionStatus) IsTerminal() bool {
	return s == StatusPublished || s == StatusCancelled
}

// Submission is one Annual Investment Plan record per (jurisdiction unit, fiscal year).
// Exactly one of BarangayID, CityID, MunicipalityID is set. Barangay submissions also
// carry the parent city id used for reviewer jurisdiction checks.
type Submission struct {
	ID             uuid.UUID        `json:"id"`
	Title          string           `json:"title"`
	FiscalYear     int              `json:"fiscal_year"`
	BarangayID     *uuid.UUID       `json:"barangay_id,omitempty"`
	CityID         *uuid.UUID       `json:"city_id,omitempty"`
	MunicipalityID *uuid.UUID       `json:"municipality_id,omitempty"`
	ParentCityID   *uuid.UUID       `json:"parent_city_id,omitempty"`
	Status         SubmissionStatus `json:"status"`
	StatusChanged  time.Time        `json:"status_changed_at"`
	SubmittedAt    sql.NullTime     `json:"submitted_at"`
	PublishedAt    sql.NullTime     `json:"published_at"`
	IsArchived     bool             `json:"is_archived"`
	// LegacyRevisionReply preserves the free-text reply of records imported
	// from the pre-threading system. New replies are FeedbackRecords.
	LegacyRevisionReply sql.NullString `json:"-"`
	CreatedBy           uuid.UUID      `json:"created_by"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// Scope returns the submission's own jurisdiction scope.
func (s *Submission) Scope() Scope {
	switch {
	case s.BarangayID != nil:
		return Scope{Kind: ScopeBarangay, ID: *s.BarangayID}
	case s.CityID != nil:
		return Scope{Kind: ScopeCity, ID: *s.CityID}
	case s.MunicipalityID != nil:
		return Scope{Kind: ScopeMunicipality, ID: *s.MunicipalityID}
	}
	return Scope{Kind: ScopeNone}
}

// ParentScope returns the oversight scope responsible for reviewing this
// submission, or a none scope when the submission has no parent tier.
func (s *Submission) ParentScope() Scope {
	if s.ParentCityID != nil {
		return Scope{Kind: ScopeCity, ID: *s.ParentCityID}
	}
	return Scope{Kind: ScopeNone}
}

// MarshalJSON customizes JSON marshaling for Submission to render sql.NullTime as nullable timestamps
func (s Submission) MarshalJSON() ([]byte, error) {
	type alias Submission
	return json.Marshal(&struct {
		alias
		SubmittedAt *time.Time `json:"submitted_at"`
		PublishedAt *time.Time `json:"published_at"`
	}{
		alias:       alias(s),
		SubmittedAt: nullTimeToPointer(s.SubmittedAt),
		PublishedAt: nullTimeToPointer(s.PublishedAt),
	})
}

func nullTimeToPointer(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

func nullStringToPointer(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

// ReviewActionKind is a reviewer decision recorded in the append-only action log.
type ReviewActionKind string

const (
	// ActionClaim marks a reviewer taking ownership of a submission
	ActionClaim ReviewActionKind = "claim"
	// ActionApprove marks approval for publication
	ActionApprove ReviewActionKind = "approve"
	// ActionRequestRevision returns the submission to the submitter with a remark
	ActionRequestRevision ReviewActionKind = "request_revision"
	// ActionUnclaim releases a reviewer's ownership
	ActionUnclaim ReviewActionKind = "unclaim"
)

// ReviewAction is one append-only reviewer decision. Write-once; the
// "claimed-by" fact is derived from these rows, never stored separately.
type ReviewAction struct {
	ID           uuid.UUID        `json:"id"`
	SubmissionID uuid.UUID        `json:"submission_id"`
	ReviewerID   uuid.UUID        `json:"reviewer_id"`
	Kind         ReviewActionKind `json:"action"`
	Note         sql.NullString   `json:"note"`
	CreatedAt    time.Time        `json:"created_at"`
}

// MarshalJSON renders the optional note as a nullable string
func (a ReviewAction) MarshalJSON() ([]byte, error) {
	type alias ReviewAction
	return json.Marshal(&struct {
		alias
		Note *string `json:"note"`
	}{
		alias: alias(a),
		Note:  nullStringToPointer(a.Note),
	})
}

// FeedbackKind tags a feedback record.
type FeedbackKind string

const (
	// FeedbackQuestion is a citizen question
	FeedbackQuestion FeedbackKind = "question"
	// FeedbackConcern is a citizen concern
	FeedbackConcern FeedbackKind = "concern"
	// FeedbackSuggestion is a citizen suggestion
	FeedbackSuggestion FeedbackKind = "suggestion"
	// FeedbackOversightNote is an official note, including revision replies
	FeedbackOversightNote FeedbackKind = "oversight_note"
	// FeedbackCommendation is a citizen commendation
	FeedbackCommendation FeedbackKind = "commendation"
)

// FeedbackRecord represents both oversight remarks and submitter replies.
// Immutable once created; corrections are new records.
type FeedbackRecord struct {
	ID               uuid.UUID    `json:"id"`
	SubmissionID     uuid.UUID    `json:"submission_id"`
	LineItemID       *uuid.UUID   `json:"line_item_id,omitempty"`
	ParentFeedbackID *uuid.UUID   `json:"parent_feedback_id"`
	Kind             FeedbackKind `json:"kind"`
	Body             string       `json:"body"`
	AuthorID         uuid.UUID    `json:"author_id"`
	AuthorRole       Role         `json:"author_role"`
	IsPublic         bool         `json:"is_public"`
	CreatedAt        time.Time    `json:"created_at"`
}

// Activity metadata source layers.
const (
	// ActivitySourceCRUD marks a raw record-mutation entry
	ActivitySourceCRUD = "crud"
	// ActivitySourceWorkflow marks a semantically richer workflow entry
	ActivitySourceWorkflow = "workflow"
)

// Well-known activity action names.
const (
	ActivitySubmissionCreated   = "submission_created"
	ActivitySubmissionUpdated   = "submission_updated"
	ActivitySubmissionDeleted   = "submission_deleted"
	ActivitySubmissionSubmitted = "submission_submitted"
	ActivityReviewStarted       = "review_started"
	ActivityRevisionRequested   = "revision_requested"
	ActivityRevisionReplyPosted = "revision_reply_posted"
	ActivitySubmissionPublished = "submission_published"
	ActivitySubmissionWithdrawn = "submission_withdrawn"
	ActivityDraftDeleted        = "draft_deleted"
	ActivityReviewForceUnclaim  = "review_force_unclaimed"
	ActivitySubmissionCancelled = "submission_cancelled"
	ActivitySubmissionArchived  = "submission_archived"
	ActivitySubmissionRestored  = "submission_unarchived"
	ActivityFeedbackCreated     = "feedback_created"
)

// ActivityMetadata is the structured metadata bag of an audit entry. The
// well-known fields are closed; Extra carries genuinely unstructured
// key/values and is flattened into the same JSON object on marshal.
type ActivityMetadata struct {
	Source        string                 `json:"source,omitempty"`
	Supersedes    string                 `json:"supersedes,omitempty"`
	Details       string                 `json:"details,omitempty"`
	ActorName     string                 `json:"actor_name,omitempty"`
	ActorPosition string                 `json:"actor_position,omitempty"`
	FromStatus    SubmissionStatus       `json:"from_status,omitempty"`
	ToStatus      SubmissionStatus       `json:"to_status,omitempty"`
	Reason        string                 `json:"reason,omitempty"`
	Extra         map[string]interface{} `json:"-"`
}

// MarshalJSON flattens Extra into the metadata object. Well-known keys win
// over colliding Extra keys.
func (m ActivityMetadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(m.Extra)+8)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Source != "" {
		out["source"] = m.Source
	}
	if m.Supersedes != "" {
		out["supersedes"] = m.Supersedes
	}
	if m.Details != "" {
		out["details"] = m.Details
	}
	if m.ActorName != "" {
		out["actor_name"] = m.ActorName
	}
	if m.ActorPosition != "" {
		out["actor_position"] = m.ActorPosition
	}
	if m.FromStatus != "" {
		out["from_status"] = string(m.FromStatus)
	}
	if m.ToStatus != "" {
		out["to_status"] = string(m.ToStatus)
	}
	if m.Reason != "" {
		out["reason"] = m.Reason
	}
	return json.Marshal(out)
}

// UnmarshalJSON pulls the well-known keys out of the object and leaves the
// remainder in Extra.
func (m *ActivityMetadata) UnmarshalJSON(data []byte) error {
	raw := map[string]interface{}{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	popString := func(key string) string {
		v, ok := raw[key]
		if !ok {
			return ""
		}
		delete(raw, key)
		s, _ := v.(string)
		return s
	}
	m.Source = popString("source")
	m.Supersedes = popString("supersedes")
	m.Details = popString("details")
	m.ActorName = popString("actor_name")
	m.ActorPosition = popString("actor_position")
	m.FromStatus = SubmissionStatus(popString("from_status"))
	m.ToStatus = SubmissionStatus(popString("to_status"))
	m.Reason = popString("reason")
	if len(raw) > 0 {
		m.Extra = raw
	} else {
		m.Extra = nil
	}
	return nil
}

// ScopeSnapshot records the jurisdiction of an audit entry at write time.
type ScopeSnapshot struct {
	ScopeType      ScopeKind  `json:"scope_type,omitempty"`
	BarangayID     *uuid.UUID `json:"barangay_id,omitempty"`
	CityID         *uuid.UUID `json:"city_id,omitempty"`
	MunicipalityID *uuid.UUID `json:"municipality_id,omitempty"`
}

// SnapshotScope converts an actor scope into an audit scope snapshot.
func SnapshotScope(scope Scope) ScopeSnapshot {
	snap := ScopeSnapshot{ScopeType: scope.Kind}
	id := scope.ID
	switch scope.Kind {
	case ScopeBarangay:
		snap.BarangayID = &id
	case ScopeCity:
		snap.CityID = &id
	case ScopeMunicipality:
		snap.MunicipalityID = &id
	}
	return snap
}

// ActivityLogEntry is one append-only audit fact. Entries are never mutated
// or deleted; the dedup rule only suppresses display.
type ActivityLogEntry struct {
	ID          uuid.UUID        `json:"id"`
	ActorID     uuid.UUID        `json:"actor_id"`
	ActorRole   Role             `json:"actor_role"`
	Action      string           `json:"action"`
	EntityTable string           `json:"entity_table"`
	EntityID    uuid.UUID        `json:"entity_id"`
	Scope       ScopeSnapshot    `json:"scope"`
	Metadata    ActivityMetadata `json:"metadata"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Person is a resolved display identity for accountability facts.
type Person struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Position string    `json:"position,omitempty"`
	Role     Role      `json:"role,omitempty"`
}

// DocumentFact is the slice of the external file store the core consumes:
// whether a current document exists, who uploaded it, and when. Document
// contents are never read here.
type DocumentFact struct {
	HasCurrent bool       `json:"has_current"`
	AuthorID   *uuid.UUID `json:"author_id,omitempty"`
	UploadedAt *time.Time `json:"uploaded_at,omitempty"`
}
