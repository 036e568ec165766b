package services

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"aipreview/internal/models"
	contextutils "aipreview/internal/utils"

	"github.com/google/uuid"
)

// fakeClock hands out strictly increasing timestamps so ordering-sensitive
// logic (cycle assignment, dedup windows, claim derivation) is deterministic.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeSubmissionRepo struct {
	mu    sync.Mutex
	subs  map[uuid.UUID]*models.Submission
	clock *fakeClock
	// beforeCAS runs before each conditional status write. Tests use it to
	// slip a concurrent writer between a read and the write.
	beforeCAS func()
}

func newFakeSubmissionRepo(clock *fakeClock) *fakeSubmissionRepo {
	return &fakeSubmissionRepo{subs: map[uuid.UUID]*models.Submission{}, clock: clock}
}

func (r *fakeSubmissionRepo) Create(ctx context.Context, sub *models.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.subs {
		if existing.FiscalYear == sub.FiscalYear && existing.Scope() == sub.Scope() {
			return contextutils.WrapError(contextutils.ErrRecordExists, "a submission already exists for this unit and fiscal year")
		}
	}
	now := r.clock.Now()
	sub.StatusChanged = now
	sub.CreatedAt = now
	sub.UpdatedAt = now
	copied := *sub
	r.subs[sub.ID] = &copied
	return nil
}

func (r *fakeSubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "submission not found")
	}
	copied := *sub
	return &copied, nil
}

func (r *fakeSubmissionRepo) ListByScope(ctx context.Context, scope models.Scope, filter SubmissionFilter) ([]*models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Submission
	for _, sub := range r.subs {
		if sub.Scope() != scope && sub.ParentScope() != scope {
			continue
		}
		if !filter.IncludeArchived && sub.IsArchived {
			continue
		}
		if filter.FiscalYear != 0 && sub.FiscalYear != filter.FiscalYear {
			continue
		}
		if len(filter.Statuses) > 0 {
			match := false
			for _, st := range filter.Statuses {
				if sub.Status == st {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		copied := *sub
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeSubmissionRepo) CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next models.SubmissionStatus, at time.Time) error {
	if r.beforeCAS != nil {
		r.beforeCAS()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return contextutils.WrapError(contextutils.ErrRecordNotFound, "submission not found")
	}
	if sub.Status != expected {
		return contextutils.WrapErrorf(contextutils.ErrConflict, "submission status is %q, expected %q", sub.Status, expected)
	}
	sub.Status = next
	sub.StatusChanged = at
	if next == models.StatusPendingReview && !sub.SubmittedAt.Valid {
		sub.SubmittedAt.Time, sub.SubmittedAt.Valid = at, true
	}
	if next == models.StatusPublished && !sub.PublishedAt.Valid {
		sub.PublishedAt.Time, sub.PublishedAt.Valid = at, true
	}
	sub.UpdatedAt = at
	return nil
}

func (r *fakeSubmissionRepo) SetArchived(ctx context.Context, id uuid.UUID, archived bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return contextutils.WrapError(contextutils.ErrRecordNotFound, "submission not found")
	}
	sub.IsArchived = archived
	return nil
}

func (r *fakeSubmissionRepo) DeleteDraft(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return contextutils.WrapError(contextutils.ErrRecordNotFound, "submission not found")
	}
	if sub.Status != models.StatusDraft {
		return contextutils.WrapError(contextutils.ErrConflict, "only drafts can be deleted")
	}
	delete(r.subs, id)
	return nil
}

// setStatus mutates stored state directly, bypassing the conditional write.
// Tests use it to simulate a concurrent writer winning the race.
func (r *fakeSubmissionRepo) setStatus(id uuid.UUID, status models.SubmissionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[id].Status = status
}

type fakeReviewActionRepo struct {
	mu      sync.Mutex
	actions []models.ReviewAction
	clock   *fakeClock
}

func newFakeReviewActionRepo(clock *fakeClock) *fakeReviewActionRepo {
	return &fakeReviewActionRepo{clock: clock}
}

func (r *fakeReviewActionRepo) Append(ctx context.Context, action *models.ReviewAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if action.CreatedAt.IsZero() {
		action.CreatedAt = r.clock.Now()
	}
	r.actions = append(r.actions, *action)
	return nil
}

func (r *fakeReviewActionRepo) ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]models.ReviewAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ReviewAction
	for _, a := range r.actions {
		if a.SubmissionID == submissionID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type fakeFeedbackRepo struct {
	mu      sync.Mutex
	records []models.FeedbackRecord
	clock   *fakeClock
}

func newFakeFeedbackRepo(clock *fakeClock) *fakeFeedbackRepo {
	return &fakeFeedbackRepo{clock: clock}
}

func (r *fakeFeedbackRepo) Append(ctx context.Context, record *models.FeedbackRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if record.ParentFeedbackID != nil {
		root, ok := r.rootOf(*record.ParentFeedbackID)
		if !ok {
			return contextutils.WrapError(contextutils.ErrRecordNotFound, "parent feedback not found")
		}
		if root.SubmissionID != record.SubmissionID {
			return contextutils.WrapError(contextutils.ErrValidationFailed, "reply target does not match its thread root")
		}
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = r.clock.Now()
	}
	r.records = append(r.records, *record)
	return nil
}

func (r *fakeFeedbackRepo) rootOf(id uuid.UUID) (models.FeedbackRecord, bool) {
	for range r.records {
		found := false
		for _, rec := range r.records {
			if rec.ID == id {
				if rec.ParentFeedbackID == nil {
					return rec, true
				}
				id = *rec.ParentFeedbackID
				found = true
				break
			}
		}
		if !found {
			break
		}
	}
	return models.FeedbackRecord{}, false
}

func (r *fakeFeedbackRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.FeedbackRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id {
			copied := rec
			return &copied, nil
		}
	}
	return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "feedback not found")
}

func (r *fakeFeedbackRepo) ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]models.FeedbackRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FeedbackRecord
	for _, rec := range r.records {
		if rec.SubmissionID == submissionID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeFeedbackRepo) ListByRoot(ctx context.Context, rootID uuid.UUID) ([]models.FeedbackRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FeedbackRecord
	for _, rec := range r.records {
		if rec.ID == rootID {
			out = append(out, rec)
			continue
		}
		if root, ok := r.rootOf(rec.ID); ok && root.ID == rootID && rec.ID != rootID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type fakeActivityLogRepo struct {
	mu      sync.Mutex
	entries []models.ActivityLogEntry
	clock   *fakeClock
}

func newFakeActivityLogRepo(clock *fakeClock) *fakeActivityLogRepo {
	return &fakeActivityLogRepo{clock: clock}
}

func (r *fakeActivityLogRepo) Append(ctx context.Context, entry *models.ActivityLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.clock.Now()
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeActivityLogRepo) List(ctx context.Context, filter ActivityFilter) ([]models.ActivityLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ActivityLogEntry
	for _, e := range r.entries {
		if !matchesActivityFilter(e, filter) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func matchesActivityFilter(e models.ActivityLogEntry, filter ActivityFilter) bool {
	if len(filter.Roles) > 0 {
		match := false
		for _, role := range filter.Roles {
			if e.ActorRole == role {
				match = true
			}
		}
		if !match {
			return false
		}
	}
	if filter.Action != "" && e.Action != filter.Action {
		return false
	}
	if filter.ActorID != nil && e.ActorID != *filter.ActorID {
		return false
	}
	if filter.EntityTable != "" && e.EntityTable != filter.EntityTable {
		return false
	}
	if filter.EntityID != nil && e.EntityID != *filter.EntityID {
		return false
	}
	if filter.BarangayID != nil && (e.Scope.BarangayID == nil || *e.Scope.BarangayID != *filter.BarangayID) {
		return false
	}
	if filter.CityID != nil && (e.Scope.CityID == nil || *e.Scope.CityID != *filter.CityID) {
		return false
	}
	if filter.MunicipalityID != nil && (e.Scope.MunicipalityID == nil || *e.Scope.MunicipalityID != *filter.MunicipalityID) {
		return false
	}
	if filter.FiscalYear != 0 {
		raw, ok := e.Metadata.Extra["fiscal_year"]
		if !ok {
			return false
		}
		var year string
		switch v := raw.(type) {
		case int:
			year = strconv.Itoa(v)
		case float64:
			year = strconv.Itoa(int(v))
		case string:
			year = v
		}
		if year != strconv.Itoa(filter.FiscalYear) {
			return false
		}
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(e.Metadata.ActorName), needle) &&
			!strings.Contains(strings.ToLower(e.Metadata.Details), needle) {
			return false
		}
	}
	return true
}

type fakeDocumentStore struct {
	mu    sync.Mutex
	facts map[uuid.UUID]models.DocumentFact
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{facts: map[uuid.UUID]models.DocumentFact{}}
}

func (s *fakeDocumentStore) setCurrent(submissionID, authorID uuid.UUID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts[submissionID] = models.DocumentFact{HasCurrent: true, AuthorID: &authorID, UploadedAt: &at}
}

func (s *fakeDocumentStore) CurrentFile(ctx context.Context, submissionID uuid.UUID) (*models.DocumentFact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fact, ok := s.facts[submissionID]
	if !ok {
		return &models.DocumentFact{}, nil
	}
	copied := fact
	return &copied, nil
}

type fakeNameLookup struct {
	names map[uuid.UUID]models.Person
	err   error
	calls int
}

func newFakeNameLookup(people ...models.Person) *fakeNameLookup {
	names := map[uuid.UUID]models.Person{}
	for _, p := range people {
		names[p.ID] = p
	}
	return &fakeNameLookup{names: names}
}

func (l *fakeNameLookup) GetNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Person, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	out := map[uuid.UUID]models.Person{}
	for _, id := range ids {
		if p, ok := l.names[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
