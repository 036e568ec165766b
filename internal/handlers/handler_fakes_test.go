package handlers

import (
	"context"
	"testing"

	"aipreview/internal/config"
	"aipreview/internal/middleware"
	"aipreview/internal/models"
	"aipreview/internal/observability"
	"aipreview/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MockWorkflowService is a hand-rolled workflow fake for handler tests.
// Each method returns the configured submission or error and records the
// arguments it was called with.
type MockWorkflowService struct {
	submission *models.Submission
	record     *models.FeedbackRecord
	listed     []*models.Submission
	err        error

	lastActor  models.ActorContext
	lastID     uuid.UUID
	lastScope  models.Scope
	lastFilter services.SubmissionFilter
	lastNote   string
}

func (m *MockWorkflowService) Get(_ context.Context, id uuid.UUID) (*models.Submission, error) {
	m.lastID = id
	return m.submission, m.err
}

func (m *MockWorkflowService) ListByScope(_ context.Context, scope models.Scope, filter services.SubmissionFilter) ([]*models.Submission, error) {
	m.lastScope = scope
	m.lastFilter = filter
	return m.listed, m.err
}

func (m *MockWorkflowService) CreateDraft(_ context.Context, actor models.ActorContext, title string, fiscalYear int) (*models.Submission, error) {
	m.lastActor = actor
	m.lastNote = title
	return m.submission, m.err
}

func (m *MockWorkflowService) Submit(_ context.Context, id uuid.UUID, actor models.ActorContext, revisionReply string) (*models.Submission, error) {
	m.lastID = id
	m.lastActor = actor
	m.lastNote = revisionReply
	return m.submission, m.err
}

func (m *MockWorkflowService) StartReview(_ context.Context, id uuid.UUID, actor models.ActorContext) (*models.Submission, error) {
	m.lastID = id
	m.lastActor = actor
	return m.submission, m.err
}

func (m *MockWorkflowService) RequestRevision(_ context.Context, id uuid.UUID, actor models.ActorContext, note string) (*models.Submission, error) {
	m.lastID = id
	m.lastActor = actor
	m.lastNote = note
	return m.submission, m.err
}

func (m *MockWorkflowService) Publish(_ context.Context, id uuid.UUID, actor models.ActorContext, note string) (*models.Submission, error) {
	m.lastID = id
	m.lastActor = actor
	m.lastNote = note
	return m.submission, m.err
}

func (m *MockWorkflowService) Withdraw(_ context.Context, id uuid.UUID, actor models.ActorContext) (*models.Submission, error) {
	m.lastID = id
	m.lastActor = actor
	return m.submission, m.err
}

func (m *MockWorkflowService) PostRevisionReply(_ context.Context, id uuid.UUID, actor models.ActorContext, body string) (*models.FeedbackRecord, error) {
	m.lastID = id
	m.lastActor = actor
	m.lastNote = body
	return m.record, m.err
}

func (m *MockWorkflowService) DeleteDraft(_ context.Context, id uuid.UUID, actor models.ActorContext) error {
	m.lastID = id
	m.lastActor = actor
	return m.err
}

// MockCaseService fakes the administrative case track.
type MockCaseService struct {
	claimedBy *uuid.UUID
	err       error

	lastID     uuid.UUID
	lastActor  models.ActorContext
	lastReason string
}

func (m *MockCaseService) ClaimedBy(_ context.Context, submissionID uuid.UUID) (*uuid.UUID, error) {
	m.lastID = submissionID
	return m.claimedBy, m.err
}

func (m *MockCaseService) ForceUnclaim(_ context.Context, submissionID uuid.UUID, admin models.ActorContext, reason string) error {
	m.lastID = submissionID
	m.lastActor = admin
	m.lastReason = reason
	return m.err
}

func (m *MockCaseService) Cancel(_ context.Context, submissionID uuid.UUID, admin models.ActorContext, reason string) error {
	m.lastID = submissionID
	m.lastActor = admin
	m.lastReason = reason
	return m.err
}

func (m *MockCaseService) Archive(_ context.Context, submissionID uuid.UUID, admin models.ActorContext, reason string) error {
	m.lastID = submissionID
	m.lastActor = admin
	m.lastReason = reason
	return m.err
}

func (m *MockCaseService) Unarchive(_ context.Context, submissionID uuid.UUID, admin models.ActorContext, reason string) error {
	m.lastID = submissionID
	m.lastActor = admin
	m.lastReason = reason
	return m.err
}

// MockActivityService fakes the audit feed.
type MockActivityService struct {
	page    *services.FeedPage
	entries []models.ActivityLogEntry
	err     error

	lastActor models.ActorContext
	lastReq   services.FeedRequest
	lastTable string
	lastID    uuid.UUID
}

func (m *MockActivityService) Feed(_ context.Context, actor models.ActorContext, req services.FeedRequest) (*services.FeedPage, error) {
	m.lastActor = actor
	m.lastReq = req
	return m.page, m.err
}

func (m *MockActivityService) EntityHistory(_ context.Context, entityTable string, entityID uuid.UUID) ([]models.ActivityLogEntry, error) {
	m.lastTable = entityTable
	m.lastID = entityID
	return m.entries, m.err
}

// MockFeedbackService fakes feedback threads and revision cycles.
type MockFeedbackService struct {
	cycles  []services.RevisionCycle
	cycle   *services.RevisionCycle
	total   int
	records []models.FeedbackRecord
	record  *models.FeedbackRecord
	err     error

	lastID     uuid.UUID
	lastActor  models.ActorContext
	lastKind   models.FeedbackKind
	lastBody   string
	lastPage   int
	lastParent *uuid.UUID
}

func (m *MockFeedbackService) RevisionCycles(_ context.Context, submissionID uuid.UUID) ([]services.RevisionCycle, error) {
	m.lastID = submissionID
	return m.cycles, m.err
}

func (m *MockFeedbackService) RevisionCyclePage(_ context.Context, submissionID uuid.UUID, page int) (*services.RevisionCycle, int, error) {
	m.lastID = submissionID
	m.lastPage = page
	return m.cycle, m.total, m.err
}

func (m *MockFeedbackService) ListForSubmission(_ context.Context, submissionID uuid.UUID) ([]models.FeedbackRecord, error) {
	m.lastID = submissionID
	return m.records, m.err
}

func (m *MockFeedbackService) Thread(_ context.Context, rootID uuid.UUID) ([]models.FeedbackRecord, error) {
	m.lastID = rootID
	return m.records, m.err
}

func (m *MockFeedbackService) PostCitizenFeedback(_ context.Context, submissionID uuid.UUID, actor models.ActorContext, kind models.FeedbackKind, body string, lineItemID, parentID *uuid.UUID) (*models.FeedbackRecord, error) {
	m.lastID = submissionID
	m.lastActor = actor
	m.lastKind = kind
	m.lastBody = body
	m.lastParent = parentID
	return m.record, m.err
}

func (m *MockFeedbackService) RespondToFeedback(_ context.Context, parentID uuid.UUID, actor models.ActorContext, body string) (*models.FeedbackRecord, error) {
	m.lastID = parentID
	m.lastActor = actor
	m.lastBody = body
	return m.record, m.err
}

// MockAccountabilityService fakes accountability resolution.
type MockAccountabilityService struct {
	facts *services.Accountability
	err   error

	lastID uuid.UUID
}

func (m *MockAccountabilityService) Resolve(_ context.Context, submissionID uuid.UUID) (*services.Accountability, error) {
	m.lastID = submissionID
	return m.facts, m.err
}

func handlerTestLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}

func handlerTestConfig() *config.Config {
	return &config.Config{
		Audit: config.AuditConfig{DefaultPageSize: 20, MaxPageSize: 100},
	}
}

// newHandlerRouter builds a bare test router that injects the given actor
// the way the auth middleware would.
func newHandlerRouter(t *testing.T, actor *models.ActorContext, register func(*gin.Engine)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	if actor != nil {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.ActorKey, *actor)
			c.Set(middleware.ActorIDKey, actor.ID.String())
			c.Next()
		})
	}
	register(router)
	return router
}

func officialActor(role models.Role, kind models.ScopeKind) models.ActorContext {
	return models.ActorContext{
		ID:    uuid.New(),
		Role:  role,
		Scope: models.Scope{Kind: kind, ID: uuid.New()},
	}
}
