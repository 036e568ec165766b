package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"aipreview/internal/config"
	"aipreview/internal/middleware"
	"aipreview/internal/models"
	"aipreview/internal/observability"
	"aipreview/internal/serviceinterfaces"
	"aipreview/internal/services"
	contextutils "aipreview/internal/utils"
)

// SubmissionHandler exposes the submission review workflow over HTTP.
type SubmissionHandler struct {
	workflow serviceinterfaces.WorkflowService
	config   *config.Config
	logger   *observability.Logger
}

// NewSubmissionHandler creates a SubmissionHandler.
func NewSubmissionHandler(workflow serviceinterfaces.WorkflowService, cfg *config.Config, logger *observability.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		workflow: workflow,
		config:   cfg,
		logger:   logger,
	}
}

// requireActor pulls the authenticated actor from the Gin context. The auth
// middleware sets it; a missing actor means the route was wired without
// RequireAuth.
func requireActor(c *gin.Context) (models.ActorContext, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return models.ActorContext{}, false
	}
	return actor, true
}

// parseIDParam parses a uuid path parameter, writing a 400 on failure.
func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		HandleValidationError(c, name, c.Param(name), "must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// CreateDraftRequest represents a POST request to create a draft.
type CreateDraftRequest struct {
	Title      string `json:"title" binding:"required"`
	FiscalYear int    `json:"fiscal_year" binding:"required"`
}

// CreateDraft handles POST /v1/submissions.
func (h *SubmissionHandler) CreateDraft(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "create_draft")
	defer observability.FinishSpan(span, nil)

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req CreateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", err.Error(), "title and fiscal_year are required")
		return
	}

	sub, err := h.workflow.CreateDraft(ctx, actor, req.Title, req.FiscalYear)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sub)
}

// GetSubmission handles GET /v1/submissions/:id.
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_submission")
	defer observability.FinishSpan(span, nil)

	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	sub, err := h.workflow.Get(ctx, id)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	// Citizens only see published records.
	if actor.Role == models.RoleCitizen && sub.Status != models.StatusPublished {
		HandleAppError(c, contextutils.ErrRecordNotFound)
		return
	}

	c.JSON(http.StatusOK, sub)
}

// ListSubmissions handles GET /v1/submissions. Officials list their own
// jurisdiction by default; an explicit scope_kind/scope_id pair overrides it.
func (h *SubmissionHandler) ListSubmissions(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_submissions")
	defer observability.FinishSpan(span, nil)

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	scope := actor.Scope
	filters := ParseFilters(c, "scope_kind", "scope_id", "status", "fiscal_year", "include_archived")
	if kind, okKind := filters["scope_kind"]; okKind {
		rawID, okID := filters["scope_id"]
		if !okID {
			HandleValidationError(c, "scope_id", "", "scope_id is required when scope_kind is set")
			return
		}
		scopeID, err := uuid.Parse(rawID)
		if err != nil {
			HandleValidationError(c, "scope_id", rawID, "must be a valid UUID")
			return
		}
		scope = models.Scope{Kind: models.ScopeKind(kind), ID: scopeID}
	}

	filter := services.SubmissionFilter{}
	if raw, okStatus := filters["status"]; okStatus {
		for _, s := range strings.Split(raw, ",") {
			filter.Statuses = append(filter.Statuses, models.SubmissionStatus(strings.TrimSpace(s)))
		}
	}
	if raw, okYear := filters["fiscal_year"]; okYear {
		year, err := strconv.Atoi(raw)
		if err != nil {
			HandleValidationError(c, "fiscal_year", raw, "must be an integer")
			return
		}
		filter.FiscalYear = year
	}
	filter.IncludeArchived = filters["include_archived"] == "true"

	// Citizens see the published slice only, regardless of requested filters.
	if actor.Role == models.RoleCitizen {
		filter.Statuses = []models.SubmissionStatus{models.StatusPublished}
		filter.IncludeArchived = false
	}

	subs, err := h.workflow.ListByScope(ctx, scope, filter)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"submissions": subs, "count": len(subs)})
}

// SubmitRequest carries the optional inline revision reply posted together
// with a resubmission.
type SubmitRequest struct {
	RevisionReply string `json:"revision_reply"`
}

// Submit handles POST /v1/submissions/:id/submit.
func (h *SubmissionHandler) Submit(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "submit_submission")
	defer observability.FinishSpan(span, nil)

	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req SubmitRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, "request body", err.Error(), "malformed JSON")
			return
		}
	}

	sub, err := h.workflow.Submit(ctx, id, actor, req.RevisionReply)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

// StartReview handles POST /v1/submissions/:id/start-review.
func (h *SubmissionHandler) StartReview(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "start_review")
	defer observability.FinishSpan(span, nil)

	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	sub, err := h.workflow.StartReview(ctx, id, actor)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

// ReviewNoteRequest carries a reviewer remark for request-revision and
// publish decisions.
type ReviewNoteRequest struct {
	Note string `json:"note"`
}

// RequestRevision handles POST /v1/submissions/:id/request-revision.
func (h *SubmissionHandler) RequestRevision(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "request_revision")
	defer observability.FinishSpan(span, nil)

	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req ReviewNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", err.Error(), "a note is required")
		return
	}

	sub, err := h.workflow.RequestRevision(ctx, id, actor, req.Note)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

// Publish handles POST /v1/submissions/:id/publish.
func (h *SubmissionHandler) Publish(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "publish_submission")
	defer observability.FinishSpan(span, nil)

	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req ReviewNoteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, "request body", err.Error(), "malformed JSON")
			return
		}
	}

	sub, err := h.workflow.Publish(ctx, id, actor, req.Note)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

// Withdraw handles POST /v1/submissions/:id/withdraw.
func (h *SubmissionHandler) Withdraw(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "withdraw_submission")
	defer observability.FinishSpan(span, nil)

	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	sub, err := h.workflow.Withdraw(ctx, id, actor)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

// RevisionReplyRequest carries a submitter reply to the open revision request.
type RevisionReplyRequest struct {
	Body string `json:"body" binding:"required"`
}

// PostRevisionReply handles POST /v1/submissions/:id/revision-reply.
func (h *SubmissionHandler) PostRevisionReply(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "post_revision_reply")
	defer observability.FinishSpan(span, nil)

	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req RevisionReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", err.Error(), "a reply body is required")
		return
	}

	record, err := h.workflow.PostRevisionReply(ctx, id, actor, req.Body)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

// DeleteDraft handles DELETE /v1/submissions/:id.
func (h *SubmissionHandler) DeleteDraft(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "delete_draft")
	defer observability.FinishSpan(span, nil)

	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.workflow.DeleteDraft(ctx, id, actor); err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
