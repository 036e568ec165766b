package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"aipreview/internal/config"
	"aipreview/internal/models"
	"aipreview/internal/observability"
	"aipreview/internal/serviceinterfaces"
)

// FeedbackHandler exposes public feedback threads and the reviewer/submitter
// revision conversation grouped into cycles.
type FeedbackHandler struct {
	feedback serviceinterfaces.FeedbackService
	config   *config.Config
	logger   *observability.Logger
}

// NewFeedbackHandler creates a FeedbackHandler.
func NewFeedbackHandler(feedback serviceinterfaces.FeedbackService, cfg *config.Config, logger *observability.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		feedback: feedback,
		config:   cfg,
		logger:   logger,
	}
}

// GetRevisionCycles handles GET /v1/submissions/:id/revision-cycles. With a
// page query it returns a single cycle; without one, all cycles.
func (h *FeedbackHandler) GetRevisionCycles(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_revision_cycles")
	defer observability.FinishSpan(span, nil)

	if _, ok := requireActor(c); !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			HandleValidationError(c, "page", raw, "must be an integer")
			return
		}
		cycle, total, err := h.feedback.RevisionCyclePage(ctx, id, page)
		if err != nil {
			HandleAppError(c, err)
			return
		}
		WritePaginated(c, "cycle", cycle, gin.H{"page": page, "total": total}, nil)
		return
	}

	cycles, err := h.feedback.RevisionCycles(ctx, id)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cycles": cycles, "count": len(cycles)})
}

// ListFeedback handles GET /v1/submissions/:id/feedback.
func (h *FeedbackHandler) ListFeedback(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_feedback")
	defer observability.FinishSpan(span, nil)

	if _, ok := requireActor(c); !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	records, err := h.feedback.ListForSubmission(ctx, id)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"feedback": records, "count": len(records)})
}

// GetThread handles GET /v1/feedback/:id/thread.
func (h *FeedbackHandler) GetThread(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_feedback_thread")
	defer observability.FinishSpan(span, nil)

	if _, ok := requireActor(c); !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	records, err := h.feedback.Thread(ctx, id)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"thread": records, "count": len(records)})
}

// PostFeedbackRequest represents a citizen feedback submission.
type PostFeedbackRequest struct {
	Kind       string     `json:"kind" binding:"required"`
	Body       string     `json:"body" binding:"required"`
	LineItemID *uuid.UUID `json:"line_item_id"`
	ParentID   *uuid.UUID `json:"parent_id"`
}

// PostFeedback handles POST /v1/submissions/:id/feedback.
func (h *FeedbackHandler) PostFeedback(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "post_feedback")
	defer observability.FinishSpan(span, nil)

	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req PostFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", err.Error(), "kind and body are required")
		return
	}

	record, err := h.feedback.PostCitizenFeedback(ctx, id, actor, models.FeedbackKind(req.Kind), req.Body, req.LineItemID, req.ParentID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

// RespondRequest carries an official response to a citizen thread.
type RespondRequest struct {
	Body string `json:"body" binding:"required"`
}

// RespondToFeedback handles POST /v1/feedback/:id/respond.
func (h *FeedbackHandler) RespondToFeedback(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "respond_to_feedback")
	defer observability.FinishSpan(span, nil)

	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", err.Error(), "a response body is required")
		return
	}

	record, err := h.feedback.RespondToFeedback(ctx, id, actor, req.Body)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}
