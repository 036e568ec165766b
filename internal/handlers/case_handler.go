package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"aipreview/internal/config"
	"aipreview/internal/observability"
	"aipreview/internal/serviceinterfaces"
)

// CaseHandler exposes the administrative case track: claim inspection plus
// the admin-only force-unclaim, cancel and archive operations.
type CaseHandler struct {
	cases  serviceinterfaces.CaseService
	config *config.Config
	logger *observability.Logger
}

// NewCaseHandler creates a CaseHandler.
func NewCaseHandler(cases serviceinterfaces.CaseService, cfg *config.Config, logger *observability.Logger) *CaseHandler {
	return &CaseHandler{
		cases:  cases,
		config: cfg,
		logger: logger,
	}
}

// GetClaim handles GET /v1/submissions/:id/claim.
func (h *CaseHandler) GetClaim(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_claim")
	defer observability.FinishSpan(span, nil)

	if _, ok := requireActor(c); !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	claimedBy, err := h.cases.ClaimedBy(ctx, id)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"claimed_by": claimedBy, "claimed": claimedBy != nil})
}

// CaseReasonRequest carries the mandatory reason for an administrative action.
type CaseReasonRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ForceUnclaim handles POST /v1/admin/submissions/:id/force-unclaim.
func (h *CaseHandler) ForceUnclaim(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "force_unclaim")
	defer observability.FinishSpan(span, nil)

	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req CaseReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", err.Error(), "a reason is required")
		return
	}

	if err := h.cases.ForceUnclaim(ctx, id, actor, req.Reason); err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unclaimed": true})
}

// Cancel handles POST /v1/admin/submissions/:id/cancel.
func (h *CaseHandler) Cancel(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "cancel_submission")
	defer observability.FinishSpan(span, nil)

	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req CaseReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", err.Error(), "a reason is required")
		return
	}

	if err := h.cases.Cancel(ctx, id, actor, req.Reason); err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

// Archive handles POST /v1/admin/submissions/:id/archive.
func (h *CaseHandler) Archive(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "archive_submission")
	defer observability.FinishSpan(span, nil)

	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req CaseReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", err.Error(), "a reason is required")
		return
	}

	if err := h.cases.Archive(ctx, id, actor, req.Reason); err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"archived": true})
}

// Unarchive handles POST /v1/admin/submissions/:id/unarchive.
func (h *CaseHandler) Unarchive(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "unarchive_submission")
	defer observability.FinishSpan(span, nil)

	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req CaseReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", err.Error(), "a reason is required")
		return
	}

	if err := h.cases.Unarchive(ctx, id, actor, req.Reason); err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"archived": false})
}
