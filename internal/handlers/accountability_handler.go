package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"aipreview/internal/config"
	"aipreview/internal/observability"
	"aipreview/internal/serviceinterfaces"
)

// AccountabilityHandler exposes the resolved accountability facts of a
// published submission.
type AccountabilityHandler struct {
	accountability serviceinterfaces.AccountabilityService
	config         *config.Config
	logger         *observability.Logger
}

// NewAccountabilityHandler creates an AccountabilityHandler.
func NewAccountabilityHandler(accountability serviceinterfaces.AccountabilityService, cfg *config.Config, logger *observability.Logger) *AccountabilityHandler {
	return &AccountabilityHandler{
		accountability: accountability,
		config:         cfg,
		logger:         logger,
	}
}

// GetAccountability handles GET /v1/submissions/:id/accountability.
func (h *AccountabilityHandler) GetAccountability(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_accountability")
	defer observability.FinishSpan(span, nil)

	if _, ok := requireActor(c); !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	facts, err := h.accountability.Resolve(ctx, id)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, facts)
}
