package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"aipreview/internal/config"
	"aipreview/internal/observability"
	"aipreview/internal/serviceinterfaces"
	"aipreview/internal/services"
)

// ActivityHandler serves the deduplicated audit feed and per-entity history.
type ActivityHandler struct {
	activity serviceinterfaces.ActivityService
	config   *config.Config
	logger   *observability.Logger
}

// NewActivityHandler creates an ActivityHandler.
func NewActivityHandler(activity serviceinterfaces.ActivityService, cfg *config.Config, logger *observability.Logger) *ActivityHandler {
	return &ActivityHandler{
		activity: activity,
		config:   cfg,
		logger:   logger,
	}
}

// GetFeed handles GET /v1/activity. Jurisdiction visibility and the
// dedup rule are enforced by the service; this only parses the query.
func (h *ActivityHandler) GetFeed(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_activity_feed")
	defer observability.FinishSpan(span, nil)

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	page, size := ParsePagination(c, 1, h.config.Audit.DefaultPageSize, h.config.Audit.MaxPageSize)
	filters := ParseFilters(c, "role_band", "fiscal_year", "action", "search")

	req := services.FeedRequest{
		RoleBand: services.RoleBandAll,
		Action:   filters["action"],
		Search:   filters["search"],
		Page:     page,
		PageSize: size,
	}
	if band, okBand := filters["role_band"]; okBand {
		req.RoleBand = services.RoleBand(band)
	}
	if raw, okYear := filters["fiscal_year"]; okYear {
		year, err := strconv.Atoi(raw)
		if err != nil {
			HandleValidationError(c, "fiscal_year", raw, "must be an integer")
			return
		}
		req.FiscalYear = year
	}

	feed, err := h.activity.Feed(ctx, actor, req)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	WritePaginated(c, "entries", feed.Entries, gin.H{
		"page":      feed.Page,
		"page_size": feed.PageSize,
		"total":     feed.Total,
	}, nil)
}

// GetEntityHistory handles GET /v1/activity/:table/:id. It returns the
// deduplicated trail for one record, oldest first.
func (h *ActivityHandler) GetEntityHistory(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_entity_history")
	defer observability.FinishSpan(span, nil)

	if _, ok := requireActor(c); !ok {
		return
	}
	table := c.Param("table")
	if table == "" {
		HandleValidationError(c, "table", table, "an entity table is required")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	entries, err := h.activity.EntityHistory(ctx, table, id)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}
