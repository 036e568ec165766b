package services

import (
	"context"
	"strings"

	"aipreview/internal/config"
	"aipreview/internal/models"
	"aipreview/internal/observability"
	contextutils "aipreview/internal/utils"

	"github.com/google/uuid"
)

// RoleBand selects which actor roles a feed query covers.
type RoleBand string

const (
	// RoleBandAll covers every actor role
	RoleBandAll RoleBand = "all"
	// RoleBandCitizen covers citizen actors only
	RoleBandCitizen RoleBand = "citizen"
	// RoleBandOversight covers oversight officials and admins
	RoleBandOversight RoleBand = "oversight"
)

// FeedRequest is one page-based activity feed query.
type FeedRequest struct {
	RoleBand   RoleBand
	FiscalYear int
	Action     string
	Search     string
	Page       int
	PageSize   int
}

// FeedPage is one page of the deduplicated feed. Total counts the entries
// surviving dedup across the whole filtered set, so it is stable while
// paging.
type FeedPage struct {
	Entries  []models.ActivityLogEntry `json:"entries"`
	Total    int                       `json:"total"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"page_size"`
}

// ActivityService records audit entries and serves the deduplicated feed.
// Storage is append-only; the dedup rule below only suppresses display.
type ActivityService struct {
	repo      ActivityLogRepo
	primary   NameLookup
	secondary NameLookup
	cfg       config.AuditConfig
	logger    *observability.Logger
}

// NewActivityService creates a new activity service
func NewActivityService(repo ActivityLogRepo, primary, secondary NameLookup, cfg config.AuditConfig, logger *observability.Logger) *ActivityService {
	if repo == nil {
		panic("activity repo is required for ActivityService")
	}
	if logger == nil {
		panic("logger is required for ActivityService")
	}
	if cfg.DedupWindow == 0 {
		cfg.DedupWindow = config.DefaultDedupWindow
	}
	if cfg.DefaultPageSize == 0 {
		cfg.DefaultPageSize = config.DefaultActivityPageSize
	}
	if cfg.MaxPageSize == 0 {
		cfg.MaxPageSize = config.MaxActivityPageSize
	}
	return &ActivityService{repo: repo, primary: primary, secondary: secondary, cfg: cfg, logger: logger}
}

// Record appends one audit entry, enriching the metadata with the actor's
// display name and position. Name enrichment is best-effort; the append
// itself is not.
func (s *ActivityService) Record(ctx context.Context, entry *models.ActivityLogEntry) (err error) {
	ctx, span := observability.TraceActivityFunction(ctx, "Record",
		observability.AttributeAction(entry.Action),
		observability.AttributeActorID(entry.ActorID),
	)
	defer observability.FinishSpan(span, &err)

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Metadata.ActorName == "" {
		if person, ok := s.lookupPerson(ctx, entry.ActorID); ok {
			entry.Metadata.ActorName = person.Name
			entry.Metadata.ActorPosition = person.Position
		}
	}

	if err = s.repo.Append(ctx, entry); err != nil {
		return contextutils.WrapError(err, "failed to record activity entry")
	}
	return nil
}

// lookupPerson resolves a display identity, falling back to the secondary
// directory when the primary lookup errors.
func (s *ActivityService) lookupPerson(ctx context.Context, id uuid.UUID) (models.Person, bool) {
	if s.primary != nil {
		names, err := s.primary.GetNames(ctx, []uuid.UUID{id})
		if err == nil {
			person, ok := names[id]
			return person, ok
		}
		s.logger.Warn(ctx, "Primary name lookup failed, trying directory", map[string]interface{}{"error": err.Error()})
	}
	if s.secondary != nil {
		names, err := s.secondary.GetNames(ctx, []uuid.UUID{id})
		if err == nil {
			person, ok := names[id]
			return person, ok
		}
		s.logger.Warn(ctx, "Secondary name lookup failed", map[string]interface{}{"error": err.Error()})
	}
	return models.Person{}, false
}

// Feed returns one page of the audit feed visible to the actor. Citizens
// have no feed access; the feed is an administrative surface.
func (s *ActivityService) Feed(ctx context.Context, actor models.ActorContext, req FeedRequest) (result0 *FeedPage, err error) {
	ctx, span := observability.TraceActivityFunction(ctx, "Feed",
		observability.AttributeActorRole(string(actor.Role)),
		observability.AttributePage(req.Page),
	)
	defer observability.FinishSpan(span, &err)

	filter := ActivityFilter{
		FiscalYear: req.FiscalYear,
		Action:     req.Action,
		Search:     strings.TrimSpace(req.Search),
	}

	switch req.RoleBand {
	case RoleBandCitizen:
		filter.Roles = []models.Role{models.RoleCitizen}
	case RoleBandOversight:
		filter.Roles = []models.Role{models.RoleCityOfficial, models.RoleMunicipalOfficial, models.RoleAdmin}
	case RoleBandAll, "":
		// no role restriction
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown role band %q", req.RoleBand)
	}

	// Jurisdiction visibility.
	switch actor.Role {
	case models.RoleAdmin:
		// sees everything
	case models.RoleBarangayOfficial:
		id := actor.Scope.ID
		filter.BarangayID = &id
	case models.RoleCityOfficial, models.RoleMunicipalOfficial:
		id := actor.ID
		filter.ActorID = &id
	default:
		return nil, contextutils.WrapError(contextutils.ErrForbidden, "activity feed is not available for this role")
	}

	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query activity feed")
	}

	deduped := s.dedupe(entries)

	page, pageSize := s.clampPaging(req.Page, req.PageSize)
	total := len(deduped)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &FeedPage{
		Entries:  deduped[start:end],
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// EntityHistory returns the deduplicated entries for one record, newest
// first, without pagination. Used by the admin CLI and detail views.
func (s *ActivityService) EntityHistory(ctx context.Context, entityTable string, entityID uuid.UUID) (result0 []models.ActivityLogEntry, err error) {
	ctx, span := observability.TraceActivityFunction(ctx, "EntityHistory")
	defer observability.FinishSpan(span, &err)

	entries, err := s.repo.List(ctx, ActivityFilter{EntityTable: entityTable, EntityID: &entityID})
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query entity history")
	}
	return s.dedupe(entries), nil
}

// dedupe suppresses raw CRUD entries that a workflow entry subsumes: same
// actor, same entity, the workflow entry's supersedes marker names the raw
// action, and the two were written within the dedup window. Entries outside
// the window, or without a matching marker, all survive.
func (s *ActivityService) dedupe(entries []models.ActivityLogEntry) []models.ActivityLogEntry {
	type pairKey struct {
		actor  uuid.UUID
		table  string
		entity uuid.UUID
	}

	// Workflow entries indexed by the (actor, entity) pair they cover.
	workflow := make(map[pairKey][]models.ActivityLogEntry)
	for _, e := range entries {
		if e.Metadata.Source == models.ActivitySourceWorkflow && e.Metadata.Supersedes != "" {
			key := pairKey{actor: e.ActorID, table: e.EntityTable, entity: e.EntityID}
			workflow[key] = append(workflow[key], e)
		}
	}

	out := make([]models.ActivityLogEntry, 0, len(entries))
	for _, e := range entries {
		if e.Metadata.Source != models.ActivitySourceWorkflow {
			key := pairKey{actor: e.ActorID, table: e.EntityTable, entity: e.EntityID}
			suppressed := false
			for _, w := range workflow[key] {
				if w.Metadata.Supersedes != e.Action {
					continue
				}
				delta := w.CreatedAt.Sub(e.CreatedAt)
				if delta < 0 {
					delta = -delta
				}
				if delta <= s.cfg.DedupWindow {
					suppressed = true
					break
				}
			}
			if suppressed {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

func (s *ActivityService) clampPaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.cfg.DefaultPageSize
	}
	if pageSize > s.cfg.MaxPageSize {
		pageSize = s.cfg.MaxPageSize
	}
	return page, pageSize
}
