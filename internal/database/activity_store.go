package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"

	"aipreview/internal/models"
	"aipreview/internal/observability"
	"aipreview/internal/services"
	contextutils "aipreview/internal/utils"
)

// ActivityLogStore is a Postgres-backed services.ActivityLogRepo. The table
// is append-only; display dedup happens in the service layer.
type ActivityLogStore struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewActivityLogStore creates a new activity log store
func NewActivityLogStore(db *sql.DB, logger *observability.Logger) *ActivityLogStore {
	if logger == nil {
		panic("logger is required for ActivityLogStore")
	}
	return &ActivityLogStore{db: db, logger: logger}
}

// Append inserts one audit entry
func (s *ActivityLogStore) Append(ctx context.Context, entry *models.ActivityLogEntry) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "AppendActivity",
		observability.AttributeAction(entry.Action),
	)
	defer observability.FinishSpan(span, &err)

	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return contextutils.WrapError(err, "failed to marshal activity metadata")
	}

	query := `
		INSERT INTO activity_log (id, actor_id, actor_role, action, entity_table, entity_id,
			scope_type, barangay_id, city_id, municipality_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		RETURNING created_at`

	scopeType := sql.NullString{String: string(entry.Scope.ScopeType), Valid: entry.Scope.ScopeType != ""}
	err = s.db.QueryRowContext(ctx, query,
		entry.ID, entry.ActorID, string(entry.ActorRole), entry.Action,
		entry.EntityTable, entry.EntityID,
		scopeType, entry.Scope.BarangayID, entry.Scope.CityID, entry.Scope.MunicipalityID,
		metadata,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return contextutils.WrapError(err, "failed to insert activity entry")
	}
	return nil
}

// List returns the full filtered set, newest first. Pagination is left to
// the caller so the deduplicated total stays stable across pages.
func (s *ActivityLogStore) List(ctx context.Context, filter services.ActivityFilter) (result0 []models.ActivityLogEntry, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "ListActivity")
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT id, actor_id, actor_role, action, entity_table, entity_id,
			scope_type, barangay_id, city_id, municipality_id, metadata, created_at
		FROM activity_log WHERE 1=1`
	args := []interface{}{}

	if len(filter.Roles) > 0 {
		query += ` AND actor_role IN (`
		for i, role := range filter.Roles {
			if i > 0 {
				query += `, `
			}
			args = append(args, string(role))
			query += placeholder(len(args))
		}
		query += `)`
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		query += ` AND action = ` + placeholder(len(args))
	}
	if filter.ActorID != nil {
		args = append(args, *filter.ActorID)
		query += ` AND actor_id = ` + placeholder(len(args))
	}
	if filter.EntityTable != "" {
		args = append(args, filter.EntityTable)
		query += ` AND entity_table = ` + placeholder(len(args))
	}
	if filter.EntityID != nil {
		args = append(args, *filter.EntityID)
		query += ` AND entity_id = ` + placeholder(len(args))
	}
	if filter.BarangayID != nil {
		args = append(args, *filter.BarangayID)
		query += ` AND barangay_id = ` + placeholder(len(args))
	}
	if filter.CityID != nil {
		args = append(args, *filter.CityID)
		query += ` AND city_id = ` + placeholder(len(args))
	}
	if filter.MunicipalityID != nil {
		args = append(args, *filter.MunicipalityID)
		query += ` AND municipality_id = ` + placeholder(len(args))
	}
	if filter.FiscalYear != 0 {
		args = append(args, strconv.Itoa(filter.FiscalYear))
		query += ` AND metadata->>'fiscal_year' = ` + placeholder(len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		p := placeholder(len(args))
		query += ` AND (metadata->>'actor_name' ILIKE ` + p + ` OR metadata->>'details' ILIKE ` + p + `)`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to list activity entries")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()

	var entries []models.ActivityLogEntry
	for rows.Next() {
		var entry models.ActivityLogEntry
		var role string
		var scopeType sql.NullString
		var metadata []byte
		if err = rows.Scan(
			&entry.ID, &entry.ActorID, &role, &entry.Action,
			&entry.EntityTable, &entry.EntityID,
			&scopeType, &entry.Scope.BarangayID, &entry.Scope.CityID, &entry.Scope.MunicipalityID,
			&metadata, &entry.CreatedAt,
		); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan activity entry")
		}
		entry.ActorRole = models.Role(role)
		if scopeType.Valid {
			entry.Scope.ScopeType = models.ScopeKind(scopeType.String)
		}
		if len(metadata) > 0 {
			if err = json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, contextutils.WrapError(err, "failed to unmarshal activity metadata")
			}
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate activity entries")
	}
	return entries, nil
}
