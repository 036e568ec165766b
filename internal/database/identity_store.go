package database

import (
	"context"
	"database/sql"

	"aipreview/internal/models"
	"aipreview/internal/observability"
	contextutils "aipreview/internal/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ProfileStore is the primary services.NameLookup, reading the profiles
// table maintained by the identity provider sync.
type ProfileStore struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewProfileStore creates a new profile store
func NewProfileStore(db *sql.DB, logger *observability.Logger) *ProfileStore {
	if logger == nil {
		panic("logger is required for ProfileStore")
	}
	return &ProfileStore{db: db, logger: logger}
}

// GetNames resolves profile display identities. Missing ids are simply
// absent from the result map; only store failures return an error.
func (s *ProfileStore) GetNames(ctx context.Context, ids []uuid.UUID) (result0 map[uuid.UUID]models.Person, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "GetProfileNames",
		attribute.Int("ids.count", len(ids)),
	)
	defer observability.FinishSpan(span, &err)

	result := make(map[uuid.UUID]models.Person, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT id, full_name, COALESCE(position, ''), role FROM profiles WHERE id = ANY($1)`
	rows, err := s.db.QueryContext(ctx, query, uuidArray(ids))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query profiles")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()

	for rows.Next() {
		var p models.Person
		var role string
		if err = rows.Scan(&p.ID, &p.Name, &p.Position, &role); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan profile")
		}
		p.Role = models.Role(role)
		result[p.ID] = p
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate profiles")
	}
	return result, nil
}

// DirectoryStore is the secondary services.NameLookup, reading the flat
// user directory. Used only when the profile lookup fails.
type DirectoryStore struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewDirectoryStore creates a new directory store
func NewDirectoryStore(db *sql.DB, logger *observability.Logger) *DirectoryStore {
	if logger == nil {
		panic("logger is required for DirectoryStore")
	}
	return &DirectoryStore{db: db, logger: logger}
}

// GetNames resolves directory display identities
func (s *DirectoryStore) GetNames(ctx context.Context, ids []uuid.UUID) (result0 map[uuid.UUID]models.Person, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "GetDirectoryNames",
		attribute.Int("ids.count", len(ids)),
	)
	defer observability.FinishSpan(span, &err)

	result := make(map[uuid.UUID]models.Person, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT user_id, full_name, COALESCE(position, '') FROM user_directory WHERE user_id = ANY($1)`
	rows, err := s.db.QueryContext(ctx, query, uuidArray(ids))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query user directory")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()

	for rows.Next() {
		var p models.Person
		if err = rows.Scan(&p.ID, &p.Name, &p.Position); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan directory entry")
		}
		result[p.ID] = p
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate directory entries")
	}
	return result, nil
}
