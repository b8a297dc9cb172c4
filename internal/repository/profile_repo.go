package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fightr/fightr-core/internal/db"
	"github.com/fightr/fightr-core/internal/utils/pagination"
)

// ProfileRepository fronts the external profile store. Profiles are
// created on first save and mutated only by their owner.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new repository bound to the given DB connection.
func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

// Get fetches one profile by user id.
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*db.Profile, error) {
	var p db.Profile
	if err := r.db.WithContext(ctx).First(&p, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert creates the profile on first save and replaces the display
// attributes afterwards. Profiles are never hard-deleted.
func (r *ProfileRepository) Upsert(ctx context.Context, p *db.Profile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "age", "contact", "bio", "height", "weight", "training", "image_url", "updated_at",
			}),
		}).
		Create(p).Error
}

// ListExcept returns profiles for the discovery feed: everyone except the
// viewer and the explicitly excluded ids (already-liked fighters).
//
// Behavior:
//   - Stable oldest-first order (created_at ASC, user_id ASC) so the deck
//     does not reshuffle between pages.
//   - Supports cursor-based pagination via paginationToken.
func (r *ProfileRepository) ListExcept(
	ctx context.Context,
	viewerID string,
	excluded []string,
	paginationToken *string,
	limit int,
) ([]db.Profile, *string, error) {
	var profiles []db.Profile

	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("user_id <> ?", viewerID).
		Order("created_at ASC, user_id ASC").
		Limit(limit + 1)

	if len(excluded) > 0 {
		query = query.Where("user_id NOT IN ?", excluded)
	}

	if cursor.UserID != "" && cursor.CreatedUnix > 0 {
		ts := time.UnixMilli(cursor.CreatedUnix)
		query = query.Where(
			"(created_at > ? OR (created_at = ? AND user_id > ?))",
			ts, ts, cursor.UserID,
		)
	}

	if err := query.Find(&profiles).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(profiles) > limit {
		last := profiles[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			UserID:      last.UserID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		profiles = profiles[:limit]
	}

	return profiles, nextToken, nil
}
