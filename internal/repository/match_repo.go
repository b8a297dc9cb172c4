package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fightr/fightr-core/internal/db"
	"github.com/fightr/fightr-core/internal/utils/pagination"
)

// MatchRepository provides data access for Match halves. Each half is a
// single-document write owned by exactly one user; the repository never
// wraps the two halves of a pair in a transaction.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// CreateHalf inserts one owner's half of a match pair.
//
// Behavior:
//   - Idempotent on (owner_id, matched_with): replaying the same half
//     affects nothing and reports created=false.
//   - Returns created=true only for the insert that actually landed.
func (r *MatchRepository) CreateHalf(ctx context.Context, m *db.Match) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}, {Name: "matched_with"}},
			DoNothing: true,
		}).
		Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetOwned fetches a match by id scoped to its owner. A match id unknown
// to the caller is indistinguishable from one that does not exist.
func (r *MatchRepository) GetOwned(ctx context.Context, ownerID, matchID string) (*db.Match, error) {
	var m db.Match
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", matchID, ownerID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Counterpart locates the other half of a pair via the correlation key.
func (r *MatchRepository) Counterpart(ctx context.Context, pairKey, ownerID string) (*db.Match, error) {
	var m db.Match
	err := r.db.WithContext(ctx).
		Where("pair_key = ? AND owner_id <> ?", pairKey, ownerID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SetArranged flips the arranged flag on one half. The write is an
// idempotent field replacement so a reconciliation retry is always safe.
func (r *MatchRepository) SetArranged(ctx context.Context, matchID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ?", matchID).
		Updates(map[string]any{
			"arranged":    true,
			"arranged_at": at,
		}).Error
}

// FindHalf fetches the half owner holds against matchedWith, if any. The
// engine reuses its pair key and createdAt when healing a missing
// counterpart, so a retry never forks a second pair.
func (r *MatchRepository) FindHalf(ctx context.Context, ownerID, matchedWith string) (*db.Match, error) {
	var m db.Match
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND matched_with = ?", ownerID, matchedWith).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListOwned returns the owner's match halves, newest first.
//
// Behavior:
//   - Ordered by created_at DESC, matched_with DESC.
//   - Supports cursor-based pagination via paginationToken.
func (r *MatchRepository) ListOwned(
	ctx context.Context,
	ownerID string,
	paginationToken *string,
	limit int,
) ([]db.Match, *string, error) {
	var matches []db.Match

	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC, matched_with DESC").
		Limit(limit + 1)

	if cursor.UserID != "" && cursor.CreatedUnix > 0 {
		ts := time.UnixMilli(cursor.CreatedUnix)
		query = query.Where(
			"(created_at < ? OR (created_at = ? AND matched_with < ?))",
			ts, ts, cursor.UserID,
		)
	}

	if err := query.Find(&matches).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(matches) > limit {
		last := matches[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			UserID:      last.MatchedWith,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		matches = matches[:limit]
	}

	return matches, nextToken, nil
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
