package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fightr/fightr-core/internal/db"
	svcErr "github.com/fightr/fightr-core/internal/errors"
)

// LikeRepository is the append-only like ledger. It encapsulates all
// queries about expressed interest between fighters.
type LikeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new repository bound to the given DB connection.
func NewLikeRepository(database *gorm.DB) *LikeRepository {
	return &LikeRepository{db: database}
}

// RecordLike inserts the (liker, liked) pair.
//
// Behavior:
//   - First insert for the pair succeeds and returns the new record.
//   - An existing pair is never overwritten; the call fails with
//     ErrDuplicateLike and no second row is created.
//
// Example:
//
//	repo.RecordLike(ctx, "fighter-mike", "fighter-dave")
func (r *LikeRepository) RecordLike(ctx context.Context, likerID, likedID string) (*db.Like, error) {
	like := db.Like{
		LikerID: likerID,
		LikedID: likedID,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&like)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, svcErr.ErrDuplicateLike
	}
	return &like, nil
}

// HasLiked checks whether liker has liked liked. The check runs against the
// same connection the ledger writes through, so it sees the ledger's own
// just-committed likes.
func (r *LikeRepository) HasLiked(ctx context.Context, likerID, likedID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("liker_id = ? AND liked_id = ?", likerID, likedID).
		Count(&count).Error
	return count > 0, err
}

// LikedIDs returns every profile the liker has already expressed interest
// in. Used by the discovery feed's exclusion filter.
func (r *LikeRepository) LikedIDs(ctx context.Context, likerID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("liker_id = ?", likerID).
		Pluck("liked_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// CountLikers returns how many fighters liked the given user. Used as the
// DB fallback behind the Redis like counter.
func (r *LikeRepository) CountLikers(ctx context.Context, likedID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("liked_id = ?", likedID).
		Count(&count).Error
	return count, err
}
