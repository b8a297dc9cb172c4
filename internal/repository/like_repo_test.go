package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fightr/fightr-core/internal/db"
	svcErr "github.com/fightr/fightr-core/internal/errors"
	"github.com/fightr/fightr-core/internal/repository"
)

// setup in-memory DB
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&db.Profile{}, &db.Like{}, &db.Match{}, &db.Message{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

func TestRecordLike(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewLikeRepository(dbase)

	like, err := repo.RecordLike(ctx, "fighter-mike", "fighter-dave")
	require.NoError(t, err)
	assert.Equal(t, "fighter-mike", like.LikerID)
	assert.Equal(t, "fighter-dave", like.LikedID)

	// second like on the same pair is rejected, not overwritten
	_, err = repo.RecordLike(ctx, "fighter-mike", "fighter-dave")
	assert.ErrorIs(t, err, svcErr.ErrDuplicateLike)

	var count int64
	require.NoError(t, dbase.Model(&db.Like{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestHasLikedSeesOwnWrite(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewLikeRepository(dbase)

	ok, err := repo.HasLiked(ctx, "fighter-mike", "fighter-dave")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.RecordLike(ctx, "fighter-mike", "fighter-dave")
	require.NoError(t, err)

	// the reciprocity check must observe the like committed just above
	ok, err = repo.HasLiked(ctx, "fighter-mike", "fighter-dave")
	require.NoError(t, err)
	assert.True(t, ok)

	// direction matters
	ok, err = repo.HasLiked(ctx, "fighter-dave", "fighter-mike")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLikedIDsAndCountLikers(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewLikeRepository(dbase)

	_, err := repo.RecordLike(ctx, "fighter-mike", "fighter-dave")
	require.NoError(t, err)
	_, err = repo.RecordLike(ctx, "fighter-mike", "fighter-john")
	require.NoError(t, err)
	_, err = repo.RecordLike(ctx, "fighter-steve", "fighter-dave")
	require.NoError(t, err)

	ids, err := repo.LikedIDs(ctx, "fighter-mike")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"fighter-dave", "fighter-john"}, ids)

	count, err := repo.CountLikers(ctx, "fighter-dave")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
