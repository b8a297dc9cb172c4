package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fightr/fightr-core/internal/db"
	"github.com/fightr/fightr-core/internal/repository"
)

func TestUpsertCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewProfileRepository(dbase)

	p := &db.Profile{UserID: "fighter-mike", Name: "Mike", Age: 28, Contact: "mike@fighter.com"}
	require.NoError(t, repo.Upsert(ctx, p))

	p2 := &db.Profile{UserID: "fighter-mike", Name: "Iron Mike", Age: 29, Contact: "mike@fighter.com", Training: "Boxing"}
	require.NoError(t, repo.Upsert(ctx, p2))

	got, err := repo.Get(ctx, "fighter-mike")
	require.NoError(t, err)
	assert.Equal(t, "Iron Mike", got.Name)
	assert.Equal(t, 29, got.Age)
	assert.Equal(t, "Boxing", got.Training)

	var count int64
	require.NoError(t, dbase.Model(&db.Profile{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestListExceptFiltersViewerAndExcluded(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewProfileRepository(dbase)

	for _, id := range []string{"fighter-mike", "fighter-dave", "fighter-john", "fighter-steve"} {
		require.NoError(t, repo.Upsert(ctx, &db.Profile{UserID: id, Name: id, Age: 27}))
	}

	profiles, _, err := repo.ListExcept(ctx, "fighter-mike", []string{"fighter-dave"}, nil, 10)
	require.NoError(t, err)

	var ids []string
	for _, p := range profiles {
		ids = append(ids, p.UserID)
	}
	assert.ElementsMatch(t, []string{"fighter-john", "fighter-steve"}, ids)
}

func TestListExceptPagination(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewProfileRepository(dbase)

	for _, id := range []string{"fighter-alex", "fighter-dave", "fighter-john", "fighter-steve"} {
		require.NoError(t, repo.Upsert(ctx, &db.Profile{UserID: id, Name: id, Age: 27}))
	}

	page1, token, err := repo.ListExcept(ctx, "viewer", nil, nil, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotNil(t, token)

	page2, token2, err := repo.ListExcept(ctx, "viewer", nil, token, 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Nil(t, token2)

	seen := map[string]bool{}
	for _, p := range append(page1, page2...) {
		assert.False(t, seen[p.UserID], "profile %s served twice", p.UserID)
		seen[p.UserID] = true
	}
	assert.Len(t, seen, 4)
}
