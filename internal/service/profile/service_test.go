package profile_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fightr/fightr-core/internal/app"
	"github.com/fightr/fightr-core/internal/blob"
	"github.com/fightr/fightr-core/internal/cache"
	"github.com/fightr/fightr-core/internal/config"
	"github.com/fightr/fightr-core/internal/db"
	svcErr "github.com/fightr/fightr-core/internal/errors"
	"github.com/fightr/fightr-core/internal/service/profile"
	"github.com/fightr/fightr-core/internal/stream"
)

func setupApp(t *testing.T) *app.AppContext {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbase, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, dbase.AutoMigrate(&db.Profile{}, &db.Like{}, &db.Match{}, &db.Message{}))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()

	redisCache := cache.NewRedisCache(cfg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	broker := stream.NewBroker(redisCache.Client, logger)

	return app.New(dbase, redisCache, broker, logger)
}

func TestGetBeforeFirstSave(t *testing.T) {
	appCtx := setupApp(t)
	svc := profile.NewService(appCtx, blob.NewFSStore(t.TempDir(), "/media"))

	_, err := svc.Get(context.Background(), "fighter-mike")
	assert.ErrorIs(t, err, svcErr.ErrProfileNotFound)
}

func TestSaveCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	appCtx := setupApp(t)
	svc := profile.NewService(appCtx, blob.NewFSStore(t.TempDir(), "/media"))

	saved, err := svc.Save(ctx, "fighter-mike", profile.SaveInput{
		Name: "Mike", Age: 28, Contact: "mike@fighter.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "Mike", saved.Name)

	saved, err = svc.Save(ctx, "fighter-mike", profile.SaveInput{
		Name: "Iron Mike", Age: 29, Contact: "mike@fighter.com", Training: "Boxing",
	})
	require.NoError(t, err)
	assert.Equal(t, "Iron Mike", saved.Name)
	assert.Equal(t, "Boxing", saved.Training)

	got, err := svc.Get(ctx, "fighter-mike")
	require.NoError(t, err)
	assert.Equal(t, "Iron Mike", got.Name)
}

// TestSaveResolvesImageThroughBlobStore checks the media path: bytes land
// in the store and the profile carries the resulting URL.
func TestSaveResolvesImageThroughBlobStore(t *testing.T) {
	ctx := context.Background()
	appCtx := setupApp(t)
	dir := t.TempDir()
	svc := profile.NewService(appCtx, blob.NewFSStore(dir, "/media"))

	saved, err := svc.Save(ctx, "fighter-mike", profile.SaveInput{
		Name: "Mike", Age: 28,
		Image: []byte("fake-jpeg-bytes"), ImageName: "mike.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "/media/profile_images/fighter-mike/mike.jpg", saved.ImageURL)

	data, err := os.ReadFile(filepath.Join(dir, "profile_images", "fighter-mike", "mike.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-jpeg-bytes"), data)
}

// TestSaveBroadcastsProfileChange: every open discovery deck observes the
// collection-wide event.
func TestSaveBroadcastsProfileChange(t *testing.T) {
	ctx := context.Background()
	appCtx := setupApp(t)
	svc := profile.NewService(appCtx, blob.NewFSStore(t.TempDir(), "/media"))

	sub, err := appCtx.Broker.Subscribe(ctx, stream.CollectionProfiles, stream.BroadcastAll)
	require.NoError(t, err)
	t.Cleanup(func() { sub.Close() })

	_, err = svc.Save(ctx, "fighter-mike", profile.SaveInput{Name: "Mike", Age: 28})
	require.NoError(t, err)

	select {
	case change := <-sub.Events():
		assert.Equal(t, stream.Modified, change.Type)
		var p db.Profile
		require.NoError(t, change.Decode(&p))
		assert.Equal(t, "fighter-mike", p.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("no profile broadcast observed")
	}
}
