package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
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
	"github.com/fightr/fightr-core/internal/stream"
)

// TestClosedSubscriptionsArePruned: a session that keeps reconnecting its
// event streams must not accumulate dead subscriptions until logout.
func TestClosedSubscriptionsArePruned(t *testing.T) {
	ctx := context.Background()

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
	appCtx := app.New(dbase, redisCache, broker, logger)

	m := NewManager(appCtx, blob.NewFSStore(t.TempDir(), "/media"))
	t.Cleanup(m.CloseAll)
	s := m.Open("fighter-mike")

	subCount := func() int {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.subs)
	}

	for i := 0; i < 3; i++ {
		matchSub, err := s.MatchEvents(ctx)
		require.NoError(t, err)
		msgSub, err := s.MessageEvents(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, subCount())

		require.NoError(t, matchSub.Close())
		require.NoError(t, msgSub.Close())
		assert.Equal(t, 0, subCount())
	}

	// a still-open stream stays tracked and logout closes it
	sub, err := s.ProfileEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, subCount())
	s.Close()
	assert.Equal(t, 0, subCount())

	select {
	case _, open := <-sub.Events():
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel still open after logout")
	}
}
