package chat_test

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
	"github.com/fightr/fightr-core/internal/cache"
	"github.com/fightr/fightr-core/internal/config"
	"github.com/fightr/fightr-core/internal/db"
	svcErr "github.com/fightr/fightr-core/internal/errors"
	"github.com/fightr/fightr-core/internal/service/chat"
	"github.com/fightr/fightr-core/internal/service/match"
	"github.com/fightr/fightr-core/internal/stream"
)

// setupApp mirrors the match service test harness: isolated SQLite +
// miniredis per test.
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

// matchUp makes a and b a confirmed pair so their conversation is unlocked.
func matchUp(t *testing.T, appCtx *app.AppContext, a, b string) {
	t.Helper()
	ctx := context.Background()
	svc := match.NewService(appCtx)
	_, err := svc.Like(ctx, a, b)
	require.NoError(t, err)
	res, err := svc.Like(ctx, b, a)
	require.NoError(t, err)
	require.True(t, res.Matched)
}

func TestSendRejectsBlankContent(t *testing.T) {
	ctx := context.Background()
	appCtx := setupApp(t)
	matchUp(t, appCtx, "fighter-mike", "fighter-dave")
	svc := chat.NewService(appCtx)

	_, err := svc.Send(ctx, "fighter-mike", "fighter-dave", "   \t\n")
	assert.ErrorIs(t, err, svcErr.ErrEmptyContent)
}

func TestSendRequiresMatch(t *testing.T) {
	ctx := context.Background()
	appCtx := setupApp(t)
	svc := chat.NewService(appCtx)

	_, err := svc.Send(ctx, "fighter-mike", "fighter-dave", "hello stranger")
	assert.ErrorIs(t, err, svcErr.ErrMatchNotFound)
}

// TestConversationOrderSameForBothSides: A sends "hello", B answers "hi"
// right after; both participants replay [hello, hi].
func TestConversationOrderSameForBothSides(t *testing.T) {
	ctx := context.Background()
	appCtx := setupApp(t)
	matchUp(t, appCtx, "fighter-mike", "fighter-dave")
	svc := chat.NewService(appCtx)

	_, err := svc.Send(ctx, "fighter-mike", "fighter-dave", "hello")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = svc.Send(ctx, "fighter-dave", "fighter-mike", "hi")
	require.NoError(t, err)

	fromMike, err := svc.Conversation(ctx, "fighter-mike", "fighter-dave")
	require.NoError(t, err)
	fromDave, err := svc.Conversation(ctx, "fighter-dave", "fighter-mike")
	require.NoError(t, err)

	require.Len(t, fromMike, 2)
	require.Len(t, fromDave, 2)
	assert.Equal(t, "hello", fromMike[0].Content)
	assert.Equal(t, "hi", fromMike[1].Content)
	for i := range fromMike {
		assert.Equal(t, fromMike[i].ID, fromDave[i].ID)
	}
	assert.True(t, !fromMike[1].Timestamp.Before(fromMike[0].Timestamp))
}

func TestSendPublishesToBothParticipants(t *testing.T) {
	ctx := context.Background()
	appCtx := setupApp(t)
	matchUp(t, appCtx, "fighter-mike", "fighter-dave")
	svc := chat.NewService(appCtx)

	mikeSub, err := appCtx.Broker.Subscribe(ctx, stream.CollectionMessages, "fighter-mike")
	require.NoError(t, err)
	t.Cleanup(func() { mikeSub.Close() })
	daveSub, err := appCtx.Broker.Subscribe(ctx, stream.CollectionMessages, "fighter-dave")
	require.NoError(t, err)
	t.Cleanup(func() { daveSub.Close() })

	sent, err := svc.Send(ctx, "fighter-mike", "fighter-dave", "round one?")
	require.NoError(t, err)

	for name, sub := range map[string]*stream.Subscription{"sender": mikeSub, "receiver": daveSub} {
		select {
		case change := <-sub.Events():
			assert.Equal(t, stream.Added, change.Type)
			var v chat.View
			require.NoError(t, change.Decode(&v))
			assert.Equal(t, sent.ID, v.ID)
			assert.Equal(t, "round one?", v.Content)
		case <-time.After(2 * time.Second):
			t.Fatalf("%s never received the message event", name)
		}
	}
}

// TestMarkReadIdempotentAndCounted: unread counter tracks sends, MarkRead
// drains it once and stays drained.
func TestMarkReadIdempotentAndCounted(t *testing.T) {
	ctx := context.Background()
	appCtx := setupApp(t)
	matchUp(t, appCtx, "fighter-mike", "fighter-dave")
	svc := chat.NewService(appCtx)

	_, err := svc.Send(ctx, "fighter-mike", "fighter-dave", "hello")
	require.NoError(t, err)
	_, err = svc.Send(ctx, "fighter-mike", "fighter-dave", "you there?")
	require.NoError(t, err)

	unread, err := svc.UnreadCount(ctx, "fighter-dave", "fighter-mike")
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	require.NoError(t, svc.MarkRead(ctx, "fighter-dave", "fighter-mike"))

	unread, err = svc.UnreadCount(ctx, "fighter-dave", "fighter-mike")
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)

	// second call with nothing pending changes nothing
	require.NoError(t, svc.MarkRead(ctx, "fighter-dave", "fighter-mike"))

	msgs, err := svc.Conversation(ctx, "fighter-dave", "fighter-mike")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].Read)
	assert.True(t, msgs[1].Read)
}

// TestMarkReadNotifiesSender: the sender receives one read receipt.
func TestMarkReadNotifiesSender(t *testing.T) {
	ctx := context.Background()
	appCtx := setupApp(t)
	matchUp(t, appCtx, "fighter-mike", "fighter-dave")
	svc := chat.NewService(appCtx)

	_, err := svc.Send(ctx, "fighter-mike", "fighter-dave", "hello")
	require.NoError(t, err)

	mikeSub, err := appCtx.Broker.Subscribe(ctx, stream.CollectionMessages, "fighter-mike")
	require.NoError(t, err)
	t.Cleanup(func() { mikeSub.Close() })

	require.NoError(t, svc.MarkRead(ctx, "fighter-dave", "fighter-mike"))

	select {
	case change := <-mikeSub.Events():
		assert.Equal(t, stream.Modified, change.Type)
		var r chat.ReadReceipt
		require.NoError(t, change.Decode(&r))
		assert.Equal(t, "fighter-dave", r.ReaderID)
		assert.Equal(t, int64(1), r.Count)
	case <-time.After(2 * time.Second):
		t.Fatal("sender never received the read receipt")
	}
}
