// Package chat is the conversation store: a per-pair message log with
// ordered replay and read-state tracking, re-broadcast over the sync layer.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/fightr/fightr-core/internal/app"
	"github.com/fightr/fightr-core/internal/db"
	svcErr "github.com/fightr/fightr-core/internal/errors"
	"github.com/fightr/fightr-core/internal/repository"
	"github.com/fightr/fightr-core/internal/stream"
)

type Service struct {
	appCtx    *app.AppContext
	msgRepo   *repository.MessageRepository
	matchRepo *repository.MatchRepository
}

// NewService creates a conversation service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:    appCtx,
		msgRepo:   repository.NewMessageRepository(appCtx.DB),
		matchRepo: repository.NewMatchRepository(appCtx.DB),
	}
}

// View is the message shape surfaced to clients and the sync stream.
type View struct {
	ID         uint64    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Read       bool      `json:"read"`
}

// ReadReceipt is published when a user marks a conversation read, so the
// sender's client can update its bubbles.
type ReadReceipt struct {
	ReaderID string `json:"readerId"`
	SenderID string `json:"senderId"`
	Count    int64  `json:"count"`
}

func toView(m *db.Message) View {
	return View{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		Timestamp:  m.SentAt,
		Read:       m.Read,
	}
}

// Send appends one message from sender to receiver.
//
// Behavior:
//   - Content blank after trimming is rejected with ErrEmptyContent.
//   - The conversation is unlocked by a match: no match half from sender
//     to receiver means ErrMatchNotFound.
//   - The append is broadcast on both participants' message streams.
func (s *Service) Send(ctx context.Context, senderID, receiverID, content string) (*View, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, svcErr.ErrEmptyContent
	}

	if _, err := s.matchRepo.FindHalf(ctx, senderID, receiverID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.ErrMatchNotFound
		}
		return nil, err
	}

	sentAt := time.Now().UTC().Truncate(time.Millisecond)
	msg, err := s.msgRepo.Append(ctx, senderID, receiverID, content, sentAt)
	if err != nil {
		return nil, err
	}

	unreadKey := s.appCtx.RedisCache.KeyForUnreadCount(receiverID, senderID)
	if err := s.appCtx.RedisCache.BumpCount(ctx, unreadKey); err != nil {
		s.appCtx.Logger.Warn("unread counter bump failed", "receiver", receiverID, "err", err)
	}

	v := toView(msg)
	s.publish(ctx, senderID, stream.Added, v)
	s.publish(ctx, receiverID, stream.Added, v)
	return &v, nil
}

// Conversation replays the full pair history, merged from both directions
// and ordered by timestamp then insertion order. Either participant gets
// the identical sequence.
func (s *Service) Conversation(ctx context.Context, userID, otherID string) ([]View, error) {
	msgs, err := s.msgRepo.Conversation(ctx, userID, otherID)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(msgs))
	for i := range msgs {
		out = append(out, toView(&msgs[i]))
	}
	return out, nil
}

// MarkRead flips read on every message userID has pending from otherID.
// Idempotent: with nothing pending it is a no-op and publishes nothing.
func (s *Service) MarkRead(ctx context.Context, userID, otherID string) error {
	flipped, err := s.msgRepo.MarkRead(ctx, userID, otherID)
	if err != nil {
		return err
	}
	if flipped == 0 {
		return nil
	}

	unreadKey := s.appCtx.RedisCache.KeyForUnreadCount(userID, otherID)
	if err := s.appCtx.RedisCache.Del(ctx, unreadKey); err != nil {
		s.appCtx.Logger.Warn("unread counter reset failed", "user", userID, "err", err)
	}

	// the original sender sees the receipt
	s.publish(ctx, otherID, stream.Modified, ReadReceipt{
		ReaderID: userID,
		SenderID: otherID,
		Count:    flipped,
	})
	return nil
}

// UnreadCount returns how many messages userID has pending from otherID.
// Cache-first with the message log as fallback.
func (s *Service) UnreadCount(ctx context.Context, userID, otherID string) (int64, error) {
	key := s.appCtx.RedisCache.KeyForUnreadCount(userID, otherID)

	if n, hit, err := s.appCtx.RedisCache.GetCount(ctx, key); err == nil && hit {
		return n, nil
	}

	count, err := s.msgRepo.CountUnread(ctx, userID, otherID)
	if err != nil {
		return 0, err
	}
	_ = s.appCtx.RedisCache.SetCount(ctx, key, count)
	return count, nil
}

func (s *Service) publish(ctx context.Context, userID string, typ stream.ChangeType, doc any) {
	if err := s.appCtx.Broker.Publish(ctx, stream.CollectionMessages, userID, typ, doc); err != nil {
		s.appCtx.Logger.Warn("message stream publish failed", "user", userID, "err", err)
	}
}
