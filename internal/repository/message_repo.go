package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/fightr/fightr-core/internal/db"
)

// MessageRepository is the per-pair conversation log.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new repository bound to the given DB connection.
func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

// Append writes one immutable message row. The auto-increment id records
// insertion order, which breaks timestamp ties on replay.
func (r *MessageRepository) Append(ctx context.Context, senderID, receiverID, content string, sentAt time.Time) (*db.Message, error) {
	msg := db.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		SentAt:     sentAt,
	}
	if err := r.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// Conversation merges both directions of a pair into one sequence ordered
// by timestamp, then insertion order. The result is identical whichever
// participant asks.
func (r *MessageRepository) Conversation(ctx context.Context, userA, userB string) ([]db.Message, error) {
	var msgs []db.Message
	err := r.db.WithContext(ctx).
		Where(
			"(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA,
		).
		Order("sent_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkRead flips read on every pending message userID has received from
// otherID. Returns how many rows changed; zero means there was nothing
// pending, which is not an error.
func (r *MessageRepository) MarkRead(ctx context.Context, userID, otherID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", userID, otherID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// CountUnread returns how many messages userID has pending from otherID.
// DB fallback behind the Redis unread counter.
func (r *MessageRepository) CountUnread(ctx context.Context, userID, otherID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", userID, otherID, false).
		Count(&count).Error
	return count, err
}
