package db

import (
	"time"
)

// Profile holds a fighter's public card. One row per user, keyed by the
// identity provider's stable user id, mutable only by its owner.
type Profile struct {
	UserID    string    `gorm:"primaryKey;size:64" json:"userId"`
	Name      string    `gorm:"size:64;not null" json:"name"`
	Age       int       `gorm:"not null" json:"age"`
	Contact   string    `gorm:"size:128" json:"contact"`
	Bio       string    `gorm:"size:512" json:"bio,omitempty"`
	Height    string    `gorm:"size:16" json:"height,omitempty"`
	Weight    string    `gorm:"size:16" json:"weight,omitempty"`
	Training  string    `gorm:"size:64" json:"training,omitempty"`
	ImageURL  string    `gorm:"size:512" json:"image,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Like is one user's expressed interest in another. Append-only.
//
// Composite PK: (LikerID, LikedID)
//   - At most one like per ordered pair; a second insert is rejected,
//     never overwritten.
type Like struct {
	LikerID   string    `gorm:"primaryKey;size:64"`
	LikedID   string    `gorm:"primaryKey;size:64;index:idx_liked_created,priority:1"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_liked_created,priority:2"`
}

// Match is one participant's half of a confirmed mutual match. A mutual
// like always produces two rows sharing PairKey and CreatedAt, one owned
// by each side, so each user's match list is self-contained.
//
// Indexes:
//   - uniq_owner_matched(owner_id, matched_with): one half per pair per owner.
//   - idx_pair_key(pair_key): counterpart lookup for arrange-fight sync.
type Match struct {
	ID          string    `gorm:"primaryKey;size:36"`
	OwnerID     string    `gorm:"size:64;not null;uniqueIndex:uniq_owner_matched,priority:1"`
	MatchedWith string    `gorm:"size:64;not null;uniqueIndex:uniq_owner_matched,priority:2"`
	PairKey     string    `gorm:"size:36;not null;index:idx_pair_key"`
	CreatedAt   time.Time `gorm:"not null"` // set once by the engine, identical on both halves
	Arranged    bool      `gorm:"not null;default:false"`
	ArrangedAt  *time.Time
}

// Message is one entry of a per-pair conversation. Immutable except for
// the Read flag, which transitions false -> true exactly once.
//
// The auto-increment ID doubles as the insertion-order tie-break when two
// messages carry the same timestamp.
type Message struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	SenderID   string    `gorm:"size:64;not null;index:idx_receiver_sender_read,priority:2"`
	ReceiverID string    `gorm:"size:64;not null;index:idx_receiver_sender_read,priority:1"`
	Content    string    `gorm:"size:2000;not null"`
	SentAt     time.Time `gorm:"not null;index"`
	Read       bool      `gorm:"column:is_read;not null;default:false;index:idx_receiver_sender_read,priority:3"`
}
