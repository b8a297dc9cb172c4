// Package session replaces the original app's single shared provider state
// with an explicit per-authenticated-user object: constructed once per
// user, handed to the UI layer, torn down on logout.
package session

import (
	"context"
	"sync"

	"github.com/fightr/fightr-core/internal/app"
	"github.com/fightr/fightr-core/internal/blob"
	"github.com/fightr/fightr-core/internal/db"
	"github.com/fightr/fightr-core/internal/service/chat"
	"github.com/fightr/fightr-core/internal/service/feed"
	"github.com/fightr/fightr-core/internal/service/match"
	"github.com/fightr/fightr-core/internal/service/profile"
	"github.com/fightr/fightr-core/internal/stream"
)

// Manager owns the shared stateless services and the live sessions keyed
// by user id.
type Manager struct {
	appCtx   *app.AppContext
	feed     *feed.Service
	matches  *match.Service
	chat     *chat.Service
	profiles *profile.Service

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager wires the shared services once; sessions are thin per-user
// handles over them.
func NewManager(appCtx *app.AppContext, blobs blob.Store) *Manager {
	return &Manager{
		appCtx:   appCtx,
		feed:     feed.NewService(appCtx),
		matches:  match.NewService(appCtx),
		chat:     chat.NewService(appCtx),
		profiles: profile.NewService(appCtx, blobs),
		sessions: make(map[string]*Session),
	}
}

// Open returns the user's session, creating it on first use.
func (m *Manager) Open(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s
	}
	s := &Session{userID: userID, m: m, subs: make(map[*stream.Subscription]struct{})}
	m.sessions[userID] = s
	return s
}

// Close tears down the user's session and its live subscriptions. Logout.
func (m *Manager) Close(userID string) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()
	if ok {
		s.teardown()
	}
}

// CloseAll tears down every session, used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.teardown()
	}
}

// Session is one authenticated user's view of the core: discovery, likes,
// matches, conversations, profile, and the live change streams.
type Session struct {
	userID string
	m      *Manager

	mu   sync.Mutex
	subs map[*stream.Subscription]struct{}
}

// UserID returns the identity this session is bound to.
func (s *Session) UserID() string { return s.userID }

// Candidates pages through the user's discovery deck.
func (s *Session) Candidates(ctx context.Context, token *string, limit int) ([]db.Profile, *string, error) {
	return s.m.feed.Candidates(ctx, s.userID, token, limit)
}

// Like expresses interest in target, reporting a match when mutual.
func (s *Session) Like(ctx context.Context, targetID string) (*match.LikeResult, error) {
	return s.m.matches.Like(ctx, s.userID, targetID)
}

// Matches lists the user's confirmed matches, newest first.
func (s *Session) Matches(ctx context.Context, token *string, limit int) ([]match.WithOpponent, *string, error) {
	return s.m.matches.Matches(ctx, s.userID, token, limit)
}

// ArrangeFight flips both halves of the identified match to arranged.
func (s *Session) ArrangeFight(ctx context.Context, matchID string) (*match.View, error) {
	return s.m.matches.ArrangeFight(ctx, s.userID, matchID)
}

// LikeCount reports how many fighters liked this user.
func (s *Session) LikeCount(ctx context.Context) (int64, error) {
	return s.m.matches.LikeCount(ctx, s.userID)
}

// Send appends a message to the conversation with otherID.
func (s *Session) Send(ctx context.Context, otherID, content string) (*chat.View, error) {
	return s.m.chat.Send(ctx, s.userID, otherID, content)
}

// Conversation replays the ordered history with otherID.
func (s *Session) Conversation(ctx context.Context, otherID string) ([]chat.View, error) {
	return s.m.chat.Conversation(ctx, s.userID, otherID)
}

// MarkRead flips the pending messages from otherID to read.
func (s *Session) MarkRead(ctx context.Context, otherID string) error {
	return s.m.chat.MarkRead(ctx, s.userID, otherID)
}

// UnreadCount reports pending messages from otherID.
func (s *Session) UnreadCount(ctx context.Context, otherID string) (int64, error) {
	return s.m.chat.UnreadCount(ctx, s.userID, otherID)
}

// Profile fetches the user's own profile.
func (s *Session) Profile(ctx context.Context) (*db.Profile, error) {
	return s.m.profiles.Get(ctx, s.userID)
}

// SaveProfile creates or updates the user's profile.
func (s *Session) SaveProfile(ctx context.Context, in profile.SaveInput) (*db.Profile, error) {
	return s.m.profiles.Save(ctx, s.userID, in)
}

// MatchEvents opens a live feed of this user's match changes. The
// subscription is owned by the session and closed with it.
func (s *Session) MatchEvents(ctx context.Context) (*stream.Subscription, error) {
	return s.subscribe(ctx, stream.CollectionMatches, s.userID)
}

// MessageEvents opens a live feed of this user's message changes.
func (s *Session) MessageEvents(ctx context.Context) (*stream.Subscription, error) {
	return s.subscribe(ctx, stream.CollectionMessages, s.userID)
}

// ProfileEvents opens the collection-wide profile feed driving the
// discovery deck.
func (s *Session) ProfileEvents(ctx context.Context) (*stream.Subscription, error) {
	return s.subscribe(ctx, stream.CollectionProfiles, stream.BroadcastAll)
}

// Close tears this session down and forgets it in the manager.
func (s *Session) Close() {
	s.m.Close(s.userID)
}

// subscribe tracks the subscription for teardown and drops it again as soon
// as it closes, so short-lived event streams never accumulate dead entries.
func (s *Session) subscribe(ctx context.Context, collection, channelUser string) (*stream.Subscription, error) {
	sub, err := s.m.appCtx.Broker.Subscribe(ctx, collection, channelUser)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	sub.OnClose(func() {
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
	})
	return sub, nil
}

func (s *Session) teardown() {
	s.mu.Lock()
	subs := make([]*stream.Subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()
	for _, sub := range subs {
		_ = sub.Close()
	}
}
