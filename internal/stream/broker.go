// Package stream is the sync layer: every committed change to likes,
// matches and messages is re-broadcast to interested clients as an ordered
// stream of document change events, carried over Redis pub/sub with one
// channel per (collection, user). Order is preserved per channel only;
// nothing may rely on cross-channel ordering.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

type ChangeType string

const (
	Added    ChangeType = "added"
	Modified ChangeType = "modified"
	Removed  ChangeType = "removed"
)

// Collections observable through the broker.
const (
	CollectionMatches  = "matches"
	CollectionMessages = "messages"
	CollectionProfiles = "profiles"
)

// BroadcastAll is the pseudo-user for collection-wide fan-out, used for
// profile changes every connected discovery deck observes.
const BroadcastAll = "all"

// DocumentChange is one observed mutation of a document in a collection.
type DocumentChange struct {
	Type       ChangeType      `json:"type"`
	Collection string          `json:"collection"`
	Data       json.RawMessage `json:"data"`
}

// Decode unmarshals the change payload into v.
func (c DocumentChange) Decode(v any) error {
	return json.Unmarshal(c.Data, v)
}

// Broker publishes and subscribes document changes.
type Broker struct {
	client *redis.Client
	logger *slog.Logger
}

func NewBroker(client *redis.Client, logger *slog.Logger) *Broker {
	return &Broker{client: client, logger: logger}
}

func channelFor(collection, userID string) string {
	return fmt.Sprintf("stream:%s:%s", collection, userID)
}

// Publish broadcasts a change of doc to the given user's view of a
// collection. Publish failures are surfaced but never affect the write
// that triggered them; a reconnecting client re-reads state from the store.
func (b *Broker) Publish(ctx context.Context, collection, userID string, typ ChangeType, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal change document: %w", err)
	}
	payload, err := json.Marshal(DocumentChange{
		Type:       typ,
		Collection: collection,
		Data:       data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	return b.client.Publish(ctx, channelFor(collection, userID), payload).Err()
}

// Subscribe opens a cancellable subscription to one user's view of a
// collection. Events arrive in publish order. The caller must Close the
// subscription; a client that disconnects mid-stream simply stops
// receiving, nothing is rolled back.
func (b *Broker) Subscribe(ctx context.Context, collection, userID string) (*Subscription, error) {
	ps := b.client.Subscribe(ctx, channelFor(collection, userID))
	// wait for the subscribe confirmation so no published event races past us
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s stream: %w", collection, err)
	}

	sub := &Subscription{
		pubsub: ps,
		events: make(chan DocumentChange, 16),
		done:   make(chan struct{}),
	}
	go sub.loop(b.logger)
	return sub, nil
}

// Subscription is a live change feed for one (collection, user) channel.
type Subscription struct {
	pubsub    *redis.PubSub
	events    chan DocumentChange
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	onClose func()
}

// OnClose registers fn to run exactly once when the subscription closes,
// letting the owner deregister it. A later registration replaces an
// earlier one.
func (s *Subscription) OnClose(fn func()) {
	s.mu.Lock()
	s.onClose = fn
	s.mu.Unlock()
}

// Events yields changes in the order the broker committed them. The channel
// closes when the subscription is closed or the transport drops.
func (s *Subscription) Events() <-chan DocumentChange {
	return s.events
}

// Close tears down the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
		s.mu.Lock()
		fn := s.onClose
		s.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
	return err
}

func (s *Subscription) loop(logger *slog.Logger) {
	defer close(s.events)
	for msg := range s.pubsub.Channel() {
		var change DocumentChange
		if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
			if logger != nil {
				logger.Warn("dropping malformed stream event", "channel", msg.Channel, "err", err)
			}
			continue
		}
		select {
		case s.events <- change:
		case <-s.done:
			return
		}
	}
}
