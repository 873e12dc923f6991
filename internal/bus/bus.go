// ABOUTME: In-memory fan-out broadcaster for store change notifications
// ABOUTME: Subscribers register per store topic; publishes never block writers

package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64

	// TopicAll subscribes to changes from every store.
	TopicAll = "*"
)

// Change origins.
const (
	// OriginLocal marks a change written through this process's own facade.
	OriginLocal = "local"
	// OriginExternal marks a change relayed from another execution context
	// sharing the storage area.
	OriginExternal = "external"
)

// Change describes one store mutation. Value holds the original logical
// value supplied by the writer, not its encoded form.
type Change struct {
	Store  string    `json:"store"`
	Key    string    `json:"key"`
	Value  any       `json:"value"`
	Origin string    `json:"origin"`
	Time   time.Time `json:"time"`
}

// Broadcaster provides in-memory pub/sub for store changes. Subscribers
// register for a store topic (or TopicAll) and receive changes as they are
// published, enabling cross-client awareness without polling.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan *Change // topic -> subID -> ch
	logger      *slog.Logger
}

// New creates a broadcaster. Pass nil logger for default.
func New(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan *Change),
		logger:      logger.With("component", "bus"),
	}
}

// Subscribe registers a subscriber for changes on the given topic. It
// returns a channel that receives changes and a subscription ID for later
// unsubscription. The subscription is automatically cleaned up when ctx is
// cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, topic string) (<-chan *Change, string) {
	subID := uuid.New().String()
	ch := make(chan *Change, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[topic]; !ok {
		b.subscribers[topic] = make(map[string]chan *Change)
	}
	b.subscribers[topic][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "topic", topic, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(topic, subID)
	}()

	return ch, subID
}

// Publish sends a change to all subscribers of its topic plus every
// TopicAll subscriber. If excludeSubID is non-empty, that subscriber is
// skipped (used to avoid echoing changes back to the originating client).
// Non-blocking: changes are dropped for subscribers whose channels are full.
func (b *Broadcaster) Publish(topic string, change *Change, excludeSubID string) {
	// Sends stay under the read lock so Unsubscribe cannot close a
	// channel mid-send; they never block, so the lock is held briefly.
	b.mu.RLock()
	defer b.mu.RUnlock()

	b.deliver(b.subscribers[topic], change, excludeSubID, topic)
	if topic != TopicAll {
		b.deliver(b.subscribers[TopicAll], change, excludeSubID, topic)
	}
}

func (b *Broadcaster) deliver(subs map[string]chan *Change, change *Change, excludeSubID, topic string) {
	for id, ch := range subs {
		if excludeSubID != "" && id == excludeSubID {
			continue
		}
		select {
		case ch <- change:
		default:
			b.logger.Debug("dropped change for slow subscriber",
				"topic", topic,
				"key", change.Key)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(topic, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[topic]
	if !ok {
		return
	}

	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	if len(subs) == 0 {
		delete(b.subscribers, topic)
	}

	b.logger.Debug("subscriber removed", "topic", topic, "sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, topic)
	}

	b.logger.Debug("broadcaster closed")
}
