// Package pubsub provides the in-process fan-out channel for newly appended
// messages. A Hub is constructed once and injected wherever publishing or
// subscribing is needed; there is no package-level instance.
package pubsub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"chirper/internal/domain"
)

// DefaultSubscriberBuffer is the channel buffer used when the hub is
// constructed with a non-positive buffer size.
const DefaultSubscriberBuffer = 64

// Hub is an in-memory publish/subscribe exchange keyed by conversation id.
// Dispatch is O(1) per conversation: each conversation id maps to its own
// subscriber set, so a publish never scans subscribers of other
// conversations. Delivery is at-most-once and unbuffered beyond the
// per-subscriber channel; a subscriber that connects after a publish never
// sees that event and reconciles via the message store.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[int64]map[string]chan *domain.Message // conversationID -> subID -> ch
	closed      bool
	buffer      int
	logger      *slog.Logger
}

// NewHub creates a hub. Pass nil logger for the default.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subscribers: make(map[int64]map[string]chan *domain.Message),
		buffer:      buffer,
		logger:      logger.With("component", "pubsub"),
	}
}

// Subscribe registers a subscriber for messages on the given conversation and
// returns its channel plus a subscription id for later Unsubscribe. The
// subscription is cleaned up automatically when ctx is cancelled; the channel
// is closed on unsubscription.
func (h *Hub) Subscribe(ctx context.Context, conversationID int64) (<-chan *domain.Message, string) {
	subID := uuid.New().String()
	ch := make(chan *domain.Message, h.buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, subID
	}
	if _, ok := h.subscribers[conversationID]; !ok {
		h.subscribers[conversationID] = make(map[string]chan *domain.Message)
	}
	h.subscribers[conversationID][subID] = ch
	h.mu.Unlock()

	h.logger.Debug("subscriber added",
		"conversation_id", conversationID,
		"sub_id", subID)

	go func() {
		<-ctx.Done()
		h.Unsubscribe(conversationID, subID)
	}()

	return ch, subID
}

// Publish delivers msg to every subscriber of conversationID. Sends are
// non-blocking: a subscriber whose channel is full has the event dropped
// rather than stalling the publisher. Events for the same conversation are
// handed to each channel in call order.
func (h *Hub) Publish(conversationID int64, msg *domain.Message) {
	// Sends stay under the read lock so a concurrent Unsubscribe (which takes
	// the write lock) cannot close a channel mid-send. Sends never block, so
	// the lock is held only briefly.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subscribers[conversationID] {
		select {
		case ch <- msg:
		default:
			h.logger.Debug("dropped message for slow subscriber",
				"conversation_id", conversationID,
				"message_id", msg.ID)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel. Unknown ids are
// ignored.
func (h *Hub) Unsubscribe(conversationID int64, subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[conversationID]
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
		delete(h.subscribers, conversationID)
	}

	h.logger.Debug("subscriber removed",
		"conversation_id", conversationID,
		"sub_id", subID)
}

// Close shuts the hub down and closes all subscriber channels. Publishes
// after Close are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for convID, subs := range h.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(h.subscribers, convID)
	}

	h.logger.Debug("hub closed")
}
