// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signal

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultBufferSize is the per-subscription channel capacity used
// when HubConfig.BufferSize is not set.
const DefaultBufferSize = 64

// HubConfig holds the parameters for NewHub.
type HubConfig struct {
	// BufferSize is the channel capacity of each subscription. Once
	// a subscriber has that many undelivered signals, further signals
	// are dropped for it.
	BufferSize int

	Logger *slog.Logger
}

// Hub fans signals out to subscribers without ever blocking the
// emitter.
type Hub struct {
	bufferSize int
	logger     *slog.Logger

	mu          sync.RWMutex
	subscribers map[uuid.UUID]*Subscription
	closed      bool
}

// Subscription is one subscriber's view of the hub. C is closed when
// the subscription is removed or the hub is closed.
type Subscription struct {
	ID uuid.UUID
	C  <-chan Signal

	signals chan Signal
	dropped atomic.Uint64
}

// Dropped returns how many signals were discarded because C was full.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// NewHub returns an empty Hub.
func NewHub(cfg HubConfig) *Hub {
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		bufferSize:  bufferSize,
		logger:      logger,
		subscribers: make(map[uuid.UUID]*Subscription),
	}
}

// Subscribe registers a new subscriber. Subscribing to a closed hub
// returns a subscription whose channel is already closed.
func (h *Hub) Subscribe() *Subscription {
	signals := make(chan Signal, h.bufferSize)
	subscription := &Subscription{ID: uuid.New(), C: signals, signals: signals}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(signals)
		return subscription
	}
	h.subscribers[subscription.ID] = subscription
	h.logger.Debug("signal subscriber added", "subscription", subscription.ID.String())
	return subscription
}

// Unsubscribe removes a subscriber and closes its channel. Unknown
// IDs are ignored.
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subscription, ok := h.subscribers[id]
	if !ok {
		return
	}
	delete(h.subscribers, id)
	close(subscription.signals)
	h.logger.Debug("signal subscriber removed",
		"subscription", id.String(),
		"dropped", subscription.Dropped(),
	)
}

// Emit delivers s to every subscriber with room for it. Emit never
// blocks; a full subscriber misses the signal.
func (h *Hub) Emit(s Signal) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, subscription := range h.subscribers {
		select {
		case subscription.signals <- s:
		default:
			subscription.dropped.Add(1)
			h.logger.Warn("signal dropped for slow subscriber",
				"subscription", id.String(),
				"signal", string(s.Type()),
				"action_hash", s.Source().Hash.Short(),
			)
		}
	}
}

// Close removes every subscriber, closing their channels. Emit after
// Close is a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, subscription := range h.subscribers {
		delete(h.subscribers, id)
		close(subscription.signals)
	}
}
