// Package watch observes the workflow directory and fans change
// notifications out to in-process subscribers such as the dashboard.
package watch

import (
	"sync"
	"sync/atomic"
	"time"
)

// Kind classifies what part of the workflow a change touched.
type Kind string

const (
	KindSpec     Kind = "spec"
	KindApproval Kind = "approval"
	KindSteering Kind = "steering"
	KindTemplate Kind = "template"
	KindArchive  Kind = "archive"
	KindOther    Kind = "other"
)

// Op is the file operation behind a change.
type Op string

const (
	OpCreate Op = "create"
	OpModify Op = "modify"
	OpDelete Op = "delete"
	OpRename Op = "rename"
)

// ChangeEvent describes one debounced change under the workflow root.
type ChangeEvent struct {
	Kind Kind   `json:"kind"`
	Op   Op     `json:"op"`
	Path string `json:"path"`
	// SpecName is set for spec, approval and archive changes.
	SpecName string `json:"specName,omitempty"`
	// Document is the document type for spec and steering changes, or the
	// approval id for approval changes.
	Document string    `json:"document,omitempty"`
	Time     time.Time `json:"time"`
}

// Notifier lets viewers subscribe to change events. The returned function
// cancels the subscription and closes the channel.
type Notifier interface {
	Subscribe() (<-chan ChangeEvent, func())
}

// DefaultBuffer is the per-subscriber channel capacity used by NewHub when
// given a non-positive size.
const DefaultBuffer = 64

// Hub fans events out to subscribers. Publishing never blocks: a subscriber
// whose buffer is full misses the event.
type Hub struct {
	mu      sync.Mutex
	subs    map[uint64]chan ChangeEvent
	next    uint64
	buffer  int
	closed  bool
	dropped atomic.Uint64
}

// NewHub creates a Hub whose subscriber channels hold buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   make(map[uint64]chan ChangeEvent),
		buffer: buffer,
	}
}

// Subscribe registers a new subscriber. On a closed hub the channel is
// returned already closed.
func (h *Hub) Subscribe() (<-chan ChangeEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan ChangeEvent, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers ev to every subscriber with room in its buffer.
func (h *Hub) Publish(ev ChangeEvent) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

// Close closes every subscriber channel. Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was
// not keeping up.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
