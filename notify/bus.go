package notify

import (
	"context"
	"sync"
)

// Bus is an in-memory subscription hub. Callers subscribe to one
// workflow's events (or to all of them) and receive deliveries on a
// buffered channel. Delivery is best-effort: a subscriber that falls
// behind loses events rather than blocking the workflow.
//
// Bus implements Sink, so it plugs directly into a Service.
type Bus struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan Event
	nextID int
	buffer int
	closed bool
}

// NewBus builds a bus whose subscriber channels hold up to buffer
// undelivered events. A non-positive buffer defaults to 16.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 16
	}
	return &Bus{
		subs:   make(map[string]map[int]chan Event),
		buffer: buffer,
	}
}

// Subscribe registers interest in one workflow's events. An empty
// workflowID subscribes to every workflow. The returned cancel func
// removes the subscription and closes the channel; it is safe to call
// more than once.
func (b *Bus) Subscribe(workflowID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	if b.subs[workflowID] == nil {
		b.subs[workflowID] = make(map[int]chan Event)
	}
	b.subs[workflowID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if set, ok := b.subs[workflowID]; ok {
				if _, ok := set[id]; ok {
					delete(set, id)
					close(ch)
				}
				if len(set) == 0 {
					delete(b.subs, workflowID)
				}
			}
		})
	}
	return ch, cancel
}

// Send implements Sink. Events fan out to the event's workflow
// subscribers and to the all-workflows subscribers; full channels drop
// the event.
func (b *Bus) Send(_ context.Context, evt Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}

	for _, ch := range b.subs[evt.WorkflowID] {
		select {
		case ch <- evt:
		default:
		}
	}
	if evt.WorkflowID != "" {
		for _, ch := range b.subs[""] {
			select {
			case ch <- evt:
			default:
			}
		}
	}
	return nil
}

// Close closes every subscriber channel and rejects further sends.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, set := range b.subs {
		for _, ch := range set {
			close(ch)
		}
	}
	b.subs = make(map[string]map[int]chan Event)
}

var _ Sink = (*Bus)(nil)
