package realtime

import (
	"sync"

	"commhub_backend/internal/logger"
)

const defaultBufferSize = 64

// Broker is the in-process change-stream source. Services publish row-change
// events after their transaction commits; subscribers receive them on
// buffered channels. Delivery is best-effort FIFO per subscription and not
// exactly-once: a slow consumer's events are dropped, and the drop is
// surfaced through the status callback so the consumer can re-fetch.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*Subscription
	nextID      int64
	bufferSize  int
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[string]map[int64]*Subscription),
		bufferSize:  defaultBufferSize,
	}
}

// Subscribe opens a filtered subscription on a table.
func (b *Broker) Subscribe(table string, filter Filter, types ...EventType) (*Subscription, error) {
	typeSet := make(map[EventType]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}
	if len(typeSet) == 0 {
		typeSet[EventInsert] = true
		typeSet[EventUpdate] = true
		typeSet[EventDelete] = true
	}

	sub := &Subscription{
		id:     b.nextSequence(),
		table:  table,
		filter: filter,
		types:  typeSet,
		events: make(chan Event, b.bufferSize),
	}
	sub.state.Store(int32(StateSubscribing))
	sub.onClose = func() {
		b.unregister(table, sub.id)
	}

	b.mu.Lock()
	if _, ok := b.subscribers[table]; !ok {
		b.subscribers[table] = make(map[int64]*Subscription)
	}
	b.subscribers[table][sub.id] = sub
	b.mu.Unlock()

	sub.state.Store(int32(StateSubscribed))
	sub.notifyStatus(StateSubscribed, nil)
	return sub, nil
}

// Publish fans an event out to every matching subscription without blocking
// the publisher. Full buffers drop the event and flag the gap.
func (b *Broker) Publish(e Event) {
	b.mu.RLock()
	subs := b.subscribers[e.Table]
	copies := make([]*Subscription, 0, len(subs))
	for _, sub := range subs {
		copies = append(copies, sub)
	}
	b.mu.RUnlock()

	for _, sub := range copies {
		if !sub.wants(e) {
			continue
		}
		if !sub.deliver(e) {
			if sub.State() != StateSubscribed {
				continue
			}
			logger.Warn("realtime subscriber lagging, event dropped",
				"table", e.Table, "type", string(e.Type))
			sub.notifyStatus(StateSubscribed, ErrEventsDropped)
		}
	}
}

// SubscriberCount reports active subscriptions for a table.
func (b *Broker) SubscriberCount(table string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[table])
}

func (b *Broker) nextSequence() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	return b.nextID
}

func (b *Broker) unregister(table string, id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.subscribers[table]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(b.subscribers, table)
		}
	}
}
