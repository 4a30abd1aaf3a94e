package realtime

import (
	"errors"
	"sync"
	"sync/atomic"
)

// EventType mirrors the row-change kinds of the underlying change feed.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Tables observable through the change feed.
const (
	TableMessages       = "chat.messages"
	TableUnreadCounters = "chat.unread_counters"
)

// Event is a single row-change notification. Row carries key columns only
// (plus small scalar values for counter rows); consumers needing joined data
// re-fetch by key, which guarantees freshness at delivery time.
type Event struct {
	Table string
	Type  EventType
	Row   map[string]string
}

// Filter restricts a subscription to rows whose Column equals Value.
// A zero Filter matches every row of the table.
type Filter struct {
	Column string
	Value  string
}

func (f Filter) matches(e Event) bool {
	if f.Column == "" {
		return true
	}
	return e.Row[f.Column] == f.Value
}

// SubscriptionState is the lifecycle of one subscription:
// Idle -> Subscribing -> Subscribed -> Unsubscribed.
type SubscriptionState int32

const (
	StateIdle SubscriptionState = iota
	StateSubscribing
	StateSubscribed
	StateUnsubscribed
)

func (s SubscriptionState) String() string {
	switch s {
	case StateSubscribing:
		return "subscribing"
	case StateSubscribed:
		return "subscribed"
	case StateUnsubscribed:
		return "unsubscribed"
	default:
		return "idle"
	}
}

// ErrEventsDropped is reported through the status callback when the
// subscriber's buffer overflowed and events were discarded. There is no
// replay; consumers must reconcile by re-fetching current state.
var ErrEventsDropped = errors.New("realtime: events dropped, consumer must re-fetch")

// StatusFunc receives subscription state transitions and delivery-gap
// notifications. Errors arrive here rather than from Subscribe, because
// subscriptions are long-lived.
type StatusFunc func(state SubscriptionState, err error)

// Subscription is an explicit handle owned by the caller. Close releases it;
// further events stop, but an event already delivered keeps being processed.
type Subscription struct {
	id     int64
	table  string
	filter Filter
	types  map[EventType]bool

	events    chan Event
	state     atomic.Int32
	closeOnce sync.Once
	onClose   func()

	// sendMu serializes deliveries against Close so the events channel is
	// never written after it is closed.
	sendMu sync.RWMutex

	statusMu sync.Mutex
	status   StatusFunc
}

// Events is the stream of matching changes. The channel closes on Close.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// State returns the current lifecycle state.
func (s *Subscription) State() SubscriptionState {
	return SubscriptionState(s.state.Load())
}

// OnStatus registers a callback for state transitions and delivery gaps.
func (s *Subscription) OnStatus(fn StatusFunc) {
	s.statusMu.Lock()
	s.status = fn
	s.statusMu.Unlock()
}

func (s *Subscription) notifyStatus(state SubscriptionState, err error) {
	s.statusMu.Lock()
	fn := s.status
	s.statusMu.Unlock()
	if fn != nil {
		fn(state, err)
	}
}

// Close unsubscribes. Idempotent.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
		s.sendMu.Lock()
		s.state.Store(int32(StateUnsubscribed))
		close(s.events)
		s.sendMu.Unlock()
		s.notifyStatus(StateUnsubscribed, nil)
	})
}

// deliver attempts a non-blocking send. It reports whether the event was
// queued; false means the subscription is gone or its buffer is full.
func (s *Subscription) deliver(e Event) bool {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.State() != StateSubscribed {
		return false
	}
	select {
	case s.events <- e:
		return true
	default:
		return false
	}
}

func (s *Subscription) wants(e Event) bool {
	if e.Table != s.table {
		return false
	}
	if !s.types[e.Type] {
		return false
	}
	return s.filter.matches(e)
}

// Source is the change-stream feed this core consumes. The in-process Broker
// implements it; a managed CDC connection can be substituted behind the same
// interface.
type Source interface {
	Subscribe(table string, filter Filter, types ...EventType) (*Subscription, error)
}

// Publisher is the write side of the feed, invoked by services post-commit.
type Publisher interface {
	Publish(e Event)
}
