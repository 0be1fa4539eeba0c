package financial

import (
	"sync"
	"time"
)

// DefaultDebounce is the window over which queued events are collected
// before being emitted.
const DefaultDebounce = 50 * time.Millisecond

// Event names emitted by the Manager.
const (
	EventAdded              = "transaction:added"
	EventUpdated            = "transaction:updated"
	EventDeleted            = "transaction:deleted"
	EventCreatedWithBalance = "transaction:created:withBalance"
	EventUpdatedWithBalance = "transaction:updated:withBalance"
	EventDeletedWithBalance = "transaction:deleted:withBalance"
)

// BatchSuffix marks an event that coalesces several occurrences of the same
// name; its payload is the ordered list of the individual payloads.
const BatchSuffix = ":batch"

// Event is a change notification for downstream observers.
type Event struct {
	Name    string
	Payload any
}

// BalanceEventPayload is the payload of the combined *:withBalance events.
type BalanceEventPayload struct {
	Transaction Transaction
	Adjustments []Adjustment
}

// Dispatcher batches change notifications. Queued events are held for a
// debounce window; on expiry, events are grouped by name and a single
// occurrence emits one event with its payload while multiple occurrences of
// the same name emit one batch event carrying the ordered payload list. This
// keeps observers from being invoked once per micro-step of a multi-step or
// batch operation.
//
// Observers register explicitly through Subscribe; there is no ambient bus.
type Dispatcher struct {
	debounce time.Duration

	mu      sync.Mutex
	queue   []Event
	timer   *time.Timer
	subs    map[int]func(Event)
	nextSub int
	closed  bool
}

// NewDispatcher creates a dispatcher with the given debounce window;
// a non-positive value selects DefaultDebounce.
func NewDispatcher(debounce time.Duration) *Dispatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Dispatcher{debounce: debounce, subs: make(map[int]func(Event))}
}

// Subscribe registers an observer and returns a function that removes it.
func (d *Dispatcher) Subscribe(fn func(Event)) (unsubscribe func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.subs, id)
	}
}

// Queue adds an event to the pending batch and (re)arms the debounce timer.
func (d *Dispatcher) Queue(name string, payload any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.queue = append(d.queue, Event{Name: name, Payload: payload})
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, d.Flush)
}

// Flush synchronously emits all pending events, grouped by name in
// first-seen order. It is called by the debounce timer and may be called
// directly when deterministic delivery is needed.
func (d *Dispatcher) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	pending := d.queue
	d.queue = nil
	subs := make([]func(Event), 0, len(d.subs))
	for _, fn := range d.subs {
		subs = append(subs, fn)
	}
	d.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	// Group payloads by name, preserving the order names were first queued.
	var names []string
	grouped := make(map[string][]any)
	for _, e := range pending {
		if _, seen := grouped[e.Name]; !seen {
			names = append(names, e.Name)
		}
		grouped[e.Name] = append(grouped[e.Name], e.Payload)
	}

	for _, name := range names {
		payloads := grouped[name]
		var out Event
		if len(payloads) == 1 {
			out = Event{Name: name, Payload: payloads[0]}
		} else {
			out = Event{Name: name + BatchSuffix, Payload: payloads}
		}
		for _, fn := range subs {
			fn(out)
		}
	}
}

// Close flushes pending events and rejects further queuing.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.Flush()
}
