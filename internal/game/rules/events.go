package rules

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thraizz/crowd-server-go/internal/game/cards"
	"github.com/thraizz/crowd-server-go/internal/game/side"
)

// EventType indicates the category of a rules event.
type EventType string

const (
	// Turn events
	EventPhaseChanged EventType = "PHASE_CHANGED"
	EventBeginTurn    EventType = "BEGIN_TURN"
	EventEndTurn      EventType = "END_TURN"

	// Zone events
	EventZoneChange           EventType = "ZONE_CHANGE"
	EventDrawCard             EventType = "DRAW_CARD"
	EventDrewCard             EventType = "DREW_CARD"
	EventEntersTheBattlefield EventType = "ENTERS_THE_BATTLEFIELD"

	// Intent events
	EventIntentQueued EventType = "INTENT_QUEUED"
	EventCastCreature EventType = "CAST_CREATURE"
	EventPlayRejected EventType = "PLAY_REJECTED"
	EventPassed       EventType = "PASSED"

	// Resource events
	EventCrowdChanged EventType = "CROWD_CHANGED"
)

// Event represents a state change that other subsystems may react to.
type Event struct {
	Type        EventType
	ID          string
	CardID      string
	Side        side.Side
	Amount      int
	Zone        cards.ZoneKind
	FromZone    cards.ZoneKind
	Timestamp   time.Time
	Metadata    map[string]string
	Description string
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, cardID string, s side.Side) Event {
	return Event{
		Type:      eventType,
		ID:        uuid.NewString(),
		CardID:    cardID,
		Side:      s,
		Timestamp: time.Now(),
		Metadata:  make(map[string]string),
	}
}

// NewEventWithAmount creates a new event with an amount value.
func NewEventWithAmount(eventType EventType, cardID string, s side.Side, amount int) Event {
	evt := NewEvent(eventType, cardID, s)
	evt.Amount = amount
	return evt
}

// Publisher is the narrow publishing surface handed to components that emit events.
type Publisher interface {
	Publish(event Event)
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with type filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	order          []int
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	bus.order = append(bus.order, handle)
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if _, ok := bus.listeners[handle]; ok {
		delete(bus.listeners, handle)
		for i, h := range bus.order {
			if h == handle {
				bus.order = append(bus.order[:i], bus.order[i+1:]...)
				break
			}
		}
		return
	}
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously,
// in subscription order. Listeners must not publish re-entrantly.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, handle := range bus.order {
		bus.listeners[handle](event)
	}
	for _, listener := range bus.typedListeners[event.Type] {
		listener.Callback(event)
	}
}
