// Package events provides the match event bus. The engine emits lifecycle
// notifications through it for observers (logging, UI hooks, analytics);
// emission is fire-and-forget and the engine never reads events back to
// drive control flow, so a nil bus is always safe.
package events

import (
	"sync"
	"time"
)

// Type indicates the category of a game event.
type Type string

const (
	EventMatchStart     Type = "MATCH_START"
	EventTurnStart      Type = "TURN_START"
	EventTurnEnd        Type = "TURN_END"
	EventCardDrawn      Type = "CARD_DRAWN"
	EventCardPlayed     Type = "CARD_PLAYED"
	EventCardSummoned   Type = "CARD_SUMMONED"
	EventCardDamaged    Type = "CARD_DAMAGED"
	EventCardHealed     Type = "CARD_HEALED"
	EventCardDestroyed  Type = "CARD_DESTROYED"
	EventAttackDeclared Type = "ATTACK_DECLARED"
	EventStatChanged    Type = "STAT_CHANGED"
	EventKeywordAdded   Type = "KEYWORD_ADDED"
	EventManaChanged    Type = "MANA_CHANGED"
	EventPlayerDamaged  Type = "PLAYER_DAMAGED"
	EventPlayerHealed   Type = "PLAYER_HEALED"
	EventGameOver       Type = "GAME_OVER"
)

// Event is a single lifecycle notification.
type Event struct {
	Type      Type
	Timestamp time.Time
	Data      map[string]interface{}
}

// New builds an event with the timestamp populated.
func New(t Type, data map[string]interface{}) Event {
	if data == nil {
		data = make(map[string]interface{})
	}
	return Event{Type: t, Timestamp: time.Now(), Data: data}
}

// Handler reacts to an emitted event.
type Handler func(Event)

type typedHandler struct {
	handle    int
	eventType Type
	fn        Handler
}

// Bus is a synchronous publish/subscribe bus. Handlers run in registration
// order on the emitting goroutine. The bus is injected into the engine
// rather than held as process-global state.
type Bus struct {
	mu         sync.RWMutex
	typed      map[Type][]typedHandler
	any        []typedHandler
	nextHandle int
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{typed: make(map[Type][]typedHandler)}
}

// On registers a handler for one event type and returns a handle for Off.
func (b *Bus) On(t Type, fn Handler) int {
	if fn == nil {
		return -1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	handle := b.nextHandle
	b.nextHandle++
	b.typed[t] = append(b.typed[t], typedHandler{handle: handle, eventType: t, fn: fn})
	return handle
}

// OnAny registers a handler for every event and returns a handle for Off.
func (b *Bus) OnAny(fn Handler) int {
	if fn == nil {
		return -1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	handle := b.nextHandle
	b.nextHandle++
	b.any = append(b.any, typedHandler{handle: handle, fn: fn})
	return handle
}

// Off removes the handler identified by handle.
func (b *Bus) Off(handle int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for t, handlers := range b.typed {
		for i, h := range handlers {
			if h.handle == handle {
				b.typed[t] = append(handlers[:i], handlers[i+1:]...)
				return
			}
		}
	}
	for i, h := range b.any {
		if h.handle == handle {
			b.any = append(b.any[:i], b.any[i+1:]...)
			return
		}
	}
}

// Emit delivers the event synchronously to typed handlers first, then
// catch-all handlers, each in registration order. A nil bus is a no-op.
func (b *Bus) Emit(event Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	typed := append([]typedHandler(nil), b.typed[event.Type]...)
	catchAll := append([]typedHandler(nil), b.any...)
	b.mu.RUnlock()

	for _, h := range typed {
		h.fn(event)
	}
	for _, h := range catchAll {
		h.fn(event)
	}
}
