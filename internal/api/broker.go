package api

import (
    "sync"
)

// SSEEvent is one event on a problem's stream. Type is the SSE event name.
type SSEEvent struct {
    Type string         `json:"type"`
    Data map[string]any `json:"data"`
}

// Event names published per problem.
const (
    EventSolveStarted   = "solve.started"
    EventSolveCompleted = "solve.completed"
    EventSolveFailed    = "solve.failed"
)

// EventBroker fans solve events out to stream subscribers keyed by problem id.
type EventBroker interface {
    Subscribe(problemID string) chan SSEEvent
    Unsubscribe(problemID string, ch chan SSEEvent)
    Publish(problemID string, evt SSEEvent)
}

// Broker is the in-process EventBroker.
type Broker struct {
    mu      sync.Mutex
    subs    map[string]map[chan SSEEvent]struct{} // problemId -> set of channels
}

func NewBroker() *Broker {
    return &Broker{subs: map[string]map[chan SSEEvent]struct{}{}}
}

func (b *Broker) Subscribe(problemID string) chan SSEEvent {
    ch := make(chan SSEEvent, 8)
    b.mu.Lock()
    if b.subs[problemID] == nil { b.subs[problemID] = map[chan SSEEvent]struct{}{} }
    b.subs[problemID][ch] = struct{}{}
    b.mu.Unlock()
    return ch
}

func (b *Broker) Unsubscribe(problemID string, ch chan SSEEvent) {
    b.mu.Lock()
    defer b.mu.Unlock()
    m := b.subs[problemID]
    if _, ok := m[ch]; !ok { return }
    delete(m, ch)
    if len(m) == 0 { delete(b.subs, problemID) }
    close(ch)
}

// Publish never blocks; slow subscribers drop events.
func (b *Broker) Publish(problemID string, evt SSEEvent) {
    b.mu.Lock()
    m := b.subs[problemID]
    for ch := range m {
        select { case ch <- evt: default: }
    }
    b.mu.Unlock()
}
