package controller

import (
	"sync"
	"time"
)

// Event is one progress update published while a turn runs. Subscribers use
// it to surface "analyzing / executing / retrying" state to clients.
type Event struct {
	TurnID  string    `json:"turnId"`
	State   State     `json:"state"`
	Attempt int       `json:"attempt"`
	Detail  string    `json:"detail,omitempty"`
	Time    time.Time `json:"time"`
}

// Events fans published events out to all current subscribers. Slow
// subscribers are skipped, not waited on; progress updates are advisory.
type Events struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewEvents() *Events {
	return &Events{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new listener and returns its channel plus an
// unsubscribe func. The channel is closed on unsubscribe.
func (e *Events) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	e.mu.Lock()
	e.subs[ch] = struct{}{}
	e.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, ch)
			e.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber whose buffer has room.
func (e *Events) Publish(ev Event) {
	if e == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
