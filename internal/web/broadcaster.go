package web

import (
	"sync"

	"surveypos/internal/engine"
)

// Broadcaster fans the per-tick data snapshot out to any stream subscribers.
// It keeps the most recent value so a new subscriber gets an immediate
// sample instead of waiting for the next tick.
type Broadcaster struct {
	mu       sync.RWMutex
	subs     map[int]chan dataResponse
	nextID   int
	last     dataResponse
	haveLast bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan dataResponse)}
}

func (b *Broadcaster) Subscribe(buffer int) (int, <-chan dataResponse) {
	if buffer <= 0 {
		buffer = 2
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan dataResponse, buffer)
	if b.haveLast {
		ch <- b.last
	}
	b.subs[id] = ch
	return id, ch
}

func (b *Broadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// PublishView encodes the engine view and fans it out; wired as (part of)
// the engine's sample callback.
func (b *Broadcaster) PublishView(v engine.View) {
	b.Publish(buildDataResponse(v))
}

// Publish never blocks; a subscriber that cannot keep up loses samples.
func (b *Broadcaster) Publish(d dataResponse) {
	b.mu.Lock()
	b.last = d
	b.haveLast = true
	for _, ch := range b.subs {
		select {
		case ch <- d:
		default:
		}
	}
	b.mu.Unlock()
}
