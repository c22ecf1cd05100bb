package refresh

import "sync"

// Bus is a payload-less broadcast channel for "token refresh needed"
// signals. Any number of subscribers may listen; publishing never blocks.
type Bus struct {
	lock sync.Mutex
	subs map[int]chan struct{}
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan struct{})}
}

// Subscribe registers a listener and returns its signal channel plus an
// unsubscribe function. Subscribers register/unregister around their own
// lifetime.
func (b *Bus) Subscribe() (<-chan struct{}, func()) {
	b.lock.Lock()
	defer b.lock.Unlock()

	id := b.next
	b.next++
	ch := make(chan struct{}, 1)
	b.subs[id] = ch

	unsubscribe := func() {
		b.lock.Lock()
		defer b.lock.Unlock()
		delete(b.subs, id)
	}
	return ch, unsubscribe
}

// Publish signals every subscriber. The trigger carries no payload and is
// level-triggered: a subscriber that already has a pending signal is not
// queued a second one.
func (b *Bus) Publish() {
	b.lock.Lock()
	defer b.lock.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
