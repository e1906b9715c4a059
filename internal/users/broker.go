package users

import (
	"sync"

	"userManagement/models"
)

// broker fans snapshots out to subscribers. Each subscriber channel holds at
// most one pending snapshot; a newer one replaces it.
type broker struct {
	mu   sync.Mutex
	subs map[chan []*models.User]struct{}
}

func newBroker() *broker {
	return &broker{subs: make(map[chan []*models.User]struct{})}
}

func (b *broker) add(initial []*models.User) chan []*models.User {
	ch := make(chan []*models.User, 1)
	ch <- initial
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *broker) remove(ch chan []*models.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

func (b *broker) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *broker) publish(snap []*models.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- snap:
		default:
			// drop the stale snapshot
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
