package engine

import (
	"sync"

	"github.com/google/uuid"
)

type watchKey struct {
	namespace string
	key       string
}

// Notifier fans out change signals to per-key subscribers. The zero value is
// ready to use.
type Notifier struct {
	mu   sync.Mutex
	subs map[watchKey]map[uuid.UUID]chan struct{}
}

// Subscribe registers interest in namespace/key. The returned channel has a
// buffer of one; signals sent while it is full are merged into the pending one.
func (n *Notifier) Subscribe(namespace, key string) (<-chan struct{}, func()) {
	wk := watchKey{namespace: namespace, key: key}
	id := uuid.New()
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	if n.subs == nil {
		n.subs = make(map[watchKey]map[uuid.UUID]chan struct{})
	}
	if n.subs[wk] == nil {
		n.subs[wk] = make(map[uuid.UUID]chan struct{})
	}
	n.subs[wk][id] = ch
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if set, ok := n.subs[wk]; ok {
				delete(set, id)
				if len(set) == 0 {
					delete(n.subs, wk)
				}
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Notify signals every subscriber of namespace/key without blocking.
func (n *Notifier) Notify(namespace, key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs[watchKey{namespace: namespace, key: key}] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions for namespace/key.
func (n *Notifier) Subscribers(namespace, key string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[watchKey{namespace: namespace, key: key}])
}
