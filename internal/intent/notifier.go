package intent

import "sync"

// Notifier fans out intent completions to in-process watchers, one
// channel per subscription. The gateway's websocket endpoint subscribes
// here so a browser learns the instant its token is redeemed.
type Notifier struct {
	mu       sync.Mutex
	watchers map[string][]chan *Intent
}

// NewNotifier creates a Notifier.
func NewNotifier() *Notifier {
	return &Notifier{watchers: make(map[string][]chan *Intent)}
}

// Watch subscribes to completions of the given token. The returned
// channel receives at most one intent. Call cancel to unsubscribe.
func (n *Notifier) Watch(token string) (<-chan *Intent, func()) {
	ch := make(chan *Intent, 1)

	n.mu.Lock()
	n.watchers[token] = append(n.watchers[token], ch)
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		chans := n.watchers[token]
		for i, c := range chans {
			if c == ch {
				n.watchers[token] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		if len(n.watchers[token]) == 0 {
			delete(n.watchers, token)
		}
	}
	return ch, cancel
}

// Notify delivers the completed intent to every watcher of token.
// Watchers that already received or went away are skipped.
func (n *Notifier) Notify(token string, it *Intent) {
	n.mu.Lock()
	chans := n.watchers[token]
	delete(n.watchers, token)
	n.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- it:
		default:
		}
	}
}
