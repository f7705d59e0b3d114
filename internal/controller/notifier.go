package controller

import "sync"

// notifier wakes hanging list calls when a debuggee's active set changes.
type notifier struct {
	mu      sync.Mutex
	waiters map[string]chan struct{}
}

func newNotifier() *notifier {
	return &notifier{waiters: make(map[string]chan struct{})}
}

// wait returns a channel closed on the next notify for debuggeeID. Take it
// before reading state so a concurrent change is not missed.
func (n *notifier) wait(debuggeeID string) <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch, ok := n.waiters[debuggeeID]
	if !ok {
		ch = make(chan struct{})
		n.waiters[debuggeeID] = ch
	}
	return ch
}

func (n *notifier) notify(debuggeeID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if ch, ok := n.waiters[debuggeeID]; ok {
		close(ch)
		delete(n.waiters, debuggeeID)
	}
}
