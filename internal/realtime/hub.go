package realtime

import "sync"

// Hub tracks the running watchers per user so a delete reaches every open
// list at once instead of waiting for the change notification.
type Hub struct {
	mu       sync.Mutex
	watchers map[string]map[*Watcher]struct{}
}

func NewHub() *Hub {
	return &Hub{watchers: make(map[string]map[*Watcher]struct{})}
}

// Register adds w and returns the function that removes it again.
func (h *Hub) Register(w *Watcher) func() {
	h.mu.Lock()
	set, ok := h.watchers[w.userID]
	if !ok {
		set = make(map[*Watcher]struct{})
		h.watchers[w.userID] = set
	}
	set[w] = struct{}{}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if current := h.watchers[w.userID]; current != nil {
			delete(current, w)
			if len(current) == 0 {
				delete(h.watchers, w.userID)
			}
		}
	}
}

// Remove drops the source from every watcher of the user.
func (h *Hub) Remove(userID, sourceID string) {
	h.mu.Lock()
	targets := make([]*Watcher, 0, len(h.watchers[userID]))
	for w := range h.watchers[userID] {
		targets = append(targets, w)
	}
	h.mu.Unlock()

	for _, w := range targets {
		w.Remove(sourceID)
	}
}

// Len reports how many watchers are registered for the user.
func (h *Hub) Len(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[userID])
}
