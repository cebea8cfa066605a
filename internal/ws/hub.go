package ws

import "sync"

// tracesChanged is the nil-payload signal a subscriber receives when new
// records arrive for its vault; the session rebuilds its own timeline.
var tracesChanged []byte

// Hub owns the subscription channel between trace ingestion and connected
// webview sessions. It replaces the postMessage pattern of the original
// frontend: sessions subscribe per vault, ingestion notifies, and
// fire-and-forget frames (highlights) are rebroadcast to vault peers.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan []byte]struct{} // vault key -> subscribers
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: map[string]map[chan []byte]struct{}{}}
}

// Subscribe registers interest in a vault. The returned function removes the
// subscription; it is safe to call once.
func (h *Hub) Subscribe(vaultKey string) (chan []byte, func()) {
	ch := make(chan []byte, 8)
	h.mu.Lock()
	vault, ok := h.subs[vaultKey]
	if !ok {
		vault = map[chan []byte]struct{}{}
		h.subs[vaultKey] = vault
	}
	vault[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(vault, ch)
		// Re-check through the index: the vault entry may have been replaced
		// by a later Subscribe since this closure captured it.
		if len(h.subs[vaultKey]) == 0 {
			delete(h.subs, vaultKey)
		}
		h.mu.Unlock()
	}
}

// Notify signals every subscriber of a vault that its trace set changed.
func (h *Hub) Notify(vaultKey string) {
	h.send(vaultKey, tracesChanged, nil)
}

// Broadcast delivers a raw frame to every subscriber of a vault except the
// sender's own channel.
func (h *Hub) Broadcast(vaultKey string, frame []byte, except chan []byte) {
	h.send(vaultKey, frame, except)
}

// send uses non-blocking sends: a subscriber whose buffer is full (slow
// consumer) misses the frame rather than blocking the broadcaster.
func (h *Hub) send(vaultKey string, frame []byte, except chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[vaultKey] {
		if ch == except {
			continue
		}
		select {
		case ch <- frame:
		default:
		}
	}
}

// Subscribers reports the current subscriber count for a vault.
func (h *Hub) Subscribers(vaultKey string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[vaultKey])
}
