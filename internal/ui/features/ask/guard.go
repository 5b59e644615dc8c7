package ask

import "sync"

// inFlight admits one running question per conversation.
type inFlight struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func newInFlight() *inFlight {
	return &inFlight{busy: make(map[string]struct{})}
}

// acquire marks key busy and reports whether it was free.
func (g *inFlight) acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.busy[key]; ok {
		return false
	}
	g.busy[key] = struct{}{}
	return true
}

func (g *inFlight) release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.busy, key)
}
