// internal/hub/pairs.go
package hub

import "sync"

// PairTable tracks active pairings as two entries per pair. Both
// directions are written and cleared under a single lock acquisition,
// so no reader ever observes a one-sided pairing.
type PairTable struct {
	mu       sync.RWMutex
	partners map[string]string
}

func NewPairTable() *PairTable {
	return &PairTable{partners: make(map[string]string)}
}

func (t *PairTable) Pair(a, b string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.partners[a] = b
	t.partners[b] = a
}

func (t *PairTable) IsPaired(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.partners[userID]
	return ok
}

func (t *PairTable) PartnerOf(userID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	partner, ok := t.partners[userID]
	return partner, ok
}

// Unpair removes both directions of the user's pairing and returns
// the former partner. No-op if the user is not paired.
func (t *PairTable) Unpair(userID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	partner, ok := t.partners[userID]
	if !ok {
		return "", false
	}
	delete(t.partners, userID)
	delete(t.partners, partner)
	return partner, true
}

func (t *PairTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.partners)
}
