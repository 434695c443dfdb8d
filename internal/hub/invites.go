// internal/hub/invites.go
package hub

import "sync"

// InviteTable tracks outstanding invitations keyed by the recipient's
// id. At most one invitation may be pending per recipient; the router
// checks availability before calling Add, under the hub loop.
type InviteTable struct {
	mu      sync.RWMutex
	pending map[string]string // recipient -> sender
}

func NewInviteTable() *InviteTable {
	return &InviteTable{pending: make(map[string]string)}
}

func (t *InviteTable) HasPending(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.pending[userID]
	return ok
}

func (t *InviteTable) Add(recipient, sender string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[recipient] = sender
}

func (t *InviteTable) Sender(recipient string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sender, ok := t.pending[recipient]
	return sender, ok
}

// Remove clears the recipient's invitation; no-op if none is pending.
func (t *InviteTable) Remove(recipient string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, recipient)
}

func (t *InviteTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.pending)
}
