// internal/hub/nats.go
package hub

import (
	"encoding/json"
	"fmt"
	"time"
)

// Lifecycle events are published fire-and-forget to core NATS subjects
// so external consumers can observe presence and pairing changes. The
// relay is fully functional with no NATS connection.

func (h *Hub) publishPresence(state, userID string) {
	h.publish(fmt.Sprintf("presence.%s.%s", state, userID), map[string]interface{}{
		"user":      userID,
		"state":     state,
		"timestamp": time.Now().Unix(),
	})
}

func (h *Hub) publishInvite(verb, from, to string) {
	h.publish("invites."+verb, map[string]interface{}{
		"from":      from,
		"to":        to,
		"timestamp": time.Now().Unix(),
	})
}

func (h *Hub) publishPair(verb, a, b string) {
	h.publish("pairs."+verb, map[string]interface{}{
		"users":     []string{a, b},
		"timestamp": time.Now().Unix(),
	})
}

func (h *Hub) publish(subject string, payload map[string]interface{}) {
	if h.nc == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Errorf("marshal %s event: %v", subject, err)
		return
	}
	if err := h.nc.Publish(subject, data); err != nil {
		h.logger.Errorf("publish %s: %v", subject, err)
	}
}
