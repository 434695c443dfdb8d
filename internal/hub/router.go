// internal/hub/router.go
package hub

import (
	"encoding/json"

	"github.com/matchlink/internal/message"
)

const unavailableNotice = "User is unavailable for invitations at the moment."

// dispatch routes one inbound frame. Runs on the hub loop.
func (h *Hub) dispatch(c *Client, data []byte) {
	env, err := message.Decode(data)
	if err != nil {
		h.logger.Warnf("connection %s: undecodable frame: %v", c.ID, err)
		h.sendError(c, "invalid message payload")
		return
	}
	if err := env.Validate(); err != nil {
		h.logger.Warnf("connection %s: rejected %s frame: %v", c.ID, env.Type, err)
		h.sendError(c, err.Error())
		return
	}

	switch env.Type {
	case message.TypeRegister:
		h.handleRegister(c, env)
	case message.TypeInvitation:
		h.handleInvitation(c, env)
	case message.TypeResponse:
		h.handleResponse(c, env)
	default:
		h.sendError(c, "unknown message type")
	}
}

// handleRegister binds the connection to the user id and answers with
// the user's current tracker state. A previous connection registered
// under the same id is superseded and proactively closed.
func (h *Hub) handleRegister(c *Client, env *message.Envelope) {
	c.UserID = env.UserID
	if prev := h.registry.Bind(env.UserID, c); prev != nil {
		h.logger.Infof("user %s: superseding connection %s with %s", env.UserID, prev.ID, c.ID)
		h.closeClient(prev)
	}
	h.sendJSON(c, message.UserState{
		Type:                 message.TypeUserState,
		HasPendingInvitation: h.invites.HasPending(env.UserID),
		InActiveGame:         h.pairs.IsPaired(env.UserID),
	})
	h.publishPresence("connected", env.UserID)
	h.logger.Infof("user %s registered on connection %s", env.UserID, c.ID)
}

// handleInvitation forwards the invitation to the recipient if they
// are connected and available. A busy recipient earns the sender an
// invitationFailed notice; a recipient with no connection at all means
// the frame is dropped without notice to anyone.
func (h *Hub) handleInvitation(c *Client, env *message.Envelope) {
	recipient, ok := h.registry.Lookup(env.To)
	if !ok {
		h.logger.Debugf("invitation from %s to offline user %s dropped", env.From, env.To)
		return
	}
	if h.invites.HasPending(env.To) || h.pairs.IsPaired(env.To) {
		h.sendJSON(c, message.Notice{Type: message.TypeInvitationFailed, Message: unavailableNotice})
		return
	}
	h.invites.Add(env.To, env.From)
	h.deliver(recipient, env.Forward())

	echo, err := env.Retag(message.TypeSentInvitation)
	if err != nil {
		h.logger.Errorf("retag invitation echo: %v", err)
	} else {
		h.deliver(c, echo)
	}
	h.publishInvite("sent", env.From, env.To)
	h.logger.Infof("invitation forwarded: %s -> %s", env.From, env.To)
}

// handleResponse forwards an accept/decline to the original sender.
// env.From is the invitation recipient who is now responding, so the
// pending entry keyed by env.From is cleared. Only accept pairs the
// two users. If the original sender has no live connection the frame
// is dropped silently and no state changes.
func (h *Hub) handleResponse(c *Client, env *message.Envelope) {
	recipient, ok := h.registry.Lookup(env.To)
	if !ok {
		h.logger.Debugf("response from %s to offline user %s dropped", env.From, env.To)
		return
	}
	h.deliver(recipient, env.Forward())
	h.invites.Remove(env.From)

	if env.Response == message.ResponseAccept {
		h.pairs.Pair(env.From, env.To)
		h.publishInvite("accepted", env.From, env.To)
		h.publishPair("started", env.From, env.To)
		h.logger.Infof("pairing started: %s <-> %s", env.From, env.To)
	} else {
		h.publishInvite("declined", env.From, env.To)
		h.logger.Infof("invitation declined: %s -> %s", env.From, env.To)
	}
}

// disconnect runs close cleanup on the hub loop: unbind the registry
// entry, clear any pending invitation the user held as recipient, and
// tear down both directions of a pairing. No notifications are sent.
func (h *Hub) disconnect(c *Client) {
	h.closeClient(c)
	if c.UserID == "" {
		return
	}
	if !h.registry.Unbind(c.UserID, c) {
		// A newer connection owns this id; its state is not ours to clear.
		return
	}
	h.invites.Remove(c.UserID)
	if partner, ok := h.pairs.Unpair(c.UserID); ok {
		h.publishPair("ended", c.UserID, partner)
	}
	h.publishPresence("disconnected", c.UserID)
	h.logger.Infof("user %s disconnected (connection %s)", c.UserID, c.ID)
}

func (h *Hub) sendJSON(c *Client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Errorf("marshal outbound message: %v", err)
		return
	}
	h.deliver(c, data)
}

func (h *Hub) sendError(c *Client, msg string) {
	h.sendJSON(c, message.Notice{Type: message.TypeError, Message: msg})
}

// deliver is fire-and-forget: a full send buffer drops the frame
// rather than blocking the hub loop.
func (h *Hub) deliver(c *Client, data []byte) {
	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
		h.logger.Warnf("send buffer full for connection %s, dropping frame", c.ID)
	}
}

func (h *Hub) closeClient(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}
