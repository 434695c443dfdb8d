package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchlink/internal/logger"
	"github.com/matchlink/internal/message"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func newTestHub() *Hub {
	return NewHub(nil, "", logger.New("test"))
}

func newTestClient(id string) *Client {
	return &Client{ID: id, Send: make(chan []byte, 16)}
}

// register dispatches a register frame and consumes the userState reply.
func register(t *testing.T, h *Hub, c *Client, userID string) {
	t.Helper()
	h.dispatch(c, []byte(fmt.Sprintf(`{"type":"register","userID":%q}`, userID)))
	state := recvJSON(t, c)
	require.Equal(t, message.TypeUserState, state["type"])
}

func recvJSON(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	default:
		t.Fatal("no message delivered")
		return nil
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("unexpected message: %s", data)
	default:
	}
}

func TestRegisterSendsFreshUserState(t *testing.T) {
	h := newTestHub()
	alice := newTestClient("c1")

	h.dispatch(alice, []byte(`{"type":"register","userID":"alice"}`))

	state := recvJSON(t, alice)
	assert.Equal(t, message.TypeUserState, state["type"])
	assert.Equal(t, false, state["hasPendingInvitation"])
	assert.Equal(t, false, state["inActiveGame"])
	assert.Equal(t, "alice", alice.UserID)
}

func TestRegisterReflectsTrackerState(t *testing.T) {
	h := newTestHub()
	h.invites.Add("bob", "alice")
	h.pairs.Pair("bob", "carol")

	bob := newTestClient("c1")
	h.dispatch(bob, []byte(`{"type":"register","userID":"bob"}`))

	state := recvJSON(t, bob)
	assert.Equal(t, true, state["hasPendingInvitation"])
	assert.Equal(t, true, state["inActiveGame"])
}

func TestInvitationForwardedAndEchoed(t *testing.T) {
	h := newTestHub()
	alice := newTestClient("c1")
	bob := newTestClient("c2")
	register(t, h, alice, "alice")
	register(t, h, bob, "bob")

	h.dispatch(alice, []byte(`{"type":"invitation","from":"alice","to":"bob","gameMode":"blitz"}`))

	forwarded := recvJSON(t, bob)
	assert.Equal(t, message.TypeInvitation, forwarded["type"])
	assert.Equal(t, "alice", forwarded["from"])
	assert.Equal(t, "bob", forwarded["to"])
	assert.Equal(t, "blitz", forwarded["gameMode"])

	echo := recvJSON(t, alice)
	assert.Equal(t, message.TypeSentInvitation, echo["type"])
	assert.Equal(t, "alice", echo["from"])
	assert.Equal(t, "bob", echo["to"])
	assert.Equal(t, "blitz", echo["gameMode"])

	sender, ok := h.invites.Sender("bob")
	require.True(t, ok)
	assert.Equal(t, "alice", sender)
}

func TestSecondInvitationToBusyRecipientFails(t *testing.T) {
	h := newTestHub()
	alice := newTestClient("c1")
	bob := newTestClient("c2")
	carol := newTestClient("c3")
	register(t, h, alice, "alice")
	register(t, h, bob, "bob")
	register(t, h, carol, "carol")

	h.dispatch(alice, []byte(`{"type":"invitation","from":"alice","to":"bob"}`))
	recvJSON(t, bob)
	recvJSON(t, alice)

	h.dispatch(carol, []byte(`{"type":"invitation","from":"carol","to":"bob"}`))

	failure := recvJSON(t, carol)
	assert.Equal(t, message.TypeInvitationFailed, failure["type"])
	assert.Equal(t, "User is unavailable for invitations at the moment.", failure["message"])

	// Bob sees nothing and alice's invitation is untouched.
	assertNoMessage(t, bob)
	sender, ok := h.invites.Sender("bob")
	require.True(t, ok)
	assert.Equal(t, "alice", sender)
}

func TestInvitationToPairedRecipientFails(t *testing.T) {
	h := newTestHub()
	bob := newTestClient("c1")
	carol := newTestClient("c2")
	register(t, h, bob, "bob")
	register(t, h, carol, "carol")
	h.pairs.Pair("bob", "dave")

	h.dispatch(carol, []byte(`{"type":"invitation","from":"carol","to":"bob"}`))

	failure := recvJSON(t, carol)
	assert.Equal(t, message.TypeInvitationFailed, failure["type"])
	assertNoMessage(t, bob)
	assert.False(t, h.invites.HasPending("bob"))
}

func TestInvitationToOfflineUserDroppedSilently(t *testing.T) {
	h := newTestHub()
	alice := newTestClient("c1")
	register(t, h, alice, "alice")

	h.dispatch(alice, []byte(`{"type":"invitation","from":"alice","to":"ghost"}`))

	assertNoMessage(t, alice)
	assert.False(t, h.invites.HasPending("ghost"))
}

func TestAcceptPairsBothDirections(t *testing.T) {
	h := newTestHub()
	alice := newTestClient("c1")
	bob := newTestClient("c2")
	register(t, h, alice, "alice")
	register(t, h, bob, "bob")

	h.dispatch(alice, []byte(`{"type":"invitation","from":"alice","to":"bob"}`))
	recvJSON(t, bob)
	recvJSON(t, alice)

	h.dispatch(bob, []byte(`{"type":"response","from":"bob","to":"alice","response":"accept"}`))

	forwarded := recvJSON(t, alice)
	assert.Equal(t, message.TypeResponse, forwarded["type"])
	assert.Equal(t, "accept", forwarded["response"])

	partner, ok := h.pairs.PartnerOf("alice")
	require.True(t, ok)
	assert.Equal(t, "bob", partner)
	partner, ok = h.pairs.PartnerOf("bob")
	require.True(t, ok)
	assert.Equal(t, "alice", partner)
	assert.False(t, h.invites.HasPending("bob"))
}

func TestDeclineClearsInvitationWithoutPairing(t *testing.T) {
	h := newTestHub()
	alice := newTestClient("c1")
	bob := newTestClient("c2")
	register(t, h, alice, "alice")
	register(t, h, bob, "bob")

	h.dispatch(alice, []byte(`{"type":"invitation","from":"alice","to":"bob"}`))
	recvJSON(t, bob)
	recvJSON(t, alice)

	h.dispatch(bob, []byte(`{"type":"response","from":"bob","to":"alice","response":"decline"}`))

	forwarded := recvJSON(t, alice)
	assert.Equal(t, "decline", forwarded["response"])
	assert.False(t, h.invites.HasPending("bob"))
	assert.False(t, h.pairs.IsPaired("alice"))
	assert.False(t, h.pairs.IsPaired("bob"))
}

func TestResponseToOfflineRecipientDropped(t *testing.T) {
	h := newTestHub()
	bob := newTestClient("c1")
	register(t, h, bob, "bob")
	h.invites.Add("bob", "alice")

	h.dispatch(bob, []byte(`{"type":"response","from":"bob","to":"alice","response":"accept"}`))

	// No error to the responder, and no state change.
	assertNoMessage(t, bob)
	assert.True(t, h.invites.HasPending("bob"))
	assert.False(t, h.pairs.IsPaired("bob"))
}

func TestDisconnectTearsDownPairing(t *testing.T) {
	h := newTestHub()
	alice := newTestClient("c1")
	bob := newTestClient("c2")
	register(t, h, alice, "alice")
	register(t, h, bob, "bob")
	h.pairs.Pair("alice", "bob")

	h.disconnect(alice)

	_, ok := h.pairs.PartnerOf("bob")
	assert.False(t, ok)
	assert.False(t, h.pairs.IsPaired("alice"))

	// Bob is still registered.
	_, ok = h.registry.Lookup("bob")
	assert.True(t, ok)
	_, ok = h.registry.Lookup("alice")
	assert.False(t, ok)
}

func TestDisconnectClearsPendingInvitation(t *testing.T) {
	h := newTestHub()
	bob := newTestClient("c1")
	register(t, h, bob, "bob")
	h.invites.Add("bob", "alice")

	h.disconnect(bob)

	assert.False(t, h.invites.HasPending("bob"))
	_, ok := h.registry.Lookup("bob")
	assert.False(t, ok)
}

func TestDisconnectBeforeRegisterIsNoop(t *testing.T) {
	h := newTestHub()
	anon := newTestClient("c1")
	h.disconnect(anon)
	assert.Equal(t, 0, h.registry.Len())
}

func TestDuplicateRegisterSupersedesOldConnection(t *testing.T) {
	h := newTestHub()
	old := newTestClient("c1")
	fresh := newTestClient("c2")
	register(t, h, old, "alice")

	h.dispatch(fresh, []byte(`{"type":"register","userID":"alice"}`))
	state := recvJSON(t, fresh)
	assert.Equal(t, message.TypeUserState, state["type"])

	// The superseded connection was closed.
	_, ok := <-old.Send
	assert.False(t, ok)

	// The late close of the old connection must not evict the new one.
	h.disconnect(old)
	got, ok := h.registry.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, fresh, got)
}

func TestMalformedFrameIsScopedToTheMessage(t *testing.T) {
	h := newTestHub()
	alice := newTestClient("c1")
	register(t, h, alice, "alice")

	h.dispatch(alice, []byte(`{broken`))

	reply := recvJSON(t, alice)
	assert.Equal(t, message.TypeError, reply["type"])

	// Connection and shared state are untouched.
	assert.False(t, alice.closed)
	_, ok := h.registry.Lookup("alice")
	assert.True(t, ok)
	assert.Equal(t, 0, h.invites.Len())
	assert.Equal(t, 0, h.pairs.Len())
}

func TestUnknownTypeRejected(t *testing.T) {
	h := newTestHub()
	alice := newTestClient("c1")
	register(t, h, alice, "alice")

	h.dispatch(alice, []byte(`{"type":"teleport"}`))

	reply := recvJSON(t, alice)
	assert.Equal(t, message.TypeError, reply["type"])
	assert.Equal(t, "unknown message type", reply["message"])
}

func TestMissingFieldsRejectedBeforeStateMutation(t *testing.T) {
	h := newTestHub()
	alice := newTestClient("c1")
	register(t, h, alice, "alice")

	h.dispatch(alice, []byte(`{"type":"invitation","from":"alice"}`))

	reply := recvJSON(t, alice)
	assert.Equal(t, message.TypeError, reply["type"])
	assert.Equal(t, 0, h.invites.Len())
}

func TestRunProcessesEventsInOrder(t *testing.T) {
	h := newTestHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	alice := newTestClient("c1")
	h.events <- event{kind: eventFrame, client: alice, data: []byte(`{"type":"register","userID":"alice"}`)}
	h.events <- event{kind: eventClose, client: alice}

	require.Eventually(t, func() bool {
		_, ok := h.registry.Lookup("alice")
		return !ok
	}, time.Second, 5*time.Millisecond)

	// The close event also closed the client's send channel.
	for {
		select {
		case _, ok := <-alice.Send:
			if !ok {
				return
			}
		case <-time.After(time.Second):
			t.Fatal("send channel not closed")
		}
	}
}
