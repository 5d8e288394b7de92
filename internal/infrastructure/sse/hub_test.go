package sse

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sponnect/sponnect/internal/domain/notification"
)

func newClient(id, userID string, groups ...string) *notification.SSEClient {
	u := userID
	return notification.NewSSEClient(id, &u, groups)
}

func TestHub_BroadcastToUser(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a1 := newClient("a1", "alice")
	a2 := newClient("a2", "alice")
	b := newClient("b", "bob")
	hub.Register(a1)
	hub.Register(a2)
	hub.Register(b)
	require.Equal(t, 3, hub.GetClientCount())

	msg := notification.NewSSEMessage("negotiation.transitioned", nil)
	hub.BroadcastToUser("alice", msg)

	assert.Len(t, a1.MessageChan, 1)
	assert.Len(t, a2.MessageChan, 1)
	assert.Len(t, b.MessageChan, 0)
}

func TestHub_BroadcastToGroup(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	admin := newClient("c1", "root", notification.GroupAdmins)
	sponsor := newClient("c2", "s", notification.RoleGroup("sponsor"))
	hub.Register(admin)
	hub.Register(sponsor)

	hub.BroadcastToGroup(notification.GroupAdmins, notification.NewSSEMessage("payment.completed", nil))

	assert.Len(t, admin.MessageChan, 1)
	assert.Len(t, sponsor.MessageChan, 0)
}

func TestHub_SendToClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := newClient("c1", "u")
	hub.Register(c)

	t.Run("unknown client", func(t *testing.T) {
		err := hub.SendToClient("missing", notification.NewSSEMessage("e", nil))
		assert.ErrorIs(t, err, notification.ErrClientNotFound)
	})

	t.Run("full buffer", func(t *testing.T) {
		for i := 0; i < cap(c.MessageChan); i++ {
			require.NoError(t, hub.SendToClient("c1", notification.NewSSEMessage("e", nil)))
		}
		err := hub.SendToClient("c1", notification.NewSSEMessage("e", nil))
		assert.ErrorIs(t, err, notification.ErrChannelFull)
	})
}

func TestHub_UnregisterClosesClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := newClient("c1", "u")
	hub.Register(c)
	hub.Unregister(c)
	hub.Unregister(c)

	assert.Equal(t, 0, hub.GetClientCount())
	_, open := <-c.MessageChan
	assert.False(t, open)

	// no panic after removal
	hub.BroadcastToUser("u", notification.NewSSEMessage("e", nil))
}

func TestHub_ReusedClientID(t *testing.T) {
	t.Run("new owner replaces previous stream", func(t *testing.T) {
		hub := NewHub(zerolog.Nop())
		alice := newClient("x", "alice")
		bob := newClient("x", "bob")
		hub.Register(alice)
		hub.Register(bob)

		_, open := <-alice.MessageChan
		assert.False(t, open)
		assert.Equal(t, 1, hub.GetClientCount())

		hub.BroadcastToUser("alice", notification.NewSSEMessage("ad_request.created", nil))
		assert.Len(t, bob.MessageChan, 0)

		hub.BroadcastToUser("bob", notification.NewSSEMessage("ad_request.created", nil))
		assert.Len(t, bob.MessageChan, 1)
	})

	t.Run("stale unregister keeps reconnected stream", func(t *testing.T) {
		hub := NewHub(zerolog.Nop())
		old := newClient("x", "alice")
		hub.Register(old)
		reconnected := newClient("x", "alice")
		hub.Register(reconnected)

		hub.Unregister(old)

		require.Equal(t, 1, hub.GetClientCount())
		hub.BroadcastToUser("alice", notification.NewSSEMessage("ad_request.created", nil))
		msg, open := <-reconnected.MessageChan
		assert.True(t, open)
		assert.Equal(t, "ad_request.created", msg.Event)
	})
}

func TestHub_StartStopsOnCancel(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := newClient("c1", "u")
	hub.Register(c)

	ctx, cancel := context.WithCancel(context.Background())
	hub.Start(ctx)
	cancel()

	assert.Eventually(t, func() bool { return hub.GetClientCount() == 0 }, time.Second, 10*time.Millisecond)
}
