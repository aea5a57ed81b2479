package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnection() *Connection {
	return &Connection{send: make(chan []byte, sendBufferSize)}
}

func TestHub_ChannelMembership(t *testing.T) {
	hub := NewHub(&HubOptions{})
	a := newTestConnection()
	b := newTestConnection()

	hub.JoinChannel("tenant/1", a)
	hub.JoinChannel("tenant/1", b)
	hub.JoinChannel("tenant/2", a)

	assert.Len(t, hub.ConnectionsInChannel("tenant/1"), 2)
	assert.Len(t, hub.ConnectionsInChannel("tenant/2"), 1)
	assert.Empty(t, hub.ConnectionsInChannel("tenant/3"))

	hub.LeaveChannel("tenant/1", a)
	assert.Len(t, hub.ConnectionsInChannel("tenant/1"), 1)
}

func TestHub_RemoveDropsAllChannels(t *testing.T) {
	disconnected := 0
	hub := NewHub(&HubOptions{
		OnDisconnect: func(*Connection) { disconnected++ },
	})
	conn := newTestConnection()
	hub.connections[conn] = struct{}{}
	hub.JoinChannel("tenant/1", conn)
	hub.JoinChannel("authenticated", conn)

	hub.remove(conn)

	assert.Empty(t, hub.ConnectionsInChannel("tenant/1"))
	assert.Empty(t, hub.ConnectionsInChannel("authenticated"))
	assert.Equal(t, 1, disconnected)

	// A second remove must not fire the hook again.
	hub.remove(conn)
	assert.Equal(t, 1, disconnected)
}

func TestConnection_SendMessage(t *testing.T) {
	conn := newTestConnection()

	require.NoError(t, conn.SendMessage([]byte("hello")))
	assert.Equal(t, []byte("hello"), <-conn.send)

	require.NoError(t, conn.Close())
	assert.Error(t, conn.SendMessage([]byte("after close")))
}

func TestHub_BroadcastToChannel(t *testing.T) {
	hub := NewHub(&HubOptions{})
	a := newTestConnection()
	b := newTestConnection()
	hub.JoinChannel("tenant/1", a)
	hub.JoinChannel("tenant/1", b)

	hub.BroadcastToChannel("tenant/1", []byte(`{"entity":"contacts","action":"updated"}`))

	assert.Len(t, a.send, 1)
	assert.Len(t, b.send, 1)
}
