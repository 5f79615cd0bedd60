package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(h *Hub, userID string) *Client {
	return &Client{
		hub:    h,
		send:   make(chan []byte, 8),
		userID: userID,
	}
}

func receiveEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case payload, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var ev Event
		require.NoError(t, json.Unmarshal(payload, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case payload := <-c.send:
		t.Fatalf("unexpected event: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegisterJoinsPersonalRoom(t *testing.T) {
	h := NewHub()
	c := newTestClient(h, "user-1")
	h.RegisterClient(c)

	h.BroadcastToRoom("user-1", Event{Type: EventMentionNotification, Data: "hi"})

	ev := receiveEvent(t, c)
	assert.Equal(t, EventMentionNotification, ev.Type)
	assert.Equal(t, "hi", ev.Data)
}

func TestBroadcastReachesOnlyRoomMembers(t *testing.T) {
	h := NewHub()
	member := newTestClient(h, "user-1")
	outsider := newTestClient(h, "user-2")
	h.RegisterClient(member)
	h.RegisterClient(outsider)
	h.JoinRoom(member, "conv-1")

	h.BroadcastToRoom("conv-1", Event{Type: EventNewMessage, Data: "payload"})

	ev := receiveEvent(t, member)
	assert.Equal(t, EventNewMessage, ev.Type)
	assertNoEvent(t, outsider)
}

func TestBroadcastFansOutToEveryConnectionInRoom(t *testing.T) {
	h := NewHub()
	// Two devices of the same user both sit in the personal room.
	phone := newTestClient(h, "user-1")
	laptop := newTestClient(h, "user-1")
	h.RegisterClient(phone)
	h.RegisterClient(laptop)

	h.BroadcastToRoom("user-1", Event{Type: EventNewMessage, Data: "ping"})

	assert.Equal(t, "ping", receiveEvent(t, phone).Data)
	assert.Equal(t, "ping", receiveEvent(t, laptop).Data)
}

func TestLeaveRoomStopsDelivery(t *testing.T) {
	h := NewHub()
	c := newTestClient(h, "user-1")
	h.RegisterClient(c)
	h.JoinRoom(c, "conv-1")
	h.LeaveRoom(c, "conv-1")

	h.BroadcastToRoom("conv-1", Event{Type: EventNewMessage, Data: "gone"})
	assertNoEvent(t, c)
}

func TestUnregisterCleansUpAllRooms(t *testing.T) {
	h := NewHub()
	c := newTestClient(h, "user-1")
	h.RegisterClient(c)
	h.JoinRoom(c, "conv-1")
	h.UnregisterClient(c)

	select {
	case _, ok := <-c.send:
		assert.False(t, ok, "send channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed")
	}

	// Broadcasts after disconnect reach nobody and do not panic.
	h.BroadcastToRoom("conv-1", Event{Type: EventNewMessage, Data: "late"})
	h.BroadcastToRoom("user-1", Event{Type: EventNewMessage, Data: "late"})
}
