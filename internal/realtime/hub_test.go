package realtime

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Test conns never hit the socket: frames land in sendCh and the queue is
// kept under sendBuffer so close() is never reached.
func testConn(agentID string) *Conn {
	return newConn(nil, agentID, "agent-"+agentID)
}

func drainFrame(t *testing.T, c *Conn) frame {
	t.Helper()
	select {
	case buf := <-c.sendCh:
		var f frame
		require.NoError(t, json.Unmarshal(buf, &f))
		return f
	default:
		t.Fatal("no frame queued")
		return frame{}
	}
}

func TestJoinLeaveAndRoomGC(t *testing.T) {
	h := NewHub(testLogger())
	a := testConn("a")
	b := testConn("b")

	h.Join("group:1", a)
	h.Join("group:1", b)
	assert.True(t, h.InRoom("group:1", a))
	assert.Equal(t, 2, h.RoomSize("group:1"))

	h.Leave("group:1", a)
	assert.False(t, h.InRoom("group:1", a))
	assert.Equal(t, 1, h.RoomSize("group:1"))

	h.Leave("group:1", b)
	assert.Equal(t, 0, h.RoomSize("group:1"))
	h.mu.RLock()
	_, exists := h.rooms["group:1"]
	h.mu.RUnlock()
	assert.False(t, exists, "empty rooms are dropped")

	// Leaving a room never joined is a no-op.
	h.Leave("group:missing", a)
}

func TestToRoomDeliversEncodedFrame(t *testing.T) {
	h := NewHub(testLogger())
	a := testConn("a")
	h.Join("group:1", a)

	h.ToRoom("group:1", EventMessageNew, map[string]string{"id": "m1"})

	f := drainFrame(t, a)
	assert.Equal(t, EventMessageNew, f.Event)
	var data map[string]string
	require.NoError(t, json.Unmarshal(f.Data, &data))
	assert.Equal(t, "m1", data["id"])
}

func TestToRoomPreservesOrder(t *testing.T) {
	h := NewHub(testLogger())
	a := testConn("a")
	h.Join("group:1", a)

	for i := 0; i < 10; i++ {
		h.ToRoom("group:1", EventMessageNew, map[string]int{"seq": i})
	}
	for i := 0; i < 10; i++ {
		f := drainFrame(t, a)
		var data map[string]int
		require.NoError(t, json.Unmarshal(f.Data, &data))
		assert.Equal(t, i, data["seq"])
	}
}

func TestToRoomExceptSkipsSender(t *testing.T) {
	h := NewHub(testLogger())
	sender := testConn("a")
	other := testConn("b")
	h.Join("group:1", sender)
	h.Join("group:1", other)

	h.ToRoomExcept("group:1", EventTypingStart, TypingPayload{AgentID: "a"}, sender)

	f := drainFrame(t, other)
	assert.Equal(t, EventTypingStart, f.Event)
	select {
	case <-sender.sendCh:
		t.Fatal("sender received its own typing event")
	default:
	}
}

func TestToAllReachesEveryConnection(t *testing.T) {
	h := NewHub(testLogger())
	a := testConn("a")
	b := testConn("b")
	h.register(a)
	h.register(b)
	h.Join("group:1", a) // rooms are irrelevant to ToAll

	h.ToAll(EventGroupCreated, map[string]string{"id": "g1"})

	assert.Equal(t, EventGroupCreated, drainFrame(t, a).Event)
	assert.Equal(t, EventGroupCreated, drainFrame(t, b).Event)
}

func TestUnregisterRemovesFromAllRooms(t *testing.T) {
	h := NewHub(testLogger())
	a := testConn("a")
	h.register(a)
	for i := 0; i < 3; i++ {
		h.Join(GroupRoom(fmt.Sprintf("g%d", i)), a)
	}

	h.unregister(a)
	for i := 0; i < 3; i++ {
		assert.Equal(t, 0, h.RoomSize(GroupRoom(fmt.Sprintf("g%d", i))))
	}

	h.ToAll(EventGroupCreated, nil)
	select {
	case <-a.sendCh:
		t.Fatal("unregistered connection still receives broadcasts")
	default:
	}
}

func TestEncodeFrameWithoutData(t *testing.T) {
	buf, err := encodeFrame(EventAgentOffline, nil)
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(buf, &f))
	assert.Equal(t, EventAgentOffline, f.Event)
	assert.Nil(t, f.Data)
}
