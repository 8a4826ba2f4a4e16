package wsgateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnection_SubscribeUnsubscribe(t *testing.T) {
	conn := NewConnection("conn-1", "user-1", RoleClient, nil)

	assert.True(t, conn.ShouldReceive("US30"), "no subscriptions receives everything")

	conn.Subscribe("GER30")
	assert.True(t, conn.IsSubscribed("GER30"))
	assert.True(t, conn.ShouldReceive("GER30"))
	assert.False(t, conn.ShouldReceive("US30"))

	conn.Unsubscribe("GER30")
	assert.False(t, conn.IsSubscribed("GER30"))
	assert.True(t, conn.ShouldReceive("US30"))
}

func TestConnection_UpdateLastPong(t *testing.T) {
	conn := NewConnection("conn-1", "user-1", RoleClient, nil)
	conn.lastPong = time.Now().Add(-1 * time.Hour)

	initial := conn.GetLastPong()
	conn.UpdateLastPong()

	assert.True(t, conn.GetLastPong().After(initial))
}

func TestConnection_EnqueueAndClose(t *testing.T) {
	conn := NewConnection("conn-1", "user-1", RoleClient, nil)

	require.NoError(t, conn.Enqueue([]byte("a")))
	assert.Equal(t, []byte("a"), <-conn.Send)

	for i := 0; i < sendBufferSize; i++ {
		require.NoError(t, conn.Enqueue([]byte("x")))
	}
	assert.ErrorIs(t, conn.Enqueue([]byte("overflow")), ErrSendBufferFull)

	assert.True(t, conn.Close())
	assert.False(t, conn.Close())
	assert.ErrorIs(t, conn.Enqueue([]byte("late")), ErrConnectionClosed)
}

func TestConnection_HandleClientMessage(t *testing.T) {
	conn := NewConnection("conn-1", "user-1", RoleClient, nil)

	require.NoError(t, conn.HandleClientMessage(&ClientMessage{Type: "subscribe", Symbols: []string{"US30", "US100"}}))
	assert.True(t, conn.IsSubscribed("US30"))
	assert.True(t, conn.IsSubscribed("US100"))
	assert.Equal(t, "success", readControl(t, conn).Type)

	require.NoError(t, conn.HandleClientMessage(&ClientMessage{Type: "unsubscribe", Symbol: "US30"}))
	assert.False(t, conn.IsSubscribed("US30"))
	assert.Equal(t, "success", readControl(t, conn).Type)

	require.NoError(t, conn.HandleClientMessage(&ClientMessage{Type: "ping"}))
	assert.Equal(t, "pong", readControl(t, conn).Type)

	require.NoError(t, conn.HandleClientMessage(&ClientMessage{Type: "subscribe"}))
	msg := readControl(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "invalid_request", msg.Code)

	require.NoError(t, conn.HandleClientMessage(&ClientMessage{Type: "dance"}))
	assert.Equal(t, "unknown_message_type", readControl(t, conn).Code)
}

func readControl(t *testing.T, conn *Connection) ServerMessage {
	t.Helper()
	select {
	case data := <-conn.Send:
		var msg ServerMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	default:
		t.Fatal("expected a queued message")
		return ServerMessage{}
	}
}
