package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkCall struct {
	VehicleID string
	Lat, Lon  float64
}

type recordSink struct {
	mu    sync.Mutex
	calls []sinkCall
}

func (s *recordSink) ReportPosition(vehicleID string, lat, lon float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sinkCall{vehicleID, lat, lon})
}

func (s *recordSink) snapshot() []sinkCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sinkCall(nil), s.calls...)
}

func dialTestHub(t *testing.T, sink PositionSink) (*Hub, *websocket.Conn) {
	t.Helper()
	hub := NewHub(sink)
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv := httptest.NewServer(HandleWebSocket(hub))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)
	return hub, conn
}

func TestBroadcastReachesClient(t *testing.T) {
	hub, conn := dialTestHub(t, nil)

	hub.Broadcast("binStatus", map[string]string{"binId": "ESP32-IBN-SINO", "status": "FULL"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(payload, &envelope))
	assert.Equal(t, "binStatus", envelope.Type)
	assert.NotEmpty(t, envelope.Timestamp)

	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "FULL", data["status"])
}

func TestPingGetsPong(t *testing.T) {
	_, conn := dialTestHub(t, nil)

	require.NoError(t, conn.WriteJSON(IncomingMessage{Type: "ping"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var envelope Envelope
	require.NoError(t, conn.ReadJSON(&envelope))
	assert.Equal(t, "pong", envelope.Type)
}

func TestPositionUpdateReachesSink(t *testing.T) {
	sink := &recordSink{}
	_, conn := dialTestHub(t, sink)

	require.NoError(t, conn.WriteJSON(IncomingMessage{
		Type: "position_update",
		Data: map[string]interface{}{
			"vehicleId": "VEH-001",
			"latitude":  39.6743,
			"longitude": 66.9738,
		},
	}))

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 },
		2*time.Second, 10*time.Millisecond)
	call := sink.snapshot()[0]
	assert.Equal(t, "VEH-001", call.VehicleID)
	assert.InDelta(t, 39.6743, call.Lat, 1e-9)
}

func TestMalformedPositionUpdateIgnored(t *testing.T) {
	sink := &recordSink{}
	_, conn := dialTestHub(t, sink)

	require.NoError(t, conn.WriteJSON(IncomingMessage{
		Type: "position_update",
		Data: map[string]interface{}{"latitude": "not-a-number"},
	}))
	require.NoError(t, conn.WriteJSON(IncomingMessage{Type: "ping"}))

	// The ping response proves the malformed frame was processed and
	// skipped without killing the connection.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var envelope Envelope
	require.NoError(t, conn.ReadJSON(&envelope))
	assert.Equal(t, "pong", envelope.Type)
	assert.Empty(t, sink.snapshot())
}

func TestEnqueueAfterDropDiscardsMessage(t *testing.T) {
	client := newClient(nil, nil)

	assert.True(t, client.enqueue([]byte("queued")))

	client.drop()
	client.drop()

	assert.False(t, client.enqueue([]byte("late pong")))
}

func TestEnqueueReportsFullQueue(t *testing.T) {
	client := newClient(nil, nil)
	for i := 0; i < cap(client.send); i++ {
		require.True(t, client.enqueue([]byte("fill")))
	}

	assert.False(t, client.enqueue([]byte("overflow")))
}
