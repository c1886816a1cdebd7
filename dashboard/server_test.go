package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyastin/wormhole/tunnel"
	"github.com/dyastin/wormhole/wire"
)

func startServer(t *testing.T, feed chan wire.Metrics, stats func() tunnel.Stats) *Server {
	t.Helper()

	srv, err := NewServer(ServerConfig{
		Addr:  "127.0.0.1:0",
		Feed:  feed,
		Stats: stats,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go srv.Start(ctx)

	require.Eventually(t, func() bool {
		return srv.Addr() != ""
	}, 2*time.Second, 10*time.Millisecond)

	return srv
}

func TestAPIMetricsSnapshot(t *testing.T) {
	feed := make(chan wire.Metrics, 1)
	srv := startServer(t, feed, func() tunnel.Stats {
		return tunnel.Stats{BytesIn: 11, BytesOut: 22, ConnectionCount: 3, ActiveConnections: 1}
	})

	feed <- wire.Metrics{
		Ingress:           1024,
		Egress:            2048,
		Uptime:            5_000_000_000,
		ConnectionCount:   9,
		ActiveConnections: 2,
	}

	var decoded struct {
		Server *metricsPayload `json:"server"`
		Local  *tunnel.Stats   `json:"local"`
	}

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/api/metrics", srv.Addr()))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return false
		}
		return decoded.Server != nil
	}, 2*time.Second, 20*time.Millisecond)

	assert.EqualValues(t, 1024, decoded.Server.Ingress)
	assert.EqualValues(t, 2048, decoded.Server.Egress)
	assert.EqualValues(t, 5, decoded.Server.UptimeSeconds)
	assert.EqualValues(t, 9, decoded.Server.ConnectionCount)
	assert.EqualValues(t, 2, decoded.Server.ActiveConnections)

	require.NotNil(t, decoded.Local)
	assert.EqualValues(t, 11, decoded.Local.BytesIn)
}

func TestWebsocketPush(t *testing.T) {
	feed := make(chan wire.Metrics, 4)
	srv := startServer(t, feed, nil)

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/ws", srv.Addr()), nil)
	require.NoError(t, err)
	defer conn.Close()

	// subscription races the first event; give the pump a moment
	time.Sleep(50 * time.Millisecond)

	feed <- wire.Metrics{Ingress: 7, Egress: 8, Uptime: 1_000_000_000, ConnectionCount: 1, ActiveConnections: 1}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got metricsPayload
	require.NoError(t, conn.ReadJSON(&got))

	assert.EqualValues(t, 7, got.Ingress)
	assert.EqualValues(t, 8, got.Egress)
	assert.EqualValues(t, 1, got.UptimeSeconds)
}

func TestIndexServed(t *testing.T) {
	srv := startServer(t, make(chan wire.Metrics), nil)

	resp, err := http.Get(fmt.Sprintf("http://%s/", srv.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
