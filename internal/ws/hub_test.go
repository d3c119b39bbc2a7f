package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/erg0nix/ctxmeter/internal/core"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()

	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(hub.Handler())
	t.Cleanup(func() {
		cancel()
		server.Close()
	})

	return hub, "ws" + strings.TrimPrefix(server.URL, "http") + "/events"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestHubBroadcastsEvents(t *testing.T) {
	hub, url := startHub(t)

	first := dial(t, url)
	second := dial(t, url)

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Emit(context.Background(), core.StatusEvent("Tokens: 1/2 (50.0%)", true)))

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var envelope struct {
			Type core.EventType  `json:"type"`
			Data core.StatusData `json:"data"`
		}
		require.NoError(t, json.Unmarshal(data, &envelope))

		assert.Equal(t, core.EventStatus, envelope.Type)
		assert.Equal(t, "Tokens: 1/2 (50.0%)", envelope.Data.Description)
		assert.True(t, envelope.Data.Done)
	}
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub, url := startHub(t)

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestEmitWithoutClientsNeverBlocks(t *testing.T) {
	hub := NewHub(nil)

	for i := 0; i < 1000; i++ {
		assert.NoError(t, hub.Emit(context.Background(), core.MessageEvent("x")))
	}
}

func TestStoppedHubReleasesConnections(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	cancel()

	select {
	case <-hub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	server := httptest.NewServer(hub.Handler())
	t.Cleanup(server.Close)
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/events"

	// More connections than the register buffer holds.
	for i := 0; i < 12; i++ {
		conn := dial(t, url)
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

		_, _, err := conn.ReadMessage()
		require.Error(t, err)

		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) {
			assert.False(t, netErr.Timeout(), "connection %d was left open", i)
		}
	}

	assert.Equal(t, 0, hub.ClientCount())
}
