package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/LucasAlfare/FL-BT/internal/client"
	"github.com/LucasAlfare/FL-BT/internal/models"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:8585", "ws://localhost:8585/ws"},
		{"https://flbt.example.com/", "wss://flbt.example.com/ws"},
		{"ws://localhost:8585/ws", "ws://localhost:8585/ws"},
	}
	for _, tt := range tests {
		got, err := client.WatchURL(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := client.WatchURL("ftp://host")
	assert.Error(t, err)
}

func TestWatchSnapshots(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(models.Snapshot{SessionID: "s1", Polling: true})
		_ = conn.WriteJSON(models.Snapshot{SessionID: "s1", Polling: false})
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	}))
	defer ts.Close()

	var got []models.Snapshot
	err := client.WatchSnapshots(context.Background(), ts.URL, func(s models.Snapshot) error {
		got = append(got, s)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.False(t, got[1].Polling)
}

func TestWatchSnapshotsCallbackStops(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < 3; i++ {
			_ = conn.WriteJSON(models.Snapshot{SessionID: "s1"})
		}
		_, _, _ = conn.ReadMessage()
	}))
	defer ts.Close()

	stopErr := errors.New("enough")
	err := client.WatchSnapshots(context.Background(), strings.Replace(ts.URL, "http", "ws", 1), func(models.Snapshot) error {
		return stopErr
	})
	assert.ErrorIs(t, err, stopErr)
}
