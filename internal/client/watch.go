package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/LucasAlfare/FL-BT/internal/models"
	"github.com/gorilla/websocket"
)

// WatchURL converts an flbt-web base URL into its websocket endpoint.
func WatchURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/ws") {
		u.Path += "/ws"
	}
	return u.String(), nil
}

// WatchSnapshots streams session snapshots from an flbt-web server until ctx
// ends, the server closes the stream, or onSnapshot returns an error.
func WatchSnapshots(ctx context.Context, baseURL string, onSnapshot func(models.Snapshot) error) error {
	wsURL, err := WatchURL(baseURL)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}

	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	// Unblock ReadJSON when ctx ends.
	stop := context.AfterFunc(ctx, closeConn)
	defer stop()

	for {
		var snap models.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read snapshot: %w", err)
		}
		if err := onSnapshot(snap); err != nil {
			return err
		}
	}
}
