package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/podscrub/podscrub/internal/models"
)

// wsHello identifies a stream client to the server on connect.
type wsHello struct {
	ClientID string `json:"client_id"`
}

// StreamJobEvents subscribes to the server's job-event feed over websocket
// and invokes onEvent for each frame. Return an error from onEvent to abort.
// Blocks until the context is cancelled, the connection drops, or onEvent
// aborts. Callers are expected to fall back to polling on any error; the
// polling core never depends on this stream.
func (c *Client) StreamJobEvents(ctx context.Context, onEvent func(models.JobEvent) error) error {
	wsEndpoint := c.baseURL
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint + "/api/jobs/ws")
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}
	defer conn.Close()

	// Track connection state for proper cleanup
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

	if err := conn.WriteJSON(wsHello{ClientID: uuid.New().String()}); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	// Handle context cancellation in a separate goroutine
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		var raw json.RawMessage
		if err := conn.ReadJSON(&raw); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read event: %w", err)
		}

		var event models.JobEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return fmt.Errorf("unmarshal event: %w", err)
		}

		if event.Type == "" {
			// Keep-alive frame.
			continue
		}

		if err := onEvent(event); err != nil {
			return err
		}
	}
}
