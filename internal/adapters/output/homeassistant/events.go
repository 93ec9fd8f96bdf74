package homeassistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lunDreame/st-bridge/internal/domain/model"
)

const reconnectDelay = 5 * time.Second

type wsMessage struct {
	ID      int      `json:"id,omitempty"`
	Type    string   `json:"type"`
	Success *bool    `json:"success,omitempty"`
	Event   *wsEvent `json:"event,omitempty"`
}

type wsEvent struct {
	EventType string `json:"event_type"`
	Data      struct {
		EntityID string         `json:"entity_id"`
		NewState map[string]any `json:"new_state"`
	} `json:"data"`
}

// Events opens the state_changed stream. The returned channel stays open
// across reconnects and closes when ctx is cancelled.
func (c *Client) Events(ctx context.Context) (<-chan model.EntityState, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	out := make(chan model.EntityState, 64)
	go c.streamEvents(ctx, out)
	return out, nil
}

func (c *Client) streamEvents(ctx context.Context, out chan<- model.EntityState) {
	defer close(out)
	for {
		if err := c.runSocket(ctx, out); err != nil && ctx.Err() == nil {
			c.log.Warnw("event stream dropped, reconnecting", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Client) runSocket(ctx context.Context, out chan<- model.EntityState) error {
	url, token, err := c.credentials()
	if err != nil {
		return err
	}
	wsURL := strings.Replace(url, "http", "ws", 1) + "/api/websocket"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-closed:
		}
	}()

	// Auth handshake: auth_required -> auth -> auth_ok.
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		return err
	}
	if msg.Type != "auth_required" {
		return fmt.Errorf("unexpected first message %q", msg.Type)
	}
	if err := conn.WriteJSON(map[string]any{"type": "auth", "access_token": token}); err != nil {
		return err
	}
	if err := conn.ReadJSON(&msg); err != nil {
		return err
	}
	if msg.Type != "auth_ok" {
		return fmt.Errorf("auth rejected: %q", msg.Type)
	}

	if err := conn.WriteJSON(map[string]any{
		"id":         1,
		"type":       "subscribe_events",
		"event_type": "state_changed",
	}); err != nil {
		return err
	}
	c.log.Infow("subscribed to platform state changes", "url", wsURL)

	for {
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		if msg.Type != "event" || msg.Event == nil || msg.Event.EventType != "state_changed" {
			continue
		}
		raw := msg.Event.Data.NewState
		if raw == nil {
			// Entity removed; nothing to mirror.
			continue
		}
		if e, ok := entityFromRaw(raw); ok {
			select {
			case out <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
