package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"stock-dashboard/src/models"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------

// StreamURL maps the API base URL onto the server's websocket endpoint.
func (c *Client) StreamURL() (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

// -----------------------------------------------------------------------------

// StreamMarket subscribes to market snapshots and calls fn for each one until
// ctx is done or the connection drops. The first frame is requested
// explicitly so the caller does not wait for the next refresh.
func (c *Client) StreamMarket(ctx context.Context, fn func(*models.MMarketSnapshot)) error {
	target, err := c.StreamURL()
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	if err := conn.WriteJSON(map[string]string{"command": "snapshot"}); err != nil {
		return fmt.Errorf("websocket write failed: %w", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("websocket read failed: %w", err)
		}

		// The server answers commands it cannot serve with an error payload.
		var reply models.MErrorResponse
		if json.Unmarshal(data, &reply) == nil && reply.Error != "" {
			if c.Logger != nil {
				c.Logger.Debug("Market stream: %s", reply.Error)
			}
			continue
		}

		var snap models.MMarketSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("websocket decode failed: %w", err)
		}
		if c.Logger != nil {
			c.Logger.Debug("Market snapshot received (open=%v, %d indices)", snap.MarketOpen, len(snap.Indices))
		}
		fn(&snap)
	}
}
