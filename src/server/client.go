package server

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"stock-dashboard/src/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxCommandSize = 4 * 1024

	// commandSnapshot asks for the latest market snapshot again.
	commandSnapshot = "snapshot"
)

// subscriberCommand is the only message a market subscriber may send.
type subscriberCommand struct {
	Command string `json:"command"`
}

// -----------------------------------------------------------------------------

// subscriber is one websocket connection receiving market snapshots. The hub
// owns send: it closes it when the subscriber leaves or falls behind.
type subscriber struct {
	id   string
	hub  *DashboardServer
	conn *websocket.Conn
	send chan interface{}
}

// -----------------------------------------------------------------------------

// deliver queues v unless the hub has already dropped the subscriber. The
// hub closes send under the write lock, so the read lock keeps it open here.
func (sub *subscriber) deliver(v interface{}) bool {
	sub.hub.stateMutex.RLock()
	defer sub.hub.stateMutex.RUnlock()
	if _, ok := sub.hub.clients[sub]; !ok {
		return false
	}
	select {
	case sub.send <- v:
		return true
	default:
		return false
	}
}

// -----------------------------------------------------------------------------

// handleCommand answers one inbound message. Malformed JSON is an error and
// ends the connection; an unknown command is answered with an error payload.
func (sub *subscriber) handleCommand(message []byte) error {
	var cmd subscriberCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		return fmt.Errorf("malformed command: %w", err)
	}

	switch name := strings.ToLower(strings.TrimSpace(cmd.Command)); name {
	case commandSnapshot:
		snap := sub.hub.latestSnapshot()
		if snap == nil {
			sub.deliver(models.MErrorResponse{Error: "No market data yet"})
			return nil
		}
		sub.deliver(snap)
	default:
		sub.hub.Logger.Debug("Subscriber %s sent unknown command %q", sub.id, cmd.Command)
		sub.deliver(models.MErrorResponse{Error: "Unknown command", Details: cmd.Command})
	}
	return nil
}

// -----------------------------------------------------------------------------

// readPump reads commands until the connection fails or goes quiet for longer
// than pongWait, then unregisters the subscriber.
func (sub *subscriber) readPump() {
	defer func() {
		select {
		case sub.hub.unregister <- sub:
		case <-sub.hub.quit:
		}
		sub.conn.Close()
		sub.hub.Logger.Debug("Subscriber %s disconnected", sub.id)
	}()

	sub.conn.SetReadLimit(maxCommandSize)
	sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		sub.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := sub.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				sub.hub.Logger.Info("WebSocket error for %s: %v", sub.id, err)
			}
			return
		}
		if err := sub.handleCommand(message); err != nil {
			sub.hub.Logger.Info("Dropping subscriber %s: %v", sub.id, err)
			return
		}
	}
}

// -----------------------------------------------------------------------------

// writePump writes queued payloads and keeps the connection alive with pings.
func (sub *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteJSON(payload); err != nil {
				sub.hub.Logger.Info("Write to %s failed: %v", sub.id, err)
				return
			}

		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
