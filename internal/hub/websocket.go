// internal/hub/websocket.go
package hub

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	webSocketReadDeadline  = 60 * time.Second
	webSocketWriteDeadline = 10 * time.Second
	webSocketPingPeriod    = (webSocketReadDeadline * 9) / 10 // Must be less than readDeadline
	maxFrameSize           = 4096
	sendBufferSize         = 64
)

// ServeWs upgrades the HTTP connection to a WebSocket and starts the
// read and write pumps. The connection stays anonymous until a
// register frame arrives.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("websocket upgrade: %v", err)
		return
	}

	client := &Client{
		ID:         uuid.NewString(),
		Conn:       conn,
		Send:       make(chan []byte, sendBufferSize),
		LastActive: time.Now(),
	}
	h.logger.Debugf("connection %s opened from %s", client.ID, r.RemoteAddr)
	go h.readPump(client)
	go h.writePump(client)
}

// readPump reads frames from the WebSocket connection and feeds them
// to the hub loop. Frames are read raw and decoded on the hub loop, so
// a parse fault is scoped to the message, not the connection.
func (h *Hub) readPump(c *Client) {
	defer func() {
		h.events <- event{kind: eventClose, client: c}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxFrameSize)
	c.Conn.SetReadDeadline(time.Now().Add(webSocketReadDeadline))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(webSocketReadDeadline))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Errorf("connection %s read: %v", c.ID, err)
			}
			return
		}
		c.LastActive = time.Now()
		h.events <- event{kind: eventFrame, client: c, data: data}
	}
}

// writePump writes frames from the send channel to the WebSocket
// connection and keeps the connection alive with pings. A closed send
// channel makes it emit a close frame, which is how a superseded
// connection gets shut down.
func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(webSocketPingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(webSocketWriteDeadline))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(data)

			// Add queued frames to the current write
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(webSocketWriteDeadline))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
