// internal/hub/client.go
package hub

import (
	"time"

	"github.com/gorilla/websocket"
)

// Client is one connected socket. UserID is empty until a register
// frame is processed; UserID and closed are owned by the hub loop.
type Client struct {
	ID         string // connection id, for log correlation
	UserID     string
	Conn       *websocket.Conn
	Send       chan []byte
	LastActive time.Time

	closed bool
}
