package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// sendBuffer is the per-connection outbound queue. A subscriber that
	// falls this far behind is disconnected rather than slowing the bus.
	sendBuffer = 256

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxFrameSize = 64 * 1024
)

// Conn wraps a websocket connection with a buffered outbound queue so
// publishers never block on a slow socket.
type Conn struct {
	AgentID string
	Handle  string

	ws     *websocket.Conn
	sendCh chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(ws *websocket.Conn, agentID, handle string) *Conn {
	return &Conn{
		AgentID: agentID,
		Handle:  handle,
		ws:      ws,
		sendCh:  make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
	}
}

// send queues a frame without blocking. A full queue means the consumer
// is not keeping up; the connection is closed and the client must
// reconnect and re-sync over REST.
func (c *Conn) send(buf []byte) {
	select {
	case <-c.done:
	case c.sendCh <- buf:
	default:
		c.close()
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// writeLoop drains the outbound queue onto the socket and keeps the
// connection alive with periodic pings.
func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case <-c.done:
			return
		case buf := <-c.sendCh:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, buf); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop reads client frames and hands them to the handler until the
// socket drops.
func (c *Conn) readLoop(handle func(*Conn, frame)) {
	defer c.close()
	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var f frame
		if err := c.ws.ReadJSON(&f); err != nil {
			return
		}
		handle(c, f)
	}
}
