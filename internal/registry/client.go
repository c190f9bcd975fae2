package registry

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"roulette/internal/constants"
	"roulette/internal/protocol"
)

// EventHandler receives decoded inbound events and the transport-loss signal
// for a client. The read pump invokes it; events from one connection are
// always dispatched serially.
type EventHandler interface {
	HandleEvent(c *Client, ev protocol.Event)
	HandleClose(c *Client)
}

// Client wraps one websocket connection. All writes go through the buffered
// send channel and a single write pump, so events queued for a client are
// delivered in queue order.
type Client struct {
	ID      string
	conn    *websocket.Conn
	handler EventHandler

	mu     sync.Mutex
	closed bool
	send   chan protocol.Event
}

func NewClient(id string, conn *websocket.Conn, handler EventHandler) *Client {
	return &Client{
		ID:      id,
		conn:    conn,
		handler: handler,
		send:    make(chan protocol.Event, constants.SendQueueSize),
	}
}

// Enqueue queues an outbound event. It never blocks: a client whose send
// buffer is full is treated as dead and closed, so one slow reader cannot
// stall the relay. Returns false if the event was not queued.
func (c *Client) Enqueue(ev protocol.Event) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}

	select {
	case c.send <- ev:
		c.mu.Unlock()
		return true
	default:
		c.closed = true
		close(c.send)
		c.mu.Unlock()
		log.Printf("⚠️  Send buffer full, dropping client: %s", c.ID)
		return false
	}
}

// Close stops the write pump. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ReadPump reads events from the connection and dispatches them to the
// handler. It runs in a per-connection goroutine and is the only reader.
// On exit it signals HandleClose, which tears down the session.
func (c *Client) ReadPump() {
	defer func() {
		c.handler.HandleClose(c)
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(constants.MaxWSMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(constants.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(constants.PongWait))
		return nil
	})

	for {
		var ev protocol.Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("❌ Read error from %s: %v", c.ID, err)
			}
			return
		}
		c.handler.HandleEvent(c, ev)
	}
}

// WritePump writes queued events to the connection and keeps it alive with
// pings. It runs in a per-connection goroutine and is the only writer.
func (c *Client) WritePump() {
	ticker := time.NewTicker(constants.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				log.Printf("❌ Write error to %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
