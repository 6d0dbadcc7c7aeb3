package collab

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/reforesta/planner/backend-go/internal/metrics"
)

const (
	writeWait = 10 * time.Second
	pingEvery = 30 * time.Second
	// A full project document with a few thousand trees stays well under this.
	maxFrame   = 256 * 1024
	sendBuffer = 256
)

// Client is one websocket connection to a project room. A user with two
// tabs open is two clients.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	log  *slog.Logger

	Identity
	ProjectID string
	ClientID  string

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, id Identity, projectID, clientID string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		log:       hub.log.With("user", id.UserID, "client", clientID, "project", projectID),
		Identity:  id,
		ProjectID: projectID,
		ClientID:  clientID,
		send:      make(chan []byte, sendBuffer),
	}
}

// ReadPump decodes frames and hands them to the hub, stamped with who
// sent them, until the connection drops.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()
	c.conn.SetReadLimit(maxFrame)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if s := websocket.CloseStatus(err); s != websocket.StatusNormalClosure && s != websocket.StatusGoingAway {
				c.log.Debug("read error", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("invalid message", "error", err)
			c.Send(newMessage(TypeError, ErrorPayload{Message: "invalid message"}))
			continue
		}
		msg.UserID, msg.ClientID, msg.ProjectID = c.UserID, c.ClientID, c.ProjectID
		c.hub.handleMessage(c, &msg)
	}
}

// WritePump writes queued frames and pings the peer. It ends when the
// queue is closed by the hub or ctx is done.
func (c *Client) WritePump(ctx context.Context) {
	ping := time.NewTicker(pingEvery)
	defer func() {
		ping.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	write := func(fn func(context.Context) error) bool {
		wctx, cancel := context.WithTimeout(ctx, writeWait)
		defer cancel()
		return fn(wctx) == nil
	}

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			if !write(func(wctx context.Context) error {
				return c.conn.Write(wctx, websocket.MessageText, frame)
			}) {
				c.log.Debug("write failed")
				return
			}
		case <-ping.C:
			if !write(c.conn.Ping) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Send encodes and queues msg for this client only.
func (c *Client) Send(msg *Message) {
	frame, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("encode message", "error", err, "type", msg.Type)
		return
	}
	c.enqueue(frame)
}

// enqueue queues an encoded frame. A client that has left or cannot keep
// up loses the frame; it can resync by sending doc.sync.
func (c *Client) enqueue(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
	default:
		metrics.CollabDroppedTotal.Inc()
		c.log.Warn("send buffer full, dropping message")
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
