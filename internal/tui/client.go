package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/lotas/flowtabs/internal/applog"
	"github.com/lotas/flowtabs/internal/server"
	"nhooyr.io/websocket"
)

// Client is a WebSocket connection to a running flowtabs server.
type Client struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	msgs   chan server.OutgoingMsg
	seq    atomic.Int64
}

// Dial connects to url, for example ws://127.0.0.1:19191/.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	conn.SetReadLimit(16 << 20)
	cctx, cancel := context.WithCancel(context.Background())
	c := &Client{conn: conn, ctx: cctx, cancel: cancel, msgs: make(chan server.OutgoingMsg, 64)}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.msgs)
	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			return
		}
		var msg server.OutgoingMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			applog.Error("client.parse", err)
			continue
		}
		select {
		case c.msgs <- msg:
		case <-c.ctx.Done():
			return
		}
	}
}

// Messages is closed when the connection ends.
func (c *Client) Messages() <-chan server.OutgoingMsg { return c.msgs }

// Send assigns msg an id, writes it and returns the id.
func (c *Client) Send(msg server.IncomingMsg) (string, error) {
	msg.ID = fmt.Sprintf("cmd-%d", c.seq.Add(1))
	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	return msg.ID, c.conn.Write(c.ctx, websocket.MessageText, data)
}

func (c *Client) Close() {
	c.cancel()
	c.conn.Close(websocket.StatusNormalClosure, "")
}
