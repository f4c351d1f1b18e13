package services

import (
	"encoding/json"
	"sync"

	"github.com/amenassefagashaye/bingo-server/game"
	"github.com/amenassefagashaye/bingo-server/utils/logger"
	"github.com/gorilla/websocket"
)

type Role string

const (
	RolePlayer Role = "player"
	RoleAdmin  Role = "admin"
)

const maxMessageSize = 8192

// Client wraps one websocket connection. Outbound delivery goes
// through a buffered channel so a slow socket never blocks the game.
type Client struct {
	conn       *websocket.Conn
	send       chan []byte
	hub        *Hub
	dispatcher *Dispatcher
	role       Role

	mu       sync.Mutex
	playerID string
	once     sync.Once
}

func NewClient(conn *websocket.Conn, hub *Hub, dispatcher *Dispatcher, role Role) *Client {
	return &Client{
		conn:       conn,
		send:       make(chan []byte, 32),
		hub:        hub,
		dispatcher: dispatcher,
		role:       role,
	}
}

// Start launches the read/write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *Client) Close() {
	c.once.Do(func() {
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *Client) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

func (c *Client) setPlayerID(id string) {
	c.mu.Lock()
	c.playerID = id
	c.mu.Unlock()
}

// Send queues raw bytes, dropping the message if the client is slow
// or already closing. One dead socket must never abort a broadcast.
func (c *Client) Send(msg []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debugf("send on closed client: %v", r)
		}
	}()
	select {
	case c.send <- msg:
	default:
		logger.Warnf("dropping message to slow %s client", c.role)
	}
}

// SendEvent marshals and queues one event.
func (c *Client) SendEvent(ev game.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		logger.Errorf("marshal event %s: %v", ev.Type, err)
		return
	}
	c.Send(b)
}

func (c *Client) readPump() {
	defer func() {
		c.dispatcher.Disconnected(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debugf("%s client disconnected", c.role)
			} else {
				logger.Debugf("%s client read error: %v", c.role, err)
			}
			return
		}

		func(msg []byte) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("recovered handling %s message: %v", c.role, r)
				}
			}()
			c.dispatcher.Handle(c, msg)
		}(message)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Debugf("%s client write error: %v", c.role, err)
			return
		}
	}
}
