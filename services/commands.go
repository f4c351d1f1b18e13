package services

import (
	"encoding/json"
	"time"

	"github.com/amenassefagashaye/bingo-server/game"
	"github.com/amenassefagashaye/bingo-server/models"
	"github.com/amenassefagashaye/bingo-server/utils/logger"
)

// command is the flat envelope every inbound message decodes into;
// each action reads the fields it needs.
type command struct {
	Action      string `json:"action"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	BoardType   string `json:"boardType"`
	BoardNumber int    `json:"boardNumber"`
	Stake       int    `json:"stake"`
	PlayerID    string `json:"playerId"`
	Number      int    `json:"number"`
	Pattern     string `json:"pattern"`
	Message     string `json:"message"`
	Amount      int    `json:"amount"`
	Account     string `json:"account"`
}

// Dispatcher decodes inbound messages and routes them to the engine,
// role-gated by the connection they arrived on.
type Dispatcher struct {
	engine *game.Engine
	hub    *Hub
}

func NewDispatcher(engine *game.Engine, hub *Hub) *Dispatcher {
	return &Dispatcher{engine: engine, hub: hub}
}

// Handle processes one raw inbound message. Malformed payloads get a
// generic error event and are otherwise ignored; they never crash the
// command processor.
func (d *Dispatcher) Handle(c *Client, raw []byte) {
	var cmd command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		logger.Debugf("malformed %s message: %v", c.role, err)
		c.SendEvent(game.ErrorEvent("malformed message"))
		return
	}

	if c.role == RoleAdmin {
		d.handleAdmin(c, cmd)
		return
	}
	d.handlePlayer(c, cmd)
}

// Disconnected cleans up after a socket closes. The player record
// survives; only the channel binding and online flag change.
func (d *Dispatcher) Disconnected(c *Client) {
	if c.role == RoleAdmin {
		d.hub.RemoveAdmin(c)
		return
	}
	if id := c.PlayerID(); id != "" {
		d.hub.DetachPlayer(id, c)
		d.engine.MarkOffline(id)
	}
}

func (d *Dispatcher) handlePlayer(c *Client, cmd command) {
	switch cmd.Action {
	case "register":
		p, err := d.engine.Register(game.RegisterInfo{
			Name:       cmd.Name,
			Phone:      cmd.Phone,
			BoardType:  cmd.BoardType,
			BoardIndex: cmd.BoardNumber,
			Stake:      cmd.Stake,
		})
		if err != nil {
			c.SendEvent(game.ErrorEvent(err.Error()))
			return
		}
		c.setPlayerID(p.ID)
		d.hub.BindPlayer(p.ID, c)
		c.SendEvent(game.NewEvent("registered", map[string]any{
			"playerId":    p.ID,
			"name":        p.Name,
			"boardType":   p.BoardType,
			"boardNumber": p.BoardIndex,
			"stake":       p.Stake,
			"grid":        p.Grid,
			"game":        d.engine.Snapshot(),
			"chat":        d.hub.ChatHistory(),
		}))

	case "reconnect":
		p, err := d.engine.Reconnect(cmd.PlayerID)
		if err != nil {
			c.SendEvent(game.ErrorEvent(err.Error()))
			return
		}
		c.setPlayerID(p.ID)
		d.hub.BindPlayer(p.ID, c)
		c.SendEvent(game.NewEvent("reconnected", map[string]any{
			"playerId": p.ID,
			"name":     p.Name,
			"grid":     p.Grid,
			"marked":   p.MarkedNumbers(),
			"balance":  p.Balance,
			"game":     d.engine.Snapshot(),
			"chat":     d.hub.ChatHistory(),
		}))

	case "mark_number":
		d.engine.MarkNumber(d.playerID(c, cmd), cmd.Number)

	case "claim_win":
		d.engine.ClaimWin(d.playerID(c, cmd))

	case "chat":
		id := d.playerID(c, cmd)
		name, ok := d.engine.PlayerName(id)
		if !ok {
			c.SendEvent(game.ErrorEvent("player not found"))
			return
		}
		d.hub.AddChat(models.ChatEntry{
			AuthorID:   id,
			AuthorName: name,
			Message:    cmd.Message,
			Kind:       models.ChatUser,
			At:         time.Now(),
		})

	case "withdraw":
		if err := d.engine.Withdraw(d.playerID(c, cmd), cmd.Amount, cmd.Account); err != nil {
			c.SendEvent(game.ErrorEvent(err.Error()))
		}

	case "get_state":
		c.SendEvent(game.NewEvent("state", d.engine.Snapshot()))

	case "ping":
		d.engine.Touch(d.playerID(c, cmd))
		c.SendEvent(game.NewEvent("pong", nil))

	case "leave":
		id := d.playerID(c, cmd)
		d.engine.Leave(id)
		d.hub.DropPlayer(id)

	default:
		c.SendEvent(game.ErrorEvent("unknown action"))
	}
}

func (d *Dispatcher) handleAdmin(c *Client, cmd command) {
	d.hub.TouchAdmin(c)

	switch cmd.Action {
	case "admin_start_game":
		if err := d.engine.StartRound(); err != nil {
			c.SendEvent(game.ErrorEvent(err.Error()))
		}

	case "admin_stop_game":
		if err := d.engine.StopRound(); err != nil {
			c.SendEvent(game.ErrorEvent(err.Error()))
		}

	case "admin_reset_game":
		d.engine.ResetRound()

	case "admin_call_number":
		if _, _, err := d.engine.CallNumber(); err != nil {
			c.SendEvent(game.ErrorEvent(err.Error()))
		}

	case "admin_kick_player":
		if err := d.engine.Kick(cmd.PlayerID); err != nil {
			c.SendEvent(game.ErrorEvent(err.Error()))
			return
		}
		d.hub.DropPlayer(cmd.PlayerID)

	case "admin_broadcast":
		d.hub.AddChat(models.ChatEntry{
			AuthorID:   "system",
			AuthorName: "system",
			Message:    cmd.Message,
			Kind:       models.ChatSystem,
			At:         time.Now(),
		})

	case "admin_get_stats":
		c.SendEvent(game.NewEvent("stats_admin", d.engine.Stats()))

	case "get_state":
		c.SendEvent(game.NewEvent("state_admin", d.engine.AdminSnapshot()))

	default:
		c.SendEvent(game.ErrorEvent("unknown action"))
	}
}

// playerID prefers the id bound to the socket over the one in the
// payload, so a client cannot act as another player.
func (d *Dispatcher) playerID(c *Client, cmd command) string {
	if id := c.PlayerID(); id != "" {
		return id
	}
	return cmd.PlayerID
}
