package services

import (
	"net/http"

	"github.com/amenassefagashaye/bingo-server/game"
	"github.com/amenassefagashaye/bingo-server/utils/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SocketService owns the websocket endpoints and the admin
// shared-secret check performed before any command reaches the core.
type SocketService struct {
	hub         *Hub
	dispatcher  *Dispatcher
	engine      *game.Engine
	adminSecret string
}

func NewSocketService(engine *game.Engine, hub *Hub, adminSecret string) *SocketService {
	return &SocketService{
		hub:         hub,
		dispatcher:  NewDispatcher(engine, hub),
		engine:      engine,
		adminSecret: adminSecret,
	}
}

// HandlePlayerWS upgrades a player connection. Identity is
// established afterwards through register/reconnect commands.
func (s *SocketService) HandlePlayerWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Errorf("ws upgrade: %v", err)
		return
	}

	client := NewClient(conn, s.hub, s.dispatcher, RolePlayer)
	client.Start()
}

// HandleAdminWS authenticates the shared secret, upgrades, registers
// the observer and resends the full state so a reconnecting admin
// catches up without any retry protocol.
func (s *SocketService) HandleAdminWS(c *gin.Context) {
	secret := c.Query("secret")
	if secret == "" {
		secret = c.GetHeader("X-Admin-Secret")
	}
	if secret != s.adminSecret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Errorf("admin ws upgrade: %v", err)
		return
	}

	client := NewClient(conn, s.hub, s.dispatcher, RoleAdmin)
	s.hub.AddAdmin(client)
	client.Start()

	client.SendEvent(game.NewEvent("state_admin", s.engine.AdminSnapshot()))
	client.SendEvent(game.NewEvent("stats_admin", s.engine.Stats()))
}
