package routes

import (
	"github.com/amenassefagashaye/bingo-server/controllers"
	"github.com/amenassefagashaye/bingo-server/services"
	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, stats *controllers.StatsController, sockets *services.SocketService) {
	// ----------------------
	// Health & stats
	// ----------------------
	r.GET("/health", stats.Health)

	api := r.Group("/api")
	api.GET("/stats", stats.Stats)

	// ----------------------
	// WebSocket endpoints
	// ----------------------
	r.GET("/ws", sockets.HandlePlayerWS)
	r.GET("/ws/admin", sockets.HandleAdminWS)
}
