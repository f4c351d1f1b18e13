package main

import (
	"log"
	"time"

	"github.com/amenassefagashaye/bingo-server/config"
	"github.com/amenassefagashaye/bingo-server/controllers"
	"github.com/amenassefagashaye/bingo-server/game"
	"github.com/amenassefagashaye/bingo-server/routes"
	"github.com/amenassefagashaye/bingo-server/services"
	"github.com/amenassefagashaye/bingo-server/utils/logger"

	"github.com/coder/quartz"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	// Optional audit database
	db := config.SetupDatabase(cfg.DatabaseURL)

	// In-memory session directory and game engine
	hub := services.NewHub(cfg.ChatHistoryLimit, cfg.AdminStaleAfter)

	var audit game.AuditSink
	if db != nil {
		audit = services.NewAudit(db)
	}

	engine := game.NewEngine(game.Config{
		DrawInterval:      cfg.DrawInterval,
		ServiceFee:        cfg.ServiceFee,
		MinStake:          cfg.MinStake,
		MaxStake:          cfg.MaxStake,
		MinWithdrawal:     cfg.MinWithdrawal,
		MaxPlayers:        cfg.MaxPlayers,
		InactivityTimeout: cfg.InactivityTimeout,
	}, hub, audit, quartz.NewReal(), time.Now().UnixNano())
	engine.Start()
	defer engine.Close()

	sockets := services.NewSocketService(engine, hub, cfg.AdminSecret)
	stats := controllers.NewStatsController(engine)

	r := gin.Default()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Origins(),
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Admin-Secret"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.SetupRoutes(r, stats, sockets)

	logger.Infof("🚀 Bingo server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("[FATAL] Failed to start server: %v", err)
	}
}
