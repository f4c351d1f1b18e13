package controllers

import (
	"net/http"
	"time"

	"github.com/amenassefagashaye/bingo-server/game"
	"github.com/gin-gonic/gin"
)

// StatsController serves the REST health/stats surface.
type StatsController struct {
	engine *game.Engine
}

func NewStatsController(engine *game.Engine) *StatsController {
	return &StatsController{engine: engine}
}

// Health reports liveness.
func (s *StatsController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now()})
}

// Stats reports the aggregate session figures: player count, round
// flag, called count, prize pool, lifetime totals and the current
// winner name if any.
func (s *StatsController) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Stats())
}
