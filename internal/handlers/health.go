package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vtria/erp/internal/services"
	"gorm.io/gorm"
)

// HealthHandler reports subsystem status.
type HealthHandler struct {
	db    *gorm.DB
	queue services.TaskQueue
	hub   *services.SSEHub
}

func NewHealthHandler(db *gorm.DB, queue services.TaskQueue, hub *services.SSEHub) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, hub: hub}
}

// CheckHealth answers 503 when the database is unreachable.
// GET /health
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := http.StatusOK

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	queueMode := "sync"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "vtria-erp",
		"components": gin.H{
			"database":    dbStatus,
			"queue_mode":  queueMode,
			"sse_clients": h.hub.ClientCount(),
		},
	})
}
