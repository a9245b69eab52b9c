package status

import (
	"net/http"
	"time"

	"tradepulse/internal/market"

	"github.com/gin-gonic/gin"
)

// 只读的健康面板，给 uptime 监控用，对执行器没有任何控制权

type Handler struct {
	store     *market.Store
	startedAt time.Time
}

func NewHandler(store *market.Store) *Handler {
	return &Handler{store: store, startedAt: time.Now()}
}

func (h *Handler) Status() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "online",
			"service":        "tradepulse",
			"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
			"cache":          h.store.Snapshot(),
			"timestamp":      time.Now().Unix(),
		})
	}
}

func (h *Handler) Home() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "tradepulse",
			"status":  "ready",
			"endpoints": gin.H{
				"webhook": "POST /webhook",
				"status":  "GET /status",
				"metrics": "GET /metrics",
			},
		})
	}
}
