package webhook

import (
	"errors"
	"net/http"
	"time"

	"tradepulse/internal/consts"
	"tradepulse/internal/executor"
	"tradepulse/internal/metrics"
	"tradepulse/internal/signal"
	"tradepulse/pkg/logger"

	"github.com/gin-gonic/gin"
)

// TradingView Webhook 的接收器
// 应答延迟是唯一对外的 SLA：解析、去重、投递执行池，立即返回，不等交易结果

type Handler struct {
	deduper *signal.Deduper
	exec    *executor.Executor
}

func NewHandler(d *signal.Deduper, e *executor.Executor) *Handler {
	return &Handler{deduper: d, exec: e}
}

// ack webhook 的应答体，字段名是上游约定死的
type ack struct {
	Status    string  `json:"status"`
	Action    string  `json:"action,omitempty"`
	Quantity  float64 `json:"quantity,omitempty"`
	LatencyMs float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

func (h *Handler) HandleWebhook() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		metrics.SignalsReceived.Inc()

		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusInternalServerError, ack{
				Status:    consts.StatusError,
				Error:     "failed to read body",
				LatencyMs: sinceMs(start),
			})
			return
		}

		sig, err := signal.Parse(body)
		if err != nil {
			metrics.SignalsRejected.Inc()
			status := http.StatusBadRequest
			if !errors.Is(err, signal.ErrEmptyMessage) && !errors.Is(err, signal.ErrUnknownAction) {
				status = http.StatusInternalServerError
			}
			c.JSON(status, ack{
				Status:    consts.StatusError,
				Error:     err.Error(),
				LatencyMs: sinceMs(start),
			})
			return
		}

		// 重放不是错误，幂等地按 200 应答
		if h.deduper.Seen(sig) {
			metrics.SignalsDuplicate.Inc()
			logger.Info("duplicate signal ignored",
				logger.Pair(consts.RequestId, c.GetString(consts.RequestId)),
				logger.Pair("action", sig.Action))
			c.JSON(http.StatusOK, ack{
				Status:    consts.StatusDuplicate,
				Action:    string(sig.Action),
				LatencyMs: sinceMs(start),
			})
			return
		}

		// 交易在执行池里收尾，这里不等
		h.exec.Submit(sig)

		resp := ack{
			Status:    consts.StatusExecuting,
			Action:    string(sig.Action),
			LatencyMs: sinceMs(start),
		}
		if sig.Size.Explicit {
			resp.Quantity = sig.Size.Value
		}
		metrics.AckLatency.Observe(time.Since(start).Seconds())
		c.JSON(http.StatusOK, resp)
	}
}

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
