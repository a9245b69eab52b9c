package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 信号与订单计数，/metrics 暴露给监控
// 交易结果只能从这里和日志观察，webhook 应答不等交易完成
var (
	SignalsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradepulse_signals_received_total",
		Help: "Inbound webhook messages",
	})

	SignalsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradepulse_signals_rejected_total",
		Help: "Messages that failed to parse",
	})

	SignalsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradepulse_signals_duplicate_total",
		Help: "Replayed signals suppressed by the deduper",
	})

	Orders = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradepulse_orders_total",
		Help: "Trade outcomes by terminal state",
	}, []string{"state", "action"})

	OrderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tradepulse_order_roundtrip_seconds",
		Help:    "Signal receipt to exchange response",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 8),
	})

	AckLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tradepulse_webhook_ack_seconds",
		Help:    "Webhook acknowledgment latency",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
	})
)
