package router

import (
	"net/http"

	"tradepulse/internal/handler/status"
	"tradepulse/internal/handler/webhook"
	"tradepulse/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ApiRouter struct {
	wh *webhook.Handler
	sh *status.Handler
}

func NewApiRouter(wh *webhook.Handler, sh *status.Handler) *ApiRouter {
	return &ApiRouter{wh: wh, sh: sh}
}

func (api *ApiRouter) Load(g *gin.Engine) {
	g.Use(middleware.RequestId(), middleware.Logger)

	// 服务自检
	g.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	g.GET("/", api.sh.Home())
	g.GET("/status", api.sh.Status())
	g.GET("/health", api.sh.Status())
	g.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 信号入口，延迟敏感
	g.POST("/webhook", api.wh.HandleWebhook())
}
