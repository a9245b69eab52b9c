package main

import (
	"context"

	"tradepulse/conf"
	"tradepulse/internal/bingx"
	"tradepulse/internal/executor"
	"tradepulse/internal/handler/status"
	"tradepulse/internal/handler/webhook"
	"tradepulse/internal/market"
	"tradepulse/internal/router"
	"tradepulse/internal/signal"
	"tradepulse/pkg/logger"
)

// initApp 组装整条执行链路：交易所客户端 → 状态缓存 → 执行器 → 路由
// 返回的 cleanup 在停机时等待执行中的交易收尾
func initApp(ctx context.Context) (*router.ApiRouter, func()) {
	cfg := conf.AppConfig

	client := bingx.NewClient(cfg.Bingx.BaseURL, cfg.Bingx.ApiKey, cfg.Bingx.SecretKey)
	store := market.NewStore(client, cfg.Trading)
	exec := executor.New(store, client, cfg.Trading)

	// 一次性的启动副作用，不在热路径上
	exec.SetupLeverage(ctx)
	if err := store.Warm(ctx); err != nil {
		logger.Warnf("cache warm-up incomplete: %v", err)
	}

	// 价格缓存由后台保温，信号到达时大概率不用再等一次网络往返
	store.StartPriceRefresh(ctx, cfg.Trading.PriceRefresh.Std())
	if cfg.Trading.StreamEnabled && cfg.Bingx.WsURL != "" {
		stream := bingx.NewPriceStream(cfg.Bingx.WsURL, cfg.Trading.Symbol)
		go stream.Start(ctx)
		store.FeedPrices(ctx, stream.Prices())
	}

	deduper := signal.NewDeduper(512)
	wh := webhook.NewHandler(deduper, exec)
	sh := status.NewHandler(store)

	logger.Info("tradepulse initialized",
		logger.Pair("symbol", cfg.Trading.Symbol),
		logger.Pair("exitPolicy", cfg.Trading.ExitPolicy),
		logger.Pair("defaultFraction", cfg.Trading.DefaultFraction))

	return router.NewApiRouter(wh, sh), exec.Close
}
