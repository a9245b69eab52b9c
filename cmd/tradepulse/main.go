package main

import (
	"context"
	"flag"
	"log"

	"tradepulse/conf"
	"tradepulse/pkg/logger"

	"github.com/gin-gonic/gin"
)

// 启动服务（监听webhook）

/*
测试

curl -X POST http://localhost:8090/webhook \
  -H "Content-Type: application/json" \
  -d '{"message": "ENTER-LONG_BINGX_ETHUSDT_BOT1_5M_83749"}'
*/

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置文件，密钥缺失直接退出
	if err := conf.LoadConfig(*configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cfg := &conf.AppConfig
	logger.Init(logger.Options{
		Level:      cfg.Log.Level,
		FileName:   cfg.Log.FileName,
		TimeFormat: cfg.Log.TimeFormat,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
		LocalTime:  cfg.Log.LocalTime,
		Console:    cfg.Log.Console,
	})
	defer logger.Sync()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	apiRouter, cleanup := initApp(ctx)

	srv := NewServer(&cfg.Server)
	srv.RegisterOnShutdown(func() {
		cancel()
		cleanup()
	})
	srv.Run(apiRouter)
}
