package bingx

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"time"

	"tradepulse/pkg/logger"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cast"
)

// PriceStream 订阅合约行情 websocket，把最新价喂给价格缓存
// REST 定时刷新仍然是兜底，流只是让缓存更热
type PriceStream struct {
	wsURL  string
	symbol string
	prices chan float64
}

func NewPriceStream(wsURL, symbol string) *PriceStream {
	return &PriceStream{
		wsURL:  wsURL,
		symbol: symbol,
		// 缓冲防止消费方短暂落后时阻塞读循环
		prices: make(chan float64, 256),
	}
}

// Prices 最新价通道，读端是价格缓存
func (s *PriceStream) Prices() <-chan float64 {
	return s.prices
}

// Start 建立连接并持续读取，断线后间隔重连，ctx 取消时退出
func (s *PriceStream) Start(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.run(ctx); err != nil {
			logger.Errorf("price stream disconnected, reconnecting: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (s *PriceStream) run(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := map[string]string{
		"id":       uuid.NewString(),
		"reqType":  "sub",
		"dataType": s.symbol + "@lastPrice",
	}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	logger.Info("price stream subscribed", logger.Pair("symbol", s.symbol))

	// 监视 goroutine 必须随本次连接一起退出，不能等到进程级 ctx 取消，
	// 否则行情抖动时每次重连都会多挂一个
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		// 行情帧是 gzip 压缩的
		if plain, err := gunzip(message); err == nil {
			message = plain
		}
		if string(message) == "Ping" {
			_ = conn.WriteMessage(websocket.TextMessage, []byte("Pong"))
			continue
		}

		var frame struct {
			DataType string `json:"dataType"`
			Data     struct {
				Close string `json:"c"`
			} `json:"data"`
		}
		if err := json.Unmarshal(message, &frame); err != nil {
			continue
		}
		if frame.Data.Close == "" {
			continue // 订阅回执等控制帧
		}
		price, err := cast.ToFloat64E(frame.Data.Close)
		if err != nil || price <= 0 {
			continue
		}
		select {
		case s.prices <- price:
		default:
			// 消费方落后时丢弃旧价，永远不阻塞读循环
		}
	}
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
