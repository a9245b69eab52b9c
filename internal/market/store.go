package market

import (
	"context"
	"time"

	"tradepulse/conf"
	"tradepulse/internal/bingx"
	"tradepulse/pkg/logger"

	"go.uber.org/multierr"
)

// Source 行情和账户数据来源，由 bingx.Client 实现，测试时注入假实现
type Source interface {
	LastPrice(ctx context.Context, symbol string) (float64, error)
	AvailableBalance(ctx context.Context) (float64, error)
	Positions(ctx context.Context, symbol string) ([]bingx.Position, error)
}

// Store 进程级的三个缓存项：价格、余额、持仓
// 各自独立的时效窗口，执行器只通过这里读交易所状态
type Store struct {
	Price    *Entry[float64]
	Balance  *Entry[float64]
	Position *Entry[[]bingx.Position]

	symbol string
}

func NewStore(src Source, cfg conf.TradingConfig) *Store {
	symbol := cfg.Symbol
	return &Store{
		Price: NewEntry(cfg.PriceTTL.Std(), func(ctx context.Context) (float64, error) {
			return src.LastPrice(ctx, symbol)
		}),
		Balance: NewEntry(cfg.BalanceTTL.Std(), func(ctx context.Context) (float64, error) {
			return src.AvailableBalance(ctx)
		}),
		Position: NewEntry(cfg.PositionTTL.Std(), func(ctx context.Context) ([]bingx.Position, error) {
			return src.Positions(ctx, symbol)
		}),
		symbol: symbol,
	}
}

// Warm 启动时预热一遍；失败不致命，缓存保持冷态由执行器兜底
func (s *Store) Warm(ctx context.Context) error {
	return multierr.Append(
		s.Price.ForceRefresh(ctx),
		s.Balance.ForceRefresh(ctx),
	)
}

// StartPriceRefresh 后台按固定间隔刷新价格
// 把首次读的网络往返从请求路径上摘掉，信号到达时价格大概率已是热的
func (s *Store) StartPriceRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Price.ForceRefresh(ctx); err != nil {
					logger.Debugf("interval price refresh failed: %v", err)
				}
			}
		}
	}()
}

// FeedPrices 消费 websocket 推送的最新价
func (s *Store) FeedPrices(ctx context.Context, prices <-chan float64) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case p, ok := <-prices:
				if !ok {
					return
				}
				if p > 0 {
					s.Price.Set(p)
				}
			}
		}
	}()
}

// InvalidateAfterTrade 成交会改变余额和持仓，强制下次读取回源
func (s *Store) InvalidateAfterTrade() {
	s.Balance.Invalidate()
	s.Position.Invalidate()
}

// Snapshot 缓存新鲜度快照，/status 用，只读不回源
type Snapshot struct {
	Symbol       string  `json:"symbol"`
	Price        float64 `json:"price"`
	PriceAgeMs   int64   `json:"price_age_ms"`
	PriceFresh   bool    `json:"price_fresh"`
	Balance      float64 `json:"balance"`
	BalanceAgeMs int64   `json:"balance_age_ms"`
	BalanceFresh bool    `json:"balance_fresh"`
	Positions    int     `json:"positions"`
}

func (s *Store) Snapshot() Snapshot {
	price, priceAt := s.Price.Peek()
	balance, balanceAt := s.Balance.Peek()
	positions, _ := s.Position.Peek()
	now := time.Now()
	return Snapshot{
		Symbol:       s.symbol,
		Price:        price,
		PriceAgeMs:   ageMs(now, priceAt),
		PriceFresh:   s.Price.Fresh(),
		Balance:      balance,
		BalanceAgeMs: ageMs(now, balanceAt),
		BalanceFresh: s.Balance.Fresh(),
		Positions:    len(positions),
	}
}

func ageMs(now, at time.Time) int64 {
	if at.IsZero() {
		return -1
	}
	return now.Sub(at).Milliseconds()
}
