package executor

import (
	"context"
	"errors"
	"time"

	"tradepulse/conf"
	"tradepulse/internal/bingx"
	"tradepulse/internal/market"
	"tradepulse/internal/metrics"
	"tradepulse/internal/signal"
	"tradepulse/pkg/logger"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cast"
)

// 一次执行在状态机里的位置
// Idle → Validating → (Entry|Exit) → Signed → Submitted → {Filled, Rejected, Failed}
type State string

const (
	StateValidating State = "VALIDATING"
	StateEntry      State = "ENTRY"
	StateExit       State = "EXIT"
	StateSigned     State = "SIGNED"
	StateSubmitted  State = "SUBMITTED"
	// Filled 交易所接受了订单
	StateFilled State = "FILLED"
	// Rejected 交易所返回业务错误，或本地校验不过，未成交且不重试
	StateRejected State = "REJECTED"
	// Failed 网络层失败，结果未知，只记录绝不重试
	StateFailed State = "FAILED"
)

var (
	// 缓存还是冷的或价格/余额为零，宁可不下单也不能按零价算出离谱的数量
	ErrDataUnavailable = errors.New("executor: market data unavailable")
	// 四舍五入后数量不为正
	ErrQuantityTooSmall = errors.New("executor: computed quantity is not positive")
)

// Result 一次信号执行的终态，只进日志和计数器，不回传给 webhook
type Result struct {
	State        State
	Action       signal.Action
	Side         bingx.OrderSide
	PositionSide bingx.PositionSide
	Quantity     string
	OrderID      int64
	Note         string
	Err          error
	Elapsed      time.Duration
}

// Exchange 执行器需要的下单能力，测试时注入假交易所
type Exchange interface {
	PlaceOrder(ctx context.Context, req bingx.OrderRequest) (*bingx.OrderResult, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}

// Executor 把解析后的动作映射成一张交易所订单
type Executor struct {
	store *market.Store
	ex    Exchange
	cfg   conf.TradingConfig
	pool  *pool.Pool
	node  *snowflake.Node
}

func New(store *market.Store, ex Exchange, cfg conf.TradingConfig) *Executor {
	node, _ := snowflake.NewNode(1)
	return &Executor{
		store: store,
		ex:    ex,
		cfg:   cfg,
		pool:  pool.New().WithMaxGoroutines(cfg.ExecutorWorkers),
		node:  node,
	}
}

// SetupLeverage 启动时设置一次杠杆，失败只记日志不影响启动
func (e *Executor) SetupLeverage(ctx context.Context) {
	if e.cfg.Leverage <= 0 {
		return
	}
	if err := e.ex.SetLeverage(ctx, e.cfg.Symbol, e.cfg.Leverage); err != nil {
		logger.Warnf("leverage setup failed (may already be set): %v", err)
		return
	}
	logger.Infof("leverage set to %dx for %s", e.cfg.Leverage, e.cfg.Symbol)
}

// Submit 投递到执行池后立即返回，webhook 应答不等交易结束
// 所有错误都在这里收口成 Result，绝不向上抛
func (e *Executor) Submit(sig *signal.Signal) {
	e.pool.Go(func() {
		res := e.Execute(context.Background(), sig)
		metrics.Orders.WithLabelValues(string(res.State), string(res.Action)).Inc()
		metrics.OrderLatency.Observe(res.Elapsed.Seconds())
		if res.Err != nil {
			logger.Error("trade finished",
				logger.Pair("state", res.State),
				logger.Pair("action", res.Action),
				logger.Pair("quantity", res.Quantity),
				logger.Pair("note", res.Note),
				logger.Pair("cost", res.Elapsed),
				logger.Pair("err", res.Err.Error()))
			return
		}
		logger.Info("trade finished",
			logger.Pair("state", res.State),
			logger.Pair("action", res.Action),
			logger.Pair("side", res.Side),
			logger.Pair("positionSide", res.PositionSide),
			logger.Pair("quantity", res.Quantity),
			logger.Pair("orderId", res.OrderID),
			logger.Pair("note", res.Note),
			logger.Pair("cost", res.Elapsed))
	})
}

// Close 等执行中的交易收尾，停机时调用
func (e *Executor) Close() {
	e.pool.Wait()
}

// Execute 同步跑完状态机，返回终态
func (e *Executor) Execute(ctx context.Context, sig *signal.Signal) Result {
	start := time.Now()
	res := Result{State: StateValidating, Action: sig.Action}

	if sig.Action.IsEntry() {
		e.enter(ctx, sig, &res)
	} else {
		e.exit(ctx, sig, &res)
	}

	res.Elapsed = time.Since(start)
	return res
}

// enter 开仓：读缓存里的价格和余额，算数量，下市价单
func (e *Executor) enter(ctx context.Context, sig *signal.Signal, res *Result) {
	res.State = StateEntry

	// 两个读可以并行，但都回来之前不能算订单参数
	var price, balance float64
	var wg conc.WaitGroup
	wg.Go(func() { price = e.store.Price.Get(ctx) })
	wg.Go(func() { balance = e.store.Balance.Get(ctx) })
	wg.Wait()

	if price <= 0 || balance <= 0 {
		res.State = StateRejected
		res.Err = ErrDataUnavailable
		return
	}

	var qty decimal.Decimal
	fraction := e.cfg.DefaultFraction
	if sig.Size.Explicit && sig.Size.Value > 1 {
		// 直接给定的币数量
		qty = decimal.NewFromFloat(sig.Size.Value).Round(e.cfg.Precision)
	} else {
		if sig.Size.Explicit {
			fraction = sig.Size.Value
		}
		qty = decimal.NewFromFloat(balance).
			Mul(decimal.NewFromFloat(fraction)).
			Div(decimal.NewFromFloat(price)).
			Round(e.cfg.Precision)
	}
	if !qty.IsPositive() {
		res.State = StateRejected
		res.Err = ErrQuantityTooSmall
		return
	}

	side, posSide := orderSides(sig.Action)
	e.submit(ctx, res, bingx.OrderRequest{
		Symbol:       e.cfg.Symbol,
		Side:         side,
		PositionSide: posSide,
		Quantity:     qty.String(),
	})
}

// exit 平仓：盲平直接信任信号里的数量，省一次查仓往返；
// 查仓平仓先读当前持仓，按 |positionAmt| 平，无仓视为成功的空操作
func (e *Executor) exit(ctx context.Context, sig *signal.Signal, res *Result) {
	res.State = StateExit

	blind := e.cfg.ExitPolicy == conf.ExitPolicyBlind &&
		sig.Size.Explicit && sig.Action != signal.ActionExitAll
	if blind {
		qty := decimal.NewFromFloat(sig.Size.Value).Round(e.cfg.Precision)
		if !qty.IsPositive() {
			res.State = StateRejected
			res.Err = ErrQuantityTooSmall
			return
		}
		side, posSide := orderSides(sig.Action)
		// reduceOnly 兜底：就算给的数量比实际仓位大，交易所也只会减仓
		e.submit(ctx, res, bingx.OrderRequest{
			Symbol:       e.cfg.Symbol,
			Side:         side,
			PositionSide: posSide,
			Quantity:     qty.String(),
			ReduceOnly:   true,
		})
		return
	}

	positions := e.store.Position.Get(ctx)
	targets := matchPositions(positions, sig.Action)
	if len(targets) == 0 {
		res.State = StateFilled
		res.Note = "no position to close"
		return
	}

	for _, p := range targets {
		amt := cast.ToFloat64(p.PositionAmt)
		qty := decimal.NewFromFloat(amt).Abs().Round(e.cfg.Precision)
		if !qty.IsPositive() {
			continue
		}
		side := bingx.Sell
		posSide := bingx.PosLong
		if p.PositionSide == string(bingx.PosShort) {
			side = bingx.Buy
			posSide = bingx.PosShort
		}
		e.submit(ctx, res, bingx.OrderRequest{
			Symbol:       e.cfg.Symbol,
			Side:         side,
			PositionSide: posSide,
			Quantity:     qty.String(),
		})
		if res.State != StateFilled {
			return
		}
	}
	if res.State == StateExit {
		// 所有匹配仓位数量都是零
		res.State = StateFilled
		res.Note = "no position to close"
	}
}

// submit 签名、发送并判定终态；签名由 Client 在发送前完成
func (e *Executor) submit(ctx context.Context, res *Result, req bingx.OrderRequest) {
	req.ClientOrderID = e.node.Generate().String()
	res.State = StateSigned
	res.Side = req.Side
	res.PositionSide = req.PositionSide
	res.Quantity = req.Quantity

	res.State = StateSubmitted
	order, err := e.ex.PlaceOrder(ctx, req)

	var apiErr *bingx.APIError
	switch {
	case errors.As(err, &apiErr):
		// 市价单没有幂等性，业务拒绝不重试
		res.State = StateRejected
		res.Err = apiErr
	case err != nil:
		// 超时/连接失败：订单可能已经到了交易所，结果未知
		res.State = StateFailed
		res.Err = err
	default:
		res.State = StateFilled
		if order != nil {
			res.OrderID = order.OrderID
		}
		e.store.InvalidateAfterTrade()
	}
}

// 动作到订单方向的映射
// ENTER_LONG→BUY/LONG ENTER_SHORT→SELL/SHORT EXIT_LONG→SELL/LONG EXIT_SHORT→BUY/SHORT
func orderSides(act signal.Action) (bingx.OrderSide, bingx.PositionSide) {
	switch act {
	case signal.ActionEnterLong:
		return bingx.Buy, bingx.PosLong
	case signal.ActionEnterShort:
		return bingx.Sell, bingx.PosShort
	case signal.ActionExitLong:
		return bingx.Sell, bingx.PosLong
	default: // EXIT-SHORT
		return bingx.Buy, bingx.PosShort
	}
}

// matchPositions 挑出要平的仓位：EXIT-ALL 全平，其余只平同方向
func matchPositions(positions []bingx.Position, act signal.Action) []bingx.Position {
	var out []bingx.Position
	for _, p := range positions {
		if cast.ToFloat64(p.PositionAmt) == 0 {
			continue
		}
		switch act {
		case signal.ActionExitAll:
			out = append(out, p)
		case signal.ActionExitLong:
			if p.PositionSide == string(bingx.PosLong) {
				out = append(out, p)
			}
		case signal.ActionExitShort:
			if p.PositionSide == string(bingx.PosShort) {
				out = append(out, p)
			}
		}
	}
	return out
}
