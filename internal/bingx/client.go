package bingx

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"tradepulse/pkg/logger"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"
)

const (
	endpointTicker    = "/openApi/swap/v2/quote/ticker"
	endpointBalance   = "/openApi/swap/v2/user/balance"
	endpointPositions = "/openApi/swap/v2/user/positions"
	endpointOrder     = "/openApi/swap/v2/trade/order"
	endpointLeverage  = "/openApi/swap/v2/trade/leverage"
)

// 行情接口走公开通道，用更紧的超时；私有接口给签名和撮合留一点余量
const (
	tickerTimeout = 1 * time.Second
	signedTimeout = 1500 * time.Millisecond
	setupTimeout  = 3 * time.Second
)

// Client 复用同一个连接池贯穿整个进程生命周期
// 每次请求新建 TCP+TLS 握手是这条链路上最大的可避免延迟
type Client struct {
	baseURL    string
	apiKey     string
	signer     *Signer
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(baseURL, apiKey, secretKey string) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   800 * time.Millisecond,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 900 * time.Millisecond,
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		signer:     NewSigner(secretKey),
		httpClient: &http.Client{Transport: transport},
		now:        time.Now,
	}
}

// 交易所统一的响应信封
type envelope struct {
	Code int64           `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// do 发出一次请求并拆信封
// signed 时注入毫秒时间戳并签名，signature 必须在所有参数就绪之后最后加入
func (c *Client) do(ctx context.Context, method, endpoint string, params map[string]string, signed bool, timeout time.Duration) (json.RawMessage, error) {
	if params == nil {
		params = map[string]string{}
	}
	if signed {
		params["timestamp"] = strconv.FormatInt(c.now().UnixMilli(), 10)
		params["signature"] = c.signer.Sign(params)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var req *http.Request
	var err error
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+endpoint+"?"+encodeQuery(params), nil)
	} else {
		var body []byte
		body, err = json.Marshal(params)
		if err == nil {
			req, err = http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bytes.NewReader(body))
			if req != nil {
				req.Header.Set("Content-Type", "application/json")
			}
		}
	}
	if err != nil {
		return nil, &NetworkError{Op: endpoint, Err: err}
	}
	if signed {
		req.Header.Set("X-BX-APIKEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: endpoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: endpoint, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &NetworkError{Op: endpoint, Err: err}
	}
	if env.Code != 0 {
		return nil, &APIError{Code: env.Code, Msg: env.Msg}
	}
	return env.Data, nil
}

// encodeQuery 按签名用的同一套规则拼接，保证 query 和签名字节一致
func encodeQuery(params map[string]string) string {
	// 签名已经在 map 里时也按字典序输出，signature 排在 s 开头的位置交易所并不在意，
	// 但参数串必须和被签名的串字节一致（signature 除外）
	var sb strings.Builder
	first := true
	appendPair := func(k, v string) {
		if !first {
			sb.WriteByte('&')
		}
		first = false
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(v)
	}
	sig, hasSig := params["signature"]
	if hasSig {
		delete(params, "signature")
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		appendPair(k, params[k])
	}
	if hasSig {
		appendPair("signature", sig)
		params["signature"] = sig
	}
	return sb.String()
}

// LastPrice 获取最新成交价，公开接口不签名
// data 在单 symbol 查询时是对象，全量查询时是数组，两种都兼容
func (c *Client) LastPrice(ctx context.Context, symbol string) (float64, error) {
	data, err := c.do(ctx, http.MethodGet, endpointTicker, map[string]string{"symbol": symbol}, false, tickerTimeout)
	if err != nil {
		return 0, err
	}

	type ticker struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	}
	var one ticker
	if err := json.Unmarshal(data, &one); err == nil && one.LastPrice != "" {
		return cast.ToFloat64E(one.LastPrice)
	}
	var many []ticker
	if err := json.Unmarshal(data, &many); err == nil {
		for _, t := range many {
			if t.Symbol == symbol {
				return cast.ToFloat64E(t.LastPrice)
			}
		}
	}
	return 0, &NetworkError{Op: endpointTicker, Err: errUnexpectedPayload}
}

// AvailableBalance 返回可用保证金（USDT）
func (c *Client) AvailableBalance(ctx context.Context) (float64, error) {
	data, err := c.do(ctx, http.MethodGet, endpointBalance, nil, true, signedTimeout)
	if err != nil {
		return 0, err
	}
	var payload struct {
		Balance struct {
			Asset           string `json:"asset"`
			AvailableMargin string `json:"availableMargin"`
		} `json:"balance"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, &NetworkError{Op: endpointBalance, Err: err}
	}
	return cast.ToFloat64E(payload.Balance.AvailableMargin)
}

// Positions 返回指定 symbol 的当前持仓
func (c *Client) Positions(ctx context.Context, symbol string) ([]Position, error) {
	data, err := c.do(ctx, http.MethodGet, endpointPositions, map[string]string{"symbol": symbol}, true, signedTimeout)
	if err != nil {
		return nil, err
	}
	var positions []Position
	if err := json.Unmarshal(data, &positions); err != nil {
		// 单仓时交易所可能直接返回对象
		var one Position
		if err2 := json.Unmarshal(data, &one); err2 != nil {
			return nil, &NetworkError{Op: endpointPositions, Err: err}
		}
		positions = []Position{one}
	}
	out := positions[:0]
	for _, p := range positions {
		if p.Symbol == symbol {
			out = append(out, p)
		}
	}
	return out, nil
}

// PlaceOrder 提交市价单，失败不重试
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	params := map[string]string{
		"symbol":       req.Symbol,
		"side":         string(req.Side),
		"positionSide": string(req.PositionSide),
		"type":         "MARKET",
		"quantity":     req.Quantity,
	}
	if req.ReduceOnly {
		params["reduceOnly"] = "true"
	}
	if req.ClientOrderID != "" {
		params["clientOrderID"] = req.ClientOrderID
	}

	data, err := c.do(ctx, http.MethodPost, endpointOrder, params, true, signedTimeout)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Order OrderResult `json:"order"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &NetworkError{Op: endpointOrder, Err: err}
	}
	return &payload.Order, nil
}

// SetLeverage 启动时设置一次杠杆，不在下单热路径上
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := map[string]string{
		"symbol":   symbol,
		"side":     "BOTH",
		"leverage": strconv.Itoa(leverage),
	}
	_, err := c.do(ctx, http.MethodPost, endpointLeverage, params, true, setupTimeout)
	if err != nil {
		logger.Warnf("set leverage failed: %v", err)
	}
	return err
}
